// Package config provides configuration management for the bootstrap.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file. Defaults come from the `default` struct tags of
// each section.
//
// # Configuration Structure
//
// The Config struct is the central repository for all settings, divided into subsections:
//   - Server: bind address, target, request timeout, worker count (SERVER_*)
//   - Worker: worker command template, boot timeout, respawn throttling (WORKER_*)
//   - Install: manifest path, site directory, package index (INSTALL_*)
//   - Storage: S3/MinIO package index credentials and bucket (STORAGE_*)
//   - Database: installed-package ledger connection (DATABASE_*)
//   - Log: Logging level and format (LOG_*)
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Bind)
package config
