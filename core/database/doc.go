// Package database handles the connection to the installed-package ledger.
//
// It wraps GORM and configures either a SQLite file (the default, kept next
// to the installed packages) or a MySQL server shared between hosts.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    return err
//	}
package database
