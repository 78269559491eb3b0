// Package installer prepares the runtime environment before launch.
//
// PrepareEnvironment walks a requirements manifest in order and makes sure
// every package is present in the site directory. A package already recorded
// in the ledger at a satisfying version is left untouched, so re-running
// against a satisfied manifest only verifies presence.
//
// Missing packages are resolved against an Index (an S3/MinIO bucket or an
// HTTP index), extracted into a staging directory and renamed into place, so
// a half-extracted package is never visible. Any failure is returned as
// *InstallationError and the bootstrap stops before the launcher binds.
//
// # Manifest
//
//	# comments and blank lines are ignored
//	flask==2.2.5
//	dash>=2.0,<3
//	pandas~=1.5
//	plotly[express]==5.*; python_version >= "3.8"
//
// # Usage
//
//	inst := installer.New(index, ledger, cfg.Install.SiteDir, logger)
//	env, err := inst.PrepareEnvironment(ctx, manifest)
//	launchEnv := env.Env()
package installer
