// Package config provides configuration management for cardstock.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file. Defaults come from 'default' struct tags on each
// partial Config struct, bound recursively via reflection.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings:
//   - Server: HTTP server settings (port, API key)
//   - Database: MySQL connection details
//   - Storage: S3/MinIO credentials and bucket settings
//   - Log: Logging level and format
//   - Queue: worker pool size and job claim interval
//   - Inventory: ledger policy (oversell handling)
//   - Channels: sync retry ceiling, backoff base, poll/reconcile intervals
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
