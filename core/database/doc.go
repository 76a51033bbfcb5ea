// Package database handles the MySQL connection used by every feature.
//
// It provides a wrapper around GORM to configure the connection from the
// application's configuration: DSN construction (with URL-encoded credentials),
// connection pool limits, I/O timeouts, and an initial ping.
//
// The ledger relies on the connection supporting SELECT ... FOR UPDATE row
// locks inside transactions; MySQL/InnoDB is the authoritative store.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
package database
