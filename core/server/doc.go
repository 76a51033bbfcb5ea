// Package server holds configuration for the HTTP surface.
//
// The actual Fiber application is assembled in cmd/start.go; this package only
// defines the settings (port, API key) shared by middleware and startup code.
package server
