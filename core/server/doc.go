// Package server holds the HTTP server configuration.
//
// The serve command owns the Fiber application; this package only defines the listen
// address, the API key protecting the run trigger and the shutdown bound.
//
// # Usage
//
// This package is primarily used by the core/config package to embed server settings
// and by the serve command to start and stop the listener.
package server
