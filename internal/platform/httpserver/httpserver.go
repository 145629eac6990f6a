// Package httpserver builds the http.Server used by cmd/server.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server with conservative timeouts. Per-request deadlines are
// handled by the timeout middleware, so WriteTimeout stays generous enough
// for the audit list endpoint on large trails.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
