// Package httpserver builds the console's *http.Server.
package httpserver

import (
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
)

// New returns a server wired to the given handler. WriteTimeout stays unset:
// the live events stream holds its response open for the life of the client,
// and per-request deadlines are enforced by the router's timeout middleware.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}
