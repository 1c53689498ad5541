// Package httpserver wraps net/http.Server with the graceful
// listen/notify/shutdown lifecycle every admin and diagnostics endpoint in
// this module uses.
package httpserver

import (
	"context"
	"net/http"
	"time"
)

const (
	defaultAddr            = ":80"
	defaultShutdownTimeout = 3 * time.Second
)

// Server runs an http.Server in the background and reports its terminal
// error, if any, over Notify.
type Server struct {
	server          *http.Server
	notify          chan error
	shutdownTimeout time.Duration
}

// Option configures a Server at construction time.
type Option func(*Server)

// Port overrides the default listen address's port.
func Port(port string) Option {
	return func(s *Server) {
		s.server.Addr = ":" + port
	}
}

// Addr overrides the entire listen address, host included.
func Addr(addr string) Option {
	return func(s *Server) {
		s.server.Addr = addr
	}
}

// ShutdownTimeout overrides how long Shutdown waits for in-flight requests
// to finish before giving up.
func ShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// New builds and starts a Server serving handler, applying opts in order.
func New(handler http.Handler, opts ...Option) *Server {
	s := &Server{
		server: &http.Server{
			Addr:    defaultAddr,
			Handler: handler,
		},
		notify:          make(chan error, 1),
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	go func() {
		s.notify <- s.server.ListenAndServe()
		close(s.notify)
	}()

	return s
}

// Notify delivers the error ListenAndServe returns once the server stops
// serving, then closes. After a call to Shutdown that error is
// http.ErrServerClosed.
func (s *Server) Notify() <-chan error {
	return s.notify
}

// Shutdown stops accepting new connections and waits up to the configured
// shutdown timeout for in-flight requests to complete.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
