package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/brightsend/crm/internal/pkg/logger"
)

// Server wraps the HTTP server with lifecycle management.
type Server struct {
	srv *http.Server
}

// NewServer builds an HTTP server around the router.
func NewServer(host string, port int, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
	}
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	logger.Info("server listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
