// Package api exposes the engine over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server is a thin wrapper over the router and an http.Server.
type Server struct {
	addr string
	srv  *http.Server
	log  *zap.Logger
}

// NewServer serves h on addr.
func NewServer(addr string, h http.Handler, log *zap.Logger) *Server {
	return &Server{
		addr: addr,
		log:  log.Named("http"),
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Addr returns the listening address.
func (s *Server) Addr() string { return s.addr }

// Run starts the server and blocks until it is shut down.
func (s *Server) Run() error {
	s.log.Info("http listening", zap.String("addr", s.addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
