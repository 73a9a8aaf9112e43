package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/alexedwards/flow"
)

const readHeaderTimeout = 10 * time.Second

type Server struct {
	ctx context.Context
	e   *flow.Mux
	srv *http.Server
}

func New(ctx context.Context, e *flow.Mux, addr string) *Server {
	s := &Server{ctx: ctx, e: e}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	return s
}

func (s *Server) Ctx() context.Context { return s.ctx }

func (s *Server) E() *flow.Mux { return s.e }

func (s *Server) Addr() string { return s.srv.Addr }

// Run serves until Shutdown is called. A graceful shutdown is not an error.
func (s *Server) Run() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests until
// timeout elapses.
func (s *Server) Shutdown(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
