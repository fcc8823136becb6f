package httputil

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/boardbeam/backend/internal/errors"
)

const (
	ErrTLSConfig errors.Code = "tls_config"
	ErrListen    errors.Code = "listen"
)

type Server struct {
	srv *http.Server
	tls TLSConfig

	mu sync.Mutex
	ln net.Listener
}

func NewServer(cfg *Config, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		tls: cfg.TLS,
	}
}

// Bind opens the listener, so Addr reports the port picked for ":0".
func (s *Server) Bind() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	if s.tls.Enabled && (s.tls.CertFile == "" || s.tls.KeyFile == "") {
		return errors.New(ErrTLSConfig, "tls is enabled without cert_file and key_file")
	}
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return errors.Wrapf(ErrListen, err, "listen %s", s.srv.Addr)
	}
	s.ln = ln
	return nil
}

// Addr is the bound address, or the configured one before Bind.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return s.srv.Addr
	}
	return s.ln.Addr().String()
}

// Serve binds when needed and blocks until Shutdown, which is reported as nil.
func (s *Server) Serve() error {
	if err := s.Bind(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	var err error
	if s.tls.Enabled {
		err = s.srv.ServeTLS(ln, s.tls.CertFile, s.tls.KeyFile)
	} else {
		err = s.srv.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
