package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"go-broadcast-relay/internal/infrastructure/logger"
)

type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Config struct {
	Address string
	// BindRetries is how many extra bind attempts are made before giving up
	BindRetries uint64
}

type HTTPServer struct {
	handler http.Handler
	cfg     Config
	logger  logger.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

var _ Server = (*HTTPServer)(nil)

func NewHTTPServer(handler http.Handler, cfg Config, log logger.Logger) *HTTPServer {
	return &HTTPServer{
		handler: handler,
		cfg:     cfg,
		logger:  log.WithField("component", "http"),
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Bind opens the listening socket. Failed attempts are retried with
// exponential backoff up to BindRetries times.
func (h *HTTPServer) Bind(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listener != nil {
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), h.cfg.BindRetries),
		ctx,
	)

	var lc net.ListenConfig
	operation := func() error {
		l, err := lc.Listen(ctx, "tcp", h.cfg.Address)
		if err != nil {
			return err
		}
		h.listener = l
		return nil
	}

	notify := func(err error, next time.Duration) {
		h.logger.Warnf("bind %s failed, retrying in %s: %v", h.cfg.Address, next, err)
	}

	if err := backoff.RetryNotify(operation, bo, notify); err != nil {
		return fmt.Errorf("bind %s: %w", h.cfg.Address, err)
	}
	return nil
}

// Addr returns the bound address, or nil before Bind
func (h *HTTPServer) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

func (h *HTTPServer) Start(ctx context.Context) error {
	if err := h.Bind(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	listener := h.listener
	h.mu.Unlock()

	var eg errgroup.Group
	eg.Go(func() error {
		err := h.srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	return eg.Wait()
}

func (h *HTTPServer) Stop(ctx context.Context) error {
	err := h.srv.Shutdown(ctx)

	// Shutdown only closes listeners that reached Serve
	h.mu.Lock()
	if h.listener != nil {
		_ = h.listener.Close()
	}
	h.mu.Unlock()

	return err
}
