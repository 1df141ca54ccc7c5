// Package api is the local control plane: queue inspection, manual job
// submission, and health/status probes. It binds to localhost by default
// and carries no auth, so it must never be exposed publicly.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/hypexbt/hypexbt/internal/queue"
	"github.com/hypexbt/hypexbt/internal/scheduler"
	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

type Config struct {
	Enabled      bool
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Pprof mounts the runtime profiler under /debug. Localhost binding is
	// assumed; there is no token guard.
	Pprof bool
}

func (c *Config) withDefaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8085"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
}

// Service runs the HTTP control plane.
type Service struct {
	cfg   Config
	store queue.Store
	reg   *queue.Registry
	wrk   *queue.Worker
	sched *scheduler.Service
	log   logx.Logger

	mu  sync.Mutex
	srv *http.Server
}

func New(cfg Config, store queue.Store, reg *queue.Registry, wrk *queue.Worker, sched *scheduler.Service, log logx.Logger) *Service {
	cfg.withDefaults()
	return &Service{
		cfg:   cfg,
		store: store,
		reg:   reg,
		wrk:   wrk,
		sched: sched,
		log:   log,
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.srv != nil {
		return
	}

	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	srv := s.srv

	go func() {
		s.log.Info("api listening", logx.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server error", logx.Err(err))
		}
	}()
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()

	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		s.log.Warn("api shutdown", logx.Err(err))
	}
}
