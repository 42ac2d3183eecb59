package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"wagate/internal/bridge"
	"wagate/internal/credstore"
	"wagate/internal/engine"
	"wagate/internal/registry"
	"wagate/internal/session"
)

const shutdownGrace = 5 * time.Second

var ErrInvalidServiceConfig = errors.New("gateway: invalid service config")

// Gateway runtime configuration.
type ServiceConfig struct {
	ListenAddr  string
	EngineName  string
	SessionsDir string
	MediaDir    string
	CORSOrigins []string
	AuthToken   string
	Reconnect   session.ReconnectConfig
}

// Standalone defaults: loopback engine, local state directories.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr:  ":3001",
		EngineName:  "loopback",
		SessionsDir: "sessions",
		MediaDir:    "media",
		Reconnect:   session.DefaultReconnectConfig(),
	}
}

// Service wires credential storage, the protocol engine, the session
// registry and the HTTP surface into one runnable unit.
type Service struct {
	cfg ServiceConfig
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

func NewServiceWithConfig(cfg ServiceConfig) *Service {
	cfg.Reconnect = cfg.Reconnect.WithDefaults()
	return &Service{cfg: cfg}
}

// Gateway runtime entrypoint that blocks until process signal shutdown.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.cfg.MediaDir, 0o755); err != nil {
		return fmt.Errorf("%w: media dir: %v", ErrInvalidServiceConfig, err)
	}

	creds, err := credstore.NewFileStore(s.cfg.SessionsDir)
	if err != nil {
		return err
	}
	dialer, err := engine.Open(s.cfg.EngineName)
	if err != nil {
		return err
	}

	reg, err := registry.New(registry.Config{
		Dialer:      dialer,
		Credentials: creds,
		Reconnect:   s.cfg.Reconnect,
	})
	if err != nil {
		return err
	}
	br := bridge.New(reg)
	srv := NewServer(reg, br, ServerConfig{
		MediaDir:    s.cfg.MediaDir,
		CORSOrigins: s.cfg.CORSOrigins,
		AuthToken:   s.cfg.AuthToken,
	})

	httpSrv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Warn().Str("addr", s.cfg.ListenAddr).Str("engine", s.cfg.EngineName).Msg("gateway.Service.Run listening")
		serveErr <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	log.Warn().Msg("gateway.Service.Run shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("gateway.Service.Run http shutdown failed")
	}
	reg.Shutdown(shutdownCtx)
	return nil
}

func (s *Service) validate() error {
	if strings.TrimSpace(s.cfg.ListenAddr) == "" {
		return fmt.Errorf("%w: listen addr required", ErrInvalidServiceConfig)
	}
	if strings.TrimSpace(s.cfg.EngineName) == "" {
		return fmt.Errorf("%w: engine name required", ErrInvalidServiceConfig)
	}
	if strings.TrimSpace(s.cfg.SessionsDir) == "" {
		return fmt.Errorf("%w: sessions dir required", ErrInvalidServiceConfig)
	}
	if strings.TrimSpace(s.cfg.MediaDir) == "" {
		return fmt.Errorf("%w: media dir required", ErrInvalidServiceConfig)
	}
	return nil
}
