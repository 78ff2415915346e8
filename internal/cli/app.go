package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/gitpulse/internal/config"
	"github.com/harun/gitpulse/internal/logger"
	"github.com/harun/gitpulse/internal/observability"
	"github.com/harun/gitpulse/internal/tracing"
	"github.com/harun/gitpulse/pkg/connection"
	"github.com/harun/gitpulse/pkg/domains"
	"github.com/harun/gitpulse/pkg/engine"
	"github.com/harun/gitpulse/pkg/github"
	"github.com/harun/gitpulse/pkg/host"
	"github.com/harun/gitpulse/pkg/router"
	"github.com/harun/gitpulse/pkg/transcript"
)

// app wires the full stack for one CLI invocation: config, logging,
// the GitHub-backed tool router, the reasoning engine, and the host.
type app struct {
	cfg     *config.Config
	host    *host.Host
	router  *router.Router
	logger  *logger.Logger
	metrics *http.Server
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	return cfg, nil
}

// buildRouter constructs the tool router over the GitHub API client.
// It needs no engine credentials, so catalog inspection works without
// a configured provider profile.
func buildRouter(cfg *config.Config) (*router.Router, error) {
	gh := github.New(github.Config{
		Token:   cfg.GitHub.Token,
		BaseURL: cfg.GitHub.BaseURL,
		Timeout: time.Duration(cfg.GitHub.TimeoutSeconds) * time.Second,
	})
	return router.New(domains.All(gh)...)
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	// Interactive commands own stdout, so logs go to the file only.
	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   false,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return nil, err
	}

	if err := tracing.InitOpenTelemetry("gitpulse"); err != nil {
		lg.Close()
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	rt, err := buildRouter(cfg)
	if err != nil {
		lg.Close()
		return nil, fmt.Errorf("failed to build tool router: %w", err)
	}

	profiles := make([]engine.Profile, len(cfg.Engine.Profiles))
	for i, p := range cfg.Engine.Profiles {
		profiles[i] = engine.Profile{
			ID:       p.ID,
			Provider: p.Provider,
			APIKey:   p.APIKey,
			Priority: p.Priority,
		}
	}
	eng, err := engine.NewClient(engine.Config{
		Model:       cfg.Engine.Model,
		Temperature: cfg.Engine.Temperature,
		MaxTokens:   cfg.Engine.MaxTokens,
		MaxRetries:  cfg.Engine.MaxRetries,
		Profiles:    profiles,
	})
	if err != nil {
		lg.Close()
		return nil, fmt.Errorf("failed to build engine client: %w", err)
	}

	var store *transcript.Store
	if cfg.Host.Transcripts {
		store, err = transcript.NewStore(filepath.Join(cfg.DataDir, "transcripts"))
		if err != nil {
			lg.Close()
			return nil, fmt.Errorf("failed to open transcript store: %w", err)
		}
	}

	manager := connection.NewManager(connection.InProcessDialer(rt))
	h := host.New(eng, manager, store, host.Config{
		MaxIterations:   cfg.Host.MaxIterations,
		WorkerPoolSize:  cfg.Host.WorkerPoolSize,
		DispatchTimeout: time.Duration(cfg.Host.DispatchTimeoutSeconds) * time.Second,
		SystemPrompt:    domains.SystemPrompt(""),
	})

	a := &app{cfg: cfg, host: h, router: rt, logger: lg}
	a.startMetrics()
	return a, nil
}

func (a *app) startMetrics() {
	if a.cfg.Metrics.Addr == "" {
		return
	}
	observability.EnsureRegistered()

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	a.metrics = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}

	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Str("addr", a.cfg.Metrics.Addr).Msg("Metrics listener stopped")
		}
	}()
}

func (a *app) close() {
	if a.metrics != nil {
		_ = a.metrics.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = tracing.ShutdownOpenTelemetry(ctx)

	if a.logger != nil {
		_ = a.logger.Close()
	}
}
