package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ashureev/decisions/internal/backend"
	"github.com/ashureev/decisions/internal/config"
	"github.com/ashureev/decisions/internal/connectivity"
	"github.com/ashureev/decisions/internal/identity"
	"github.com/ashureev/decisions/internal/store"
	"github.com/ashureev/decisions/internal/view"
)

// app holds what every command shares: configuration, the settings store,
// the identifier and the service client.
type app struct {
	cfg    *config.Config
	flags  *rootFlags
	logger *slog.Logger
	repo   store.Repository
	ids    *identity.Provider
	client *backend.Client
}

// newApp loads configuration and opens the store. logs receives the log
// output; jsonLogs selects the JSON handler used by the server.
func newApp(ctx context.Context, flags *rootFlags, logs io.Writer, jsonLogs bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.apiURL != "" {
		cfg.APIBaseURL = strings.TrimRight(flags.apiURL, "/")
	}
	if flags.dbPath != "" {
		cfg.DBPath = flags.dbPath
	}
	if flags.logLevel != "" {
		cfg.LogLevel = strings.ToLower(flags.logLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(logs, cfg.LogLevel, jsonLogs)

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings store: %w", err)
	}
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("settings store health check failed: %w", err)
	}

	ids := identity.NewProvider(repo, logger)
	client, err := backend.NewClient(backend.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	}, ids)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	return &app{cfg: cfg, flags: flags, logger: logger, repo: repo, ids: ids, client: client}, nil
}

func (a *app) close() {
	if err := a.repo.Close(); err != nil {
		a.logger.Error("Failed to close settings store", "error", err)
	}
}

// prober returns the configured health prober and its release func.
func (a *app) prober() (connectivity.Prober, func(), error) {
	if a.cfg.Health.Probe == config.ProbeGRPC {
		p, err := connectivity.NewGRPCProber(a.cfg.Health.GRPCAddr, "", a.logger)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {
			if err := p.Close(); err != nil {
				a.logger.Debug("Failed to close grpc prober", "error", err)
			}
		}, nil
	}
	return connectivity.HTTPProber{Client: a.client}, func() {}, nil
}

// gate builds the online watcher, health monitor and gate.
func (a *app) gate() (*connectivity.Gate, *connectivity.OnlineWatcher, *connectivity.HealthMonitor, func(), error) {
	prober, release, err := a.prober()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	online := connectivity.NewOnlineWatcher(true, a.logger)
	monitor := connectivity.NewHealthMonitor(prober, a.cfg.Health.Interval, a.cfg.Health.Timeout, a.logger)
	return connectivity.NewGate(online, monitor), online, monitor, release, nil
}

// checkAvailable probes once. When the service is not usable it renders the
// unavailable view to w and returns errUnavailable.
func (a *app) checkAvailable(ctx context.Context, w io.Writer) (connectivity.Status, error) {
	gate, online, monitor, release, err := a.gate()
	if err != nil {
		return connectivity.Status{}, err
	}
	defer release()

	if a.flags.checkOnline {
		if err := online.Refresh(); err != nil {
			a.logger.Warn("Interface check failed", "error", err)
		}
	}
	monitor.Check(ctx)

	st := gate.Status()
	if !st.Available {
		if err := view.Unavailable(w, st); err != nil {
			return st, err
		}
		return st, errUnavailable
	}
	return st, nil
}
