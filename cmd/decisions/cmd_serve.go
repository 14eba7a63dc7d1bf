package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/ashureev/decisions/internal/analysis"
	"github.com/ashureev/decisions/internal/api"
	"github.com/ashureev/decisions/internal/connectivity"
	"github.com/ashureev/decisions/internal/history"
	"github.com/ashureev/decisions/internal/middleware"
	"github.com/ashureev/decisions/internal/stream"
	"github.com/ashureev/decisions/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootFlags) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local web companion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), root, os.Stdout, true)
			if err != nil {
				return err
			}
			defer a.close()
			if port != "" {
				a.cfg.Port = port
			}
			return serve(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

// eventSnapshot returns what a view receives when it (re)connects:
// connectivity plus every tracked run, so a terminal state published while
// it was away is not lost.
func eventSnapshot(gate api.Gate, runs *api.Runs) func() []stream.Event {
	return func() []stream.Event {
		events := []stream.Event{stream.ConnectivityEvent(gate.Status())}
		for _, st := range runs.States() {
			events = append(events, stream.AnalysisEvent(st))
		}
		return events
	}
}

func serve(ctx context.Context, a *app) error {
	logger := a.logger
	logger.Info("Starting server", "port", a.cfg.Port, "api", a.cfg.APIBaseURL, "dev", a.cfg.IsDevelopment())

	gate, online, monitor, release, err := a.gate()
	if err != nil {
		return err
	}
	defer release()

	runs := api.NewRuns()

	hub := stream.NewHub(a.cfg.AllowedOrigins, a.cfg.IsDevelopment(), logger)
	hub.Snapshot = eventSnapshot(gate, runs)
	gate.Subscribe(func(st connectivity.Status) {
		logger.Info("Connectivity changed", "online", st.Online, "healthy", st.Healthy)
		hub.Broadcast(stream.ConnectivityEvent(st))
	})

	submitter := analysis.NewSubmitter(a.client, analysis.Options{
		Interval: a.cfg.Poll.Interval,
		MaxPolls: a.cfg.Poll.MaxAttempts,
		Logger:   logger,
		OnChange: func(st analysis.State) {
			hub.Broadcast(stream.AnalysisEvent(st))
		},
	})

	g, gctx := errgroup.WithContext(ctx)

	handler := api.NewHandler(api.Deps{
		Identity:    a.ids,
		History:     history.NewService(a.client, logger),
		Submitter:   submitter,
		Gate:        gate,
		Online:      online,
		Runs:        runs,
		BaseContext: gctx,
		Logger:      logger,
	})

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(a.cfg.AllowedOrigins))

	handler.RegisterRoutes(r)
	r.Get("/ws/events", hub.ServeHTTP)
	r.Handle("/*", web.SPAHandler())

	// No WriteTimeout: /ws/events connections are long-lived.
	srv := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	g.Go(func() error {
		return monitor.Run(gctx)
	})
	if a.flags.checkOnline {
		g.Go(func() error {
			return online.RunInterfaceSource(gctx, a.cfg.Health.OnlineCheckInterval)
		})
	}
	g.Go(func() error {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		runs.StopAll()
		hub.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", "error", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped successfully")
	return nil
}
