package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/themateplatform/codemate/internal/api"
	"github.com/themateplatform/codemate/internal/auth"
	"github.com/themateplatform/codemate/internal/backend"
	"github.com/themateplatform/codemate/internal/hub"
	"github.com/themateplatform/codemate/internal/log"
	"github.com/themateplatform/codemate/internal/presence"
	"github.com/themateplatform/codemate/internal/proxy"
	"github.com/themateplatform/codemate/internal/telemetry"
	"github.com/themateplatform/codemate/internal/watch"
)

// shutdownTimeout bounds how long serve waits for in-flight requests
// and trace flushes once a signal arrives.
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the studio server",
	Long: `Run the studio server: the REST API, the collaboration hub and the
project file watcher. Provider calls are forwarded to the secrets
broker configured at broker.url.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := setupLogging(false); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Exporter: cfg.Telemetry.Exporter,
		Endpoint: cfg.Telemetry.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			log.ErrorErr(log.CatSystem, "Telemetry shutdown failed", err)
		}
	}()

	tracker := presence.NewTracker(presence.TrackerConfig{
		TTL:           cfg.Presence.TTL,
		SweepInterval: cfg.Presence.SweepInterval,
	})
	if err := tracker.Start(ctx); err != nil {
		return fmt.Errorf("starting presence tracker: %w", err)
	}
	defer tracker.Stop()

	h := hub.New(tracker)
	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("starting hub: %w", err)
	}
	defer h.Stop()

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer func() { _ = rdb.Close() }()

		relay := hub.NewRelay(rdb, tracker, h)
		if err := relay.Start(ctx); err != nil {
			return fmt.Errorf("starting roster relay: %w", err)
		}
		defer relay.Stop()
	}

	watcher := watch.New(watch.Config{
		Dir:      cfg.Watch.Dir,
		Debounce: cfg.Watch.Debounce,
	})
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	defer watcher.Stop()

	fileEvents := watcher.Subscribe(ctx)
	log.SafeGo("serve.files", func() {
		for ev := range fileEvents {
			h.AnnounceFile(ev.Payload.Path, string(ev.Payload.Op))
		}
	})

	files, err := backend.New(ctx, backend.Config{DatabaseURL: cfg.Backend.DatabaseURL})
	if err != nil {
		return fmt.Errorf("connecting project file backend: %w", err)
	}
	defer files.Close()

	if pg, ok := files.(*backend.Postgres); ok {
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("preparing backend schema: %w", err)
		}
	}

	tokens, err := serviceTokens()
	if err != nil {
		return err
	}
	ai, err := proxy.NewClient(proxy.Config{
		Invoker: proxy.NewHTTPInvoker(cfg.Broker.URL, nil),
		Tokens:  tokens,
	})
	if err != nil {
		return fmt.Errorf("building proxy client: %w", err)
	}

	mux := http.NewServeMux()
	api.NewHandler(tracker, ai, files).RegisterAPIRoutes(mux)
	mux.HandleFunc("GET /ws", h.ServeWS)

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	log.SafeGo("serve.http", func() {
		serveErr <- srv.ListenAndServe()
	})
	log.Info(log.CatAPI, "Studio server listening", "addr", cfg.Server.Listen)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("studio server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down studio server: %w", err)
	}

	log.Info(log.CatAPI, "Studio server stopped")
	return nil
}

// serviceTokens builds the studio's own broker identity. Without an
// auth secret the studio runs signed out: proxied provider calls
// report authentication required while everything else keeps working.
func serviceTokens() (auth.TokenSource, error) {
	if cfg.Auth.Secret == "" {
		log.Warn(log.CatAPI, "auth.secret is not set; provider calls will report authentication required")
		return &auth.StaticTokenSource{}, nil
	}

	manager, err := auth.NewManager(cfg.Auth.Secret, cfg.Auth.SessionTTL)
	if err != nil {
		return nil, err
	}
	return &auth.MintingTokenSource{
		Manager: manager,
		UserID:  "studio-" + uuid.NewString(),
		Name:    "studio",
	}, nil
}
