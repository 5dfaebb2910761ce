package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/themateplatform/codemate/internal/auth"
	"github.com/themateplatform/codemate/internal/broker"
	"github.com/themateplatform/codemate/internal/log"
	"github.com/themateplatform/codemate/internal/proxy"
	"github.com/themateplatform/codemate/internal/telemetry"
)

var brokerCmd = &cobra.Command{
	Use:   "broker",
	Short: "Run the secrets broker",
	Long: `Run the execution endpoint that holds provider credentials. Studio
processes send it signed requests; API keys and OAuth secrets never
leave this process.`,
	RunE: runBroker,
}

func init() {
	rootCmd.AddCommand(brokerCmd)
}

func runBroker(cmd *cobra.Command, _ []string) error {
	if err := setupLogging(false); err != nil {
		return err
	}

	// The broker is useless without token verification; this is the one
	// process that must not run open.
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth.secret must be set to run the broker")
	}
	manager, err := auth.NewManager(cfg.Auth.Secret, cfg.Auth.SessionTTL)
	if err != nil {
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

	// Executors without credentials answer every action with a
	// descriptive failure envelope, so both register unconditionally.
	srv := broker.NewServer(manager)
	srv.Register(proxy.ProviderOpenAI, broker.NewOpenAIExecutor(broker.OpenAIConfig{
		APIKey:       cfg.Providers.OpenAI.APIKey,
		BaseURL:      cfg.Providers.OpenAI.BaseURL,
		DefaultModel: cfg.Providers.OpenAI.DefaultModel,
	}))
	srv.Register(proxy.ProviderGitHub, broker.NewGitHubExecutor(broker.GitHubConfig{
		ClientID:     cfg.Providers.GitHub.ClientID,
		ClientSecret: cfg.Providers.GitHub.ClientSecret,
		ServiceToken: cfg.Providers.GitHub.ServiceToken,
	}))

	httpSrv := &http.Server{
		Addr:              cfg.Broker.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	log.SafeGo("broker.http", func() {
		serveErr <- httpSrv.ListenAndServe()
	})
	log.Info(log.CatBroker, "Secrets broker listening", "addr", cfg.Broker.Listen)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("broker server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down broker: %w", err)
	}

	log.Info(log.CatBroker, "Secrets broker stopped")
	return nil
}
