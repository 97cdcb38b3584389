package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskbot/internal/config"
	"taskbot/internal/credential"
	"taskbot/internal/discord"
	"taskbot/internal/dispatch"
	"taskbot/internal/server"
	"taskbot/internal/store"
	"taskbot/internal/store/remote"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder dispatch loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			return runServe(*configPath, cfg)
		},
	}
}

func runServe(configPath string, cfg *config.AppConfig) error {
	logger := newLogger(cfg.LogLevel)
	settings := config.NewSettings(configPath, cfg)

	repo, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	sender := discord.NewWebhookSender(settings.WebhookURL)
	dispatcher := dispatch.New(repo, sender, dispatch.Config{
		Interval:        time.Duration(cfg.Dispatch.IntervalSec) * time.Second,
		DeliveryTimeout: time.Duration(cfg.Dispatch.DeliveryTimeoutSec) * time.Second,
		WebhookURL:      settings.WebhookURL,
	}, logger)

	srv := server.New(server.Deps{
		Store:        repo,
		Settings:     settings,
		Dispatcher:   dispatcher,
		Interactions: discord.NewInteractionHandler(repo, dispatcher),
		PublicKey:    interactionPublicKey,
		Logger:       logger,
	})

	dispatcher.Start()
	defer dispatcher.Stop()

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "address", cfg.HTTP.Address, "store_mode", cfg.Store.Mode)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// openStore builds the repository configured by store.mode.
func openStore(cfg *config.AppConfig, logger *slog.Logger) (store.Repository, error) {
	switch cfg.Store.Mode {
	case config.StoreModeLocal:
		return store.NewSQLiteStore(cfg.Store.Path)
	case config.StoreModeRemote:
		// The remote store works unauthenticated when no token is set.
		token, err := credential.Get(credential.KeyStoreToken)
		if err != nil {
			token = ""
		}
		client := remote.NewClient(cfg.Store.RemoteAddress, cfg.Store.RemoteDatabase, token)
		return remote.New(client, logger), nil
	default:
		return nil, fmt.Errorf("unknown store mode %q", cfg.Store.Mode)
	}
}

// interactionPublicKey resolves the Discord application public key on
// every request, so setting the credential takes effect without a
// restart. Empty disables the interactions endpoint.
func interactionPublicKey() string {
	key, err := credential.Get(credential.KeyPublicKey)
	if err != nil {
		return ""
	}
	return key
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
