package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/catalog-comb/app/api"
	"github.com/lysyi3m/catalog-comb/app/auth"
	"github.com/lysyi3m/catalog-comb/app/catalog"
	"github.com/lysyi3m/catalog-comb/app/cfg"
	"github.com/lysyi3m/catalog-comb/app/database"
	"github.com/lysyi3m/catalog-comb/app/ratelimit"
	"github.com/lysyi3m/catalog-comb/app/session"
	"github.com/lysyi3m/catalog-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting Catalog Comb server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Debug("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	sources := catalog.NewSourceCache(appCfg.SourcesDir)
	if err := sources.Run(); err != nil {
		slog.Error("Failed to load catalog sources", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Catalog sources loaded", "count", sources.GetSourceCount())

	userRepo := database.NewUserRepository(db)
	overlayRepo := database.NewOverlayRepository(db)

	tokens, err := auth.NewTokenService(appCfg.TokenKey, appCfg.GetTokenTTL(), appCfg.GetResetTTL())
	if err != nil {
		slog.Error("Failed to initialize tokens", "error", err)
		os.Exit(1)
	}
	if appCfg.TokenKey == "" {
		slog.Warn("TOKEN_KEY not set, sessions will not survive a restart")
	}
	authService := auth.NewService(userRepo, tokens, auth.LogMailer{}, auth.NewSignal())

	client := catalog.NewClient(&http.Client{}, appCfg.UserAgent)
	sessions := session.NewManager(sources, client, catalog.NewMerger(overlayRepo), overlayRepo,
		authService.Signal(), appCfg.GetSessionIdleTimeout())
	defer sessions.Close()

	scheduler := tasks.NewScheduler(sessions, appCfg.WorkerCount, appCfg.GetSweepInterval())
	scheduler.Start()
	defer scheduler.Stop()

	authLimiter := ratelimit.New(appCfg.AuthRate, appCfg.AuthBurst)
	defer authLimiter.Stop()

	handler := api.NewHandler(sources, sessions, authService, userRepo, overlayRepo)
	server := api.NewServer(handler, authLimiter)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Catalog Comb server shutdown complete")
}
