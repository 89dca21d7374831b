// Package main is the entry point for the parcel sorting API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parcelsort/internal/app"
	"parcelsort/internal/config"
	v1 "parcelsort/internal/infrastructure/http/v1"
	"parcelsort/internal/infrastructure/http/v1/handlers"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Infow("starting parcelsort server", "env", cfg.Env, "driver", cfg.Storage.Driver)

	a, err := app.New(ctx, cfg, log, app.Options{Migrate: true})
	if err != nil {
		log.Fatalw("failed to initialize storage", "error", err)
	}
	defer a.Close()

	jwtService := app.NewJWTService(cfg, log)

	health := make(map[string]handlers.Pinger, len(a.Checks))
	for name, check := range a.Checks {
		health[name] = handlers.PingFunc(check)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Parcels:        a.Parcels,
		Logger:         log,
		JWTValidator:   jwtService,
		Idempotency:    a.Idempotency,
		Health:         health,
		MaxUploadBytes: cfg.Upload.MaxBytes,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
