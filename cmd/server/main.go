package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ai-patient-sim-service/internal/app"
	"ai-patient-sim-service/internal/config"
	"ai-patient-sim-service/internal/httpapi"
	"ai-patient-sim-service/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	// Metrics and health probes live on their own port.
	obsServer := observability.NewServer(":" + cfg.Observability.MetricsPort)
	obsServer.Start()

	apiServer := &http.Server{
		Addr:    ":" + cfg.Service.HTTPPort,
		Handler: httpapi.NewRouter(application),
	}
	go func() {
		log.Info().Str("port", cfg.Service.HTTPPort).Msg("Encounter API listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("API server shutdown failed")
	}
	if err := obsServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Observability server shutdown failed")
	}
	application.Shutdown()
}
