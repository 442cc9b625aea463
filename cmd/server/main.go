package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Rendezvous/internal/adapters/http"
	wssignal "github.com/dkeye/Rendezvous/internal/adapters/signal"
	"github.com/dkeye/Rendezvous/internal/app/rendezvous"
	"github.com/dkeye/Rendezvous/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	hub := rendezvous.NewHub(rendezvous.Config{
		TopicBuffer:      cfg.Relay.TopicBuffer,
		SubscriberBuffer: cfg.Relay.SubscriberBuffer,
		PublishTimeout:   cfg.Relay.PublishTimeout,
		CleanupInterval:  cfg.Relay.CleanupInterval,
	})
	go func() { _ = hub.Run(ctx) }()

	ctrl := wssignal.NewSignalWSController(hub,
		wssignal.NewRateLimiter(cfg.Relay.RateLimit, cfg.Relay.RateBurst),
		wssignal.Config{
			ReadLimit:   cfg.ReadLimit,
			PingPeriod:  cfg.PingPeriod,
			MaxLifetime: cfg.Relay.MaxLifetime,
		})

	r := router.SetupRouter(ctx, cfg, hub, ctrl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Rendezvous server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
