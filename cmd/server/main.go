package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salonshop/config"
	"salonshop/internal/database"
	"salonshop/internal/router"
	"salonshop/pkg/cloudinary"
	"salonshop/pkg/events"
	"salonshop/pkg/payment"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg.Log)

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	deps := router.Deps{Gateway: newGateway(cfg.Mpesa)}

	if cfg.Cloudinary.CloudName != "" {
		images, err := cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			log.Fatal().Err(err).Msg("cloudinary")
		}
		deps.Images = images
	} else {
		log.Warn().Msg("[UPLOAD] CLOUDINARY_CLOUD_NAME not set, product image uploads disabled")
	}

	if cfg.AMQP.URL != "" {
		pub, err := events.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Error().Err(err).Msg("[EVENTS] broker unavailable, order events disabled")
		} else {
			deps.Events = pub
			defer pub.Close()
		}
	}

	engine := router.Setup(cfg, db, deps)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("mpesa_env", cfg.Mpesa.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("server stopped")
}

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func newGateway(cfg config.MpesaConfig) payment.Gateway {
	if cfg.Env == "stub" {
		log.Warn().Msg("[MPESA] using stub gateway, no real payments will be taken")
		return payment.NewStubGateway(3)
	}
	if cfg.CallbackURL() == "" {
		log.Warn().Msg("[MPESA] MPESA_CALLBACK_BASE_URL not set, pushes will be rejected by the gateway")
	}
	return payment.NewDarajaClient(payment.DarajaConfig{
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		Passkey:        cfg.Passkey,
		Shortcode:      cfg.Shortcode,
		Env:            cfg.Env,
		Timeout:        cfg.HTTPTimeout,
	})
}
