package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nijaru/yt-transcripts/config"
	"github.com/nijaru/yt-transcripts/handlers/api"
	"github.com/nijaru/yt-transcripts/logger"
	"github.com/nijaru/yt-transcripts/middleware"
	"github.com/nijaru/yt-transcripts/payments"
	"github.com/nijaru/yt-transcripts/repository"
	"github.com/nijaru/yt-transcripts/repository/postgres"
	"github.com/nijaru/yt-transcripts/repository/sqlite"
	"github.com/nijaru/yt-transcripts/services/billing"
	"github.com/nijaru/yt-transcripts/services/transcript"
	"github.com/nijaru/yt-transcripts/storage"
	"github.com/nijaru/yt-transcripts/youtube"
)

// store is the repository set for the configured database driver.
type store struct {
	transcripts   repository.TranscriptRepository
	users         repository.UserRepository
	subscriptions repository.SubscriptionRepository
	db            api.Pinger
	closer        io.Closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logr, logFile, err := logger.NewLogger(logger.Options{
		Dir:   cfg.LogDir,
		Level: cfg.LogLevel,
		Debug: cfg.Debug,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logFile.Close()

	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logr.WithError(err).Fatal("Failed to initialize database")
	}
	defer st.closer.Close()

	yt, err := youtube.NewClient(youtube.Config{
		APIKey:            cfg.YouTube.APIKey,
		APIBaseURL:        cfg.YouTube.APIBaseURL,
		CaptionBaseURL:    cfg.YouTube.CaptionBaseURL,
		Timeout:           cfg.YouTube.Timeout,
		DefaultLanguage:   cfg.YouTube.DefaultLanguage,
		RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
		Burst:             cfg.YouTube.Burst,
	}, logr)
	if err != nil {
		logr.WithError(err).Fatal("Failed to initialize YouTube client")
	}

	var transcriptOpts []transcript.Option
	if cfg.Storage.Enabled {
		archive, err := storage.NewArchive(ctx, storage.Config{
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Region:    cfg.Storage.Region,
			Endpoint:  cfg.Storage.Endpoint,
			Bucket:    cfg.Storage.Bucket,
			Prefix:    cfg.Storage.Prefix,
		})
		if err != nil {
			logr.WithError(err).Fatal("Failed to initialize transcript archive")
		}
		transcriptOpts = append(transcriptOpts, transcript.WithArchiver(archive))
	}

	stripeClient := payments.NewClient(payments.Config{
		SecretKey:        cfg.Stripe.SecretKey,
		WebhookSecret:    cfg.Stripe.WebhookSecret,
		WebhookTolerance: cfg.Stripe.WebhookTolerance,
		SuccessURL:       cfg.Stripe.SuccessURL,
		CancelURL:        cfg.Stripe.CancelURL,
	}, logr)

	transcriptService := transcript.NewService(st.transcripts, yt, logr, transcriptOpts...)
	billingService := billing.NewService(st.subscriptions, stripeClient, logr)
	reconciler := billing.NewReconciler(st.subscriptions, st.users, stripeClient, stripeClient, logr)

	server := api.NewServer(cfg,
		api.WithLogger(logr),
		api.WithServices(transcriptService, billingService, reconciler),
		api.WithAuth(middleware.AuthConfig{
			Secret: []byte(cfg.Auth.JWTSecret),
			Issuer: cfg.Auth.Issuer,
		}, st.users),
		api.WithHealthCheck(st.db),
	)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-shutdownChan:
	case err := <-serverErr:
		logr.WithError(err).Error("Server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.WithError(err).Error("Server shutdown error")
	}
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, postgres.Config{
			DSN:          cfg.Database.DSN,
			MaxOpenConns: cfg.Database.MaxConnections,
			MaxIdleConns: cfg.Database.MaxIdleConnections,
			ConnMaxLife:  cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		return &store{
			transcripts:   postgres.NewTranscriptRepository(db),
			users:         postgres.NewUserRepository(db),
			subscriptions: postgres.NewSubscriptionRepository(db),
			db:            db,
			closer:        db,
		}, nil
	default:
		dbCfg := sqlite.DefaultDBConfig()
		dbCfg.MaxConnections = cfg.Database.MaxConnections
		dbCfg.MaxIdleConnections = cfg.Database.MaxIdleConnections
		dbCfg.ConnMaxLifetime = cfg.Database.ConnMaxLifetime

		db, err := sqlite.Open(cfg.Database.Path, dbCfg)
		if err != nil {
			return nil, err
		}
		return &store{
			transcripts:   sqlite.NewTranscriptRepository(db),
			users:         sqlite.NewUserRepository(db),
			subscriptions: sqlite.NewSubscriptionRepository(db),
			db:            db,
			closer:        db,
		}, nil
	}
}
