package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polyrank/internal/alerts"
	"github.com/liamashdown/polyrank/internal/config"
	"github.com/liamashdown/polyrank/internal/engine"
	"github.com/liamashdown/polyrank/internal/ingest"
	"github.com/liamashdown/polyrank/internal/polymarket/dataapi"
	"github.com/liamashdown/polyrank/internal/polymarket/gammaapi"
	"github.com/liamashdown/polyrank/internal/server"
	"github.com/liamashdown/polyrank/internal/storage"
	"github.com/liamashdown/polyrank/internal/watcher"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	// Initialize logger
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	log.Info("Starting polyrank service...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"environment":     cfg.Environment,
		"http_port":       cfg.HTTPPort,
		"lookup_workers":  cfg.WalletLookupWorkers,
		"request_timeout": cfg.RequestTimeout.String(),
		"watch_enabled":   cfg.WatchEnabled,
		"alert_mode":      cfg.AlertMode,
	}).Info("Configuration loaded")

	// Audit store is optional; the engine never depends on it
	var store *storage.DB
	if cfg.DatabaseDSN != "" {
		store, err = storage.New(cfg, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to database")
		}
		defer store.Close()

		if err := store.AutoMigrate(); err != nil {
			log.WithError(err).Fatal("Failed to run database migrations")
		}

		log.Info("Audit store ready")
	} else {
		log.Info("No DATABASE_DSN set, run auditing disabled")
	}

	// Initialize API clients
	dataClient := dataapi.NewClient(cfg)
	gammaClient := gammaapi.NewClient(cfg)

	ingestor := ingest.New(
		dataClient,
		dataClient,
		cfg.WalletLookupWorkers,
		cfg.ActivityFetchLimit,
		cfg.TradeFetchLimit,
		cfg.TradeFetchLimitWide,
		log,
	)

	eng := engine.New(cfg, ingestor, gammaClient, log)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Optional market watcher
	if cfg.WatchEnabled {
		alertSender := createAlertSender(cfg, log)
		w := watcher.New(cfg, eng, alertSender, log)
		go w.Run(ctx)
	}

	srv := server.New(cfg, eng, store, log)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig).Info("Received shutdown signal")
	case err := <-serverErr:
		log.WithError(err).Error("HTTP server failed")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown incomplete")
	}

	log.Info("Graceful shutdown complete")
}

func createAlertSender(cfg *config.Config, log *logrus.Logger) alerts.Sender {
	modes := strings.Split(cfg.AlertMode, ",")
	for i, mode := range modes {
		modes[i] = strings.TrimSpace(mode)
	}

	var senders []alerts.Sender
	for _, mode := range modes {
		switch mode {
		case "log":
			senders = append(senders, alerts.NewLogSender(log))
		case "discord":
			if len(cfg.DiscordWebhookURLs) == 0 {
				log.Warn("Discord mode specified but DISCORD_WEBHOOK_URLS not set")
				continue
			}
			for _, url := range cfg.DiscordWebhookURLs {
				senders = append(senders, alerts.NewDiscordSender(url))
			}
		case "smtp":
			if cfg.SMTPHost == "" {
				log.Warn("SMTP mode specified but SMTP_HOST not set")
				continue
			}
			senders = append(senders, alerts.NewSMTPSender(
				cfg.SMTPHost,
				cfg.SMTPPort,
				cfg.SMTPUser,
				cfg.SMTPPassword,
				cfg.SMTPFrom,
				cfg.SMTPTo,
			))
		default:
			log.WithField("mode", mode).Warn("Unknown alert mode, skipping")
		}
	}

	if len(senders) == 0 {
		log.Warn("No valid alert senders configured, using log")
		return alerts.NewLogSender(log)
	}
	if len(senders) == 1 {
		return senders[0]
	}
	return alerts.NewMultiSender(senders...)
}
