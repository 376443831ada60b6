/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventhub/apiserver/config"
	"github.com/eventhub/apiserver/internal/db"
	"github.com/eventhub/apiserver/internal/metrics"
	"github.com/eventhub/apiserver/internal/mq"
	"github.com/eventhub/apiserver/internal/services"
	"github.com/eventhub/apiserver/internal/store"
	"github.com/spf13/cobra"
)

const sessionPurgeInterval = time.Hour

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Starts the EventHub alert worker",
	Long: `Starts the EventHub alert worker. It consumes event publication
messages from the configured broker and fans them out as notifications
to users whose interests match. It also purges expired sessions on an
interval. Usage:

	eventhub worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer dbConn.Close()

		mqClient, err := newWorkerMQ(ctx, cfg)
		if err != nil {
			return err
		}
		defer mqClient.Close()

		userRepo := store.NewUserRepository(dbConn)
		notificationRepo := store.NewNotificationRepository(dbConn)
		sessionRepo := store.NewSessionRepository(dbConn)
		collector := metrics.NewCollector()

		alertService := services.NewAlertService(userRepo, notificationRepo, collector, logger)
		sessionService := services.NewSessionService(sessionRepo, cfg.Auth.SessionTTL)

		metricsSrv := startMetricsServer(ctx, cfg.WorkerMetricsPort, collector, logger)
		defer metricsSrv.Close()

		go purgeSessions(ctx, sessionService, logger)

		logger.Info("worker started", "mq_backend", cfg.MQBackend)
		if err := mqClient.Subscribe(ctx, mq.TopicEventPublished, alertService.HandleEventPublished); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("subscribe failed: %w", err)
		}
		return nil
	},
}

func newWorkerMQ(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.MQBackend {
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("failed to init rabbitmq: %w", err)
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("failed to init pubsub: %w", err)
		}
		return mq.New(client), nil
	default:
		return nil, fmt.Errorf("worker requires MQ_BACKEND, got %q", cfg.MQBackend)
	}
}

// startMetricsServer exposes the worker's counters so they can be
// scraped like the API server's.
func startMetricsServer(ctx context.Context, port int, collector *metrics.Collector, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	return srv
}

func purgeSessions(ctx context.Context, sessions *services.SessionService, logger *slog.Logger) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := sessions.PurgeExpired(ctx)
			if err != nil {
				logger.Error("session purge failed", "error", err)
				continue
			}
			if purged > 0 {
				logger.Info("purged expired sessions", "count", purged)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
