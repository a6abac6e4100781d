package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/mandate-console/internal/api"
	"github.com/akylbek/payment-system/mandate-console/internal/client"
	"github.com/akylbek/payment-system/mandate-console/internal/config"
	"github.com/akylbek/payment-system/mandate-console/internal/interfaces"
	"github.com/akylbek/payment-system/mandate-console/internal/repository"
	"github.com/akylbek/payment-system/mandate-console/internal/service"
	"github.com/akylbek/payment-system/mandate-console/internal/telemetry"
)

const serviceName = "mandate-console"

func main() {
	root := &cobra.Command{
		Use:          serviceName,
		Short:        "Backend for the mandate and recurring payments dashboard",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the wizard journal tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL must be set")
			}
			db, err := sql.Open("postgres", cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			return repository.NewWizardJournalRepository(db).InitDB()
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	if err := telemetry.InitTelemetry(serviceName, cfg.JaegerEndpoint); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting Mandate Console")

	deps := service.WizardDeps{
		API: client.NewPaymentsClient(cfg.PaymentsAPIURL, cfg.PaymentsAPITimeout),
	}

	// Connect to PostgreSQL
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		repo := repository.NewWizardJournalRepository(db)
		if err := repo.InitDB(); err != nil {
			telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		deps.Journal = repo
	} else {
		telemetry.Logger.Warn("DATABASE_URL not set, wizard journal disabled")
	}

	// Connect to Redis
	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisURL,
		})
		defer redisClient.Close()
		deps.Guard = service.NewRedisPaymentGuard(redisClient, cfg.PaymentLockTTL)
	}

	// Connect to Kafka
	if cfg.KafkaBrokers != "" {
		kafkaWriter := &kafka.Writer{
			Addr:     kafka.TCP(strings.Split(cfg.KafkaBrokers, ",")...),
			Topic:    cfg.StageTopic,
			Balancer: &kafka.LeastBytes{},
		}
		defer kafkaWriter.Close()
		deps.Publisher = service.NewKafkaStagePublisher(kafkaWriter)
	}

	// Connect to NATS
	var notifier interfaces.ListNotifier
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			telemetry.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer nc.Close()
		notifier = service.NewNatsListNotifier(nc)
	}

	opts := service.WizardOptions{
		CountryCode:    cfg.CountryCode,
		LocalDigits:    cfg.PhoneLocalDigits,
		OTPLength:      cfg.OTPLength,
		LookupDebounce: cfg.LookupDebounce,
		LookupTimeout:  cfg.PaymentsAPITimeout,
		PaymentTimeout: cfg.PaymentsAPITimeout,
	}
	manager := service.NewWizardManager(deps, opts)
	defer manager.CloseAll()

	registry := service.NewListRegistry(deps.API, notifier, cfg.PollInterval)
	defer registry.CloseAll()

	// Release wizards and pollers abandoned by closed browser tabs
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go service.RunSweeper(sweepCtx, cfg.SweepInterval, func() {
		manager.SweepIdle(cfg.SessionIdleTTL)
		registry.SweepIdle(cfg.SessionIdleTTL)
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewRouter(manager, registry),
	}

	go func() {
		telemetry.Logger.Info("Mandate Console starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
	return nil
}
