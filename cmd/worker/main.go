package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"raffle/cmd/worker/jobs"
	"raffle/internal/cache"
	"raffle/internal/config"
	"raffle/internal/consumers"
	"raffle/internal/database"
	"raffle/internal/external"
	"raffle/internal/logger"
	"raffle/internal/messaging"
	"raffle/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Get().Info("Starting worker...")

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	rdb, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", "error", err)
	}
	defer rdb.Close()

	var publisher service.Publisher = messaging.NopPublisher{}
	var nats *messaging.NATSClient
	if cfg.NATS.Enabled {
		cfg.NATS.ClientID = "raffle-worker"
		nats, err = messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", "error", err)
		}
		defer nats.Close()
		publisher = nats
	}

	services := service.NewServices(
		service.NewPostgresStore(db),
		cache.NewCartStore(rdb),
		external.NewPaymentClient(cfg.Payment),
		publisher,
		service.CheckoutConfig{
			Currency:       cfg.Payment.Currency,
			PaymentTimeout: cfg.Payment.Timeout,
			MaxDeposit:     cfg.Checkout.MaxDeposit,
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	expiration := jobs.NewOrderExpirationJob(services.Checkout,
		cfg.Checkout.ReservationTTL, cfg.Checkout.SweepInterval, cfg.Checkout.SweepBatch)
	expiration.AfterRun(db.ObservePool)
	expiration.Start(ctx)

	var consumerService *consumers.ConsumerService
	if nats != nil {
		consumerService = consumers.NewConsumerService(nats, consumers.NewHandlers(services))
		if err := consumerService.Start(ctx); err != nil {
			logger.Fatal("Failed to start consumers", "error", err)
		}
	}

	logger.Get().Info("Worker started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down worker...")
	expiration.Stop()
	if consumerService != nil {
		consumerService.Shutdown()
	}
	logger.Get().Info("Worker stopped")
}
