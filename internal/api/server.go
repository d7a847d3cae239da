package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"raffle/internal/cache"
	"raffle/internal/config"
	"raffle/internal/database"
	"raffle/internal/external"
	"raffle/internal/handlers"
	"raffle/internal/logger"
	"raffle/internal/messaging"
	"raffle/internal/middleware"
	"raffle/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// HealthCheck reports one dependency. Name is used as the key in /health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server представляет HTTP сервер API
type Server struct {
	router *gin.Engine
	config *config.Config
	db     *database.DB
	redis  *redis.Client
	nats   *messaging.NATSClient
}

// NewServer подключает зависимости и собирает роутер
func NewServer(cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.RunMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	rdb, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, err
	}

	s := &Server{config: cfg, db: db, redis: rdb}

	var publisher service.Publisher = messaging.NopPublisher{}
	if cfg.NATS.Enabled {
		s.nats, err = messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			return nil, err
		}
		publisher = s.nats
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

	s.router = NewRouter(services,
		HealthCheck{Name: "database", Check: func(ctx context.Context) error {
			db.ObservePool()
			if hc := db.HealthCheck(ctx); hc.Status != "healthy" {
				return errors.New(hc.Error)
			}
			return nil
		}},
		HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)
	return s, nil
}

// NewRouter wires middleware and routes over ready services
func NewRouter(services *service.Services, checks ...HealthCheck) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS())

	h := handlers.NewHandlers(services)

	api := router.Group("/api")
	api.Use(middleware.Identity())
	{
		api.POST("/checkout", h.Checkout)

		orders := api.Group("/orders")
		{
			orders.GET("", h.ListOrders)
			orders.GET("/:id", h.GetOrder)
			orders.POST("/:id/payment-intent", h.CreatePaymentIntent)
			orders.POST("/:id/confirm", h.ConfirmOrder)
			orders.POST("/:id/cancel", h.CancelOrder)
		}

		cart := api.Group("/cart")
		{
			cart.GET("", h.GetCart)
			cart.POST("", h.AddToCart)
			cart.DELETE("", h.RemoveFromCart)
		}

		wallet := api.Group("/wallet")
		{
			wallet.GET("", h.GetWallet)
			wallet.GET("/transactions", h.ListWalletTransactions)
			wallet.POST("/deposit", h.Deposit)
		}

		api.POST("/promo/validate", h.ValidatePromo)

		competitions := api.Group("/competitions")
		{
			competitions.GET("/:id", h.GetCompetition)
			competitions.GET("/:id/progress", h.CompetitionProgress)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.POST("/competitions", h.CreateCompetition)
			admin.POST("/competitions/:id/draw", h.DrawWinner)
			admin.POST("/orders/:id/refund", h.RefundOrder)
			admin.POST("/wallets/:userId/adjust", h.AdjustWallet)
		}
	}

	// Gateway callbacks are authenticated by signature, not identity headers
	router.POST("/webhooks/stripe", h.StripeWebhook)

	router.GET("/health", healthHandler(checks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func healthHandler(checks []HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := gin.H{}
		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				deps[check.Name] = err.Error()
				continue
			}
			deps[check.Name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{
			"status":       state,
			"service":      "raffle-api",
			"dependencies": deps,
		})
	}
}

// Router возвращает роутер для http.Server и тестов
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			logger.Get().Error("Error closing NATS connection", "error", err)
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logger.Get().Error("Error closing Redis connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logger.Get().Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
