package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/bristywardah/R-Nold/internal/auth"
	"github.com/bristywardah/R-Nold/internal/config"
	"github.com/bristywardah/R-Nold/internal/gateway"
	"github.com/bristywardah/R-Nold/internal/repository"
	"github.com/bristywardah/R-Nold/internal/service"
	transporthttp "github.com/bristywardah/R-Nold/internal/transport/http"
	"github.com/bristywardah/R-Nold/internal/transport/http/handler"
	transportkafka "github.com/bristywardah/R-Nold/internal/transport/kafka"
	"github.com/bristywardah/R-Nold/internal/transport/ws"
	"github.com/bristywardah/R-Nold/pkg/db"
	"github.com/bristywardah/R-Nold/pkg/kafka"
	"github.com/bristywardah/R-Nold/pkg/outbox"
	"github.com/bristywardah/R-Nold/pkg/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	logger, err := config.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := tracing.Init(ctx, "marketplace", cfg.Tracing.Endpoint)
	if err != nil {
		log.Fatalf("Failed to init trace: %v", err)
	}

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing redis client: %v\n", err)
		}
	}()

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("Failed to create kafka producer: %v", err)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			log.Printf("Error closing kafka producer: %v\n", err)
		}
	}()

	userRepo := repository.NewUserRepository(pool)
	productRepo := repository.NewCachedProductRepository(repository.NewProductRepository(pool), redisClient)
	cartRepo := repository.NewCartRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	payoutRepo := repository.NewPayoutRepository(pool)
	outboxStore := outbox.NewStore()

	stripeGateway := gateway.NewStripeGateway(gateway.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		SuccessURL:    cfg.Stripe.SuccessURL,
		CancelURL:     cfg.Stripe.CancelURL,
	}, logger)

	taxRate := cfg.Pricing.Rate()
	fees := cfg.Pricing.Fees()

	notificationService := service.NewNotificationService(pool, logger, notificationRepo, userRepo, outboxStore, cfg.Kafka.NotificationTopic)
	cartService := service.NewCartService(logger, cartRepo, productRepo, taxRate, fees)
	orderService := service.NewOrderService(pool, logger, orderRepo, cartRepo, productRepo, userRepo, notificationService, taxRate, fees)
	checkoutService := service.NewCheckoutService(logger, orderRepo, productRepo, userRepo, stripeGateway)
	webhookService := service.NewWebhookService(pool, logger, stripeGateway, orderRepo, paymentRepo, userRepo, notificationService)
	payoutService := service.NewPayoutService(pool, logger, payoutRepo, paymentRepo, userRepo, notificationService)

	authManager := auth.NewManager(cfg.Auth.JWTSecret, userRepo)

	processor := outbox.NewProcessor(pool, outboxStore, producer, logger)
	go processor.Start(ctx)

	hub := ws.NewHub(logger)
	consumer := transportkafka.NewNotificationConsumer(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic, hub, logger)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			logger.Error("notification consumer stopped with error")
		}
	}()

	wsServer := &http.Server{
		Addr:    cfg.HTTP.WSPort,
		Handler: ws.Handler(hub, authManager, logger),
	}
	go func() {
		log.Println("WebSocket service listening on: " + cfg.HTTP.WSPort)
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error listening on WS port %v: %v\n", cfg.HTTP.WSPort, err)
		}
	}()

	app := fiber.New()

	app.Use(otelfiber.Middleware())

	app.Use(limiter.New(limiter.Config{
		Max:        20,
		Expiration: 5 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Try again later.",
			})
		},
	}))

	handlers := &transporthttp.Handlers{
		Cart:         handler.NewCartHandler(cartService, logger),
		Order:        handler.NewOrderHandler(orderService, logger),
		Payment:      handler.NewPaymentHandler(checkoutService, webhookService, logger),
		Notification: handler.NewNotificationHandler(notificationService, logger),
		Payout:       handler.NewPayoutHandler(payoutService, logger),
	}

	transporthttp.RegisterRoutes(app, handlers, authManager)

	logger.Info("Marketplace service started!")

	go func() {
		log.Println("HTTP Service listening on: " + cfg.HTTP.Port)
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("Error listening on HTTP port %v: %v\n", cfg.HTTP.Port, err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down gracefully...")
	shutdownContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownContext); err != nil {
		log.Printf("Error shutting down HTTP app: %v\n", err)
	} else {
		log.Println("HTTP App stopped gracefully")
	}

	if err := wsServer.Shutdown(shutdownContext); err != nil {
		log.Printf("Error shutting down WS server: %v\n", err)
	}

	if err := tp.Shutdown(shutdownContext); err != nil {
		log.Printf("Error shutting down telemetry: %v\n", err)
	} else {
		log.Println("Telemetry stopped correctly")
	}
}
