package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/compensation"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/config"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/dispatch"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/events"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/handler"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/ledger"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/middleware"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/orchestrator"
	redisClient "github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/redis"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Database connection
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Redis connection
	redis, err := redisClient.NewClient(cfg.RedisAddr, cfg.RedisPassword, 0)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	publisher := events.NewPublisher(redis.Client)

	// Dispatch/outcome channel over Redis Streams with per-participant ceilings
	transport := dispatch.NewStreamTransport(redis.Client)
	channel := dispatch.NewChannel(transport, cfg.LegTimeout, cfg.MaxInFlightPerParticipant)
	directory := dispatch.NewPrefixDirectory(cfg.Routes)

	// Compensation engine with bounded retries and operator alert stream
	alerter := compensation.NewStreamAlerter(publisher)
	engine := compensation.NewEngine(channel, alerter, cfg.CompensationMaxAttempts, cfg.CompensationBackoffBase)

	// Record store, idempotency ledger, transition observers
	store := repository.NewPostgresRecordStore(db)
	idempotency := ledger.NewRedisLedger(redis.Client, cfg.LedgerTTL)
	observer := orchestrator.MultiObserver{
		orchestrator.LogObserver{},
		orchestrator.NewStreamObserver(publisher),
	}

	orch := orchestrator.New(store, idempotency, channel, engine, directory, observer)
	transactionHandler := handler.NewTransactionHandler(orch)

	// Async intake: originating services publish requests to the request stream
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	subscriber := events.NewSubscriber(redis.Client, events.SubscriberConfig{
		Group:    "orchestrator",
		Consumer: "orchestrator-1",
		Stream:   events.RequestStream,
		Handler: func(ctx context.Context, event events.Event) error {
			req, err := events.DecodeData[events.TransactionRequest](event)
			if err != nil {
				return err
			}
			result, err := orch.Submit(ctx, req)
			if err != nil {
				log.Printf("Rejected streamed transaction %s: %v", req.EventID, err)
				return nil // validation rejections must not be redelivered
			}
			log.Printf("Streamed transaction %s resolved to %s", req.EventID, result.Record.State)
			return nil
		},
	})
	go func() {
		if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Subscriber stopped: %v", err)
		}
	}()

	// Setup router
	router := gin.Default()
	router.Use(middleware.LoggingMiddleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Transaction routes
	v1 := router.Group("/v1/transactions", middleware.AuthMiddleware())
	{
		v1.POST("", transactionHandler.SubmitTransaction)
		v1.GET("/:eventId", transactionHandler.GetTransaction)
	}

	log.Printf("Orchestration service starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
