/**
 * @description
 * This is the main entry point for the platform-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, external API clients, the message broker, repositories, the RPC
 * action registry, the custody reconciliation path, and the HTTP server. It
 * wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/config, internal/custody, internal/events,
 *   internal/metrics, internal/rpc, internal/store: Internal packages.
 * - pkg/horizonclient, pkg/platformclient, pkg/rabbitmq: External clients.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/lumenbridge/platform-service/internal/api"
	"github.com/lumenbridge/platform-service/internal/config"
	"github.com/lumenbridge/platform-service/internal/custody"
	"github.com/lumenbridge/platform-service/internal/events"
	"github.com/lumenbridge/platform-service/internal/metrics"
	"github.com/lumenbridge/platform-service/internal/rpc"
	"github.com/lumenbridge/platform-service/internal/store"
	"github.com/lumenbridge/platform-service/pkg/horizonclient"
	"github.com/lumenbridge/platform-service/pkg/platformclient"
	lbrabbit "github.com/lumenbridge/platform-service/pkg/rabbitmq"
)

func main() {
	// Load a local .env file if present, then the full configuration.
	_ = godotenv.Load()
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.PlatformAuthSecret) == "" {
		log.Println("level=warn component=bootstrap msg=\"platform auth secret not configured; rpc surface is unauthenticated\" env=PLATFORM_AUTH_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting platform-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer for anchor events. A broker outage at
	// startup degrades to the no-op fallback instead of blocking boot.
	var producer lbrabbit.Publisher
	if eventProducer, prodErr := lbrabbit.NewEventProducer(cfg.RabbitMQURL); prodErr != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", prodErr)
		producer = &lbrabbit.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Redis backs webhook replay protection; without it the service degrades
	// to single-instance in-process dedup.
	dedupTTL := time.Duration(cfg.WebhookDedupTTLMin) * time.Minute
	var deduper api.EventDeduper = api.NewLocalEventDeduper(dedupTTL)
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; webhook dedup is in-process only\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; webhook dedup is in-process only\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; webhook dedup is in-process only\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				deduper = api.NewRedisEventDeduper(redisClient, "platform:webhook_events", dedupTTL)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the data access layer and shared instrumentation.
	repository := store.NewPostgresRepository(dbpool)
	serviceMetrics := metrics.New()
	publisher := events.NewAMQPPublisher(producer)

	// The RPC action registry drives every transaction status change.
	registry := rpc.NewRegistry(rpc.Deps{
		Repo:    repository,
		Ledger:  horizonclient.NewClient(cfg.HorizonURL),
		Events:  publisher,
		Metrics: serviceMetrics,
	})

	// The custody path re-enters the platform through its own RPC surface.
	platformBaseURL := cfg.PlatformAPIBaseURL
	if platformBaseURL == "" {
		platformBaseURL = "http://127.0.0.1:" + cfg.ServerPort
	}
	platformClient := platformclient.NewClient(platformBaseURL, cfg.PlatformAuthSecret)
	custodyHandler := custody.NewHandler(repository, platformClient, serviceMetrics, custody.Messages{
		PaymentReceived: cfg.PaymentReceivedMessage,
		PaymentFailed:   cfg.PaymentFailedMessage,
	})

	// Initialize the API handlers and the router.
	platformHandlers := api.NewPlatformHandlers(registry, repository)
	webhookHandler := api.NewWebhookHandler(custodyHandler, deduper, cfg.CustodyWebhookSecret)

	router := chi.NewRouter()
	router.Mount("/", api.PlatformRoutes(platformHandlers, webhookHandler, serviceMetrics.Handler(), cfg.PlatformAuthSecret))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
