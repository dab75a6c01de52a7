package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/safar/go-checkout/internal/api"
	"github.com/safar/go-checkout/internal/cache"
	"github.com/safar/go-checkout/internal/cart"
	"github.com/safar/go-checkout/internal/checkout"
	"github.com/safar/go-checkout/internal/config"
	"github.com/safar/go-checkout/internal/database"
	"github.com/safar/go-checkout/internal/metrics"
	"github.com/safar/go-checkout/internal/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	shutdownTimeout = 10 * time.Second
	breakerOpenFor  = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database successfully")

	shutdownTracing, err := tracing.Setup(cfg.Tracing, os.Stdout)
	if err != nil {
		log.Fatalf("Set up tracing: %v", err)
	}

	if os.Getenv("MIGRATE_ON_START") == "true" {
		if err := database.MigrateUp(db, cfg.Database.MigrationsPath); err != nil {
			log.Fatalf("Run migrations: %v", err)
		}
		log.Printf("Migrations applied from %s", cfg.Database.MigrationsPath)
	}

	var cartCache cache.CartCache = cache.Noop{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("Redis unavailable at %s, cart views will be read from the database: %v", cfg.Redis.Addr, err)
		}
		cancel()

		cartCache = cache.NewBreaker(cache.NewRedisCache(rdb, cfg.Redis.TTL), breakerOpenFor)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	carts := cart.NewService(db, cartCache, m)
	committer := checkout.NewCommitter(db, carts, m, cfg.Checkout.CODPrepayment, cfg.Checkout.MaxRetries)
	server := api.NewServer(db, carts, committer, m, reg, cfg.Server.FulfillmentToken)
	if cfg.Server.FulfillmentToken == "" {
		log.Printf("FULFILLMENT_TOKEN not set, delivery updates are disabled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      otelhttp.NewHandler(server.Routes(), "checkout"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Printf("Flush traces: %v", err)
	}

	log.Println("Server exited")
}
