// Command server is the entry point for the Zephyr backend.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zephyr/internal/bootstrap"
	"zephyr/internal/config"
	"zephyr/internal/events"
	"zephyr/internal/geo"
	"zephyr/internal/middleware"
	"zephyr/internal/observability"
	"zephyr/internal/server"
	"zephyr/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.Logger = middleware.NewLogger(os.Stdout, cfg.Env)

	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:  "zephyr-api",
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSample,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	db, redisClient, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SeedDemo: cfg.DevSeedDemo})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	var deps server.Deps
	if cfg.S3Bucket != "" {
		store, err := storage.NewS3Store(ctx, storage.Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			MaxBytes: int64(cfg.MediaMaxUploadMB) * 1024 * 1024,
		})
		if err != nil {
			log.Fatalf("Failed to initialize media storage: %v", err)
		}
		deps.Media = store
	} else {
		middleware.Logger.Warn("S3_BUCKET not set; uploads will answer 503")
	}

	var mongoDisconnect func(context.Context) error
	if cfg.MongoURI != "" {
		client, store, err := geo.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("Failed to connect to location store: %v", err)
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			log.Fatalf("Failed to create location indexes: %v", err)
		}
		deps.Locations = store
		mongoDisconnect = client.Disconnect
	} else {
		middleware.Logger.Warn("MONGO_URI not set; location routes will answer 503")
	}

	producer := events.NewProducer(cfg.KafkaBrokerList(), cfg.KafkaTopic)
	deps.Events = producer

	srv, err := server.NewServerWithDeps(cfg, db, redisClient, deps)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		middleware.Logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			middleware.Logger.Error("server shutdown error", "error", err)
		}
		if err := producer.Close(); err != nil {
			middleware.Logger.Error("event producer close error", "error", err)
		}
		if mongoDisconnect != nil {
			if err := mongoDisconnect(ctx); err != nil {
				middleware.Logger.Error("mongo disconnect error", "error", err)
			}
		}
		if err := shutdownTracing(ctx); err != nil {
			middleware.Logger.Error("tracing shutdown error", "error", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
