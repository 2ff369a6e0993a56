package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/halalway/halalway/internal/adapters/auth"
	"github.com/halalway/halalway/internal/adapters/http"
	natsadapter "github.com/halalway/halalway/internal/adapters/nats"
	"github.com/halalway/halalway/internal/adapters/s3"
	"github.com/halalway/halalway/internal/adapters/valkey"
	"github.com/halalway/halalway/internal/bootstrap"
	"github.com/halalway/halalway/internal/core/ports"
	"github.com/halalway/halalway/internal/core/usecases"
	"github.com/halalway/halalway/internal/pkg/config"
	"github.com/halalway/halalway/internal/pkg/logging"
	"github.com/halalway/halalway/internal/pkg/telemetry"
	"github.com/halalway/halalway/internal/workflows"
)

func main() {
	cfg, err := config.Load("halalway-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Document store
	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	checks := map[string]http.Pinger{"store": store}

	// Role cache
	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		vc, err := valkey.New(cfg.Valkey.Addr, "halalway")
		if err != nil {
			slog.Warn("valkey unavailable, roles read from the store", "error", err)
		} else {
			defer vc.Close()
			cache = vc
			checks["cache"] = vc
		}
	}

	// Payment slip storage
	var storage ports.ObjectStorage
	if cfg.Storage.Bucket != "" {
		st, err := s3.New(ctx, s3.Options{
			Bucket:        cfg.Storage.Bucket,
			Region:        cfg.Storage.Region,
			Endpoint:      cfg.Storage.Endpoint,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			log.Fatalf("object storage: %v", err)
		}
		storage = st
	} else {
		slog.Warn("storage.bucket not set, slip uploads disabled")
	}

	recorder := usecases.NewEngagementRecorder(store)

	// Engagement events go through NATS when it is reachable so the
	// engagement consumer does the counting.
	var sink ports.EngagementSink = recorder
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, recording engagement in process", "error", err)
		} else {
			defer pub.Close()
			sink = pub
			checks["nats"] = pub
		}
	}

	// Entrepreneur removal
	var remover http.EntrepreneurRemover = usecases.NewRemovalService(store)
	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    tlog.NewStructuredLogger(slog.Default()),
		})
		if err != nil {
			slog.Warn("temporal unavailable, removals run in process", "error", err)
		} else {
			defer tc.Close()
			remover = workflows.NewStarter(tc, cfg.Temporal.TaskQueue)
		}
	}

	var verifier *auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	} else {
		slog.Warn("auth.jwt_secret not set, every request is a guest")
	}

	deps := &http.Dependencies{
		Catalog:       usecases.NewCatalogService(store),
		Subscriptions: usecases.NewSubscriptionService(store, storage, recorder),
		Feeds:         usecases.NewFeedService(store),
		Roles:         usecases.NewRoleRouter(store, cache),
		Engagement:    sink,
		Removal:       remover,
		Verifier:      verifier,
		Checks:        checks,
	}

	// Fiber
	app := http.NewApp(
		time.Duration(cfg.Server.ReadTimeout)*time.Second,
		time.Duration(cfg.Server.WriteTimeout)*time.Second,
	)
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:8081, https://*.halalway.app",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "store", store.Driver)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
