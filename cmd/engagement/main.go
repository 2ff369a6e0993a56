package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"

	natsadapter "github.com/halalway/halalway/internal/adapters/nats"
	"github.com/halalway/halalway/internal/bootstrap"
	"github.com/halalway/halalway/internal/core/usecases"
	"github.com/halalway/halalway/internal/pkg/config"
	"github.com/halalway/halalway/internal/pkg/logging"
	"github.com/halalway/halalway/internal/pkg/metrics"
)

// The engagement consumer drains campaign engagement events from JetStream
// into the campaign report counters.
func main() {
	cfg, err := config.Load("halalway-engagement")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	recorder := usecases.NewEngagementRecorder(store)
	if err := recorder.Consume(ctx, sub); err != nil {
		log.Fatalf("consume: %v", err)
	}

	// Health and metrics only.
	ops := fiber.New(fiber.Config{DisableStartupMessage: true})
	ops.Get("/metrics", metrics.Handler())
	ops.Get("/health", func(c *fiber.Ctx) error {
		if err := store.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := ops.Listen(addr); err != nil {
			slog.Error("ops listener stopped", "error", err)
		}
	}()

	slog.Info("engagement consumer started", "nats", cfg.NATS.URL, "store", store.Driver)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("received signal, shutting down engagement consumer", "signal", sig.String())
	cancel()
	_ = ops.Shutdown()
}
