package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/halalway/halalway/internal/bootstrap"
	"github.com/halalway/halalway/internal/core/usecases"
	"github.com/halalway/halalway/internal/pkg/config"
	"github.com/halalway/halalway/internal/pkg/logging"
	"github.com/halalway/halalway/internal/workflows"
)

// The worker executes entrepreneur removal workflows started by the API.
func main() {
	cfg, err := config.Load("halalway-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	workflows.Register(w, &workflows.RemovalActivities{
		Removal: usecases.NewRemovalService(store),
	})

	slog.Info("removal worker started", "task_queue", cfg.Temporal.TaskQueue, "store", store.Driver)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
