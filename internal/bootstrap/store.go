// Package bootstrap opens the backing services shared by the HalalWay binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/halalway/halalway/internal/adapters/memstore"
	"github.com/halalway/halalway/internal/adapters/mongodb"
	"github.com/halalway/halalway/internal/adapters/postgres"
	"github.com/halalway/halalway/internal/core/ports"
	"github.com/halalway/halalway/internal/pkg/config"
)

// Store is the configured document store together with its lifecycle.
type Store struct {
	ports.DocumentStore
	Driver string

	ping  func(ctx context.Context) error
	close func()
}

// Ping checks the backend. The in-memory store is always ready.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the backend connections.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore connects the document store selected by store.driver. Pool
// metrics of the Postgres backend are reported until ctx is cancelled.
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		slog.Warn("using in-memory document store; data is lost on exit")
		return &Store{DocumentStore: memstore.New(), Driver: config.DriverMemory}, nil

	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		go db.ReportPoolMetrics(ctx, 15*time.Second)

		docs := postgres.NewDocumentStore(db)
		return &Store{
			DocumentStore: docs,
			Driver:        config.DriverPostgres,
			ping:          db.Ping,
			close: func() {
				docs.Close()
				db.Close()
			},
		}, nil

	case config.DriverMongo:
		db, err := mongodb.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			slog.Warn("mongo indexes not ensured", "error", err)
		}
		return &Store{
			DocumentStore: mongodb.NewDocumentStore(db),
			Driver:        config.DriverMongo,
			ping:          db.Ping,
			close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := db.Close(closeCtx); err != nil {
					slog.Warn("mongo disconnect", "error", err)
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
