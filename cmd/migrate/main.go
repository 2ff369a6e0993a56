package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/halalway/halalway/internal/adapters/mongodb"
	"github.com/halalway/halalway/internal/adapters/postgres"
	"github.com/halalway/halalway/internal/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|list>")
	}

	cfg, err := config.Load("halalway-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "up":
		switch cfg.Store.Driver {
		case config.DriverPostgres:
			migratePostgres(ctx, cfg)
		case config.DriverMongo:
			indexMongo(ctx, cfg)
		default:
			log.Printf("store driver %q has no schema", cfg.Store.Driver)
		}
	case "list":
		names, err := postgres.Migrations()
		if err != nil {
			log.Fatalf("list migrations: %v", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func migratePostgres(ctx context.Context, cfg *config.Config) {
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	applied, err := db.Migrate(ctx)
	for _, name := range applied {
		fmt.Printf("OK  %s\n", name)
	}
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if len(applied) == 0 {
		log.Println("schema is up to date")
		return
	}
	log.Println("all migrations applied")
}

func indexMongo(ctx context.Context, cfg *config.Config) {
	db, err := mongodb.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}
	defer func() { _ = db.Close(ctx) }()

	if err := db.EnsureIndexes(ctx); err != nil {
		log.Fatalf("indexes: %v", err)
	}
	log.Println("mongo indexes ensured")
}
