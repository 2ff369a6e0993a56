package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/halalway/halalway/internal/core/domain"
)

// DB wraps a connected client and the application database.
type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// New connects to uri and selects database.
func New(ctx context.Context, uri, database string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &DB{Client: client, Database: client.Database(database)}, nil
}

// Close disconnects the client.
func (db *DB) Close(ctx context.Context) error {
	return db.Client.Disconnect(ctx)
}

// Ping checks connectivity for readiness probes.
func (db *DB) Ping(ctx context.Context) error {
	return db.Client.Ping(ctx, nil)
}

// EnsureIndexes creates the reference indexes used by the catalog and the
// removal saga.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	refs := map[string][]string{
		domain.CollectionServices:              {"entrepreneurId", "category"},
		domain.CollectionPromotions:            {"serviceId"},
		domain.CollectionCampaignSubscriptions: {"serviceId", "entrepreneurId", "status"},
		domain.CollectionReviews:               {"serviceId"},
		domain.CollectionNotifications:         {"userId"},
	}
	for collection, fields := range refs {
		for _, field := range fields {
			_, err := db.Database.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
				Keys: bson.D{{Key: field, Value: 1}},
			})
			if err != nil {
				return fmt.Errorf("failed to create %s index for %s: %w", field, collection, err)
			}
		}
	}
	return nil
}
