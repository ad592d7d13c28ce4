// Package mongodb implements CVE persistence on MongoDB.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// DefaultServerSelectionTimeout bounds connect and liveness checks.
const DefaultServerSelectionTimeout = 5 * time.Second

// Connect opens a client and verifies liveness with a ping. Callers treat a
// failure as fatal; there is no retry at this layer.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	if timeout <= 0 {
		timeout = DefaultServerSelectionTimeout
	}

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return client, nil
}

// Collection wraps a mongo collection behind the storage.Inserter contract.
type Collection struct {
	col *mongo.Collection
}

// NewCollection selects the target collection on an existing client.
func NewCollection(client *mongo.Client, database, collection string) *Collection {
	return &Collection{
		col: client.Database(database).Collection(collection),
	}
}

// InsertOne writes a single document and reports acknowledgment.
func (c *Collection) InsertOne(ctx context.Context, doc map[string]any) (bool, error) {
	res, err := c.col.InsertOne(ctx, doc)
	if err != nil {
		return false, fmt.Errorf("insert document: %w", err)
	}
	return res.Acknowledged, nil
}
