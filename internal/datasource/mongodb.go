package datasource

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultMongoTimeout = 10 * time.Second

// MongoConnector implements a MongoDB datasource backend.
type MongoConnector struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoConnector connects to MongoDB using the datasource settings.
// Recognized settings: "url" (connection string, required), "database"
// (database name, defaults to the datasource name), "timeout" (seconds).
func NewMongoConnector(ctx context.Context, settings map[string]interface{}) (*MongoConnector, error) {
	uri, _ := settings["url"].(string)
	if uri == "" {
		return nil, fmt.Errorf("mongodb connector requires a url setting")
	}

	timeout := defaultMongoTimeout
	if secs, ok := settings["timeout"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	dbName, _ := settings["database"].(string)
	if dbName == "" {
		dbName, _ = settings["name"].(string)
	}

	return &MongoConnector{
		client:   client,
		database: client.Database(dbName),
	}, nil
}

// Type returns the connector type name.
func (c *MongoConnector) Type() string { return "mongodb" }

// Ping verifies the MongoDB connection.
func (c *MongoConnector) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

// Close disconnects from MongoDB.
func (c *MongoConnector) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Collection returns a handle to the named collection.
func (c *MongoConnector) Collection(name string) *mongo.Collection {
	return c.database.Collection(name)
}
