// Package network defines the business-network connection collaborator the
// REST server fronts. The server never interprets network contents; it
// connects, pings, submits transactions and relays events.
package network

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrProfileNotFound = errors.New("connection profile not found")
	ErrNetworkNotFound = errors.New("business network not found")
	ErrNotConnected    = errors.New("not connected")
)

// Definition describes a deployed business network.
type Definition struct {
	Identifier  string `json:"identifier"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Identity is the participant identity used to connect.
type Identity struct {
	ID     string
	Secret string
}

// Transaction is a transaction submitted to the business network.
type Transaction struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// Event is an event emitted by the business network.
type Event struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// Connection is a live connection to a deployed business network.
type Connection interface {
	// Network returns the resolved network definition.
	Network() Definition

	// Ping verifies the connection is healthy.
	Ping(ctx context.Context) error

	// Submit submits a transaction and returns its assigned id.
	Submit(ctx context.Context, tx Transaction) (string, error)

	// Events returns the channel business-network events arrive on. The
	// channel is closed when the connection is disconnected.
	Events() <-chan Event

	// Disconnect closes the connection.
	Disconnect(ctx context.Context) error
}

// Connector establishes connections to deployed business networks. A
// connector resolves the connection profile by name, authenticates the
// participant and resolves the network by identifier.
type Connector interface {
	Connect(ctx context.Context, profileName, networkID string, identity Identity) (Connection, error)
}
