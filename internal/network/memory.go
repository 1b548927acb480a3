package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const eventBuffer = 16

// MemoryConnector is an in-process Connector backed by a registry of
// deployed network definitions. It is the default connector for local
// development and tests.
type MemoryConnector struct {
	mu       sync.RWMutex
	profiles map[string]struct{}
	networks map[string]Definition
}

// NewMemoryConnector creates an empty in-process connector.
func NewMemoryConnector() *MemoryConnector {
	return &MemoryConnector{
		profiles: make(map[string]struct{}),
		networks: make(map[string]Definition),
	}
}

// AddProfile registers a connection profile name.
func (c *MemoryConnector) AddProfile(name string) {
	c.mu.Lock()
	c.profiles[name] = struct{}{}
	c.mu.Unlock()
}

// Deploy registers a network definition so it can be connected to.
func (c *MemoryConnector) Deploy(def Definition) {
	c.mu.Lock()
	c.networks[def.Identifier] = def
	c.mu.Unlock()
}

// Connect resolves the profile and network and returns a live connection.
func (c *MemoryConnector) Connect(ctx context.Context, profileName, networkID string, identity Identity) (Connection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Profiles are only enforced once any have been registered; a bare
	// connector accepts any profile name.
	if len(c.profiles) > 0 {
		if _, ok := c.profiles[profileName]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, profileName)
		}
	}

	def, ok := c.networks[networkID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNetworkNotFound, networkID)
	}

	return &MemoryConnection{
		def:    def,
		events: make(chan Event, eventBuffer),
	}, nil
}

// MemoryConnection is a live connection returned by MemoryConnector.
type MemoryConnection struct {
	def Definition

	mu           sync.Mutex
	closed       bool
	events       chan Event
	transactions []Transaction
}

func (c *MemoryConnection) Network() Definition { return c.def }

func (c *MemoryConnection) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrNotConnected
	}
	return nil
}

func (c *MemoryConnection) Submit(ctx context.Context, tx Transaction) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrNotConnected
	}

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	c.transactions = append(c.transactions, tx)
	return tx.ID, nil
}

func (c *MemoryConnection) Events() <-chan Event {
	return c.events
}

// Emit delivers an event to the connection's event channel. Used by tests
// and local tooling to simulate business-network events.
func (c *MemoryConnection) Emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	select {
	case c.events <- ev:
	default:
		// Drop when the subscriber is not keeping up.
	}
}

func (c *MemoryConnection) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.events)
	return nil
}

// Transactions returns the transactions submitted on this connection.
func (c *MemoryConnection) Transactions() []Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Transaction, len(c.transactions))
	copy(out, c.transactions)
	return out
}
