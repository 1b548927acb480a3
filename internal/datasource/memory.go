package datasource

import (
	"context"
	"sync"
)

// MemoryConnector implements an in-memory datasource backend. It backs the
// default datasource and keeps tests free of external services.
type MemoryConnector struct {
	mu   sync.RWMutex
	data map[string]interface{}
}

// NewMemoryConnector creates a new in-memory connector.
func NewMemoryConnector() *MemoryConnector {
	return &MemoryConnector{data: make(map[string]interface{})}
}

// Type returns the connector type name.
func (c *MemoryConnector) Type() string { return "memory" }

// Ping always succeeds for the in-memory backend.
func (c *MemoryConnector) Ping(ctx context.Context) error { return nil }

// Close discards the stored data.
func (c *MemoryConnector) Close(ctx context.Context) error {
	c.mu.Lock()
	c.data = make(map[string]interface{})
	c.mu.Unlock()
	return nil
}

// Put stores a value under key.
func (c *MemoryConnector) Put(key string, value interface{}) {
	c.mu.Lock()
	c.data[key] = value
	c.mu.Unlock()
}

// Get retrieves the value stored under key.
func (c *MemoryConnector) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}
