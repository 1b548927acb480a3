// Package datasource manages the named datasources attached to a REST server
// application. Each datasource pairs verbatim connector settings with a live
// connector instance.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/pkg/config"
)

// Common errors
var (
	ErrNotFound         = errors.New("datasource not found")
	ErrUnknownConnector = errors.New("unknown datasource connector")
)

// Connector is the backend behind a named datasource.
type Connector interface {
	// Type returns the connector type name ("memory", "mongodb").
	Type() string

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// Datasource is a registered datasource: its declared settings plus the
// connector built from them.
type Datasource struct {
	Name      string
	Settings  map[string]interface{}
	Connector Connector
}

// Registry holds the datasources registered during bootstrap, in
// registration order.
type Registry struct {
	logger *zap.Logger

	mu     sync.RWMutex
	order  []string
	byName map[string]*Datasource
}

// NewRegistry creates an empty datasource registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger.Named("datasources"),
		byName: make(map[string]*Datasource),
	}
}

// Register builds a connector for the configured datasource and stores it
// under its name. The connector name from the configuration is merged into
// the stored settings so callers see exactly what was declared.
func (r *Registry) Register(ctx context.Context, name string, cfg config.DatasourceConfig) error {
	settings := make(map[string]interface{}, len(cfg.Settings)+2)
	for k, v := range cfg.Settings {
		settings[k] = v
	}
	settings["name"] = name
	settings["connector"] = cfg.Connector

	conn, err := newConnector(ctx, cfg.Connector, settings)
	if err != nil {
		return fmt.Errorf("datasource %q: %w", name, err)
	}

	r.mu.Lock()
	if _, exists := r.byName[name]; !exists {
		r.order = append(r.order, name)
	}
	r.byName[name] = &Datasource{
		Name:      name,
		Settings:  settings,
		Connector: conn,
	}
	r.mu.Unlock()

	r.logger.Info("Registered datasource",
		zap.String("name", name),
		zap.String("connector", cfg.Connector))

	return nil
}

// Lookup returns the datasource registered under name.
func (r *Registry) Lookup(name string) (*Datasource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return ds, nil
}

// Names returns the datasource names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Close closes every registered connector. The first error is returned but
// all connectors are attempted.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, name := range r.order {
		if err := r.byName[name].Connector.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.order = nil
	r.byName = make(map[string]*Datasource)
	return firstErr
}

func newConnector(ctx context.Context, connector string, settings map[string]interface{}) (Connector, error) {
	switch connector {
	case "memory", "":
		return NewMemoryConnector(), nil
	case "mongodb":
		return NewMongoConnector(ctx, settings)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnector, connector)
	}
}
