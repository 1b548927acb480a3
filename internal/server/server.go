// Package server implements the REST server bootstrap: it interprets a
// configuration and composes the listener, authentication routes, WebSocket
// broadcast hub and datasources around a business-network connection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/api"
	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/app"
	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/auth"
	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/network"
	wshub "github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/websocket"
	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/pkg/config"
)

// ErrConfigMissing is returned when Bootstrap is called without a
// configuration.
var ErrConfigMissing = errors.New("composer not specified")

// Result is the outcome of a successful bootstrap: the request-handling
// application and the listener it is bound to. The caller owns the listener
// lifecycle; Close tears down everything else.
type Result struct {
	App        *app.App
	Listener   *http.Server
	Connection network.Connection

	hub    *wshub.Hub
	cancel context.CancelFunc
	logger *zap.Logger
}

type options struct {
	factory    ListenerFactory
	logger     *zap.Logger
	identities *auth.IdentityStore
}

// Option customizes a bootstrap.
type Option func(*options)

// WithListenerFactory overrides the listener factory. Tests use this to
// observe listener creation.
func WithListenerFactory(f ListenerFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithLogger overrides the logger the server components use.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithIdentities overrides the identity store backing the local strategy.
func WithIdentities(store *auth.IdentityStore) Option {
	return func(o *options) { o.identities = store }
}

// Bootstrap interprets the configuration and produces a ready application
// and listener. The sequence is fixed: connect to the business network,
// register datasources, register auth routes, attach websockets, create the
// listener. Any failure surfaces as an error; nothing panics.
func Bootstrap(ctx context.Context, cfg *config.Config, connector network.Connector, opts ...Option) (*Result, error) {
	if cfg == nil {
		return nil, ErrConfigMissing
	}

	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger

	// Resolve the business network first; an unknown identifier fails the
	// bootstrap before any listener exists.
	conn, err := connector.Connect(ctx,
		cfg.Connection.ConnectionProfileName,
		cfg.Connection.BusinessNetworkIdentifier,
		network.Identity{
			ID:     cfg.Connection.ParticipantID,
			Secret: cfg.Connection.ParticipantSecret,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to business network: %w", err)
	}

	application := app.New(logger)
	application.Set(app.SettingPort, cfg.ResolvedPort())

	if err := registerDatasources(ctx, application, cfg); err != nil {
		conn.Disconnect(ctx)
		return nil, err
	}

	handlers := api.NewHandlers(conn,
		cfg.Connection.ParticipantID,
		cfg.Server.Security,
		cfg.Server.WebSockets,
		logger)
	handlers.RegisterRoutes(application.Engine())

	if cfg.Server.Security {
		if err := registerAuth(application, cfg, o.identities, logger); err != nil {
			conn.Disconnect(ctx)
			return nil, err
		}
	}

	result := &Result{
		App:        application,
		Connection: conn,
		logger:     logger,
	}

	if cfg.Server.WebSockets {
		hub := wshub.NewHub(logger)
		application.Set(app.SettingSocketServer, hub)
		result.hub = hub

		application.Engine().GET("/", func(c *gin.Context) {
			if gws.IsWebSocketUpgrade(c.Request) {
				hub.HandleConnection(c.Writer, c.Request)
				return
			}
			c.Redirect(http.StatusFound, "/status")
		})

		fanCtx, cancel := context.WithCancel(context.Background())
		result.cancel = cancel
		go fanOutEvents(fanCtx, conn.Events(), hub, logger)
	}

	listener, err := createListener(cfg, o.factory, application)
	if err != nil {
		result.teardown(ctx)
		return nil, err
	}
	result.Listener = listener

	logger.Info("Composer REST server ready",
		zap.String("network", conn.Network().Identifier),
		zap.Int("port", cfg.ResolvedPort()),
		zap.Bool("tls", cfg.Server.TLS),
		zap.Bool("secured", cfg.Server.Security),
		zap.Bool("websockets", cfg.Server.WebSockets))

	return result, nil
}

// registerDatasources registers each configured datasource on the
// application, sorted by name so repeated bootstraps are deterministic.
func registerDatasources(ctx context.Context, application *app.App, cfg *config.Config) error {
	names := make([]string, 0, len(cfg.Datasources))
	for name := range cfg.Datasources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := application.Datasources().Register(ctx, name, cfg.Datasources[name]); err != nil {
			return fmt.Errorf("failed to register datasource: %w", err)
		}
	}
	return nil
}

// registerAuth builds the ordered auth route set and registers it in
// sequence on the application.
func registerAuth(application *app.App, cfg *config.Config, identities *auth.IdentityStore, logger *zap.Logger) error {
	if identities == nil {
		identities = auth.NewIdentityStore()
		if cfg.Connection.ParticipantID != "" {
			if err := identities.Add(cfg.Connection.ParticipantID, cfg.Connection.ParticipantSecret); err != nil {
				return fmt.Errorf("failed to seed identity store: %w", err)
			}
		}
	}

	routes, err := auth.BuildRoutes(auth.Options{
		Providers:  cfg.Providers,
		Sessions:   auth.NewSessionManager(cfg.Auth.SessionSecret, logger),
		Identities: identities,
		JWTSecret:  cfg.Auth.JWTSecret,
		JWTExpiry:  time.Duration(cfg.Auth.JWTExpiryHours) * time.Hour,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build auth routes: %w", err)
	}

	for _, route := range routes {
		application.Engine().Handle(route.Method, route.Path, route.Handler)
	}
	return nil
}

// createListener makes the single listener-creation call of a bootstrap.
func createListener(cfg *config.Config, factory ListenerFactory, application *app.App) (*http.Server, error) {
	if factory == nil {
		factory = NewHTTPListenerFactory(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.ResolvedPort()))
	}

	if !cfg.Server.TLS {
		return factory.CreateServer(application)
	}

	fs := cfg.Filesystem()
	cert, err := afero.ReadFile(fs, cfg.Server.TLSCert)
	if err != nil {
		return nil, fmt.Errorf("read tls certificate: %w", err)
	}
	key, err := afero.ReadFile(fs, cfg.Server.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("read tls key: %w", err)
	}

	return factory.CreateTLSServer(TLSOptions{Cert: cert, Key: key}, application)
}

// fanOutEvents relays business-network events to the broadcast hub until
// the event channel closes or the context is cancelled.
func fanOutEvents(ctx context.Context, events <-chan network.Event, hub *wshub.Hub, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				logger.Warn("Failed to encode event", zap.Error(err))
				continue
			}
			hub.Broadcast(payload)
		}
	}
}

func (r *Result) teardown(ctx context.Context) {
	if r.cancel != nil {
		r.cancel()
	}
	if r.hub != nil {
		r.hub.Close()
	}
	if r.Connection != nil {
		r.Connection.Disconnect(ctx)
	}
	if r.App != nil {
		r.App.Datasources().Close(ctx)
	}
}

// Close releases everything the bootstrap created: the event fan-out, the
// hub, the network connection, the datasources and the listener.
func (r *Result) Close(ctx context.Context) error {
	r.teardown(ctx)

	if r.Listener != nil {
		if err := r.Listener.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
