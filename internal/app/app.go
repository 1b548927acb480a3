// Package app defines the application handle produced by a bootstrap: a
// gin engine plus the named settings and datasources attached to it.
package app

import (
	"net/http"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/datasource"
	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/pkg/middleware"
)

// Well-known setting names.
const (
	SettingPort         = "port"
	SettingSocketServer = "wss"
)

// App is the request-handling application assembled by the bootstrap.
// Settings are written during bootstrap and read-only afterwards.
type App struct {
	engine      *gin.Engine
	datasources *datasource.Registry

	mu       sync.RWMutex
	settings map[string]interface{}
}

// New creates an application with the standard middleware stack.
func New(logger *zap.Logger) *App {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.Logger(logger))
	engine.Use(middleware.RequestID())
	engine.Use(cors.Default())

	return &App{
		engine:      engine,
		datasources: datasource.NewRegistry(logger),
		settings:    make(map[string]interface{}),
	}
}

// Engine returns the underlying gin engine for route registration.
func (a *App) Engine() *gin.Engine { return a.engine }

// ServeHTTP makes the application an http.Handler; listener factories bind
// to it directly.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.engine.ServeHTTP(w, r)
}

// Set stores a named application setting.
func (a *App) Set(name string, value interface{}) {
	a.mu.Lock()
	a.settings[name] = value
	a.mu.Unlock()
}

// Get returns a named application setting.
func (a *App) Get(name string) (interface{}, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.settings[name]
	return v, ok
}

// Port returns the resolved listener port from the application settings.
func (a *App) Port() int {
	v, ok := a.Get(SettingPort)
	if !ok {
		return 0
	}
	port, _ := v.(int)
	return port
}

// Datasources returns the application's datasource registry.
func (a *App) Datasources() *datasource.Registry { return a.datasources }
