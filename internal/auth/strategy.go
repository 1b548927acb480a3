// Package auth wires authentication strategies into the REST server. A
// strategy contributes an ordered list of route descriptors; the server
// registers them in sequence so the route order is deterministic.
package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/pkg/config"
)

// LogoutPath terminates every secured route set.
const LogoutPath = "/auth/logout"

// RouteDescriptor describes one auth route to register on the application.
type RouteDescriptor struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// Options collects the collaborators the strategies need.
type Options struct {
	Providers  config.ProviderMap
	Sessions   *SessionManager
	Identities *IdentityStore
	JWTSecret  string
	JWTExpiry  time.Duration
	Logger     *zap.Logger
}

// BuildRoutes returns the ordered route set for a secured server. With no
// providers configured the local strategy contributes its login and
// callback routes; otherwise each provider contributes its auth and
// callback routes in declaration order. A logout route always closes the
// list.
func BuildRoutes(opts Options) ([]RouteDescriptor, error) {
	var routes []RouteDescriptor

	if opts.Providers.Len() == 0 {
		local := NewLocalStrategy(opts.Identities, opts.Sessions, opts.JWTSecret, opts.JWTExpiry, opts.Logger)
		routes = append(routes, local.Routes()...)
	} else {
		for _, key := range opts.Providers.Keys() {
			pc, _ := opts.Providers.Get(key)
			strategy, err := NewProviderStrategy(key, pc, opts.Sessions, opts.Logger)
			if err != nil {
				return nil, err
			}
			routes = append(routes, strategy.Routes()...)
		}
	}

	routes = append(routes, RouteDescriptor{
		Method:  http.MethodGet,
		Path:    LogoutPath,
		Handler: LogoutHandler(opts.Sessions, opts.Logger),
	})
	return routes, nil
}

// LogoutHandler invalidates the session and redirects to the root path.
// The handler terminates the chain; nothing runs after it.
func LogoutHandler(sessions *SessionManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := sessions.Logout(c); err != nil {
			logger.Warn("logout: save session", zap.Error(err))
		}
		c.Redirect(http.StatusFound, "/")
		c.Abort()
	}
}
