package auth

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/pkg/config"
)

// ProviderStrategy authenticates participants through an external OAuth
// provider.
type ProviderStrategy struct {
	key      string
	cfg      config.ProviderConfig
	oauth    *oauth2.Config
	sessions *SessionManager
	logger   *zap.Logger
}

// NewProviderStrategy builds the OAuth strategy for one configured
// provider.
func NewProviderStrategy(key string, cfg config.ProviderConfig, sessions *SessionManager, logger *zap.Logger) (*ProviderStrategy, error) {
	endpoint, err := endpointFor(cfg)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", key, err)
	}

	var scopes []string
	if cfg.Scope != "" {
		scopes = strings.Fields(strings.ReplaceAll(cfg.Scope, ",", " "))
	}

	return &ProviderStrategy{
		key: key,
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		sessions: sessions,
		logger:   logger.Named("auth-" + key),
	}, nil
}

// endpointFor maps the configured strategy module to an OAuth2 endpoint.
// Unknown modules need explicit authURL and tokenURL settings.
func endpointFor(cfg config.ProviderConfig) (oauth2.Endpoint, error) {
	module := cfg.Module
	if module == "" {
		module = cfg.Provider
	}

	switch {
	case strings.Contains(module, "github"):
		return github.Endpoint, nil
	case strings.Contains(module, "google"):
		return google.Endpoint, nil
	}

	if cfg.AuthURL != "" && cfg.TokenURL != "" {
		return oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL}, nil
	}
	return oauth2.Endpoint{}, fmt.Errorf("unsupported strategy module %q", module)
}

// Routes returns the provider's routes: auth path then callback path.
func (s *ProviderStrategy) Routes() []RouteDescriptor {
	return []RouteDescriptor{
		{Method: http.MethodGet, Path: s.cfg.AuthPath, Handler: s.handleAuth},
		{Method: http.MethodGet, Path: s.CallbackPath(), Handler: s.handleCallback},
	}
}

// CallbackPath returns the path component of the configured callback URL,
// which may be a full URL or already a bare path.
func (s *ProviderStrategy) CallbackPath() string {
	if u, err := url.Parse(s.cfg.CallbackURL); err == nil && u.Path != "" {
		return u.Path
	}
	return s.cfg.CallbackURL
}

func (s *ProviderStrategy) handleAuth(c *gin.Context) {
	state := uuid.NewString()
	if err := s.sessions.SetOAuthState(c, state); err != nil {
		s.logger.Error("failed to save oauth state", zap.Error(err))
		s.failure(c)
		return
	}

	c.Redirect(http.StatusFound, s.oauth.AuthCodeURL(state))
}

func (s *ProviderStrategy) handleCallback(c *gin.Context) {
	expected, ok := s.sessions.ConsumeOAuthState(c)
	if !ok || expected != c.Query("state") {
		s.logger.Warn("oauth state mismatch")
		s.failure(c)
		return
	}

	code := c.Query("code")
	if code == "" {
		s.failure(c)
		return
	}

	if _, err := s.oauth.Exchange(c.Request.Context(), code); err != nil {
		s.logger.Warn("oauth code exchange failed", zap.Error(err))
		s.failure(c)
		return
	}

	// The provider key identifies the participant; external profiles are
	// opaque to this layer.
	if err := s.sessions.Login(c, s.key); err != nil {
		s.logger.Error("failed to save session", zap.Error(err))
		s.failure(c)
		return
	}

	s.logger.Info("Provider login succeeded", zap.String("provider", s.cfg.Provider))

	redirect := s.cfg.SuccessRedirect
	if redirect == "" {
		redirect = "/"
	}
	c.Redirect(http.StatusFound, redirect)
}

func (s *ProviderStrategy) failure(c *gin.Context) {
	if s.cfg.FailureFlash {
		s.logger.Warn("Login failed", zap.String("provider", s.cfg.Provider))
	}

	redirect := s.cfg.FailureRedirect
	if redirect == "" {
		redirect = "/"
	}
	c.Redirect(http.StatusFound, redirect)
}
