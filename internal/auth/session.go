package auth

import (
	"crypto/rand"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	sessionName    = "composer.sid"
	participantKey = "participant"
	oauthStateKey  = "oauth_state"
)

// SessionManager wraps the cookie session store used by all auth
// strategies.
type SessionManager struct {
	store  *sessions.CookieStore
	logger *zap.Logger
}

// NewSessionManager creates a session manager. An empty secret gets a
// random one, which invalidates sessions across restarts.
func NewSessionManager(secret string, logger *zap.Logger) *SessionManager {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}

	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   86400,
		SameSite: http.SameSiteLaxMode,
	}

	return &SessionManager{
		store:  store,
		logger: logger.Named("sessions"),
	}
}

// Login records the authenticated participant in the session.
func (m *SessionManager) Login(c *gin.Context, participantID string) error {
	session, err := m.store.Get(c.Request, sessionName)
	if err != nil {
		// A decode failure means a stale or tampered cookie; start fresh.
		m.logger.Warn("session decode failed during login", zap.Error(err))
	}
	session.Values[participantKey] = participantID
	return session.Save(c.Request, c.Writer)
}

// Participant returns the participant recorded in the session, if any.
func (m *SessionManager) Participant(c *gin.Context) (string, bool) {
	session, err := m.store.Get(c.Request, sessionName)
	if err != nil {
		return "", false
	}
	id, ok := session.Values[participantKey].(string)
	return id, ok && id != ""
}

// Logout invalidates the session by expiring its cookie.
func (m *SessionManager) Logout(c *gin.Context) error {
	session, err := m.store.Get(c.Request, sessionName)
	if err != nil {
		m.logger.Warn("session decode failed during logout", zap.Error(err))
	}

	for key := range session.Values {
		delete(session.Values, key)
	}
	session.Options.MaxAge = -1 // delete immediately

	return session.Save(c.Request, c.Writer)
}

// SetOAuthState stores the OAuth state parameter for the callback to check.
func (m *SessionManager) SetOAuthState(c *gin.Context, state string) error {
	session, _ := m.store.Get(c.Request, sessionName)
	session.Values[oauthStateKey] = state
	return session.Save(c.Request, c.Writer)
}

// ConsumeOAuthState returns the stored state and removes it from the
// session.
func (m *SessionManager) ConsumeOAuthState(c *gin.Context) (string, bool) {
	session, err := m.store.Get(c.Request, sessionName)
	if err != nil {
		return "", false
	}

	state, ok := session.Values[oauthStateKey].(string)
	if !ok || state == "" {
		return "", false
	}

	delete(session.Values, oauthStateKey)
	if err := session.Save(c.Request, c.Writer); err != nil {
		m.logger.Warn("failed to clear oauth state", zap.Error(err))
	}
	return state, true
}
