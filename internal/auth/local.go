package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Local strategy paths.
const (
	LocalAuthPath     = "/auth/local"
	LocalCallbackPath = "/auth/local/callback"
)

// LocalStrategy authenticates participants against the local identity
// store and issues JWT access tokens.
type LocalStrategy struct {
	identities *IdentityStore
	sessions   *SessionManager
	jwtSecret  string
	jwtExpiry  time.Duration
	logger     *zap.Logger
}

// NewLocalStrategy creates the local credential strategy.
func NewLocalStrategy(identities *IdentityStore, sessions *SessionManager, jwtSecret string, jwtExpiry time.Duration, logger *zap.Logger) *LocalStrategy {
	if jwtExpiry <= 0 {
		jwtExpiry = 24 * time.Hour
	}
	return &LocalStrategy{
		identities: identities,
		sessions:   sessions,
		jwtSecret:  jwtSecret,
		jwtExpiry:  jwtExpiry,
		logger:     logger.Named("auth-local"),
	}
}

// Routes returns the local strategy's routes: login then login-callback.
func (s *LocalStrategy) Routes() []RouteDescriptor {
	return []RouteDescriptor{
		{Method: http.MethodPost, Path: LocalAuthPath, Handler: s.handleLogin},
		{Method: http.MethodGet, Path: LocalCallbackPath, Handler: s.handleCallback},
	}
}

type loginRequest struct {
	ParticipantID     string `json:"participantId" binding:"required"`
	ParticipantSecret string `json:"participantPwd" binding:"required"`
}

func (s *LocalStrategy) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participantId and participantPwd are required"})
		return
	}

	if err := s.identities.Validate(req.ParticipantID, req.ParticipantSecret); err != nil {
		s.logger.Warn("Login rejected", zap.String("participant", req.ParticipantID))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if err := s.sessions.Login(c, req.ParticipantID); err != nil {
		s.logger.Error("Failed to save session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}

	token, err := s.issueToken(req.ParticipantID)
	if err != nil {
		s.logger.Error("Failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"participant": req.ParticipantID,
		"token":       token,
	})
}

// handleCallback reports the authenticated participant for the session,
// mirroring the shape of the provider callback.
func (s *LocalStrategy) handleCallback(c *gin.Context) {
	participant, ok := s.sessions.Participant(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"participant": participant})
}

func (s *LocalStrategy) issueToken(participantID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": participantID,
		"iat": now.Unix(),
		"exp": now.Add(s.jwtExpiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}
