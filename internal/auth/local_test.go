package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func localTestRouter(t *testing.T) (*gin.Engine, *IdentityStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	identities := NewIdentityStore()
	sessions := NewSessionManager("test-secret", zap.NewNop())
	strategy := NewLocalStrategy(identities, sessions, "jwt-secret", time.Hour, zap.NewNop())

	router := gin.New()
	for _, route := range strategy.Routes() {
		router.Handle(route.Method, route.Path, route.Handler)
	}
	return router, identities
}

func TestLocalStrategy_Login(t *testing.T) {
	router, identities := localTestRouter(t)
	require.NoError(t, identities.Add("admin", "adminpw"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, LocalAuthPath,
		strings.NewReader(`{"participantId":"admin","participantPwd":"adminpw"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"token"`)

	// The issued token is a valid HS256 JWT for the participant.
	body := w.Body.String()
	start := strings.Index(body, `"token":"`) + len(`"token":"`)
	end := strings.Index(body[start:], `"`)
	tokenString := body[start : start+end]

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte("jwt-secret"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "admin", claims["sub"])
}

func TestLocalStrategy_Login_BadCredentials(t *testing.T) {
	router, identities := localTestRouter(t)
	require.NoError(t, identities.Add("admin", "adminpw"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, LocalAuthPath,
		strings.NewReader(`{"participantId":"admin","participantPwd":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLocalStrategy_Login_MissingFields(t *testing.T) {
	router, _ := localTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, LocalAuthPath, strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLocalStrategy_Callback(t *testing.T) {
	router, identities := localTestRouter(t)
	require.NoError(t, identities.Add("admin", "adminpw"))

	// Log in to obtain the session cookie.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, LocalAuthPath,
		strings.NewReader(`{"participantId":"admin","participantPwd":"adminpw"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, LocalCallbackPath, nil)
	for _, cookie := range w.Result().Cookies() {
		req2.AddCookie(cookie)
	}
	router.ServeHTTP(w2, req2)

	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Contains(t, w2.Body.String(), `"admin"`)
}

func TestLocalStrategy_Callback_Anonymous(t *testing.T) {
	router, _ := localTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, LocalCallbackPath, nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
