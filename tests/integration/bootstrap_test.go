package integration

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/api"
	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/app"
	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/network"
	wshub "github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/websocket"
	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/pkg/config"
)

func securedConfig() *config.Config {
	return &config.Config{
		Connection: config.Connection{
			ConnectionProfileName:     "defaultProfile",
			BusinessNetworkIdentifier: "bond-network",
			ParticipantID:             "admin",
			ParticipantSecret:         "adminpw",
		},
		Server: config.ServerConfig{
			Host:     "localhost",
			Port:     config.DefaultPort,
			Security: true,
		},
	}
}

func TestStatusEndpoint(t *testing.T) {
	h := NewTestHarness(t)

	resp := h.Get("/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status api.StatusResponse
	h.DecodeJSON(resp, &status)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "bond-network", status.Network)
}

func TestSystemPing(t *testing.T) {
	h := NewTestHarness(t)

	resp := h.Get("/api/system/ping")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	h.DecodeJSON(resp, &body)
	assert.Equal(t, "admin", body["participant"])
}

func TestTransactionSubmission(t *testing.T) {
	h := NewTestHarness(t)

	resp := h.PostJSON("/api/system/transactions",
		strings.NewReader(`{"$class":"org.example.IssueBond","data":{"face":1000}}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	h.DecodeJSON(resp, &body)
	assert.NotEmpty(t, body["transactionId"])
}

func TestSecuredLoginFlow(t *testing.T) {
	h := NewTestHarness(t, WithConfig(securedConfig()))

	// Bad credentials are rejected.
	resp := h.PostJSON("/auth/local",
		strings.NewReader(`{"participantId":"admin","participantPwd":"wrong"}`))
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// The configured participant can log in and receives a token.
	resp = h.PostJSON("/auth/local",
		strings.NewReader(`{"participantId":"admin","participantPwd":"adminpw"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	h.DecodeJSON(resp, &body)
	assert.NotEmpty(t, body["token"])
}

func TestSecuredLogout(t *testing.T) {
	h := NewTestHarness(t, WithConfig(securedConfig()))

	resp := h.Get("/auth/logout")
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestWebSocketBroadcast(t *testing.T) {
	cfg := securedConfig()
	cfg.Server.Security = false
	cfg.Server.WebSockets = true
	h := NewTestHarness(t, WithConfig(cfg))

	url := "ws" + strings.TrimPrefix(h.BaseURL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait until the hub registers the client as open, then emit a
	// business-network event and expect it on the socket.
	v, ok := h.Result.App.Get(app.SettingSocketServer)
	require.True(t, ok)
	hub := v.(*wshub.Hub)

	require.Eventually(t, func() bool {
		clients := hub.Clients()
		return len(clients) == 1 && clients[0].State() == wshub.Open
	}, 5*time.Second, 10*time.Millisecond)

	mc := h.Result.Connection.(*network.MemoryConnection)
	mc.Emit(network.Event{Name: "BondMatured"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(message), "BondMatured")
}
