package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/network"
)

func testConnection(t *testing.T) network.Connection {
	t.Helper()

	connector := network.NewMemoryConnector()
	connector.Deploy(network.Definition{
		Identifier: "bond-network",
		Version:    "0.2.0",
	})

	conn, err := connector.Connect(context.Background(), "defaultProfile", "bond-network", network.Identity{ID: "admin"})
	require.NoError(t, err)
	return conn
}

func testRouter(t *testing.T, conn network.Connection) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	NewHandlers(conn, "admin", true, false, zap.NewNop()).RegisterRoutes(router)
	return router
}

func TestHandlers_Status(t *testing.T) {
	router := testRouter(t, testConnection(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "bond-network", status.Network)
	assert.True(t, status.Secured)
	assert.False(t, status.WebSockets)
}

func TestHandlers_Ping(t *testing.T) {
	router := testRouter(t, testConnection(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/system/ping", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"participant":"admin"`)
}

func TestHandlers_Ping_Disconnected(t *testing.T) {
	conn := testConnection(t)
	require.NoError(t, conn.Disconnect(context.Background()))
	router := testRouter(t, conn)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/system/ping", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandlers_Network(t *testing.T) {
	router := testRouter(t, testConnection(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/system/networks", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"identifier":"bond-network"`)
}

func TestHandlers_SubmitTransaction(t *testing.T) {
	conn := testConnection(t)
	router := testRouter(t, conn)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/system/transactions",
		strings.NewReader(`{"$class":"org.example.IssueBond","data":{"face":1000}}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"transactionId"`)

	txs := conn.(*network.MemoryConnection).Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "org.example.IssueBond", txs[0].Type)
}

func TestHandlers_SubmitTransaction_MissingClass(t *testing.T) {
	router := testRouter(t, testConnection(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/system/transactions", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
