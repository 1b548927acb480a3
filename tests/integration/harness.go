package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/network"
	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/internal/server"
	"github.com/ECOMANAGEMENT-TECHNOLOGY-SL/composer/pkg/config"
)

// TestHarness provides a complete bootstrap environment: a bootstrapped
// application served over httptest, plus helpers for making API requests.
type TestHarness struct {
	T         *testing.T
	Config    *config.Config
	Connector *network.MemoryConnector
	Result    *server.Result
	Server    *httptest.Server
	Client    *http.Client
	BaseURL   string
}

// TestHarnessOption configures the test harness.
type TestHarnessOption func(*TestHarness)

// WithConfig sets a custom config for the test harness.
func WithConfig(cfg *config.Config) TestHarnessOption {
	return func(h *TestHarness) {
		h.Config = cfg
	}
}

// NewTestHarness bootstraps a server against an in-process business
// network and serves its application over httptest.
func NewTestHarness(t *testing.T, opts ...TestHarnessOption) *TestHarness {
	t.Helper()

	h := &TestHarness{T: t}
	for _, opt := range opts {
		opt(h)
	}

	if h.Config == nil {
		h.Config = &config.Config{
			Connection: config.Connection{
				ConnectionProfileName:     "defaultProfile",
				BusinessNetworkIdentifier: "bond-network",
				ParticipantID:             "admin",
				ParticipantSecret:         "adminpw",
			},
			Server: config.ServerConfig{
				Host: "localhost",
				Port: config.DefaultPort,
			},
		}
	}

	h.Connector = network.NewMemoryConnector()
	h.Connector.Deploy(network.Definition{
		Identifier: h.Config.Connection.BusinessNetworkIdentifier,
		Version:    "test",
	})

	result, err := server.Bootstrap(context.Background(), h.Config, h.Connector,
		server.WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatalf("Failed to bootstrap: %v", err)
	}
	h.Result = result

	h.Server = httptest.NewServer(result.App)
	h.BaseURL = h.Server.URL
	h.Client = &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	t.Cleanup(func() {
		h.Server.Close()
		_ = result.Close(context.Background())
	})

	return h
}

// Get performs a GET request against the test server.
func (h *TestHarness) Get(path string) *http.Response {
	h.T.Helper()

	resp, err := h.Client.Get(h.BaseURL + path)
	if err != nil {
		h.T.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// PostJSON performs a POST request with a JSON body.
func (h *TestHarness) PostJSON(path string, body io.Reader) *http.Response {
	h.T.Helper()

	resp, err := h.Client.Post(h.BaseURL+path, "application/json", body)
	if err != nil {
		h.T.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// DecodeJSON decodes a response body into v and closes it.
func (h *TestHarness) DecodeJSON(resp *http.Response, v interface{}) {
	h.T.Helper()
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		h.T.Fatalf("Failed to decode response: %v", err)
	}
}
