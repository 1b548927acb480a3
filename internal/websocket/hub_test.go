package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConn records the messages written to it.
type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.messages))
	copy(out, f.messages)
	return out
}

func TestNewHub(t *testing.T) {
	h := NewHub(zap.NewNop())
	assert.NotNil(t, h)
	assert.Empty(t, h.Clients())
}

func TestHub_Broadcast_OnlyOpenClients(t *testing.T) {
	h := NewHub(zap.NewNop())

	connecting := &fakeConn{}
	open := &fakeConn{}
	closing := &fakeConn{}

	h.Attach(connecting) // stays Connecting
	openClient := h.Attach(open)
	openClient.SetState(Open)
	closingClient := h.Attach(closing)
	closingClient.SetState(Closing)

	h.Broadcast([]byte("blockchain events"))

	assert.Empty(t, connecting.sent())
	assert.Empty(t, closing.sent())

	require.Len(t, open.sent(), 1)
	assert.Equal(t, "blockchain events", string(open.sent()[0]))
}

func TestHub_Broadcast_ExactlyOncePerClient(t *testing.T) {
	h := NewHub(zap.NewNop())

	conns := []*fakeConn{{}, {}, {}}
	for _, c := range conns {
		h.Attach(c).SetState(Open)
	}

	h.Broadcast([]byte("one"))
	h.Broadcast([]byte("two"))

	for _, c := range conns {
		require.Len(t, c.sent(), 2)
		assert.Equal(t, "one", string(c.sent()[0]))
		assert.Equal(t, "two", string(c.sent()[1]))
	}
}

func TestHub_Detach(t *testing.T) {
	h := NewHub(zap.NewNop())

	conn := &fakeConn{}
	client := h.Attach(conn)
	client.SetState(Open)
	h.Detach(client)

	assert.Equal(t, Closed, client.State())
	assert.Empty(t, h.Clients())

	h.Broadcast([]byte("nobody home"))
	assert.Empty(t, conn.sent())
}

func TestHub_Close(t *testing.T) {
	h := NewHub(zap.NewNop())

	conn := &fakeConn{}
	h.Attach(conn).SetState(Open)

	h.Close()

	assert.Empty(t, h.Clients())
	assert.True(t, conn.closed)
}

func TestReadyState_String(t *testing.T) {
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "closing", Closing.String())
	assert.Equal(t, "closed", Closed.String())
}

func TestHub_Broadcast_ConcurrentCallers(t *testing.T) {
	h := NewHub(zap.NewNop())

	srv := httptest.NewServer(http.HandlerFunc(h.HandleConnection))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		clients := h.Clients()
		return len(clients) == 1 && clients[0].State() == Open
	}, time.Second, 10*time.Millisecond)

	// The event fan-out and programmatic callers broadcast from separate
	// goroutines; writes to one connection must be serialized.
	const perCaller = 200

	received := make(chan struct{}, 2*perCaller)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			received <- struct{}{}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perCaller; j++ {
				h.Broadcast([]byte(`{"event":"BondMatured"}`))
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 2*perCaller; i++ {
		select {
		case <-received:
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d of %d broadcast messages", i, 2*perCaller)
		}
	}
}

func TestHub_HandleConnection_EndToEnd(t *testing.T) {
	h := NewHub(zap.NewNop())

	srv := httptest.NewServer(http.HandlerFunc(h.HandleConnection))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The upgrade path registers the client asynchronously from the
	// dialer's point of view; wait for it to appear open.
	require.Eventually(t, func() bool {
		clients := h.Clients()
		return len(clients) == 1 && clients[0].State() == Open
	}, time.Second, 10*time.Millisecond)

	h.Broadcast([]byte(`{"event":"BondMatured"}`))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"event":"BondMatured"}`, string(message))
}
