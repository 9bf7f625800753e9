package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/xpkg/logger"
)

var upgrader = websocket.Upgrader{}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSessionPushesQueuedMessages(t *testing.T) {
	sessions := make(chan *Session, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		s := NewSession(conn, 4, logger.Nop())
		s.Start()
		sessions <- s
	}))
	defer srv.Close()

	client := dial(t, srv)
	s := <-sessions

	assert.True(t, s.Send([]byte(`{"type":"new_order"}`)))
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"new_order"}`, string(msg))

	require.NoError(t, client.Close())
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not notice the peer leaving")
	}
	assert.False(t, s.Send([]byte("late")))
}

func TestSessionCloseSendsReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		Refuse(conn, ReasonUnauthorized)
	}))
	defer srv.Close()

	client := dial(t, srv)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := client.ReadMessage()

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, ReasonUnauthorized, closeErr.Text)
}
