package events

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pat-settlement/internal/domain"
)

func dialHub(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StreamsRecords(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	all := dialHub(t, srv, "")
	purchases := dialHub(t, srv, "?kinds="+domain.EventSegmentPurchased)
	waitForClients(t, hub, 2)

	require.NoError(t, hub.Publish(context.Background(), sampleRecords(7)))

	var m Message
	require.NoError(t, all.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, all.ReadJSON(&m))
	assert.Equal(t, domain.EventSegmentPurchased, m.Kind)
	require.NoError(t, all.ReadJSON(&m))
	assert.Equal(t, domain.EventPayoutRecorded, m.Kind)

	require.NoError(t, purchases.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, purchases.ReadJSON(&m))
	assert.Equal(t, domain.EventSegmentPurchased, m.Kind)
	assert.Equal(t, "100", m.Attributes[domain.AttrAskPrice])

	// The filtered client gets nothing else.
	require.NoError(t, purchases.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	assert.Error(t, purchases.ReadJSON(&m))
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv, "")
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)

	assert.NoError(t, hub.Publish(context.Background(), sampleRecords(1)))
}

func TestHub_CloseRejectsNewClients(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv, "")
	waitForClients(t, hub, 1)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
