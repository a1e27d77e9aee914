package events

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/observability"
)

// HubConfig configures the live stream hub.
type HubConfig struct {
	// BufferSize is the number of messages queued per client before it is dropped.
	BufferSize int
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
	// PingInterval is the interval between keepalive pings.
	PingInterval time.Duration
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:   256,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Hub streams committed records to websocket clients. A client may narrow
// the stream with ?kinds=A,B. Clients that fall behind are disconnected.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
}

type streamClient struct {
	conn  *websocket.Conn
	send  chan []byte
	kinds map[string]bool
	done  chan struct{}
	once  sync.Once
}

func (c *streamClient) wants(kind string) bool {
	return len(c.kinds) == 0 || c.kinds[kind]
}

func (c *streamClient) stop() {
	c.once.Do(func() { close(c.done) })
}

// NewHub creates a hub. A nil config uses DefaultHubConfig.
func NewHub(config *HubConfig, logger *slog.Logger) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}
}

var _ Sink = (*Hub)(nil)

// Name implements Sink.
func (h *Hub) Name() string { return "stream" }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams records until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &streamClient{
		conn:  conn,
		send:  make(chan []byte, h.config.BufferSize),
		kinds: parseKinds(r.URL.Query().Get("kinds")),
		done:  make(chan struct{}),
	}
	if !h.register(c) {
		_ = conn.Close()
		return
	}

	go h.writeLoop(c)
	h.readLoop(c)
}

func parseKinds(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	kinds := make(map[string]bool)
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds[k] = true
		}
	}
	return kinds
}

func (h *Hub) register(c *streamClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	observability.UpdateStreamClients(len(h.clients))
	return true
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		observability.UpdateStreamClients(len(h.clients))
	}
	h.mu.Unlock()
	c.stop()
}

// readLoop discards client frames; it exists to process control frames
// and notice disconnects.
func (h *Hub) readLoop(c *streamClient) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *streamClient) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.config.WriteTimeout))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.config.WriteTimeout)); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

// Publish implements Sink. It never blocks on a client.
func (h *Hub) Publish(_ context.Context, records []*domain.EventRecord) error {
	encoded := make([][]byte, len(records))
	for i, r := range records {
		data, err := Encode(r)
		if err != nil {
			return err
		}
		encoded[i] = data
	}

	h.mu.Lock()
	var slow []*streamClient
	for c := range h.clients {
		for i, r := range records {
			if !c.wants(r.Kind) {
				continue
			}
			select {
			case c.send <- encoded[i]:
			default:
				slow = append(slow, c)
			}
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow stream client", "remote", c.conn.RemoteAddr().String())
		h.unregister(c)
	}
	return nil
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*streamClient]struct{})
	observability.UpdateStreamClients(0)
	h.mu.Unlock()

	for _, c := range clients {
		c.stop()
	}
}
