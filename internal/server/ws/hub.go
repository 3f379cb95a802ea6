package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// History returns the latest events published on a channel, oldest first.
type History interface {
	Recent(ctx context.Context, channel string, n int) ([][]byte, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client represents a single WebSocket connection. An empty battles set
// means the client follows every battle.
type client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	battles map[string]bool
	mu      sync.RWMutex
}

// subscribeMsg is the JSON message a client sends to narrow or widen the
// set of battles it follows.
type subscribeMsg struct {
	Action  string   `json:"action"` // "subscribe" or "unsubscribe"
	Battles []string `json:"battles"`
}

// Hub relays battle events from the event bus to connected clients.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan event
	register   chan *client
	unregister chan *client
	bus        domain.EventBus
	history    History
	replay     int
	mu         sync.RWMutex
	logger     *slog.Logger
}

// event is one bus payload tagged with the battle it concerns.
type event struct {
	battleID string
	data     []byte
}

// NewHub creates a hub over bus. history may be nil; replay is how many
// recent events a new client receives on connect.
func NewHub(bus domain.EventBus, history History, replay int, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		bus:        bus,
		history:    history,
		replay:     replay,
		logger:     logger.With(slog.String("component", "ws")),
	}
}

// Run subscribes to the battle events channel and dispatches to clients
// until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	msgCh, err := h.bus.Subscribe(ctx, domain.BattleEventsChannel)
	if err != nil {
		return err
	}
	go h.forward(ctx, msgCh)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))

		case ev := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.follows(ev.battleID) {
					select {
					case c.send <- ev.data:
					default:
						h.logger.Warn("ws: dropping message for slow client")
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) forward(ctx context.Context, msgCh <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: event subscription closed")
				return
			}
			select {
			case h.broadcast <- event{battleID: battleIDOf(data), data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// battleIDOf extracts the battle id of an encoded domain.BattleEvent.
func battleIDOf(data []byte) string {
	var ev struct {
		BattleID string `json:"battle_id"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ""
	}
	return ev.BattleID
}

// HandleWS upgrades the request and registers the client. A battle query
// parameter starts the client filtered to that battle.
// GET /ws?battle=
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		battles: make(map[string]bool),
	}
	if id := r.URL.Query().Get("battle"); id != "" {
		c.battles[id] = true
	}

	h.register <- c
	h.replayTo(r.Context(), c)

	go c.writePump()
	go c.readPump()
}

// replayTo queues the recent events the client follows.
func (h *Hub) replayTo(ctx context.Context, c *client) {
	if h.history == nil || h.replay <= 0 {
		return
	}
	recent, err := h.history.Recent(ctx, domain.BattleEventsChannel, h.replay)
	if err != nil {
		h.logger.Warn("ws: replay failed", slog.String("error", err.Error()))
		return
	}
	for _, data := range recent {
		if !c.follows(battleIDOf(data)) {
			continue
		}
		select {
		case c.send <- data:
		default:
			return
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var sub subscribeMsg
		if err := json.Unmarshal(message, &sub); err == nil {
			c.handleSubscription(sub)
		}
	}
}

func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case "subscribe":
		for _, id := range msg.Battles {
			c.battles[id] = true
		}
	case "unsubscribe":
		for _, id := range msg.Battles {
			delete(c.battles, id)
		}
	}
}

// follows reports whether events for battleID should reach the client.
func (c *client) follows(battleID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.battles) == 0 || c.battles[battleID]
}

// writePump sends queued events as text frames and pings for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
