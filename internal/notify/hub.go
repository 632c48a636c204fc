// Package notify pushes event bus traffic to browsers over websockets.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/serenissima/contracts-gateway/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBuffer     = 64
	broadcastQueue = 256
)

// frame is one outbound message. An empty recipients list means everyone.
type frame struct {
	recipients []string
	data       []byte
}

type client struct {
	hub      *Hub
	conn     *websocket.Conn
	username string
	send     chan []byte
}

// Hub keeps the connected clients and fans frames out to them. All client bookkeeping
// happens on the Run goroutine.
type Hub struct {
	clients    map[*client]struct{}
	broadcast  chan frame
	register   chan *client
	unregister chan *client
	done       chan struct{}
	upgrader   websocket.Upgrader
	sub        *events.Subscription
	connected  atomic.Int64
	log        zerolog.Logger
}

func NewHub(bus *events.Bus, allowedOrigins []string, log zerolog.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan frame, broadcastQueue),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "ws_hub").Logger(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	h.sub = bus.SubscribeAll(h.forward)
	return h
}

// Run serves register, unregister and broadcast requests until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer h.sub.Unsubscribe()
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.connected.Store(0)
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.connected.Store(int64(len(h.clients)))
			h.log.Debug().Str("username", c.username).Int("clients", len(h.clients)).Msg("ws client registered")
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.connected.Store(int64(len(h.clients)))
			}
		case f := <-h.broadcast:
			for c := range h.clients {
				if !f.addressedTo(c.username) {
					continue
				}
				select {
				case c.send <- f.data:
				default:
					// A full buffer means the client stopped reading.
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.connected.Store(int64(len(h.clients)))
		}
	}
}

// Connected reports how many clients the hub currently serves.
func (h *Hub) Connected() int {
	return int(h.connected.Load())
}

// forward runs on the emitting goroutine and must not block it.
func (h *Hub) forward(e events.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.log.Warn().Err(err).Str("topic", e.Topic).Msg("encode event failed")
		return
	}
	select {
	case h.broadcast <- frame{recipients: Recipients(e.Payload), data: data}:
	default:
		h.log.Warn().Str("topic", e.Topic).Msg("broadcast queue full, event dropped")
	}
}

// Recipients returns who an event is meant for; nil means every connected client.
func Recipients(payload any) []string {
	switch p := payload.(type) {
	case events.Notification:
		if p.Recipient != "" {
			return []string{p.Recipient}
		}
	case events.CitizenPanel:
		if p.Recipient != "" {
			return []string{p.Recipient}
		}
	case events.NegotiationUpdate:
		return []string{p.Sender, p.Receiver}
	}
	return nil
}

func (f frame) addressedTo(username string) bool {
	if len(f.recipients) == 0 {
		return true
	}
	for _, r := range f.recipients {
		if r == username {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request and attaches the connection to username.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, username string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	c := &client{hub: h, conn: conn, username: username, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only drains control frames; clients do not send anything meaningful.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Str("username", c.username).Msg("ws read failed")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
