// Package realtime streams store change notifications to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"time-tracker/internal/auth"
	"time-tracker/internal/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

// Sessions resolves the token a client connects with.
type Sessions interface {
	Lookup(token string) (auth.Session, bool)
}

// Subscriber is the change feed the hub listens to.
type Subscriber interface {
	Subscribe(topic events.Topic, mask events.Op, userID uint, handler events.Handler) func()
}

// Envelope wraps every message sent to clients.
type Envelope struct {
	Type      string `json:"type"`
	Op        string `json:"op,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

var knownTables = map[string]events.Topic{
	string(events.Categories):  events.Categories,
	string(events.Records):     events.Records,
	string(events.Preferences): events.Preferences,
}

// Hub keeps the connected clients.
type Hub struct {
	sessions Sessions
	feed     Subscriber
	log      *logrus.Entry
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	id     string
	userID uint
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func NewHub(sessions Sessions, feed Subscriber, log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		sessions: sessions,
		feed:     feed,
		log:      log.WithField("component", "realtime"),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		clients:  make(map[string]*client),
	}
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ParseTables turns "records,categories" into topics. An empty list means
// every table.
func ParseTables(raw string) ([]events.Topic, error) {
	var topics []events.Topic
	seen := map[events.Topic]bool{}
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		topic, ok := knownTables[name]
		if !ok {
			return nil, errors.New("unknown table " + name)
		}
		if !seen[topic] {
			seen[topic] = true
			topics = append(topics, topic)
		}
	}
	if len(topics) == 0 {
		topics = []events.Topic{events.Categories, events.Records, events.Preferences}
	}
	return topics, nil
}

// ServeHTTP upgrades /ws?token=...&tables=... requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessions.Lookup(r.URL.Query().Get("token"))
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	topics, err := ParseTables(r.URL.Query().Get("tables"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("upgrade failed")
		return
	}

	c := &client{
		id:     uuid.NewString(),
		userID: session.User.ID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}

	var unsubscribe []func()
	for _, topic := range topics {
		unsubscribe = append(unsubscribe, h.feed.Subscribe(topic, events.OpAll, c.userID, c.deliver))
	}

	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()
	h.log.WithFields(logrus.Fields{"client": c.id, "user": c.userID, "total": total}).Info("client connected")

	go c.writePump()
	go func() {
		c.readPump()
		for _, stop := range unsubscribe {
			stop()
		}
		h.mu.Lock()
		delete(h.clients, c.id)
		total := len(h.clients)
		h.mu.Unlock()
		h.log.WithFields(logrus.Fields{"client": c.id, "total": total}).Info("client disconnected")
	}()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.close()
	}
}

func (c *client) deliver(change events.Change) {
	payload, err := json.Marshal(Envelope{
		Type:      string(change.Topic) + ".changed",
		Op:        change.Op.String(),
		Timestamp: change.At.Unix(),
	})
	if err != nil {
		return
	}
	select {
	case <-c.done:
	case c.send <- payload:
	default:
		// A client this far behind re-fetches on the next notification anyway.
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Action == "ping" {
			payload, _ := json.Marshal(Envelope{Type: "pong", Timestamp: time.Now().Unix()})
			select {
			case c.send <- payload:
			default:
			}
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// Serve runs the websocket endpoint on addr until ctx is done.
func Serve(ctx context.Context, addr string, hub *Hub) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
