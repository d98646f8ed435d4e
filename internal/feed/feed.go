// Package feed pushes engine events to websocket subscribers.
package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rbright/streamctl/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only send control frames.
	maxMessageSize = 512

	sendBuffer = 32
)

// Frame types.
const (
	TypeCycle = "cycle"
	TypeHalt  = "halt"
)

// Frame is one JSON message delivered to every subscriber.
type Frame struct {
	Type    string          `json:"type"`
	RunID   string          `json:"run_id"`
	Seq     uint64          `json:"seq"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans frames out to subscribers. Slow subscribers are dropped rather than
// allowed to block Publish.
type Hub struct {
	runID    string
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	seq    uint64
	last   []byte
	closed bool
}

func NewHub(runID string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		runID:  runID,
		logger: logger.With("component", "feed"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// Publish encodes payload into a frame and queues it for every subscriber. The
// latest frame is replayed to subscribers that join later.
func (h *Hub) Publish(frameType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", frameType, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	h.seq++
	data, err := json.Marshal(Frame{
		Type:    frameType,
		RunID:   h.runID,
		Seq:     h.seq,
		Time:    time.Now().UTC(),
		Payload: body,
	})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	h.last = data

	for sub := range h.subs {
		select {
		case sub.send <- data:
		default:
			h.logger.Warn("dropping slow feed subscriber", "remote", sub.conn.RemoteAddr().String())
			h.removeLocked(sub)
		}
	}
	return nil
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request and streams frames until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("feed upgrade failed", "error", err.Error())
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.subs[sub] = struct{}{}
	if h.last != nil {
		sub.send <- h.last
	}
	h.mu.Unlock()

	h.logger.Debug("feed subscriber connected", "remote", conn.RemoteAddr().String())
	go h.writePump(sub)
	h.readPump(sub)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		h.removeLocked(sub)
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *subscriber) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.send)
}

func (h *Hub) readPump(sub *subscriber) {
	defer func() {
		h.remove(sub)
		_ = sub.conn.Close()
	}()

	sub.conn.SetReadLimit(maxMessageSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("feed read error", "error", err.Error())
			}
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case data, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Handler returns a mux serving the hub at /events.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/events", h)
	return mux
}
