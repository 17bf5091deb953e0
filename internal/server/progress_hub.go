package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// ProgressEvent is one data-load progress update pushed to websocket clients.
type ProgressEvent struct {
	Ticker    string    `json:"ticker"`
	Index     int       `json:"index"`
	Total     int       `json:"total"`
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressHub fans data-load progress out to connected websocket clients.
// Slow clients drop events rather than stalling the fetch loop.
type ProgressHub struct {
	log     zerolog.Logger
	mu      sync.Mutex
	clients map[chan ProgressEvent]struct{}
	closed  bool
}

// NewProgressHub creates an empty hub.
func NewProgressHub(log zerolog.Logger) *ProgressHub {
	return &ProgressHub{
		log:     log.With().Str("component", "progress_hub").Logger(),
		clients: make(map[chan ProgressEvent]struct{}),
	}
}

// Broadcast pushes an event to every connected client without blocking.
func (h *ProgressHub) Broadcast(ev ProgressEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

// OnProgress adapts the hub to the gateway's progress callback.
func (h *ProgressHub) OnProgress(ticker string, index, total int, ok bool) {
	h.Broadcast(ProgressEvent{Ticker: ticker, Index: index, Total: total, OK: ok})
}

func (h *ProgressHub) register() (chan ProgressEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan ProgressEvent, 64)
	h.clients[ch] = struct{}{}
	return ch, true
}

func (h *ProgressHub) unregister(ch chan ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, ch)
}

// Close disconnects all clients.
func (h *ProgressHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.clients {
		close(ch)
		delete(h.clients, ch)
	}
}

// ClientCount reports the number of connected clients.
func (h *ProgressHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the connection and streams progress events until
// the client disconnects.
// GET /ws/progress
func (h *ProgressHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "hub shutting down")

	ch, ok := h.register()
	if !ok {
		conn.Close(websocket.StatusGoingAway, "hub closed")
		return
	}
	defer h.unregister(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, open := <-ch:
			if !open {
				conn.Close(websocket.StatusGoingAway, "hub closed")
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
