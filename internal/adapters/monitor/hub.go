package monitor

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ghalamif/VitalFlow/internal/adapters/queue"
	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

const (
	writeWait       = 2 * time.Second
	DefaultBacklog  = 256
	maxEventsPerRun = 32
)

// Event is pushed to every websocket client after a reading was sent.
type Event struct {
	Reading        domain.Reading `json:"reading"`
	LatencySeconds float64        `json:"latency_seconds"`
}

// Hub fans sent readings out to websocket clients. OnReading only buffers;
// Run does the writes so a slow client never stalls the send loop. Events
// arriving while the buffer is full are dropped. Clients are dropped on the
// first failed write. Writes happen outside mu; only the Run goroutine
// writes data frames.
type Hub struct {
	upgrader websocket.Upgrader
	obs      ports.Observability
	events   ports.Queue[Event]
	wake     chan struct{}
	count    atomic.Int32

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub(obs ports.Observability, backlog int) *Hub {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		obs:     obs,
		events:  queue.NewMemQueue[Event](backlog),
		wake:    make(chan struct{}, 1),
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Clients() int { return int(h.count.Load()) }

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; !ok {
		h.clients[conn] = struct{}{}
		h.count.Add(1)
	}
}

// remove reports whether conn was still registered.
func (h *Hub) remove(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; !ok {
		return false
	}
	delete(h.clients, conn)
	h.count.Add(-1)
	return true
}

func (h *Hub) snapshot() []*websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	return conns
}

func (h *Hub) OnReading(r domain.Reading, latency time.Duration) {
	if h.Clients() == 0 {
		return
	}
	if !h.events.Enqueue(Event{Reading: r, LatencySeconds: latency.Seconds()}) {
		h.obs.IncCounter("vitalflow_ws_events_dropped_total", r.SensorName, 1)
		h.obs.LogError("ws_backlog_full", fmt.Errorf("dropped %s reading", r.SensorName))
		return
	}
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Run delivers buffered events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.wake:
		}
		for {
			batch := h.events.DequeueBatch(maxEventsPerRun)
			if len(batch) == 0 {
				break
			}
			h.broadcast(batch)
		}
	}
}

func (h *Hub) broadcast(batch []Event) {
	for _, conn := range h.snapshot() {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		for _, ev := range batch {
			if err := conn.WriteJSON(ev); err != nil {
				h.obs.LogError("ws_write", err)
				if h.remove(conn) {
					_ = conn.Close()
				}
				break
			}
		}
	}
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.obs.LogError("ws_upgrade", err)
		return
	}

	h.add(conn)
	defer func() {
		h.remove(conn)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) closeAll() {
	for _, conn := range h.snapshot() {
		if !h.remove(conn) {
			continue
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "simulation ended"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
}

var _ ports.ReadingListener = (*Hub)(nil)
