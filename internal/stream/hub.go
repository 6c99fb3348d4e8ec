// Package stream pushes alert changes to panel clients over websockets.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"fintrack/internal/alerts"
	"fintrack/internal/amqp"
	applog "fintrack/internal/log"
)

const (
	EventSnapshot = "alerts.snapshot"
	EventChanged  = "alerts.changed"
)

// Event is the frame written to every connected client.
type Event struct {
	Type        string        `json:"type"`
	Seq         uint64        `json:"seq"`
	ContentHash string        `json:"contentHash"`
	FetchedAt   time.Time     `json:"fetchedAt"`
	Count       int           `json:"count"`
	Alerts      []alerts.View `json:"alerts"`
}

// NewEvent builds a frame from a poller state.
func NewEvent(eventType string, st alerts.State) Event {
	return Event{
		Type:        eventType,
		Seq:         st.Snapshot.Seq,
		ContentHash: st.Snapshot.ContentHash,
		FetchedAt:   st.Snapshot.FetchedAt,
		Count:       len(st.Snapshot.List),
		Alerts:      alerts.Views(st.Snapshot.List),
	}
}

// EventFromMessage builds a change frame from a broker message. The message
// only carries titles, so the alerts are rebuilt from them.
func EventFromMessage(msg *amqp.AlertsChangedMessage) Event {
	list := make([]alerts.Alert, 0, len(msg.Titles))
	for _, title := range msg.Titles {
		list = append(list, alerts.New(map[string]any{"title": title}))
	}
	return Event{
		Type:        EventChanged,
		Seq:         msg.Seq,
		ContentHash: msg.ContentHash,
		FetchedAt:   msg.FetchedAt,
		Count:       msg.Count,
		Alerts:      alerts.Views(list),
	}
}

// StateSource supplies the snapshot a new client receives on connect.
type StateSource interface {
	State() alerts.State
}

// Config tunes connection limits and keepalive timing.
type Config struct {
	MaxClients int
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
}

// DefaultConfig returns the keepalive timing gorilla's examples use.
func DefaultConfig() Config {
	return Config{
		MaxClients: 32,
		PongWait:   60 * time.Second,
		PingPeriod: 54 * time.Second,
		WriteWait:  10 * time.Second,
	}
}

// Hub tracks connected clients and fans alert events out to them.
// Run owns the client set; everything else talks to it over channels.
type Hub struct {
	config   Config
	source   StateSource
	logger   *applog.Logger
	upgrader websocket.Upgrader

	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	connected atomic.Int64
	sent      atomic.Int64
	dropped   atomic.Int64
}

// NewHub creates a hub. source may be nil, in which case new clients
// wait for the next change.
func NewHub(source StateSource, config Config, logger *applog.Logger) *Hub {
	if logger == nil {
		logger = applog.Discard()
	}
	def := DefaultConfig()
	if config.MaxClients <= 0 {
		config.MaxClients = def.MaxClients
	}
	if config.PongWait <= 0 {
		config.PongWait = def.PongWait
	}
	if config.PingPeriod <= 0 || config.PingPeriod >= config.PongWait {
		config.PingPeriod = config.PongWait * 9 / 10
	}
	if config.WriteWait <= 0 {
		config.WriteWait = def.WriteWait
	}
	return &Hub{
		config: config,
		source: source,
		logger: logger.WithComponent(applog.ComponentStream),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			h.logger.Info("Alert stream stopped",
				"sent", h.sent.Load(), "dropped", h.dropped.Load())
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Debug("Stream client connected", "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.remove(c)
				h.logger.Debug("Stream client disconnected", "clients", len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
					h.sent.Add(1)
				default:
					// Drop clients whose buffer is full.
					h.remove(c)
					h.dropped.Add(1)
				}
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.connected.Add(-1)
}

// Clients returns the number of connected clients, counting those still
// being attached.
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

// PublishAlerts queues a change event. It never blocks the poller; when
// the queue is full the event is dropped and clients catch up on the next
// change.
func (h *Hub) PublishAlerts(st alerts.State) {
	h.publish(NewEvent(EventChanged, st))
}

// HandleAlertsChanged queues a change relayed from the broker. A full queue
// is not a handler failure; requeueing would only replay a stale change.
func (h *Hub) HandleAlertsChanged(msg *amqp.AlertsChangedMessage) error {
	h.publish(EventFromMessage(msg))
	return nil
}

func (h *Hub) publish(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode alert event", applog.FieldError, err.Error())
		return
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.dropped.Add(1)
		h.logger.Warn("Alert stream queue full, event dropped", "seq", ev.Seq)
	}
}

// reserve claims a client slot. The slot is released by remove once the
// client is registered, or by the caller when attaching fails.
func (h *Hub) reserve() bool {
	for {
		n := h.connected.Load()
		if n >= int64(h.config.MaxClients) {
			return false
		}
		if h.connected.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "alert stream stopped", http.StatusServiceUnavailable)
		return
	default:
	}
	if !h.reserve() {
		http.Error(w, "too many stream clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.connected.Add(-1)
		// Upgrade has already written the error response.
		h.logger.Warn("Websocket upgrade failed", applog.FieldError, err.Error())
		return
	}

	c := newClient(h, conn)
	if h.source != nil {
		if st := h.source.State(); st.Snapshot.Seq > 0 {
			if msg, err := json.Marshal(NewEvent(EventSnapshot, st)); err == nil {
				c.send <- msg
			}
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		h.connected.Add(-1)
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}
