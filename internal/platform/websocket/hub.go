// Package websocket pushes handoff events to connected physios. Each
// physio connection is bound to that physio's own topic; clients cannot
// subscribe to anyone else's.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Client is one open connection. Send is closed by Unregister.
type Client struct {
	ID    string
	Topic string
	Send  chan []byte
}

type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]struct{}
	logger zerolog.Logger
	now    func() time.Time
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*Client]struct{}),
		logger: logger,
		now:    time.Now,
	}
}

func PhysioTopic(id uuid.UUID) string {
	return "physio:" + id.String()
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[c.Topic] == nil {
		h.topics[c.Topic] = make(map[*Client]struct{})
	}
	h.topics[c.Topic][c] = struct{}{}
}

// Unregister is safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[c.Topic]
	if !ok {
		return
	}
	if _, ok := subs[c]; !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.topics, c.Topic)
	}
	close(c.Send)
}

// Broadcast queues ev for every client on topic. Clients whose buffer is
// full miss the event.
func (h *Hub) Broadcast(topic string, ev Event) {
	ev.Topic = topic
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("type", ev.Type).Msg("marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.topics[topic] {
		select {
		case c.Send <- data:
		default:
			h.logger.Warn().Str("client_id", c.ID).Str("topic", topic).Msg("client buffer full, event dropped")
		}
	}
}

// NotifyPhysios sends one event of kind to each physio's topic.
func (h *Hub) NotifyPhysios(_ context.Context, physioIDs []uuid.UUID, kind string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("type", kind).Msg("marshal event payload")
		return
	}
	seen := make(map[uuid.UUID]bool, len(physioIDs))
	for _, id := range physioIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		h.Broadcast(PhysioTopic(id), Event{Type: kind, Timestamp: h.now().UTC(), Data: data})
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.topics {
		n += len(subs)
	}
	return n
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
