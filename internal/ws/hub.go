package ws

import (
	"encoding/json"
	"sync"
)

// Client is one WebSocket connection watching a single topic (a CheckoutRequestID).
type Client struct {
	Topic  string
	Send   chan []byte
	hub    *Hub
	mu     sync.Mutex
	closed bool
}

func NewClient(topic string) *Client {
	return &Client{Topic: topic, Send: make(chan []byte, 16)}
}

// deliver queues data without blocking. A full or closed client drops it.
func (c *Client) deliver(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.Send)
	hub := c.hub
	c.mu.Unlock()
	if hub != nil {
		hub.unregister(c)
	}
}

// Hub fans messages out to the clients of each topic.
type Hub struct {
	mu      sync.RWMutex
	byTopic map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{byTopic: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hub = h
	if h.byTopic[c.Topic] == nil {
		h.byTopic[c.Topic] = make(map[*Client]struct{})
	}
	h.byTopic[c.Topic][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.byTopic[c.Topic]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byTopic, c.Topic)
		}
	}
}

func (h *Hub) clients(topic string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m := h.byTopic[topic]
	out := make([]*Client, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	return out
}

// Publish sends payload to every client of topic. With last set the clients are
// closed afterwards.
func (h *Hub) Publish(topic string, payload any, last bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	for _, c := range h.clients(topic) {
		c.deliver(data)
		if last {
			c.Close()
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, m := range h.byTopic {
		n += len(m)
	}
	return n
}
