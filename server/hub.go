package server

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// broadcastBuffer bounds how many snapshots may wait for the hub; beyond it
// snapshots are dropped, since the next one supersedes them anyway.
const broadcastBuffer = 16

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans snapshot payloads out to every registered subscriber.
type Hub struct {
	mu        sync.RWMutex
	clients   map[Subscriber]struct{}
	register  chan Subscriber
	unreg     chan Subscriber
	broadcast chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates a Hub and starts its dispatch loop.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[Subscriber]struct{}),
		register:  make(chan Subscriber),
		unreg:     make(chan Subscriber),
		broadcast: make(chan []byte, broadcastBuffer),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unreg:
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
		case payload := <-h.broadcast:
			h.fanOut(payload)
		}
	}
}

// fanOut sends payload to every client concurrently and without h.mu held,
// then drops the clients whose send failed. Only run mutates h.clients, so
// the copy taken here stays accurate until fanOut returns.
func (h *Hub) fanOut(payload []byte) {
	h.mu.RLock()
	clients := make([]Subscriber, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	failed := make([]bool, len(clients))
	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c Subscriber) {
			defer wg.Done()
			failed[i] = c.Send(payload) != nil
		}(i, c)
	}
	wg.Wait()

	h.mu.Lock()
	for i, c := range clients {
		if failed[i] {
			c.Close()
			delete(h.clients, c)
		}
	}
	h.mu.Unlock()
}

// Register adds a subscriber. It is a no-op once the hub is closed.
func (h *Hub) Register(client Subscriber) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a subscriber.
func (h *Hub) Unregister(client Subscriber) {
	select {
	case h.unreg <- client:
	case <-h.done:
	}
}

// Broadcast queues payload for every subscriber without blocking.
func (h *Hub) Broadcast(payload []byte) {
	select {
	case <-h.done:
	case h.broadcast <- payload:
	default:
		logrus.Debug("hub backlog full; snapshot dropped")
	}
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and stops the dispatch loop.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
