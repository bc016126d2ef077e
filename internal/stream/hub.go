// Package stream fans generation progress events out to websocket listeners.
// Events travel through redis pub/sub so any instance can serve the socket
// for a request generated elsewhere.
package stream

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/einarnot/runningroute/internal/route"

	"github.com/redis/go-redis/v9"
)

type Hub struct {
	redis     *redis.Client
	listeners map[string]map[*Listener]struct{}
	mu        sync.RWMutex
}

// Listener receives the event stream for one generation request.
type Listener struct {
	RequestID string
	Events    chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:     redisClient,
		listeners: map[string]map[*Listener]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

// Publish sends a progress event to every listener on the request, locally
// and through redis for listeners attached to other instances. Slow
// listeners drop events rather than block the pipeline.
func (h *Hub) Publish(ctx context.Context, requestID string, event route.ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal progress event: %v", err)
		return
	}

	h.deliver(requestID, payload)

	if h.redis != nil {
		if err := h.redis.Publish(ctx, progressChannel(requestID), payload).Err(); err != nil {
			log.Printf("redis publish error: %v", err)
		}
	}
}

func (h *Hub) Listen(requestID string) *Listener {
	listener := &Listener{
		RequestID: requestID,
		Events:    make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listeners[requestID] == nil {
		h.listeners[requestID] = map[*Listener]struct{}{}
	}
	h.listeners[requestID][listener] = struct{}{}
	return listener
}

func (h *Hub) Drop(listener *Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if requestListeners, ok := h.listeners[listener.RequestID]; ok {
		delete(requestListeners, listener)
		if len(requestListeners) == 0 {
			delete(h.listeners, listener.RequestID)
		}
	}
	close(listener.Events)
}

func (h *Hub) deliver(requestID string, payload []byte) {
	h.mu.RLock()
	listeners := h.listeners[requestID]
	h.mu.RUnlock()

	for listener := range listeners {
		select {
		case listener.Events <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "routes:*:progress")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.deliver(requestIDFromChannel(msg.Channel), []byte(msg.Payload))
	}
}

func progressChannel(requestID string) string {
	return "routes:" + requestID + ":progress"
}

func requestIDFromChannel(ch string) string {
	// routes:{request}:progress
	const prefix = "routes:"
	const suffix = ":progress"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
