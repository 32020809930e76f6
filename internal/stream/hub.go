package stream

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Hub fans sync events out to websocket clients watching a device.
// Redis pub/sub carries events across instances so a client connected
// to one replica still sees trips synced by another.
type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	DeviceID string
	Send     chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(deviceID string) *Client {
	client := &Client{
		DeviceID: deviceID,
		Send:     make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[deviceID] == nil {
		h.clients[deviceID] = map[*Client]struct{}{}
	}
	h.clients[deviceID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if deviceClients, ok := h.clients[client.DeviceID]; ok {
		delete(deviceClients, client)
		if len(deviceClients) == 0 {
			delete(h.clients, client.DeviceID)
		}
	}
	close(client.Send)
}

func (h *Hub) Broadcast(deviceID string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[deviceID]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}

	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(deviceID), payload).Err()
		if err != nil {
			log.Printf("redis publish error: %v", err)
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.Subscribe(ctx, "devices:*:sync")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		deviceID := deviceIDFromChannel(msg.Channel)
		h.mu.RLock()
		clients := h.clients[deviceID]
		h.mu.RUnlock()
		for client := range clients {
			select {
			case client.Send <- []byte(msg.Payload):
			default:
			}
		}
	}
}

func redisChannel(deviceID string) string {
	return "devices:" + deviceID + ":sync"
}

func deviceIDFromChannel(ch string) string {
	// devices:{device}:sync
	const prefix = "devices:"
	const suffix = ":sync"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
