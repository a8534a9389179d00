package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/triarqhealth/iam-portal/params"
)

const broadcastBuffer = 256

// Client is one connected event-stream consumer. Receive yields encoded
// events until the hub drops the client or shuts down.
type Client struct {
	send chan []byte
}

func (c *Client) Receive() <-chan []byte {
	return c.send
}

// Hub fans incoming events out to the connected event-stream clients. All
// client map mutations happen exclusively in the Run goroutine. Delivery is
// best effort: a client that cannot keep up is disconnected rather than
// blocking the loop.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
	}
}

// Run starts the hub event loop. It should be run as a goroutine and exits
// when the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			slog.Debug("Stream client connected", "total", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			slog.Debug("Stream client disconnected", "total", len(h.clients))

		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow consumer; drop it and let it reconnect.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Register attaches a new client to the hub.
func (h *Hub) Register() *Client {
	client := &Client{send: make(chan []byte, params.StreamSendBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
	return client
}

// Unregister detaches a client and closes its receive channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues an event for delivery to every connected client. Intended
// to be wired as a Notifier subscription handler; never blocks.
func (h *Hub) Broadcast(event Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		slog.Warn("Failed to encode stream event", "error", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		slog.Warn("Stream broadcast buffer full, dropping event", "type", event.Type)
	}
}
