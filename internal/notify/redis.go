package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier broadcasts events over a redis pub/sub channel so that every
// portal instance sees mutations made through any of them. Redis pub/sub is
// fire-and-forget, which matches the at-most-once contract exactly.
type RedisNotifier struct {
	rdb     redis.UniversalClient
	channel string

	mu       sync.Mutex
	nextID   int
	handlers map[int]Handler
	sub      *redis.PubSub
	done     chan struct{}
}

func NewRedisNotifier(rdb redis.UniversalClient, channel string) *RedisNotifier {
	return &RedisNotifier{
		rdb:      rdb,
		channel:  channel,
		handlers: make(map[int]Handler),
	}
}

func (n *RedisNotifier) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, n.channel, payload).Err()
}

// Subscribe registers a handler and lazily opens the redis subscription on
// first use. The returned cancel removes the handler; the subscription itself
// stays open for the life of the process.
func (n *RedisNotifier) Subscribe(handler Handler) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.sub == nil {
		n.sub = n.rdb.Subscribe(context.Background(), n.channel)
		n.done = make(chan struct{})
		go n.receiveLoop(n.sub.Channel(), n.done)
	}

	id := n.nextID
	n.nextID++
	n.handlers[id] = handler
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.handlers, id)
	}
}

// Close tears down the redis subscription and stops the receive loop. The
// wait for the loop to drain happens outside the mutex: the loop may be in
// the middle of a dispatch, which needs the lock to snapshot handlers.
func (n *RedisNotifier) Close() error {
	n.mu.Lock()
	sub, done := n.sub, n.done
	n.sub = nil
	n.mu.Unlock()

	if sub == nil {
		return nil
	}
	err := sub.Close()
	<-done
	return err
}

func (n *RedisNotifier) receiveLoop(msgs <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for msg := range msgs {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			slog.Warn("Dropping malformed notification", "channel", n.channel, "error", err)
			continue
		}
		n.dispatch(event)
	}
}

func (n *RedisNotifier) dispatch(event Event) {
	n.mu.Lock()
	handlers := make([]Handler, 0, len(n.handlers))
	for _, h := range n.handlers {
		handlers = append(handlers, h)
	}
	n.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}
