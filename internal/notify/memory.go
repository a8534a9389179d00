package notify

import (
	"context"
	"sync"
)

// MemoryNotifier dispatches events in-process. It serves single-instance
// deployments without redis and the test suites.
type MemoryNotifier struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]Handler
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{handlers: make(map[int]Handler)}
}

func (n *MemoryNotifier) Publish(ctx context.Context, event Event) error {
	n.mu.Lock()
	handlers := make([]Handler, 0, len(n.handlers))
	for _, h := range n.handlers {
		handlers = append(handlers, h)
	}
	n.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
	return nil
}

func (n *MemoryNotifier) Subscribe(handler Handler) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.handlers[id] = handler
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.handlers, id)
	}
}
