// Package notify carries the best-effort "data changed" signal between
// connected portal sessions. Delivery is at-most-once with no ordering or
// durability guarantee; a missed event is recovered by the next full reload.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types. DATA_CHANGED tells other sessions to invalidate and refetch;
// LOGOUT tells a user's other sessions to drop their state.
const (
	TypeDataChanged = "DATA_CHANGED"
	TypeLogout      = "LOGOUT"
)

// Event is one broadcast message. The ID lets clients drop duplicates when a
// broadcast reaches them through more than one path.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	ActorID uint      `json:"actorId,omitempty"`
	At      time.Time `json:"at"`
}

func NewEvent(eventType string, actorID uint) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		ActorID: actorID,
		At:      time.Now(),
	}
}

// Handler receives events on the subscriber's goroutine. Handlers must not
// block.
type Handler func(Event)

// Notifier is the publish/subscribe channel between sessions. Publish is best
// effort: an error means the signal may not have reached anyone, never that
// the caller's primary operation failed.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(handler Handler) (cancel func())
}
