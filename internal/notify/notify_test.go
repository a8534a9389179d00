package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestMemoryNotifierDispatch(t *testing.T) {
	n := NewMemoryNotifier()

	var got []Event
	cancel := n.Subscribe(func(ev Event) {
		got = append(got, ev)
	})

	ev := NewEvent(TypeDataChanged, 7)
	if err := n.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got) != 1 || got[0].ID != ev.ID || got[0].Type != TypeDataChanged || got[0].ActorID != 7 {
		t.Fatalf("unexpected events %+v", got)
	}

	cancel()
	if err := n.Publish(context.Background(), NewEvent(TypeLogout, 7)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("cancelled subscriber still received events")
	}
}

func TestNewEventIDsAreUnique(t *testing.T) {
	a := NewEvent(TypeDataChanged, 1)
	b := NewEvent(TypeDataChanged, 1)
	if a.ID == b.ID {
		t.Errorf("event ids must differ")
	}
	if a.ID == "" {
		t.Errorf("event id must not be empty")
	}
}

func recvMsg(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case msg, ok := <-client.Receive():
		if !ok {
			t.Fatal("client channel closed")
		}
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("bad event payload: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	first := hub.Register()
	second := hub.Register()

	sent := NewEvent(TypeDataChanged, 42)
	hub.Broadcast(sent)

	for _, client := range []*Client{first, second} {
		got := recvMsg(t, client)
		if got.ID != sent.ID || got.ActorID != 42 {
			t.Errorf("client got %+v, want %+v", got, sent)
		}
	}
}

func TestHubUnregisterClosesClient(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := hub.Register()
	hub.Unregister(client)

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-client.Receive():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("client channel was not closed")
		}
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := hub.Register()
	// Never read: once the send buffer is full the hub must disconnect the
	// client instead of blocking the loop.
	for i := 0; i < 64; i++ {
		hub.Broadcast(NewEvent(TypeDataChanged, uint(i)))
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-client.Receive():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("slow client was never dropped")
		}
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := hub.Register()
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-client.Receive():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("client channel was not closed on shutdown")
		}
	}
}
