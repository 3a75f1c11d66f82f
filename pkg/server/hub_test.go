package server

import (
	"testing"
	"time"
)

func TestHubBroadcastFanOut(t *testing.T) {
	hub := NewHub(4)
	idA, chA := hub.Register()
	idB, chB := hub.Register()
	defer hub.Unregister(idA)
	defer hub.Unregister(idB)

	if hub.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", hub.Size())
	}

	hub.Broadcast(StateEvent{Query: "q", Count: 1})

	for name, ch := range map[string]<-chan StateEvent{"a": chA, "b": chB} {
		select {
		case event := <-ch:
			if event.Query != "q" {
				t.Errorf("listener %s got %+v", name, event)
			}
		case <-time.After(time.Second):
			t.Fatalf("listener %s never received the event", name)
		}
	}
}

func TestHubUnregisterClosesChannel(t *testing.T) {
	hub := NewHub(1)
	id, ch := hub.Register()

	hub.Unregister(id)
	hub.Unregister(id)

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unregister")
	}
	if hub.Size() != 0 {
		t.Errorf("Size() = %d, want 0", hub.Size())
	}
}

func TestHubDropsForSlowListeners(t *testing.T) {
	hub := NewHub(1)
	id, ch := hub.Register()
	defer hub.Unregister(id)

	// Nobody drains, so only the first event fits. The extra broadcasts
	// must not block.
	hub.Broadcast(StateEvent{Count: 1})
	hub.Broadcast(StateEvent{Count: 2})
	hub.Broadcast(StateEvent{Count: 3})

	event := <-ch
	if event.Count != 1 {
		t.Errorf("buffered event Count = %d, want the first broadcast", event.Count)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected extra event %+v", extra)
	default:
	}
}
