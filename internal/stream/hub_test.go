package stream

import (
	"testing"

	"github.com/sightgrid/sightgrid/internal/model"
)

func TestHub_PublishToSubscriber(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("org-1")
	defer cancel()

	hub.Publish(model.Event{ID: "evt-1", OrgID: "org-1"})

	select {
	case ev := <-ch:
		if ev.ID != "evt-1" {
			t.Errorf("got event %q, want evt-1", ev.ID)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestHub_OrgPartitioning(t *testing.T) {
	hub := NewHub()
	ch1, cancel1 := hub.Subscribe("org-1")
	defer cancel1()
	ch2, cancel2 := hub.Subscribe("org-2")
	defer cancel2()

	hub.Publish(model.Event{ID: "evt-1", OrgID: "org-1"})

	if len(ch1) != 1 {
		t.Errorf("org-1 buffer = %d, want 1", len(ch1))
	}
	if len(ch2) != 0 {
		t.Errorf("org-2 buffer = %d, want 0", len(ch2))
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("org-1")

	cancel()
	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}
	if n := hub.Subscribers("org-1"); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}

	// Cancel is idempotent.
	cancel()

	// Publishing after cancel is a no-op, not a panic.
	hub.Publish(model.Event{ID: "evt-1", OrgID: "org-1"})
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("org-1")
	defer cancel()

	// Fill the buffer without draining, then publish once more.
	for i := 0; i <= subscriberBuffer; i++ {
		hub.Publish(model.Event{ID: "evt", OrgID: "org-1"})
	}

	if n := hub.Subscribers("org-1"); n != 0 {
		t.Errorf("subscribers = %d, want 0 after overflow", n)
	}

	// The dropped subscriber's channel is closed once drained.
	for i := 0; i < subscriberBuffer; i++ {
		if _, open := <-ch; !open {
			t.Fatalf("channel closed early at %d buffered events", i)
		}
	}
	if _, open := <-ch; open {
		t.Error("channel not closed after drop")
	}
}

func TestHub_MultipleSubscribersSameOrg(t *testing.T) {
	hub := NewHub()
	ch1, cancel1 := hub.Subscribe("org-1")
	defer cancel1()
	ch2, cancel2 := hub.Subscribe("org-1")
	defer cancel2()

	hub.Publish(model.Event{ID: "evt-1", OrgID: "org-1"})

	if len(ch1) != 1 || len(ch2) != 1 {
		t.Errorf("buffers = %d, %d; want 1, 1", len(ch1), len(ch2))
	}
}
