package store

import (
	"testing"
	"time"
)

func TestBusDeliversToTopicSubscribers(t *testing.T) {
	b := NewBus(nil)
	defer b.Teardown()

	sub := b.Subscribe(TopicAssignmentsChanged)
	other := b.Subscribe(TopicProjectsChanged)

	b.Publish(TopicAssignmentsChanged, "p1")

	select {
	case event := <-sub.Events:
		if event.Topic != TopicAssignmentsChanged || event.ProjectID != "p1" {
			t.Fatalf("wrong event: %+v", event)
		}
		if event.ID == "" {
			t.Fatalf("event missing id")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber never received the event")
	}

	select {
	case event := <-other.Events:
		t.Fatalf("wrong topic delivered: %+v", event)
	default:
	}
}

func TestBusTopicNamesAreNormalized(t *testing.T) {
	b := NewBus(nil)
	defer b.Teardown()

	sub := b.Subscribe(Topic("  Assignments_Changed "))
	b.Publish(TopicAssignmentsChanged, "p1")

	select {
	case <-sub.Events:
	case <-time.After(time.Second):
		t.Fatalf("normalized subscription missed the event")
	}
}

func TestBusSlowSubscriberDropsOldest(t *testing.T) {
	b := NewBus(nil)
	defer b.Teardown()

	sub := b.Subscribe(TopicAssignmentsChanged)
	total := busChannelSize + 4
	for i := 0; i < total; i++ {
		b.Publish(TopicAssignmentsChanged, "p1")
	}

	// The buffer holds the newest busChannelSize events; the overflow was
	// dropped from the front, never blocking the publisher.
	received := 0
	for {
		select {
		case <-sub.Events:
			received++
		default:
			if received != busChannelSize {
				t.Fatalf("expected %d buffered events, got %d", busChannelSize, received)
			}
			return
		}
	}
}

func TestBusCloseStopsDelivery(t *testing.T) {
	b := NewBus(nil)
	sub := b.Subscribe(TopicAssignmentsChanged)
	sub.Close()
	b.Publish(TopicAssignmentsChanged, "p1")

	if _, ok := <-sub.Events; ok {
		t.Fatalf("closed subscription received an event")
	}
	b.Teardown()
}

func TestBusTeardownClosesSubscribers(t *testing.T) {
	b := NewBus(nil)
	sub := b.Subscribe(TopicProjectsChanged)
	b.Teardown()

	if _, ok := <-sub.Events; ok {
		t.Fatalf("expected closed channel after teardown")
	}
	// Publishing after teardown is a no-op, not a panic.
	b.Publish(TopicProjectsChanged, "p1")
}
