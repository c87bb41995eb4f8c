package events

import (
	"testing"
	"time"
)

func TestBrokerDeliversToAllSubscribers(t *testing.T) {
	broker := NewBroker(4)

	_, first := broker.Subscribe()
	_, second := broker.Subscribe()

	broker.Publish(Event{Kind: KindSessionStarted})

	for _, ch := range []<-chan Event{first, second} {
		select {
		case evt := <-ch:
			if evt.Kind != KindSessionStarted {
				t.Fatalf("expected session_started, got %s", evt.Kind)
			}
			if evt.Timestamp.IsZero() {
				t.Fatal("expected timestamp to be stamped")
			}
		case <-time.After(time.Second):
			t.Fatal("expected event delivery")
		}
	}
}

func TestBrokerDropsWhenSubscriberBufferFull(t *testing.T) {
	broker := NewBroker(1)
	_, ch := broker.Subscribe()

	broker.Publish(Event{Kind: KindStepStarted})
	broker.Publish(Event{Kind: KindStepCompleted})

	if got := broker.Dropped(); got != 1 {
		t.Fatalf("expected 1 dropped event, got %d", got)
	}

	evt := <-ch
	if evt.Kind != KindStepStarted {
		t.Fatalf("expected first event retained, got %s", evt.Kind)
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	broker := NewBroker(1)
	subscriberID, ch := broker.Subscribe()

	if broker.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", broker.SubscriberCount())
	}

	broker.Unsubscribe(subscriberID)
	if broker.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", broker.SubscriberCount())
	}

	if _, open := <-ch; open {
		t.Fatal("expected channel closed after unsubscribe")
	}

	// Publishing after the last unsubscribe must not panic.
	broker.Publish(Event{Kind: KindRoundCompleted})
}
