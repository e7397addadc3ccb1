package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: EventReminderCreated, Time: time.Now(), Data: map[string]any{"id": int64(1)}})

	select {
	case e := <-ch:
		if e.Type != EventReminderCreated {
			t.Fatalf("unexpected event type: %s", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: EventReminderDelivered})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()

	b.Publish(Event{Type: EventSweepRecovered})
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("received event after unsubscribe")
		}
	case <-time.After(100 * time.Millisecond):
		// channel may simply stay silent; both outcomes are fine
	}
}
