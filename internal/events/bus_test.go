package events

import "testing"

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()
	ch1, cancel1 := bus.Subscribe()
	ch2, cancel2 := bus.Subscribe()
	defer cancel1()
	defer cancel2()

	bus.Publish(Event{Type: TaskAdded, ChatID: 10, TaskID: 7})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Type != TaskAdded || evt.TaskID != 7 {
				t.Fatalf("subscriber %d got %+v", i, evt)
			}
			if evt.At.IsZero() {
				t.Fatalf("subscriber %d got zero timestamp", i)
			}
		default:
			t.Fatalf("subscriber %d got nothing", i)
		}
	}
}

func TestCancelClosesChannelAndStopsDelivery(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()

	cancel()
	cancel() // idempotent

	if _, open := <-ch; open {
		t.Fatalf("channel still open after cancel")
	}
	bus.Publish(Event{Type: TaskClosed})
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	for i := 0; i < 70; i++ {
		bus.Publish(Event{Type: TaskAdded, TaskID: int64(i)})
	}

	// The buffer holds the first 64; the rest were dropped and Publish
	// never blocked.
	if got := len(ch); got != 64 {
		t.Fatalf("buffered events = %d, want 64", got)
	}
	if evt := <-ch; evt.TaskID != 0 {
		t.Fatalf("first buffered event = %+v, want TaskID 0", evt)
	}
}
