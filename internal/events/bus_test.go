package events

import "testing"

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventTradeClosed, 2)
	defer unsub()

	bus.Publish(EventTradeClosed, "payload")
	select {
	case got := <-ch:
		if got != "payload" {
			t.Fatalf("got %v", got)
		}
	default:
		t.Fatal("expected payload")
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventOrderFill, 1)
	defer unsub()

	bus.Publish(EventOrderFill, 1)
	bus.Publish(EventOrderFill, 2) // dropped, buffer full

	if got := <-ch; got != 1 {
		t.Fatalf("got %v", got)
	}
	select {
	case got := <-ch:
		t.Fatalf("expected drop, got %v", got)
	default:
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventRiskBlocked, 1)
	unsub()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	// Publishing after unsubscribe must not panic.
	bus.Publish(EventRiskBlocked, "x")
}

func TestBusIsolatesTopics(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventPositionChange, 1)
	defer unsub()

	bus.Publish(EventTradeClosed, "other topic")
	select {
	case got := <-ch:
		t.Fatalf("leaked across topics: %v", got)
	default:
	}
}
