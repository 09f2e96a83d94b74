package events

import (
	"errors"
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventJobStatus)

	bus.PublishJobStatus("sim_123", "Bracket Test", "queued", "processing")

	select {
	case received := <-ch:
		status, ok := received.(*JobStatusEvent)
		if !ok {
			t.Fatal("Expected JobStatusEvent")
		}
		if status.JobID != "sim_123" {
			t.Errorf("Expected job id 'sim_123', got '%s'", status.JobID)
		}
		if status.NewStatus != "processing" {
			t.Errorf("Expected new status 'processing', got '%s'", status.NewStatus)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch1 := bus.Subscribe(EventSessionChanged)
	ch2 := bus.Subscribe(EventSessionChanged)

	bus.PublishSessionChanged("u1", "a@x.com", "login")

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d did not receive the event", i+1)
		}
	}
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	anomalyCh := bus.Subscribe(EventJobAnomaly)
	sessionCh := bus.Subscribe(EventSessionChanged)

	bus.PublishJobAnomaly("sim_1", "completed", "queued", "transition outside lifecycle")

	select {
	case <-anomalyCh:
	case <-time.After(100 * time.Millisecond):
		t.Error("Anomaly subscriber didn't receive event")
	}

	select {
	case <-sessionCh:
		t.Error("Session subscriber received wrong event type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	allCh := bus.SubscribeAll()

	bus.PublishSubmitDiscarded("sim_9", "wizard moved on")
	bus.PublishError("watcher", "sim_9", errors.New("boom"))

	count := 0
	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
			count++
		case <-time.After(100 * time.Millisecond):
		}
	}

	if count != 2 {
		t.Errorf("Expected to receive 2 events, got %d", count)
	}
}

func TestEventBus_NonBlocking(t *testing.T) {
	bus := NewEventBus(2)
	defer bus.Close()

	ch := bus.Subscribe(EventJobStatus)

	// Excess events are dropped rather than blocking the publisher
	for i := 0; i < 10; i++ {
		bus.PublishJobStatus("sim_1", "x", "queued", "processing")
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		case <-time.After(10 * time.Millisecond):
			goto done
		}
	}
done:

	if count != 2 {
		t.Errorf("Expected 2 buffered events, got %d", count)
	}
	if dropped := bus.GetDroppedEventCount(); dropped != 8 {
		t.Errorf("Expected 8 dropped events, got %d", dropped)
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventJobStatus)
	bus.Unsubscribe(EventJobStatus, ch)
	bus.PublishJobStatus("sim_1", "x", "queued", "processing")

	select {
	case <-ch:
		t.Error("unsubscribed channel should not receive events")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestEventBus_UnsubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	all := bus.SubscribeAll()
	typed := bus.Subscribe(EventJobAnomaly)
	bus.UnsubscribeAll(all)
	bus.PublishJobAnomaly("sim_1", "completed", "queued", "status moved backwards")

	select {
	case <-all:
		t.Error("unsubscribed channel should not receive events")
	case <-time.After(20 * time.Millisecond):
	}
	select {
	case ev := <-typed:
		if ev.Type() != EventJobAnomaly {
			t.Errorf("got %s", ev.Type())
		}
	case <-time.After(time.Second):
		t.Error("remaining subscriber missed the event")
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventJobStatus)

	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("Channel should be closed after bus.Close()")
	}

	// Publishing after close should not panic
	bus.PublishJobStatus("sim_1", "x", "queued", "processing")
}

func TestNilEventBusIsNoop(t *testing.T) {
	var bus *EventBus
	bus.PublishSessionChanged("", "", "logout")
	bus.Close()
}
