package eventbus

import "testing"

func TestBus_BroadcastDeliversToSubscriber(t *testing.T) {
	b := New()
	sub := b.Subscribe("exec-1")
	b.Broadcast(Event{Type: EventPhaseStart, ExecutionID: "exec-1", Data: map[string]any{"phase_id": "a"}})

	select {
	case ev := <-sub.Events():
		if ev.Type != EventPhaseStart {
			t.Fatalf("got type %q", ev.Type)
		}
	default:
		t.Fatal("expected event to be delivered")
	}
}

func TestBus_BroadcastIgnoresOtherExecutions(t *testing.T) {
	b := New()
	sub := b.Subscribe("exec-1")
	b.Broadcast(Event{Type: EventPhaseStart, ExecutionID: "exec-2"})
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event delivered: %+v", ev)
	default:
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	sub := b.Subscribe("exec-1")
	b.Unsubscribe(sub)
	if b.HasSubscribers("exec-1") {
		t.Fatalf("expected no subscribers after unsubscribe")
	}
	b.Broadcast(Event{Type: EventPhaseStart, ExecutionID: "exec-1"})
	if _, ok := <-sub.Events(); ok {
		t.Fatalf("expected closed channel to yield zero value and ok=false")
	}
}

func TestBus_FullBufferDropsWithoutBlocking(t *testing.T) {
	b := New()
	sub := b.Subscribe("exec-1")
	for i := 0; i < subscriberQueueSize+10; i++ {
		b.Broadcast(Event{Type: EventPhaseOutput, ExecutionID: "exec-1"})
	}
	drained := 0
	for {
		select {
		case <-sub.Events():
			drained++
			continue
		default:
		}
		break
	}
	if drained != subscriberQueueSize {
		t.Fatalf("drained %d events, want %d (buffer cap)", drained, subscriberQueueSize)
	}
}

func TestBus_FIFOOrderingPerExecution(t *testing.T) {
	b := New()
	sub := b.Subscribe("exec-1")
	types := []EventType{EventPhaseStart, EventPhaseOutput, EventPhaseComplete}
	for _, ty := range types {
		b.Broadcast(Event{Type: ty, ExecutionID: "exec-1"})
	}
	for _, want := range types {
		got := <-sub.Events()
		if got.Type != want {
			t.Fatalf("got %q, want %q", got.Type, want)
		}
	}
}

func TestBus_MultipleSubscribersAllReceive(t *testing.T) {
	b := New()
	a := b.Subscribe("exec-1")
	c := b.Subscribe("exec-1")
	b.Broadcast(Event{Type: EventStatusUpdate, ExecutionID: "exec-1"})
	if _, ok := <-a.Events(); !ok {
		t.Fatal("subscriber a got nothing")
	}
	if _, ok := <-c.Events(); !ok {
		t.Fatal("subscriber c got nothing")
	}
}
