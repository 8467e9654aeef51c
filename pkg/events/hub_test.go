package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	h := NewEventHub()
	a := h.Subscribe()
	b := h.Subscribe()
	defer h.Unsubscribe(b)

	h.Publish(PlanChanged, PlanChangedEvent{From: "balanced", To: "high", Trigger: "tick", Ts: 1})

	for _, ch := range []chan Event{a, b} {
		select {
		case ev := <-ch:
			if ev.Name != PlanChanged {
				t.Fatalf("got event %q, want %q", ev.Name, PlanChanged)
			}
			payload, err := DecodeAs[PlanChangedEvent](ev)
			if err != nil {
				t.Fatalf("DecodeAs: %v", err)
			}
			if payload.From != "balanced" || payload.To != "high" || payload.Trigger != "tick" {
				t.Fatalf("unexpected payload %+v", payload)
			}
		case <-time.After(time.Second):
			t.Fatalf("event not delivered")
		}
	}

	h.Unsubscribe(a)
	if _, ok := <-a; ok {
		t.Fatalf("channel should be closed after unsubscribe")
	}
	if n := h.Subscribers(); n != 1 {
		t.Fatalf("Subscribers() = %d, want 1", n)
	}
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	for i := 0; i < subscriberBuffer+10; i++ {
		h.Publish(ModeChanged, ModeChangedEvent{From: "standard", To: "optimized", Ts: int64(i)})
	}

	if got := len(ch); got != subscriberBuffer {
		t.Fatalf("buffered %d events, want %d", got, subscriberBuffer)
	}
}

func TestPublishNilHub(t *testing.T) {
	var h *EventHub
	h.Publish(PlanChanged, nil)
}

func TestDecodeAsEmpty(t *testing.T) {
	got, err := DecodeAs[ModeChangedEvent](Event{Name: ModeChanged})
	if err != nil || got != (ModeChangedEvent{}) {
		t.Fatalf("DecodeAs(empty) = %+v, %v", got, err)
	}
}

func TestTypedPublish(t *testing.T) {
	h := NewEventHub()
	h.now = func() time.Time { return time.Unix(1700000000, 0) }
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	h.PublishModeChanged("standard", "standard")
	h.PublishModeChanged("standard", "always-high")
	h.PublishPlanChanged("balanced", "high", "mode")

	if got := len(ch); got != 2 {
		t.Fatalf("buffered %d events, want 2 (same-mode publish is a no-op)", got)
	}

	mode, err := DecodeAs[ModeChangedEvent](<-ch)
	if err != nil {
		t.Fatalf("DecodeAs: %v", err)
	}
	if mode != (ModeChangedEvent{From: "standard", To: "always-high", Ts: 1700000000}) {
		t.Fatalf("unexpected mode payload %+v", mode)
	}

	ev := <-ch
	if ev.Name != PlanChanged {
		t.Fatalf("got event %q, want %q", ev.Name, PlanChanged)
	}
	plan, err := DecodeAs[PlanChangedEvent](ev)
	if err != nil {
		t.Fatalf("DecodeAs: %v", err)
	}
	if plan != (PlanChangedEvent{From: "balanced", To: "high", Trigger: "mode", Ts: 1700000000}) {
		t.Fatalf("unexpected plan payload %+v", plan)
	}
}

func TestTypedPublishNilHub(t *testing.T) {
	var h *EventHub
	h.PublishPlanChanged("balanced", "high", "tick")
	h.PublishModeChanged("standard", "optimized")
}

func TestUnsubscribeTwice(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	h.Unsubscribe(ch)
	h.Unsubscribe(ch)
	if n := h.Subscribers(); n != 0 {
		t.Fatalf("Subscribers() = %d, want 0", n)
	}
}
