package events

import (
	"encoding/json"
	"sync"
	"time"
)

// subscriberBuffer is how many events a slow subscriber may lag behind
// before further events are dropped for it.
const subscriberBuffer = 16

// EventHub fans power plan and power mode changes out to SSE streams and the
// tray. A nil *EventHub accepts publishes and discards them.
type EventHub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}

	// now stamps Ts on typed events.
	now func() time.Time
}

func NewEventHub() *EventHub {
	return &EventHub{
		subs: make(map[chan Event]struct{}),
		now:  time.Now,
	}
}

func (h *EventHub) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe closes ch. Unknown or already removed channels are ignored.
func (h *EventHub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
}

// Subscribers returns the number of active subscriptions.
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// PublishPlanChanged announces that the active plan moved from one plan to
// another because of trigger (tick, mode or plan).
func (h *EventHub) PublishPlanChanged(from, to, trigger string) {
	if h == nil {
		return
	}
	h.Publish(PlanChanged, PlanChangedEvent{
		From:    from,
		To:      to,
		Trigger: trigger,
		Ts:      h.now().Unix(),
	})
}

// PublishModeChanged announces a new user power mode. Setting the same mode
// again is not a change and publishes nothing.
func (h *EventHub) PublishModeChanged(from, to string) {
	if h == nil || from == to {
		return
	}
	h.Publish(ModeChanged, ModeChangedEvent{
		From: from,
		To:   to,
		Ts:   h.now().Unix(),
	})
}

// Publish sends payload as JSON under name to every subscriber that has room
// for it.
func (h *EventHub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.broadcast(Event{Name: name, Data: b})
}

func (h *EventHub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// slow subscriber
		}
	}
}
