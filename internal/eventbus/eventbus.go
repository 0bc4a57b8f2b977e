// Package eventbus multiplexes one execution's lifecycle events to N
// subscribers, grounded on the source's WorkflowWebSocketManager.broadcast:
// best-effort, non-blocking, FIFO per execution, with no backpressure —
// slow subscribers drop events rather than stall the broadcaster.
package eventbus

import "sync"

// EventType is the tagged variant of one event payload, per spec.md §9's
// "string-keyed event dispatch" note: the tag lives here, transport adapters
// serialize this to JSON at the boundary.
type EventType string

const (
	EventStatusUpdate     EventType = "status_update"
	EventPhaseStart       EventType = "phase_start"
	EventPhaseOutput      EventType = "phase_output"
	EventPhaseComplete    EventType = "phase_complete"
	EventApprovalNeeded   EventType = "approval_needed"
	EventApprovalResolved EventType = "approval_resolved"
	EventTodoUpdate       EventType = "todo_update"
	EventInit             EventType = "init"
)

// Event is one envelope broadcast on the bus. Data carries the event-specific
// fields (phase_id, status, ...; a phase_output event carries its text
// chunk under "content"); transport adapters flatten
// Type and Data into a single JSON object.
type Event struct {
	Type        EventType
	ExecutionID string
	Data        map[string]any
}

// subscriberQueueSize bounds each subscriber's buffer; a full buffer means
// broadcast drops the event for that subscriber rather than blocking.
const subscriberQueueSize = 64

type subscriber struct {
	id int
	ch chan Event
}

// Bus is a per-execution multiplexed publisher. Zero value is ready to use.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]*subscriber
	nextID int
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]*subscriber)}
}

// Subscription is a handle returned by Subscribe; Unsubscribe tears it down.
type Subscription struct {
	executionID string
	id          int
	ch          chan Event
}

// Events returns the channel events arrive on.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Subscribe attaches a new subscriber to executionID's event stream.
func (b *Bus) Subscribe(executionID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &subscriber{id: b.nextID, ch: make(chan Event, subscriberQueueSize)}
	b.subs[executionID] = append(b.subs[executionID], sub)
	return &Subscription{executionID: executionID, id: sub.id, ch: sub.ch}
}

// Unsubscribe detaches a subscription and closes its channel. Safe to call
// more than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.executionID]
	for i, s := range list {
		if s.id == sub.id {
			list = append(list[:i], list[i+1:]...)
			close(s.ch)
			break
		}
	}
	if len(list) == 0 {
		delete(b.subs, sub.executionID)
	} else {
		b.subs[sub.executionID] = list
	}
}

// Broadcast delivers ev to every current subscriber of its ExecutionID.
// Delivery is non-blocking: a subscriber whose buffer is full simply misses
// the event. Broadcast never blocks the caller and never returns an error.
func (b *Bus) Broadcast(ev Event) {
	b.mu.Lock()
	list := append([]*subscriber(nil), b.subs[ev.ExecutionID]...)
	b.mu.Unlock()

	for _, s := range list {
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// HasSubscribers reports whether executionID currently has at least one
// attached subscriber.
func (b *Bus) HasSubscribers(executionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[executionID]) > 0
}
