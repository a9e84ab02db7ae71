package arena

import (
	"sync/atomic"
)

// Mapping is the leaf entry for one handle: where the allocation lives and
// how many callers currently hold it pinned. Base is set by the caller
// after Allocate and before the handle is shared.
type Mapping struct {
	Base uint64
	Size uint64
	// state is 0 while free and 1+pins while allocated, so liveness and
	// the pin count change together.
	state atomic.Int64
}

// Pins reports the current pin depth.
func (m *Mapping) Pins() int64 {
	return max(m.state.Load()-1, 0)
}

// Live reports whether the mapping belongs to an allocated handle.
func (m *Mapping) Live() bool {
	return m.state.Load() > 0
}

// EventType identifies an arena lifecycle notification.
type EventType uint8

const (
	EventMapped EventType = iota
	EventReleased
)

func (t EventType) String() string {
	switch t {
	case EventMapped:
		return "mapped"
	case EventReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Event represents a handle lifecycle event.
type Event struct {
	Mapping *Mapping
	Handle  uint64
	Class   int
	Type    EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnArenaEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnArenaEvent implements Observer.
func (f ObserverFunc) OnArenaEvent(e Event) {
	f(e)
}
