package resource

// Handle is a small integer naming an entry in a table.
// Handles are allocated lowest-free first, starting at 0.
type Handle uint32

// EventType identifies a lifecycle transition.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventMoved
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// Event represents a lifecycle event. From is set only for EventMoved.
type Event struct {
	Value  any
	Handle Handle
	From   Handle
	Type   EventType
}

// Observer receives notifications about lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnResourceEvent calls f(e).
func (f ObserverFunc) OnResourceEvent(e Event) {
	f(e)
}

// Backend provides the underlying storage mechanism for entries.
type Backend interface {
	// Create stores a value at the lowest free handle.
	Create(value any) (Handle, error)

	// Put stores a value at an explicit handle, returning the displaced value.
	Put(handle Handle, value any) (any, bool, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// Drop removes an entry and returns its value.
	Drop(handle Handle) (any, bool)

	// Len returns the number of live entries.
	Len() int

	// Each visits live entries in handle order until fn returns false.
	Each(fn func(Handle, any) bool)

	// Close releases all entries held by the backend.
	Close() error
}

// TypedTable provides type-safe access to entries of a specific type.
type TypedTable[T any] interface {
	// Insert adds a value at the lowest free handle.
	Insert(value T) (Handle, error)

	// InsertAt places a value at an explicit handle, dropping any previous occupant.
	InsertAt(handle Handle, value T) error

	// Get retrieves a value by handle.
	Get(handle Handle) (T, bool)

	// Remove drops an entry and returns (value, true) if found.
	Remove(handle Handle) (T, bool)

	// Move relocates the entry at from to to, dropping any occupant of to.
	Move(from, to Handle) bool

	// Len returns the number of active entries.
	Len() int

	// Each iterates over all active entries in handle order.
	Each(func(Handle, T) bool)
}

// Dropper is optionally implemented by values that need cleanup on removal.
type Dropper interface {
	Drop()
}
