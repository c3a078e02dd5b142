package resource

import (
	"sync"
)

// Table is a typed handle table over a Backend, a LocalBackend by default.
// Values implementing Dropper are dropped when removed or displaced.
type Table[T any] struct {
	backend   Backend
	observers []Observer
	obsMu     sync.RWMutex
}

var (
	_ TypedTable[any] = (*Table[any])(nil)
	_ Backend         = (*LocalBackend)(nil)
)

// NewTable creates a table that holds at most limit entries (0 for unbounded).
func NewTable[T any](limit int) *Table[T] {
	return &Table[T]{
		backend: NewLocalBackend(limit),
	}
}

// Insert adds a value at the lowest free handle.
func (t *Table[T]) Insert(value T) (Handle, error) {
	handle, err := t.backend.Create(value)
	if err != nil {
		return 0, err
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		Value:  value,
	})

	return handle, nil
}

// InsertAt places a value at handle, dropping any previous occupant.
func (t *Table[T]) InsertAt(handle Handle, value T) error {
	old, replaced, err := t.backend.Put(handle, value)
	if err != nil {
		return err
	}

	if replaced {
		t.drop(handle, old)
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		Value:  value,
	})
	return nil
}

// Get retrieves a value by handle.
func (t *Table[T]) Get(handle Handle) (T, bool) {
	value, ok := t.backend.Get(handle)
	if !ok {
		var zero T
		return zero, false
	}
	return value.(T), true
}

// Remove drops an entry and returns (value, true) if found.
func (t *Table[T]) Remove(handle Handle) (T, bool) {
	value, ok := t.backend.Drop(handle)
	if !ok {
		var zero T
		return zero, false
	}

	t.drop(handle, value)
	return value.(T), true
}

// Move relocates the entry at from to to. Any occupant of to is dropped.
func (t *Table[T]) Move(from, to Handle) bool {
	if from == to {
		_, ok := t.backend.Get(from)
		return ok
	}

	value, ok := t.backend.Drop(from)
	if !ok {
		return false
	}

	old, replaced, err := t.backend.Put(to, value)
	if err != nil {
		// Restore the source entry; its slot was just freed.
		_, _, _ = t.backend.Put(from, value)
		return false
	}
	if replaced {
		t.drop(to, old)
	}

	t.notify(Event{
		Type:   EventMoved,
		Handle: to,
		From:   from,
		Value:  value,
	})
	return true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table[T]) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Len returns the number of active entries.
func (t *Table[T]) Len() int {
	return t.backend.Len()
}

// Each iterates over all active entries in handle order.
func (t *Table[T]) Each(fn func(Handle, T) bool) {
	t.backend.Each(func(h Handle, value any) bool {
		return fn(h, value.(T))
	})
}

// Clear drops all entries.
func (t *Table[T]) Clear() {
	// Collect handles first to avoid holding the backend lock during Remove
	var handles []Handle
	t.backend.Each(func(h Handle, _ any) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		t.Remove(h)
	}
}

// Close drops all entries and stops accepting inserts.
func (t *Table[T]) Close() error {
	t.Clear()
	return t.backend.Close()
}

func (t *Table[T]) drop(handle Handle, value any) {
	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		Value:  value,
	})
}

func (t *Table[T]) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
