package resource

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrClosed = errors.New("resource backend closed")
	ErrFull   = errors.New("resource backend full")
)

// LocalBackend is an in-memory backend that reuses the lowest free handle.
type LocalBackend struct {
	entries  []entry
	freeList []Handle // ascending
	limit    int
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value any
	valid bool
}

// NewLocalBackend creates a new in-memory backend. A limit of zero means unbounded.
func NewLocalBackend(limit int) *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 16),
		freeList: make([]Handle, 0, 8),
		limit:    limit,
	}
}

// Create stores a value and returns the lowest free handle.
func (b *LocalBackend) Create(value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	if len(b.freeList) > 0 {
		handle := b.freeList[0]
		b.freeList = b.freeList[1:]
		b.entries[handle] = entry{value: value, valid: true}
		return handle, nil
	}

	if b.limit > 0 && len(b.entries) >= b.limit {
		return 0, ErrFull
	}

	b.entries = append(b.entries, entry{value: value, valid: true})
	return Handle(len(b.entries) - 1), nil
}

// Put stores a value at handle, growing the table as needed.
func (b *LocalBackend) Put(handle Handle, value any) (any, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, false, ErrClosed
	}
	if b.limit > 0 && int(handle) >= b.limit {
		return nil, false, ErrFull
	}

	for int(handle) >= len(b.entries) {
		b.freeList = append(b.freeList, Handle(len(b.entries)))
		b.entries = append(b.entries, entry{})
	}

	old := b.entries[handle]
	if !old.valid {
		b.removeFree(handle)
	}
	b.entries[handle] = entry{value: value, valid: true}
	return old.value, old.valid, nil
}

// Get retrieves a value by handle.
func (b *LocalBackend) Get(handle Handle) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if int(handle) >= len(b.entries) {
		return nil, false
	}

	e := b.entries[handle]
	if !e.valid {
		return nil, false
	}
	return e.value, true
}

// Drop removes an entry and returns its value.
func (b *LocalBackend) Drop(handle Handle) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if int(handle) >= len(b.entries) {
		return nil, false
	}

	e := &b.entries[handle]
	if !e.valid {
		return nil, false
	}

	value := e.value
	e.valid = false
	e.value = nil
	b.insertFree(handle)

	return value, true
}

// Close drops every remaining entry.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for i := range b.entries {
		if b.entries[i].valid {
			if d, ok := b.entries[i].value.(Dropper); ok {
				d.Drop()
			}
			b.entries[i].valid = false
			b.entries[i].value = nil
		}
	}

	b.entries = nil
	b.freeList = nil
	return nil
}

// Len returns the number of active entries.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries) - len(b.freeList)
}

// Each iterates over all active entries in handle order.
func (b *LocalBackend) Each(fn func(Handle, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(Handle(i), e.value) {
				break
			}
		}
	}
}

func (b *LocalBackend) insertFree(h Handle) {
	i := sort.Search(len(b.freeList), func(i int) bool { return b.freeList[i] >= h })
	b.freeList = append(b.freeList, 0)
	copy(b.freeList[i+1:], b.freeList[i:])
	b.freeList[i] = h
}

func (b *LocalBackend) removeFree(h Handle) {
	i := sort.Search(len(b.freeList), func(i int) bool { return b.freeList[i] >= h })
	if i < len(b.freeList) && b.freeList[i] == h {
		b.freeList = append(b.freeList[:i], b.freeList[i+1:]...)
	}
}
