package resource

import (
	"errors"
	"sync"
	"testing"
)

func TestLocalBackend_Basic(t *testing.T) {
	b := NewLocalBackend(0)

	handle, err := b.Create("test value")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if handle != 0 {
		t.Fatalf("Expected first handle 0, got %d", handle)
	}

	val, ok := b.Get(handle)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	val, ok = b.Drop(handle)
	if !ok {
		t.Fatal("Drop failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	if _, ok = b.Get(handle); ok {
		t.Fatal("Expected Get to fail after Drop")
	}
}

func TestLocalBackend_LowestFree(t *testing.T) {
	b := NewLocalBackend(0)

	for i := 0; i < 6; i++ {
		if h, _ := b.Create(i); int(h) != i {
			t.Fatalf("Create #%d returned handle %d", i, h)
		}
	}

	b.Drop(4)
	b.Drop(2)
	b.Drop(5)

	for _, want := range []Handle{2, 4, 5, 6} {
		h, err := b.Create("x")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if h != want {
			t.Fatalf("Expected handle %d, got %d", want, h)
		}
	}
}

func TestLocalBackend_Put(t *testing.T) {
	b := NewLocalBackend(0)

	old, replaced, err := b.Put(3, "three")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if replaced || old != nil {
		t.Fatal("Put into empty slot should not replace")
	}
	if b.Len() != 1 {
		t.Fatalf("Expected Len() == 1, got %d", b.Len())
	}

	// Gaps created by Put are handed out lowest first
	for _, want := range []Handle{0, 1, 2, 4} {
		if h, _ := b.Create("gap"); h != want {
			t.Fatalf("Expected handle %d, got %d", want, h)
		}
	}

	old, replaced, err = b.Put(3, "new three")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !replaced || old != "three" {
		t.Fatalf("Expected to replace 'three', got %v (%v)", old, replaced)
	}
}

func TestLocalBackend_Limit(t *testing.T) {
	b := NewLocalBackend(2)

	b.Create("a")
	b.Create("b")
	if _, err := b.Create("c"); !errors.Is(err, ErrFull) {
		t.Fatalf("Expected ErrFull, got %v", err)
	}
	if _, _, err := b.Put(2, "c"); !errors.Is(err, ErrFull) {
		t.Fatalf("Expected ErrFull from Put, got %v", err)
	}

	b.Drop(0)
	if h, err := b.Create("c"); err != nil || h != 0 {
		t.Fatalf("Expected reuse of handle 0, got %d, %v", h, err)
	}
}

type dropCounter struct {
	count int
}

func (d *dropCounter) Drop() {
	d.count++
}

func TestLocalBackend_Close(t *testing.T) {
	b := NewLocalBackend(0)
	d := &dropCounter{}
	b.Create(d)

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if d.count != 1 {
		t.Fatalf("Expected Drop() on Close, called %d times", d.count)
	}

	if _, err := b.Create("after"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Expected ErrClosed, got %v", err)
	}

	// Closing twice is a no-op
	if err := b.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestLocalBackend_Concurrent(t *testing.T) {
	b := NewLocalBackend(0)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h, _ := b.Create(id)
			b.Get(h)
			b.Drop(h)
		}(i)
	}

	wg.Wait()

	if b.Len() != 0 {
		t.Fatalf("Expected Len() == 0, got %d", b.Len())
	}
}

func TestLocalBackend_Each(t *testing.T) {
	b := NewLocalBackend(0)

	b.Create("a")
	b.Create("b")
	b.Create("c")
	b.Drop(1)

	var seen []Handle
	b.Each(func(h Handle, value any) bool {
		seen = append(seen, h)
		return true
	})

	if len(seen) != 2 || seen[0] != 0 || seen[1] != 2 {
		t.Fatalf("Expected handles [0 2], got %v", seen)
	}

	count := 0
	b.Each(func(h Handle, value any) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("Expected to iterate over 1 item (early term), got %d", count)
	}
}

func TestLocalBackend_InvalidHandle(t *testing.T) {
	b := NewLocalBackend(0)

	if _, ok := b.Get(0); ok {
		t.Fatal("Handle 0 should be empty initially")
	}
	if _, ok := b.Drop(0); ok {
		t.Fatal("Drop of empty handle should fail")
	}
	if _, ok := b.Get(999); ok {
		t.Fatal("Non-existent handle should be invalid")
	}
}
