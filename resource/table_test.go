package resource

import (
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

func TestTable_Basic(t *testing.T) {
	table := NewTable[string](0)

	h, err := table.Insert("test")
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	val, ok := table.Get(h)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	val, ok = table.Remove(h)
	if !ok {
		t.Fatal("Remove failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}

	if _, ok := table.Remove(h); ok {
		t.Fatal("second Remove should fail")
	}
}

func TestTable_StdioLayout(t *testing.T) {
	table := NewTable[string](0)

	for i, name := range []string{"stdin", "stdout", "stderr"} {
		if err := table.InsertAt(Handle(i), name); err != nil {
			t.Fatalf("InsertAt(%d) failed: %v", i, err)
		}
	}

	h, _ := table.Insert("/")
	if h != 3 {
		t.Fatalf("Expected first preopen at 3, got %d", h)
	}

	h, _ = table.Insert("file")
	if h != 4 {
		t.Fatalf("Expected next descriptor 4, got %d", h)
	}

	table.Remove(4)
	h, _ = table.Insert("again")
	if h != 4 {
		t.Fatalf("Expected closed descriptor to be reused, got %d", h)
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable[string](0)
	obs := &testObserver{}
	table.Subscribe(obs)

	h, _ := table.Insert("test")
	if len(obs.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventCreated {
		t.Fatal("Expected EventCreated")
	}
	if obs.events[0].Handle != h {
		t.Fatal("Wrong handle in event")
	}

	table.Remove(h)
	if len(obs.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(obs.events))
	}
	if obs.events[1].Type != EventDropped {
		t.Fatal("Expected EventDropped")
	}
}

func TestTable_ObserverFunc(t *testing.T) {
	table := NewTable[int](0)
	var types []EventType
	table.Subscribe(ObserverFunc(func(e Event) {
		types = append(types, e.Type)
	}))

	h, _ := table.Insert(1)
	table.Move(h, 5)
	table.Remove(5)

	want := []EventType{EventCreated, EventMoved, EventDropped}
	if len(types) != len(want) {
		t.Fatalf("Expected %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], types[i])
		}
	}
}

func TestTable_Move(t *testing.T) {
	table := NewTable[*dropCounter](0)
	a := &dropCounter{}
	b := &dropCounter{}

	ha, _ := table.Insert(a)
	hb, _ := table.Insert(b)

	if !table.Move(ha, hb) {
		t.Fatal("Move failed")
	}
	if b.count != 1 {
		t.Fatalf("Expected displaced value to be dropped once, got %d", b.count)
	}
	if a.count != 0 {
		t.Fatal("Moved value must not be dropped")
	}

	got, ok := table.Get(hb)
	if !ok || got != a {
		t.Fatal("Expected moved value at target handle")
	}
	if _, ok := table.Get(ha); ok {
		t.Fatal("Source handle should be free after Move")
	}

	if table.Move(ha, hb) {
		t.Fatal("Move from empty handle should fail")
	}
	if !table.Move(hb, hb) {
		t.Fatal("Move onto itself should succeed for a live handle")
	}
}

func TestTable_Clear(t *testing.T) {
	table := NewTable[string](0)

	table.Insert("a")
	table.Insert("b")
	table.Insert("c")

	if table.Len() != 3 {
		t.Fatal("Expected Len() == 3")
	}

	table.Clear()

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Clear")
	}
}

func TestTable_Close(t *testing.T) {
	table := NewTable[*dropCounter](0)
	d := &dropCounter{}
	table.Insert(d)

	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if d.count != 1 {
		t.Fatalf("Expected Drop() once on Close, got %d", d.count)
	}

	if _, err := table.Insert(&dropCounter{}); err == nil {
		t.Fatal("Expected Insert to fail after Close")
	}
}

func TestTable_DropperInterface(t *testing.T) {
	table := NewTable[*dropCounter](0)
	d := &dropCounter{}

	h, _ := table.Insert(d)
	table.Remove(h)

	if d.count != 1 {
		t.Fatalf("Expected Drop() to be called once, called %d times", d.count)
	}

	e := &dropCounter{}
	table.InsertAt(0, e)
	table.InsertAt(0, &dropCounter{})
	if e.count != 1 {
		t.Fatal("InsertAt should drop the displaced value")
	}
}
