package engine

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasi-runner/errors"
)

// ValueKind is the declared core type of a syscall argument.
type ValueKind uint8

const (
	KindI32 ValueKind = iota + 1
	KindI64
)

func (k ValueKind) String() string {
	switch k {
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ValueType returns the wazero value type for k.
func (k ValueKind) ValueType() (api.ValueType, bool) {
	switch k {
	case KindI32:
		return api.ValueTypeI32, true
	case KindI64:
		return api.ValueTypeI64, true
	default:
		return 0, false
	}
}

// Args holds the narrowed arguments of one syscall invocation.
// Accessing an index with the wrong kind panics with a marshal error,
// which the trampoline relays to the guest as EINVAL.
type Args struct {
	name  string
	kinds []ValueKind
	vals  []int64
}

// Len returns the number of arguments.
func (a Args) Len() int {
	return len(a.vals)
}

// I32 returns argument i as a signed 32-bit value.
func (a Args) I32(i int) int32 {
	a.check(i, KindI32)
	return int32(a.vals[i])
}

// I64 returns argument i as a signed 64-bit value.
func (a Args) I64(i int) int64 {
	a.check(i, KindI64)
	return a.vals[i]
}

func (a Args) check(i int, want ValueKind) {
	if i < 0 || i >= len(a.vals) {
		panic(errors.Marshal(a.name, i, fmt.Sprintf("argument out of range (have %d)", len(a.vals))))
	}
	if a.kinds[i] != want {
		panic(errors.Marshal(a.name, i, fmt.Sprintf("declared %s, read as %s", a.kinds[i], want)))
	}
}

// narrow converts raw stack words into typed arguments. An i32 keeps the
// low 32 bits as a signed value; an i64 keeps all 64 bits.
func narrow(name string, kinds []ValueKind, stack []uint64) (Args, error) {
	if len(stack) < len(kinds) {
		return Args{}, errors.Marshal(name, len(stack),
			fmt.Sprintf("expected %d arguments, got %d", len(kinds), len(stack)))
	}
	vals := make([]int64, len(kinds))
	for i, k := range kinds {
		raw := stack[i]
		switch k {
		case KindI32:
			vals[i] = int64(int32(uint32(raw)))
		case KindI64:
			vals[i] = int64(raw)
		default:
			return Args{}, errors.Marshal(name, i, "unknown argument kind "+k.String())
		}
	}
	return Args{name: name, kinds: kinds, vals: vals}, nil
}
