package runtime

import (
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasi-runner/errors"
)

// EntryPoint is the export Run invokes.
const EntryPoint = "_start"

// ToInt32 converts f to a 32-bit signed integer the way ECMAScript ToInt32
// does: NaN and infinities become 0, the value is truncated toward zero and
// wrapped modulo 2^32.
func ToInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	t := math.Trunc(f)
	m := math.Mod(t, 1<<32)
	if m < 0 {
		m += 1 << 32
	}
	return int32(uint32(m))
}

// exitCode maps the results of the entry point to a process exit code.
func exitCode(types []api.ValueType, results []uint64) (int32, error) {
	switch len(types) {
	case 0:
		return 0, nil
	case 1:
	default:
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = api.ValueTypeName(t)
		}
		return 0, errors.UnsupportedExitValue(EntryPoint, names)
	}

	raw := results[0]
	switch types[0] {
	case api.ValueTypeI32, api.ValueTypeI64:
		return int32(uint32(raw)), nil
	case api.ValueTypeF32:
		return ToInt32(float64(api.DecodeF32(raw))), nil
	case api.ValueTypeF64:
		return ToInt32(api.DecodeF64(raw)), nil
	default:
		return 0, errors.UnsupportedExitValue(EntryPoint, []string{api.ValueTypeName(types[0])})
	}
}
