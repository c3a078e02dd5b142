package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasi-runner/errors"
	"github.com/wippyai/wasi-runner/internal/wasmtest"
)

func TestCheckoutModuleMemory(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := r.InstantiateWithConfig(ctx, wasmtest.Start(nil), wazero.NewModuleConfig().WithStartFunctions())
	require.NoError(t, err)

	view := checkout(mod)
	assert.Equal(t, uint32(65536), view.Size())

	require.NoError(t, view.WriteU32(100, 0xdeadbeef))
	got, ok := mod.Memory().ReadUint32Le(100)
	require.True(t, ok)
	assert.Equal(t, uint32(0xdeadbeef), got, "writes reach guest memory")

	require.True(t, mod.Memory().WriteUint64Le(200, 1<<40))
	v64, err := view.ReadU64(200)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), v64)

	view.release()
	assert.Equal(t, uint32(0), view.Size())
	_, err = view.ReadU8(0)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseSyscall, Kind: errors.KindClosed})
	assert.Error(t, view.Write(0, []byte{1}))
}

func TestCheckoutWithoutMemory(t *testing.T) {
	assert.Equal(t, uint32(0), checkout(nil).Size())

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	m := wasmtest.New()
	m.Export("_start", m.Func(nil, nil, nil, wasmtest.End()))
	mod, err := r.InstantiateWithConfig(ctx, m.Encode(), wazero.NewModuleConfig().WithStartFunctions())
	require.NoError(t, err)

	view := checkout(mod)
	assert.Equal(t, uint32(0), view.Size())
	_, err = view.Read(0, 1)
	assert.Error(t, err)
	_, err = view.Read(0, 0)
	assert.NoError(t, err)
}

func TestMemoryViewBounds(t *testing.T) {
	view := newMemoryView(make([]byte, 16))
	oob := &errors.Error{Phase: errors.PhaseSyscall, Kind: errors.KindOutOfBounds}

	tests := []struct {
		name string
		fn   func() error
	}{
		{"read past end", func() error { _, err := view.Read(10, 7); return err }},
		{"read wraps", func() error { _, err := view.Read(0xffff_fff0, 0x20); return err }},
		{"u16 at end", func() error { _, err := view.ReadU16(15); return err }},
		{"u32 at end", func() error { _, err := view.ReadU32(13); return err }},
		{"u64 at end", func() error { _, err := view.ReadU64(9); return err }},
		{"u8 past end", func() error { _, err := view.ReadU8(16); return err }},
		{"write past end", func() error { return view.Write(12, make([]byte, 5)) }},
		{"write u8", func() error { return view.WriteU8(16, 1) }},
		{"write u16", func() error { return view.WriteU16(15, 1) }},
		{"write u32", func() error { return view.WriteU32(13, 1) }},
		{"write u64", func() error { return view.WriteU64(9, 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.fn(), oob)
		})
	}

	require.NoError(t, view.Write(12, []byte{1, 2, 3, 4}))
	require.NoError(t, view.WriteU16(0, 0x0102))
	v16, err := view.ReadU16(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), v16)

	b, err := view.Read(12, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, b)
	assert.Equal(t, 4, cap(b), "reads cannot be appended into neighbouring memory")
}
