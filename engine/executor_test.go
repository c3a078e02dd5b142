package engine

import (
	"bytes"
	"context"
	"runtime"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasi-runner/errors"
)

func goroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	buf = buf[:bytes.IndexByte(buf, ' ')]
	id, _ := strconv.ParseUint(string(buf), 10, 64)
	return id
}

func TestExecutorSingleWorker(t *testing.T) {
	exec := NewExecutor()
	defer exec.Close()

	ctx := context.Background()
	ids := make(map[uint64]struct{})
	for i := 0; i < 10; i++ {
		v, err := exec.Run(ctx, OpFunc(func(context.Context) (uint64, error) {
			ids[goroutineID()] = struct{}{}
			return uint64(i), nil
		}))
		require.NoError(t, err)
		assert.Equal(t, uint64(i), v)
	}
	assert.Len(t, ids, 1, "every op runs on the same worker")
	_, caller := ids[goroutineID()]
	assert.False(t, caller, "ops do not run on the caller")
}

func TestExecutorConcurrentCallers(t *testing.T) {
	exec := NewExecutor()
	defer exec.Close()

	var (
		wg      sync.WaitGroup
		running int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := exec.Run(context.Background(), OpFunc(func(context.Context) (uint64, error) {
				running++
				if running > maxSeen {
					maxSeen = running
				}
				runtime.Gosched()
				running--
				return 0, nil
			}))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestExecutorPanics(t *testing.T) {
	exec := NewExecutor()
	defer exec.Close()
	ctx := context.Background()

	_, err := exec.Run(ctx, OpFunc(func(context.Context) (uint64, error) {
		panic(errors.Marshal("fd_write", 1, "bad"))
	}))
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindMarshal, e.Kind)

	_, err = exec.Run(ctx, OpFunc(func(context.Context) (uint64, error) {
		panic("boom")
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	v, err := exec.Run(ctx, OpFunc(func(context.Context) (uint64, error) { return 7, nil }))
	require.NoError(t, err, "worker survives a panic")
	assert.Equal(t, uint64(7), v)
}

func TestExecutorClose(t *testing.T) {
	exec := NewExecutor()
	exec.Close()
	exec.Close()

	_, err := exec.Run(context.Background(), OpFunc(func(context.Context) (uint64, error) {
		t.Fatal("op ran after close")
		return 0, nil
	}))
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseSyscall, Kind: errors.KindClosed})
}
