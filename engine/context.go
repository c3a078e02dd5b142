package engine

import (
	"sync"

	"github.com/wippyai/wasi-runner/wasi/preview1"
)

// Context is the process-wide WASI state shared by every trampoline.
// All access goes through Do, which holds a mutex for the whole call.
type Context struct {
	wasi *preview1.WASI
	mu   sync.Mutex
}

// NewContext wraps w. The caller must not use w directly afterwards.
func NewContext(w *preview1.WASI) *Context {
	return &Context{wasi: w}
}

// Do runs fn with exclusive access to the WASI state.
func (c *Context) Do(fn func(w *preview1.WASI) preview1.Errno) preview1.Errno {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.wasi)
}

// Open builds the descriptor table so mount failures surface before the
// guest starts.
func (c *Context) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wasi.Open()
}

// Close closes every descriptor.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wasi.Close()
}
