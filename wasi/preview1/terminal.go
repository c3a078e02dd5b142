package preview1

import (
	"os"
	"sync"

	"golang.org/x/term"
)

var ttyCache sync.Map // uintptr -> bool

// isTerminal reports whether v is an *os.File attached to a terminal.
// Results are cached per descriptor.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok || f == nil {
		return false
	}
	fd := f.Fd()
	if cached, ok := ttyCache.Load(fd); ok {
		return cached.(bool)
	}
	result := term.IsTerminal(int(fd))
	ttyCache.Store(fd, result)
	return result
}
