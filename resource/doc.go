// Package resource provides the descriptor table used by the WASI host.
//
// A Table maps small integer handles to Go values. New entries take the
// lowest free handle, which is what POSIX-style file descriptor numbering
// expects: after closing fd 3, the next open returns 3 again.
//
//	fds := resource.NewTable[*File](1024)
//
//	// Fixed placement for stdio
//	fds.InsertAt(0, stdin)
//
//	// Lowest free handle for everything else
//	fd, err := fds.Insert(file)
//
//	// Renumber, dropping whatever occupied the target
//	fds.Move(fd, 1)
//
// # Cleanup
//
// Values implementing Dropper are dropped when removed, displaced by
// InsertAt or Move, or when the table is closed.
//
// # Observers
//
// Observers see every creation, drop and move:
//
//	fds.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    log.Printf("fd %d %s", e.Handle, e.Type)
//	}))
package resource
