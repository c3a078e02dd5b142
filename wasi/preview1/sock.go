package preview1

import (
	"context"
	"time"

	wasirunner "github.com/wippyai/wasi-runner"
)

// nonblockWait is how long a nonblocking socket call waits for readiness.
// An already expired deadline would fail even with data buffered.
const nonblockWait = time.Millisecond

// SockAccept accepts a connection on a preopened listener and writes the new
// descriptor. With FdflagNonblock it fails with ErrnoAgain when no peer waits.
func (w *WASI) SockAccept(_ context.Context, mem wasirunner.Memory, fd, flags, result int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	if d.kind != kindListener {
		return ErrnoNotsock
	}
	if uint16(flags)&^FdflagNonblock != 0 {
		return ErrnoInval
	}
	if _, err := mem.Read(uint32(result), 4); err != nil {
		return ErrnoFault
	}

	nonblock := uint16(flags)&FdflagNonblock != 0
	type deadliner interface{ SetDeadline(time.Time) error }
	if dl, ok := d.listener.(deadliner); ok {
		var t time.Time
		if nonblock {
			t = time.Now().Add(nonblockWait)
		}
		_ = dl.SetDeadline(t)
	}

	conn, err := d.listener.Accept()
	if err != nil {
		return netErrno(err)
	}
	nd := &descriptor{
		kind:     kindConn,
		conn:     conn,
		filetype: FiletypeSocketStream,
		rights:   RightsAll,
		mount:    -1,
	}
	if nonblock {
		nd.flags = FdflagNonblock
	}
	newFd, errno := w.install(nd)
	if errno != ErrnoSuccess {
		_ = conn.Close()
		return errno
	}
	return putU32(mem, result, uint32(newFd))
}

func (w *WASI) conn(fd int32) (*descriptor, Errno) {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return nil, errno
	}
	if d.kind != kindConn {
		return nil, ErrnoNotsock
	}
	if d.flags&FdflagNonblock != 0 {
		_ = d.conn.SetDeadline(time.Now().Add(nonblockWait))
	} else {
		_ = d.conn.SetDeadline(time.Time{})
	}
	return d, ErrnoSuccess
}

// SockRecv reads into riData. Peeking and waitall are not supported.
func (w *WASI) SockRecv(_ context.Context, mem wasirunner.Memory, fd, riData, riDataLen, riFlags, roDatalen, roFlags int32) Errno {
	d, errno := w.conn(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	if uint16(riFlags) != 0 {
		return ErrnoNotsup
	}
	vecs, errno := readIovecs(mem, riData, riDataLen)
	if errno != ErrnoSuccess {
		return errno
	}
	// Every destination is checked before any data leaves the socket.
	if errno := putU32(mem, roDatalen, 0); errno != ErrnoSuccess {
		return errno
	}
	if err := mem.WriteU16(uint32(roFlags), 0); err != nil {
		return ErrnoFault
	}
	for _, v := range vecs {
		if _, err := mem.Read(v.ptr, v.len); err != nil {
			return ErrnoFault
		}
	}
	var total uint32
	for _, v := range vecs {
		if v.len == 0 {
			continue
		}
		buf := make([]byte, v.len)
		n, errno := d.read(buf)
		if n > 0 {
			if perr := putBytes(mem, v.ptr, buf[:n]); perr != ErrnoSuccess {
				return perr
			}
			total += uint32(n)
		}
		if errno != ErrnoSuccess {
			if total > 0 {
				break
			}
			return errno
		}
		break
	}
	return putU32(mem, roDatalen, total)
}

// SockSend writes siData to the connection.
func (w *WASI) SockSend(_ context.Context, mem wasirunner.Memory, fd, siData, siDataLen, _, soDatalen int32) Errno {
	d, errno := w.conn(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	vecs, errno := readIovecs(mem, siData, siDataLen)
	if errno != ErrnoSuccess {
		return errno
	}
	var total uint32
	for _, v := range vecs {
		buf, errno := readBytes(mem, v.ptr, v.len)
		if errno != ErrnoSuccess {
			return errno
		}
		n, errno := d.write(buf)
		total += uint32(n)
		if errno != ErrnoSuccess {
			if total > 0 {
				break
			}
			return errno
		}
	}
	return putU32(mem, soDatalen, total)
}

// SockShutdown shuts down the read and/or write side of a connection.
func (w *WASI) SockShutdown(_ context.Context, _ wasirunner.Memory, fd, how int32) Errno {
	d, errno := w.conn(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	h := uint8(how)
	if uint32(how) > uint32(SdflagRd|SdflagWr) || h == 0 {
		return ErrnoInval
	}
	type halfCloser interface {
		CloseRead() error
		CloseWrite() error
	}
	hc, ok := d.conn.(halfCloser)
	if !ok {
		if h == SdflagRd|SdflagWr {
			return netErrno(d.conn.Close())
		}
		return ErrnoNotsup
	}
	if h&SdflagRd != 0 {
		if err := hc.CloseRead(); err != nil {
			return netErrno(err)
		}
	}
	if h&SdflagWr != 0 {
		if err := hc.CloseWrite(); err != nil {
			return netErrno(err)
		}
	}
	return ErrnoSuccess
}
