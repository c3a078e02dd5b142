package preview1

import (
	"context"
	"io"
	"io/fs"
	"sort"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/sys"
	wasirunner "github.com/wippyai/wasi-runner"
	"github.com/wippyai/wasi-runner/resource"
)

// FdAdvise validates the advice; the host keeps no page cache hints.
func (w *WASI) FdAdvise(_ context.Context, _ wasirunner.Memory, fd int32, offset, length int64, advice int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	if _, errno := d.seekable(); errno != ErrnoSuccess {
		return errno
	}
	if offset < 0 || length < 0 || uint32(advice) > uint32(AdviceNoreuse) {
		return ErrnoInval
	}
	return ErrnoSuccess
}

// FdAllocate extends the file so that [offset, offset+length) is backed.
func (w *WASI) FdAllocate(_ context.Context, _ wasirunner.Memory, fd int32, offset, length int64) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	f, errno := d.seekable()
	if errno != ErrnoSuccess {
		return errno
	}
	if offset < 0 || length <= 0 || offset+length < 0 {
		return ErrnoInval
	}
	st, serr := f.Stat()
	if serr != 0 {
		return FromSys(serr)
	}
	if end := offset + length; end > st.Size {
		return FromSys(f.Truncate(end))
	}
	return ErrnoSuccess
}

// FdClose closes fd. Preopened directories may be closed too.
func (w *WASI) FdClose(_ context.Context, _ wasirunner.Memory, fd int32) Errno {
	if _, errno := w.lookup(fd); errno != ErrnoSuccess {
		return errno
	}
	w.fds.Remove(resource.Handle(fd))
	return ErrnoSuccess
}

// FdDatasync flushes file data to storage.
func (w *WASI) FdDatasync(_ context.Context, _ wasirunner.Memory, fd int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	if d.file == nil {
		return ErrnoInval
	}
	return FromSys(d.file.Datasync())
}

// FdSync flushes file data and metadata to storage.
func (w *WASI) FdSync(_ context.Context, _ wasirunner.Memory, fd int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	if d.file == nil {
		return ErrnoInval
	}
	return FromSys(d.file.Sync())
}

// FdFdstatGet writes the descriptor's type, flags and rights.
func (w *WASI) FdFdstatGet(_ context.Context, mem wasirunner.Memory, fd, result int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	flags := d.flags
	if d.kind == kindFile && d.file.IsAppend() {
		flags |= FdflagAppend
	}
	return putBytes(mem, uint32(result), encodeFdstat(d.filetype, flags, d.rights, RightsAll))
}

// FdFdstatSetFlags updates append and nonblock. Synchronous I/O flags cannot
// be changed after open.
func (w *WASI) FdFdstatSetFlags(_ context.Context, _ wasirunner.Memory, fd, flags int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	f := uint16(flags)
	if f&^(FdflagAppend|FdflagNonblock) != 0 {
		return ErrnoNotsup
	}
	if d.kind == kindFile {
		if serr := d.file.SetAppend(f&FdflagAppend != 0); serr != 0 {
			return FromSys(serr)
		}
	}
	d.flags = d.flags&^(FdflagAppend|FdflagNonblock) | f
	return ErrnoSuccess
}

// FdFdstatSetRights narrows the rights reported for fd. Rights can never grow.
func (w *WASI) FdFdstatSetRights(_ context.Context, _ wasirunner.Memory, fd int32, base, _ int64) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	if uint64(base)&^d.rights != 0 {
		return ErrnoNotcapable
	}
	d.rights = uint64(base)
	return ErrnoSuccess
}

// FdFilestatGet writes the attributes of the open file.
func (w *WASI) FdFilestatGet(_ context.Context, mem wasirunner.Memory, fd, result int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	st, errno := d.stat()
	if errno != ErrnoSuccess {
		return errno
	}
	ft := filetypeOf(st.Mode)
	if d.kind == kindStdio {
		ft = d.filetype
	}
	return putBytes(mem, uint32(result), encodeFilestat(st, ft))
}

// FdFilestatSetSize truncates or extends the file.
func (w *WASI) FdFilestatSetSize(_ context.Context, _ wasirunner.Memory, fd int32, size int64) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	f, errno := d.seekable()
	if errno != ErrnoSuccess {
		return errno
	}
	if size < 0 {
		return ErrnoInval
	}
	return FromSys(f.Truncate(size))
}

// FdFilestatSetTimes updates access and modification times of the open file.
func (w *WASI) FdFilestatSetTimes(_ context.Context, _ wasirunner.Memory, fd int32, atim, mtim int64, fstFlags int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	if d.kind != kindFile && d.kind != kindDir {
		return ErrnoBadf
	}
	st, serr := d.file.Stat()
	if serr != 0 {
		return FromSys(serr)
	}
	a, m, errno := w.resolveTimes(st, atim, mtim, uint16(fstFlags))
	if errno != ErrnoSuccess {
		return errno
	}
	return FromSys(d.file.Utimens(a, m))
}

// resolveTimes applies fst flags to the current times in st.
func (w *WASI) resolveTimes(st sys.Stat_t, atim, mtim int64, flags uint16) (int64, int64, Errno) {
	if flags&(FstflagAtim|FstflagAtimNow) == FstflagAtim|FstflagAtimNow ||
		flags&(FstflagMtim|FstflagMtimNow) == FstflagMtim|FstflagMtimNow {
		return 0, 0, ErrnoInval
	}
	now := w.walltime()
	a, m := st.Atim, st.Mtim
	switch {
	case flags&FstflagAtim != 0:
		a = atim
	case flags&FstflagAtimNow != 0:
		a = now
	}
	switch {
	case flags&FstflagMtim != 0:
		m = mtim
	case flags&FstflagMtimNow != 0:
		m = now
	}
	return a, m, ErrnoSuccess
}

// FdPread reads into iovs starting at offset without moving the file position.
func (w *WASI) FdPread(_ context.Context, mem wasirunner.Memory, fd, iovs, iovsLen int32, offset int64, nread int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	f, errno := d.seekable()
	if errno != ErrnoSuccess {
		return errno
	}
	if offset < 0 {
		return ErrnoInval
	}
	vecs, errno := readIovecs(mem, iovs, iovsLen)
	if errno != ErrnoSuccess {
		return errno
	}
	var total uint32
	for _, v := range vecs {
		buf := make([]byte, v.len)
		n, serr := f.Pread(buf, offset+int64(total))
		if serr != 0 {
			return FromSys(serr)
		}
		if errno := putBytes(mem, v.ptr, buf[:n]); errno != ErrnoSuccess {
			return errno
		}
		total += uint32(n)
		if uint32(n) < v.len {
			break
		}
	}
	return putU32(mem, nread, total)
}

// FdPwrite writes iovs at offset without moving the file position.
func (w *WASI) FdPwrite(_ context.Context, mem wasirunner.Memory, fd, iovs, iovsLen int32, offset int64, nwritten int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	f, errno := d.seekable()
	if errno != ErrnoSuccess {
		return errno
	}
	if offset < 0 {
		return ErrnoInval
	}
	vecs, errno := readIovecs(mem, iovs, iovsLen)
	if errno != ErrnoSuccess {
		return errno
	}
	var total uint32
	for _, v := range vecs {
		buf, errno := readBytes(mem, v.ptr, v.len)
		if errno != ErrnoSuccess {
			return errno
		}
		n, serr := f.Pwrite(buf, offset+int64(total))
		total += uint32(n)
		if serr != 0 {
			return FromSys(serr)
		}
	}
	return putU32(mem, nwritten, total)
}

// FdPrestatGet describes a preopened directory.
func (w *WASI) FdPrestatGet(_ context.Context, mem wasirunner.Memory, fd, result int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	if d.preopen == "" {
		return ErrnoBadf
	}
	buf := make([]byte, sizePrestat)
	buf[0] = 0 // preopentype dir
	le.PutUint32(buf[4:], uint32(len(d.preopen)))
	return putBytes(mem, uint32(result), buf)
}

// FdPrestatDirName writes the guest path of a preopened directory.
func (w *WASI) FdPrestatDirName(_ context.Context, mem wasirunner.Memory, fd, pathPtr, pathLen int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	if d.preopen == "" {
		return ErrnoBadf
	}
	if uint32(pathLen) < uint32(len(d.preopen)) {
		return ErrnoNametoolong
	}
	return putBytes(mem, uint32(pathPtr), []byte(d.preopen))
}

// FdRead reads into iovs, stopping at the first short read.
func (w *WASI) FdRead(_ context.Context, mem wasirunner.Memory, fd, iovs, iovsLen, nread int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	vecs, errno := readIovecs(mem, iovs, iovsLen)
	if errno != ErrnoSuccess {
		return errno
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
		if uint32(n) < v.len {
			break
		}
	}
	return putU32(mem, nread, total)
}

// FdWrite gathers iovs and writes them to fd in order.
func (w *WASI) FdWrite(_ context.Context, mem wasirunner.Memory, fd, iovs, iovsLen, nwritten int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	vecs, errno := readIovecs(mem, iovs, iovsLen)
	if errno != ErrnoSuccess {
		return errno
	}
	var total uint32
	for _, v := range vecs {
		if v.len == 0 {
			continue
		}
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
	return putU32(mem, nwritten, total)
}

// FdReaddir writes directory entries starting after cookie. Entries are
// listed in name order with "." and ".." first. The last entry may be
// truncated; a full buffer tells the caller to continue.
func (w *WASI) FdReaddir(_ context.Context, mem wasirunner.Memory, fd, buf, bufLen int32, cookie int64, bufused int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	if d.kind != kindDir {
		return ErrnoNotdir
	}
	if cookie < 0 {
		return ErrnoInval
	}
	if cookie == 0 || d.dirents == nil {
		entries, errno := listDir(d)
		if errno != ErrnoSuccess {
			return errno
		}
		d.dirents = entries
	}

	limit := uint32(bufLen)
	var out []byte
	for i := cookie; i < int64(len(d.dirents)) && uint32(len(out)) < limit; i++ {
		e := d.dirents[i]
		rec := make([]byte, sizeDirent+len(e.Name))
		le.PutUint64(rec[0:], uint64(i+1))
		le.PutUint64(rec[8:], e.Ino)
		le.PutUint32(rec[16:], uint32(len(e.Name)))
		rec[20] = byte(filetypeOf(e.Type))
		copy(rec[sizeDirent:], e.Name)
		out = append(out, rec...)
	}
	if uint32(len(out)) > limit {
		out = out[:limit]
	}
	if errno := putBytes(mem, uint32(buf), out); errno != ErrnoSuccess {
		return errno
	}
	return putU32(mem, bufused, uint32(len(out)))
}

const dirMode = fs.ModeDir

// listDir reads a fresh snapshot of the directory behind d.
func listDir(d *descriptor) ([]experimentalsys.Dirent, Errno) {
	dir, serr := d.fs.OpenFile(d.path, experimentalsys.O_RDONLY|experimentalsys.O_DIRECTORY, 0)
	if serr != 0 {
		return nil, FromSys(serr)
	}
	defer dir.Close()

	entries, serr := dir.Readdir(-1)
	if serr != 0 {
		return nil, FromSys(serr)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	self, _ := dir.Ino()
	dots := []experimentalsys.Dirent{
		{Name: ".", Ino: self, Type: dirMode},
		{Name: "..", Type: dirMode},
	}
	return append(dots, entries...), ErrnoSuccess
}

// FdRenumber moves from onto to, closing whatever to referred to.
// Preopened directories cannot be renumbered.
func (w *WASI) FdRenumber(_ context.Context, _ wasirunner.Memory, from, to int32) Errno {
	src, errno := w.lookup(from)
	if errno != ErrnoSuccess {
		return errno
	}
	dst, errno := w.lookup(to)
	if errno != ErrnoSuccess {
		return errno
	}
	if src.preopen != "" || dst.preopen != "" {
		return ErrnoNotsup
	}
	if !w.fds.Move(resource.Handle(from), resource.Handle(to)) {
		return ErrnoBadf
	}
	return ErrnoSuccess
}

// FdSeek moves the file position and writes the new offset.
func (w *WASI) FdSeek(_ context.Context, mem wasirunner.Memory, fd int32, offset int64, whence, result int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	f, errno := d.seekable()
	if errno != ErrnoSuccess {
		return errno
	}
	if uint32(whence) > uint32(WhenceEnd) {
		return ErrnoInval
	}
	var wh int
	switch uint8(whence) {
	case WhenceSet:
		wh = io.SeekStart
	case WhenceCur:
		wh = io.SeekCurrent
	default:
		wh = io.SeekEnd
	}
	pos, serr := f.Seek(offset, wh)
	if serr != 0 {
		return FromSys(serr)
	}
	return putU64(mem, result, uint64(pos))
}

// FdTell writes the current file position.
func (w *WASI) FdTell(_ context.Context, mem wasirunner.Memory, fd, result int32) Errno {
	d, errno := w.lookup(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	f, errno := d.seekable()
	if errno != ErrnoSuccess {
		return errno
	}
	pos, serr := f.Seek(0, io.SeekCurrent)
	if serr != 0 {
		return FromSys(serr)
	}
	return putU64(mem, result, uint64(pos))
}
