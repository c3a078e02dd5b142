package preview1

import (
	"context"
	"path"
	"strings"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	wasirunner "github.com/wippyai/wasi-runner"
)

// resolvePath joins a guest-relative path onto base, refusing results that
// leave the mount.
func resolvePath(base, p string) (string, Errno) {
	switch {
	case p == "":
		return "", ErrnoNoent
	case strings.IndexByte(p, 0) >= 0:
		return "", ErrnoInval
	case path.IsAbs(p):
		return "", ErrnoNotcapable
	}
	joined := path.Join(base, p)
	if joined == ".." || strings.HasPrefix(joined, "../") {
		return "", ErrnoNotcapable
	}
	return joined, ErrnoSuccess
}

// at resolves pathPtr/pathLen relative to the directory descriptor dirfd.
func (w *WASI) at(mem wasirunner.Memory, dirfd, pathPtr, pathLen int32) (*descriptor, string, Errno) {
	d, errno := w.lookup(dirfd)
	if errno != ErrnoSuccess {
		return nil, "", errno
	}
	if d.kind != kindDir {
		return nil, "", ErrnoNotdir
	}
	p, errno := readString(mem, pathPtr, pathLen)
	if errno != ErrnoSuccess {
		return nil, "", errno
	}
	resolved, errno := resolvePath(d.path, p)
	if errno != ErrnoSuccess {
		return nil, "", errno
	}
	return d, resolved, ErrnoSuccess
}

// PathCreateDirectory creates a directory.
func (w *WASI) PathCreateDirectory(_ context.Context, mem wasirunner.Memory, fd, pathPtr, pathLen int32) Errno {
	d, p, errno := w.at(mem, fd, pathPtr, pathLen)
	if errno != ErrnoSuccess {
		return errno
	}
	return FromSys(d.fs.Mkdir(p, 0o755))
}

// PathFilestatGet writes the attributes of a path, following symlinks when
// flags has LookupSymlinkFollow.
func (w *WASI) PathFilestatGet(_ context.Context, mem wasirunner.Memory, fd, flags, pathPtr, pathLen, result int32) Errno {
	d, p, errno := w.at(mem, fd, pathPtr, pathLen)
	if errno != ErrnoSuccess {
		return errno
	}
	stat := d.fs.Lstat
	if uint32(flags)&LookupSymlinkFollow != 0 {
		stat = d.fs.Stat
	}
	st, serr := stat(p)
	if serr != 0 {
		return FromSys(serr)
	}
	return putBytes(mem, uint32(result), encodeFilestat(st, filetypeOf(st.Mode)))
}

// PathFilestatSetTimes updates access and modification times of a path.
func (w *WASI) PathFilestatSetTimes(_ context.Context, mem wasirunner.Memory, fd, flags, pathPtr, pathLen int32, atim, mtim int64, fstFlags int32) Errno {
	d, p, errno := w.at(mem, fd, pathPtr, pathLen)
	if errno != ErrnoSuccess {
		return errno
	}
	stat := d.fs.Lstat
	if uint32(flags)&LookupSymlinkFollow != 0 {
		stat = d.fs.Stat
	}
	st, serr := stat(p)
	if serr != 0 {
		return FromSys(serr)
	}
	a, m, errno := w.resolveTimes(st, atim, mtim, uint16(fstFlags))
	if errno != ErrnoSuccess {
		return errno
	}
	return FromSys(d.fs.Utimens(p, a, m))
}

// PathLink creates a hard link. Both paths must be on the same mount.
func (w *WASI) PathLink(_ context.Context, mem wasirunner.Memory, oldFd, _, oldPath, oldPathLen, newFd, newPath, newPathLen int32) Errno {
	src, from, errno := w.at(mem, oldFd, oldPath, oldPathLen)
	if errno != ErrnoSuccess {
		return errno
	}
	dst, to, errno := w.at(mem, newFd, newPath, newPathLen)
	if errno != ErrnoSuccess {
		return errno
	}
	if src.mount != dst.mount {
		return ErrnoXdev
	}
	return FromSys(src.fs.Link(from, to))
}

// PathOpen opens a file or directory relative to fd and writes the new descriptor.
func (w *WASI) PathOpen(_ context.Context, mem wasirunner.Memory, fd, dirflags, pathPtr, pathLen, oflags int32, rightsBase, rightsInheriting int64, fdflags, result int32) Errno {
	d, p, errno := w.at(mem, fd, pathPtr, pathLen)
	if errno != ErrnoSuccess {
		return errno
	}
	if _, err := mem.Read(uint32(result), 4); err != nil {
		return ErrnoFault
	}

	flag, errno := openFlags(uint32(dirflags), uint16(oflags), uint64(rightsBase), uint16(fdflags))
	if errno != ErrnoSuccess {
		return errno
	}
	f, serr := d.fs.OpenFile(p, flag, 0o644)
	if serr != 0 {
		return FromSys(serr)
	}

	isDir, serr := f.IsDir()
	if serr != 0 {
		_ = f.Close()
		return FromSys(serr)
	}
	nd := &descriptor{
		kind:     kindFile,
		file:     f,
		fs:       d.fs,
		path:     p,
		mount:    d.mount,
		rights:   uint64(rightsBase) & d.rights,
		flags:    uint16(fdflags),
		filetype: FiletypeRegularFile,
	}
	if isDir {
		nd.kind = kindDir
		nd.filetype = FiletypeDirectory
	} else if st, serr := f.Stat(); serr == 0 {
		nd.filetype = filetypeOf(st.Mode)
	}
	if rightsBase == 0 {
		nd.rights = uint64(rightsInheriting) & d.rights
	}

	newFd, errno := w.install(nd)
	if errno != ErrnoSuccess {
		_ = f.Close()
		return errno
	}
	return putU32(mem, result, uint32(newFd))
}

// openFlags derives the host open mode. Rights select read/write access
// since wasi-libc encodes O_RDONLY/O_WRONLY/O_RDWR that way.
func openFlags(dirflags uint32, oflags uint16, rights uint64, fdflags uint16) (experimentalsys.Oflag, Errno) {
	const writeRights = RightFdWrite | RightFdAllocate | RightFdFilestatSetSize
	const readRights = RightFdRead | RightFdReaddir

	var flag experimentalsys.Oflag
	canWrite := rights&writeRights != 0
	canRead := rights&readRights != 0

	if oflags&OflagDirectory != 0 {
		if oflags&(OflagCreat|OflagTrunc) != 0 {
			return 0, ErrnoInval
		}
		flag = experimentalsys.O_RDONLY | experimentalsys.O_DIRECTORY
	} else {
		switch {
		case canWrite && canRead:
			flag = experimentalsys.O_RDWR
		case canWrite:
			flag = experimentalsys.O_WRONLY
		case oflags&OflagTrunc != 0:
			flag = experimentalsys.O_RDWR
		default:
			flag = experimentalsys.O_RDONLY
		}
	}

	if oflags&OflagCreat != 0 {
		flag |= experimentalsys.O_CREAT
	}
	if oflags&OflagExcl != 0 {
		flag |= experimentalsys.O_EXCL
	}
	if oflags&OflagTrunc != 0 {
		flag |= experimentalsys.O_TRUNC
	}
	if fdflags&FdflagAppend != 0 {
		flag |= experimentalsys.O_APPEND
	}
	if fdflags&FdflagDsync != 0 {
		flag |= experimentalsys.O_DSYNC
	}
	if fdflags&FdflagRsync != 0 {
		flag |= experimentalsys.O_RSYNC
	}
	if fdflags&FdflagSync != 0 {
		flag |= experimentalsys.O_SYNC
	}
	if fdflags&FdflagNonblock != 0 {
		flag |= experimentalsys.O_NONBLOCK
	}
	if dirflags&LookupSymlinkFollow == 0 {
		flag |= experimentalsys.O_NOFOLLOW
	}
	return flag, ErrnoSuccess
}

// PathReadlink writes the target of a symbolic link, truncated to bufLen.
func (w *WASI) PathReadlink(_ context.Context, mem wasirunner.Memory, fd, pathPtr, pathLen, buf, bufLen, bufused int32) Errno {
	d, p, errno := w.at(mem, fd, pathPtr, pathLen)
	if errno != ErrnoSuccess {
		return errno
	}
	target, serr := d.fs.Readlink(p)
	if serr != 0 {
		return FromSys(serr)
	}
	b := []byte(target)
	if uint32(len(b)) > uint32(bufLen) {
		b = b[:uint32(bufLen)]
	}
	if errno := putBytes(mem, uint32(buf), b); errno != ErrnoSuccess {
		return errno
	}
	return putU32(mem, bufused, uint32(len(b)))
}

// PathRemoveDirectory removes an empty directory.
func (w *WASI) PathRemoveDirectory(_ context.Context, mem wasirunner.Memory, fd, pathPtr, pathLen int32) Errno {
	d, p, errno := w.at(mem, fd, pathPtr, pathLen)
	if errno != ErrnoSuccess {
		return errno
	}
	if p == d.path {
		return ErrnoBusy
	}
	return FromSys(d.fs.Rmdir(p))
}

// PathRename renames a file or directory. Both paths must be on the same mount.
func (w *WASI) PathRename(_ context.Context, mem wasirunner.Memory, fd, oldPath, oldPathLen, newFd, newPath, newPathLen int32) Errno {
	src, from, errno := w.at(mem, fd, oldPath, oldPathLen)
	if errno != ErrnoSuccess {
		return errno
	}
	dst, to, errno := w.at(mem, newFd, newPath, newPathLen)
	if errno != ErrnoSuccess {
		return errno
	}
	if src.mount != dst.mount {
		return ErrnoXdev
	}
	return FromSys(src.fs.Rename(from, to))
}

// PathSymlink creates a symbolic link at newPath pointing to oldPath. The
// target, taken relative to the link's directory, must stay inside the mount.
func (w *WASI) PathSymlink(_ context.Context, mem wasirunner.Memory, oldPath, oldPathLen, fd, newPath, newPathLen int32) Errno {
	target, errno := readString(mem, oldPath, oldPathLen)
	if errno != ErrnoSuccess {
		return errno
	}
	d, p, errno := w.at(mem, fd, newPath, newPathLen)
	if errno != ErrnoSuccess {
		return errno
	}
	if _, errno := resolvePath(path.Dir(p), target); errno != ErrnoSuccess {
		return errno
	}
	return FromSys(d.fs.Symlink(target, p))
}

// PathUnlinkFile removes a file.
func (w *WASI) PathUnlinkFile(_ context.Context, mem wasirunner.Memory, fd, pathPtr, pathLen int32) Errno {
	d, p, errno := w.at(mem, fd, pathPtr, pathLen)
	if errno != ErrnoSuccess {
		return errno
	}
	return FromSys(d.fs.Unlink(p))
}
