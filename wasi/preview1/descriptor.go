package preview1

import (
	"errors"
	"io"
	"io/fs"
	"net"
	"os"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/sys"
)

type descriptorKind uint8

const (
	kindStdio descriptorKind = iota
	kindFile
	kindDir
	kindListener
	kindConn
)

// descriptor is one entry of the fd table.
type descriptor struct {
	file     experimentalsys.File
	fs       experimentalsys.FS
	listener net.Listener
	conn     net.Conn
	dirents  []experimentalsys.Dirent
	path     string // location within fs, "." for a mount root
	preopen  string // guest path; set only for preopened directories
	mount    int
	rights   uint64
	flags    uint16
	kind     descriptorKind
	filetype Filetype
}

// Drop releases the host object behind the descriptor.
func (d *descriptor) Drop() {
	switch d.kind {
	case kindFile, kindDir:
		if d.file != nil {
			_ = d.file.Close()
		}
	case kindListener:
		_ = d.listener.Close()
	case kindConn:
		_ = d.conn.Close()
	case kindStdio:
		// host stdio streams are owned by the embedder
	}
}

func (d *descriptor) read(p []byte) (int, Errno) {
	switch d.kind {
	case kindDir:
		return 0, ErrnoIsdir
	case kindListener:
		return 0, ErrnoNotconn
	case kindConn:
		n, err := d.conn.Read(p)
		return n, netErrno(err)
	default:
		n, errno := d.file.Read(p)
		return n, FromSys(errno)
	}
}

func (d *descriptor) write(p []byte) (int, Errno) {
	switch d.kind {
	case kindDir:
		return 0, ErrnoIsdir
	case kindListener:
		return 0, ErrnoNotconn
	case kindConn:
		n, err := d.conn.Write(p)
		return n, netErrno(err)
	default:
		n, errno := d.file.Write(p)
		return n, FromSys(errno)
	}
}

// seekable returns the regular file behind d, or the errno describing why
// positioned I/O is impossible.
func (d *descriptor) seekable() (experimentalsys.File, Errno) {
	switch d.kind {
	case kindFile:
		return d.file, ErrnoSuccess
	case kindDir:
		return nil, ErrnoIsdir
	default:
		return nil, ErrnoSpipe
	}
}

func (d *descriptor) stat() (sys.Stat_t, Errno) {
	switch d.kind {
	case kindListener, kindConn:
		return sys.Stat_t{Mode: fs.ModeSocket}, ErrnoSuccess
	default:
		st, errno := d.file.Stat()
		return st, FromSys(errno)
	}
}

// filetypeOf maps a file mode to its WASI file type.
func filetypeOf(mode fs.FileMode) Filetype {
	switch {
	case mode&fs.ModeDir != 0:
		return FiletypeDirectory
	case mode&fs.ModeSymlink != 0:
		return FiletypeSymbolicLink
	case mode&fs.ModeSocket != 0:
		return FiletypeSocketStream
	case mode&fs.ModeDevice != 0:
		if mode&fs.ModeCharDevice != 0 {
			return FiletypeCharacterDevice
		}
		return FiletypeBlockDevice
	case mode&fs.ModeCharDevice != 0:
		return FiletypeCharacterDevice
	case mode&fs.ModeType == 0:
		return FiletypeRegularFile
	default:
		return FiletypeUnknown
	}
}

// stdioFile adapts host streams to the filesystem File interface.
type stdioFile struct {
	experimentalsys.UnimplementedFile
	r    io.Reader
	w    io.Writer
	mode fs.FileMode
}

func newStdioFile(r io.Reader, w io.Writer) *stdioFile {
	f := &stdioFile{r: r, w: w}
	var stream any = r
	if w != nil {
		stream = w
	}
	switch {
	case isTerminal(stream):
		f.mode = fs.ModeDevice | fs.ModeCharDevice | 0o620
	default:
		f.mode = fs.ModeNamedPipe | 0o600
		if osf, ok := stream.(*os.File); ok {
			if info, err := osf.Stat(); err == nil {
				f.mode = info.Mode()
			}
		}
	}
	return f
}

func (f *stdioFile) IsAppend() bool {
	return f.w != nil
}

func (f *stdioFile) SetAppend(bool) experimentalsys.Errno {
	return 0
}

func (f *stdioFile) Stat() (sys.Stat_t, experimentalsys.Errno) {
	return sys.Stat_t{Mode: f.mode, Nlink: 1}, 0
}

func (f *stdioFile) Read(p []byte) (int, experimentalsys.Errno) {
	if f.r == nil {
		return 0, experimentalsys.EBADF
	}
	if len(p) == 0 {
		return 0, 0
	}
	n, err := f.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, experimentalsys.UnwrapOSError(err)
	}
	return n, 0
}

func (f *stdioFile) Write(p []byte) (int, experimentalsys.Errno) {
	if f.w == nil {
		return 0, experimentalsys.EBADF
	}
	n, err := f.w.Write(p)
	if err != nil {
		return n, experimentalsys.UnwrapOSError(err)
	}
	return n, 0
}

func (f *stdioFile) Sync() experimentalsys.Errno {
	if s, ok := f.w.(interface{ Sync() error }); ok {
		// Syncing a terminal or pipe fails with EINVAL on most hosts.
		_ = s.Sync()
	}
	return 0
}

func (f *stdioFile) Datasync() experimentalsys.Errno {
	return f.Sync()
}

// netErrno converts a net package error into a WASI code.
func netErrno(err error) Errno {
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return ErrnoSuccess
	case errors.Is(err, net.ErrClosed):
		return ErrnoBadf
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrnoAgain
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrnoAgain
	}
	return FromError(err)
}
