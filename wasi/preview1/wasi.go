package preview1

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"path"
	"sort"
	"sync"
	"time"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/experimental/sysfs"
	"github.com/wippyai/wasi-runner/resource"
)

// DefaultMaxFiles bounds the descriptor table.
const DefaultMaxFiles = 1024

// Mount is a directory exposed to the guest as a preopened descriptor.
type Mount struct {
	FS        experimentalsys.FS
	GuestPath string
}

// WASI holds the process-wide preview1 state: arguments, environment, stdio,
// clocks and the descriptor table. Use builder methods to set up. Methods are
// not safe for concurrent use; callers serialize access.
type WASI struct {
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
	random    io.Reader
	walltime  func() int64
	nanotime  func() int64
	fds       *resource.Table[*descriptor]
	initErr   error
	observers []resource.Observer
	args      []string
	env       []string
	mounts    []Mount
	listeners []net.Listener
	maxFiles  int
	once      sync.Once
}

// New creates a WASI instance with empty stdio and no preopens.
func New() *WASI {
	start := time.Now()
	return &WASI{
		stdin:    bytes.NewReader(nil),
		stdout:   io.Discard,
		stderr:   io.Discard,
		random:   rand.Reader,
		walltime: func() int64 { return time.Now().UnixNano() },
		nanotime: func() int64 { return int64(time.Since(start)) },
		maxFiles: DefaultMaxFiles,
	}
}

// WithArgs sets command-line arguments, including argv[0]
func (w *WASI) WithArgs(args ...string) *WASI {
	w.args = args
	return w
}

// WithEnv sets environment variables. They are exposed sorted by key.
func (w *WASI) WithEnv(env map[string]string) *WASI {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w.env = make([]string, 0, len(keys))
	for _, k := range keys {
		w.env = append(w.env, k+"="+env[k])
	}
	return w
}

// WithStdin sets the reader behind fd 0
func (w *WASI) WithStdin(r io.Reader) *WASI {
	w.stdin = r
	return w
}

// WithStdout sets the writer behind fd 1
func (w *WASI) WithStdout(wr io.Writer) *WASI {
	w.stdout = wr
	return w
}

// WithStderr sets the writer behind fd 2
func (w *WASI) WithStderr(wr io.Writer) *WASI {
	w.stderr = wr
	return w
}

// WithPreopen exposes fsys to the guest under guestPath.
func (w *WASI) WithPreopen(guestPath string, fsys experimentalsys.FS) *WASI {
	w.mounts = append(w.mounts, Mount{GuestPath: guestPath, FS: fsys})
	return w
}

// WithDir exposes the host directory hostDir under guestPath, optionally read-only.
func (w *WASI) WithDir(hostDir, guestPath string, readOnly bool) *WASI {
	fsys := sysfs.DirFS(hostDir)
	if readOnly {
		fsys = &sysfs.ReadFS{FS: fsys}
	}
	return w.WithPreopen(guestPath, fsys)
}

// WithListener exposes a pre-opened listening socket for sock_accept.
// Listeners receive descriptors after all preopened directories.
func (w *WASI) WithListener(l net.Listener) *WASI {
	w.listeners = append(w.listeners, l)
	return w
}

// WithRandom sets the source for random_get
func (w *WASI) WithRandom(r io.Reader) *WASI {
	w.random = r
	return w
}

// WithClocks overrides the wall clock (epoch nanoseconds) and the monotonic
// clock (nanoseconds since an arbitrary origin).
func (w *WASI) WithClocks(walltime, nanotime func() int64) *WASI {
	if walltime != nil {
		w.walltime = walltime
	}
	if nanotime != nil {
		w.nanotime = nanotime
	}
	return w
}

// WithMaxFiles bounds the number of open descriptors.
func (w *WASI) WithMaxFiles(n int) *WASI {
	w.maxFiles = n
	return w
}

// Observe registers an observer for descriptor lifecycle events.
func (w *WASI) Observe(o resource.Observer) *WASI {
	w.observers = append(w.observers, o)
	return w
}

// Args returns the command-line arguments
func (w *WASI) Args() []string {
	return w.args
}

// Environ returns the environment as sorted KEY=VALUE strings
func (w *WASI) Environ() []string {
	return w.env
}

// Mounts returns the preopened directories
func (w *WASI) Mounts() []Mount {
	return w.mounts
}

// Open builds the descriptor table: stdio at 0-2, then each mount, then each
// listener. It runs once; later calls return the first result. Every syscall
// calls it, so explicit use is optional.
func (w *WASI) Open() error {
	w.once.Do(func() {
		w.initErr = w.open()
	})
	return w.initErr
}

func (w *WASI) open() error {
	fds := resource.NewTable[*descriptor](w.maxFiles)
	for _, o := range w.observers {
		fds.Subscribe(o)
	}

	stdio := []*stdioFile{
		newStdioFile(w.stdin, nil),
		newStdioFile(nil, w.stdout),
		newStdioFile(nil, w.stderr),
	}
	for i, f := range stdio {
		st, _ := f.Stat()
		ft := filetypeOf(st.Mode)
		rights := RightsAll
		if ft == FiletypeCharacterDevice {
			rights = RightsTTY
		}
		d := &descriptor{kind: kindStdio, file: f, filetype: ft, rights: rights, mount: -1}
		if i > 0 {
			d.flags = FdflagAppend
		}
		if err := fds.InsertAt(resource.Handle(i), d); err != nil {
			return err
		}
	}

	for i, m := range w.mounts {
		if m.FS == nil {
			return errors.New("preopen " + m.GuestPath + ": nil filesystem")
		}
		dir, errno := m.FS.OpenFile(".", experimentalsys.O_RDONLY|experimentalsys.O_DIRECTORY, 0)
		if errno != 0 {
			return &MountError{GuestPath: m.GuestPath, Errno: FromSys(errno)}
		}
		d := &descriptor{
			kind:     kindDir,
			file:     dir,
			fs:       m.FS,
			path:     ".",
			preopen:  cleanGuestPath(m.GuestPath),
			mount:    i,
			filetype: FiletypeDirectory,
			rights:   RightsAll,
		}
		if _, err := fds.Insert(d); err != nil {
			_ = dir.Close()
			return err
		}
	}

	for _, l := range w.listeners {
		d := &descriptor{kind: kindListener, listener: l, filetype: FiletypeSocketStream, rights: RightsAll, mount: -1}
		if _, err := fds.Insert(d); err != nil {
			return err
		}
	}

	w.fds = fds
	return nil
}

// Close closes every open descriptor, including preopens and listeners.
func (w *WASI) Close() error {
	_ = w.Open()
	if w.fds == nil {
		return nil
	}
	return w.fds.Close()
}

// NumOpen returns the number of open descriptors.
func (w *WASI) NumOpen() int {
	if w.Open() != nil {
		return 0
	}
	return w.fds.Len()
}

// MountError reports a preopen that could not be opened.
type MountError struct {
	GuestPath string
	Errno     Errno
}

func (e *MountError) Error() string {
	return "preopen " + e.GuestPath + ": " + e.Errno.Name()
}

func (e *MountError) Unwrap() error {
	return e.Errno
}

func cleanGuestPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean(p)
}

// lookup returns the open descriptor fd.
func (w *WASI) lookup(fd int32) (*descriptor, Errno) {
	if w.Open() != nil {
		return nil, ErrnoIo
	}
	if fd < 0 {
		return nil, ErrnoBadf
	}
	d, ok := w.fds.Get(resource.Handle(fd))
	if !ok {
		return nil, ErrnoBadf
	}
	return d, ErrnoSuccess
}

// install adds d at the lowest free descriptor.
func (w *WASI) install(d *descriptor) (int32, Errno) {
	h, err := w.fds.Insert(d)
	if err != nil {
		if errors.Is(err, resource.ErrFull) {
			return 0, ErrnoMfile
		}
		return 0, ErrnoBadf
	}
	return int32(h), ErrnoSuccess
}
