package preview1

import (
	"errors"
	"io"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
)

// Errno is a WASI preview1 error code. Zero means success.
type Errno uint32

const (
	ErrnoSuccess Errno = iota
	Errno2big
	ErrnoAcces
	ErrnoAddrinuse
	ErrnoAddrnotavail
	ErrnoAfnosupport
	ErrnoAgain
	ErrnoAlready
	ErrnoBadf
	ErrnoBadmsg
	ErrnoBusy
	ErrnoCanceled
	ErrnoChild
	ErrnoConnaborted
	ErrnoConnrefused
	ErrnoConnreset
	ErrnoDeadlk
	ErrnoDestaddrreq
	ErrnoDom
	ErrnoDquot
	ErrnoExist
	ErrnoFault
	ErrnoFbig
	ErrnoHostunreach
	ErrnoIdrm
	ErrnoIlseq
	ErrnoInprogress
	ErrnoIntr
	ErrnoInval
	ErrnoIo
	ErrnoIsconn
	ErrnoIsdir
	ErrnoLoop
	ErrnoMfile
	ErrnoMlink
	ErrnoMsgsize
	ErrnoMultihop
	ErrnoNametoolong
	ErrnoNetdown
	ErrnoNetreset
	ErrnoNetunreach
	ErrnoNfile
	ErrnoNobufs
	ErrnoNodev
	ErrnoNoent
	ErrnoNoexec
	ErrnoNolck
	ErrnoNolink
	ErrnoNomem
	ErrnoNomsg
	ErrnoNoprotoopt
	ErrnoNospc
	ErrnoNosys
	ErrnoNotconn
	ErrnoNotdir
	ErrnoNotempty
	ErrnoNotrecoverable
	ErrnoNotsock
	ErrnoNotsup
	ErrnoNotty
	ErrnoNxio
	ErrnoOverflow
	ErrnoOwnerdead
	ErrnoPerm
	ErrnoPipe
	ErrnoProto
	ErrnoProtonosupport
	ErrnoPrototype
	ErrnoRange
	ErrnoRofs
	ErrnoSpipe
	ErrnoSrch
	ErrnoStale
	ErrnoTimedout
	ErrnoTxtbsy
	ErrnoXdev
	ErrnoNotcapable
)

var errnoNames = [...]string{
	"ESUCCESS", "E2BIG", "EACCES", "EADDRINUSE", "EADDRNOTAVAIL", "EAFNOSUPPORT",
	"EAGAIN", "EALREADY", "EBADF", "EBADMSG", "EBUSY", "ECANCELED", "ECHILD",
	"ECONNABORTED", "ECONNREFUSED", "ECONNRESET", "EDEADLK", "EDESTADDRREQ",
	"EDOM", "EDQUOT", "EEXIST", "EFAULT", "EFBIG", "EHOSTUNREACH", "EIDRM",
	"EILSEQ", "EINPROGRESS", "EINTR", "EINVAL", "EIO", "EISCONN", "EISDIR",
	"ELOOP", "EMFILE", "EMLINK", "EMSGSIZE", "EMULTIHOP", "ENAMETOOLONG",
	"ENETDOWN", "ENETRESET", "ENETUNREACH", "ENFILE", "ENOBUFS", "ENODEV",
	"ENOENT", "ENOEXEC", "ENOLCK", "ENOLINK", "ENOMEM", "ENOMSG",
	"ENOPROTOOPT", "ENOSPC", "ENOSYS", "ENOTCONN", "ENOTDIR", "ENOTEMPTY",
	"ENOTRECOVERABLE", "ENOTSOCK", "ENOTSUP", "ENOTTY", "ENXIO", "EOVERFLOW",
	"EOWNERDEAD", "EPERM", "EPIPE", "EPROTO", "EPROTONOSUPPORT", "EPROTOTYPE",
	"ERANGE", "EROFS", "ESPIPE", "ESRCH", "ESTALE", "ETIMEDOUT", "ETXTBSY",
	"EXDEV", "ENOTCAPABLE",
}

// Name returns the POSIX-style name of the code, e.g. "EBADF".
func (e Errno) Name() string {
	if int(e) < len(errnoNames) {
		return errnoNames[e]
	}
	return "EUNKNOWN"
}

// Error implements error so an Errno can travel through error returns.
func (e Errno) Error() string {
	return e.Name()
}

var fromSys = map[experimentalsys.Errno]Errno{
	experimentalsys.EACCES:       ErrnoAcces,
	experimentalsys.EAGAIN:       ErrnoAgain,
	experimentalsys.EBADF:        ErrnoBadf,
	experimentalsys.EEXIST:       ErrnoExist,
	experimentalsys.EFAULT:       ErrnoFault,
	experimentalsys.EINTR:        ErrnoIntr,
	experimentalsys.EINVAL:       ErrnoInval,
	experimentalsys.EIO:          ErrnoIo,
	experimentalsys.EISDIR:       ErrnoIsdir,
	experimentalsys.ELOOP:        ErrnoLoop,
	experimentalsys.ENAMETOOLONG: ErrnoNametoolong,
	experimentalsys.ENOENT:       ErrnoNoent,
	experimentalsys.ENOSYS:       ErrnoNosys,
	experimentalsys.ENOTDIR:      ErrnoNotdir,
	experimentalsys.ERANGE:       ErrnoRange,
	experimentalsys.ENOTEMPTY:    ErrnoNotempty,
	experimentalsys.ENOTSOCK:     ErrnoNotsock,
	experimentalsys.ENOTSUP:      ErrnoNotsup,
	experimentalsys.EPERM:        ErrnoPerm,
	experimentalsys.EROFS:        ErrnoRofs,
}

// FromSys maps a filesystem errno to its WASI code.
func FromSys(errno experimentalsys.Errno) Errno {
	if errno == 0 {
		return ErrnoSuccess
	}
	if e, ok := fromSys[errno]; ok {
		return e
	}
	return ErrnoIo
}

// FromError maps a Go error to its WASI code. io.EOF is not an error.
func FromError(err error) Errno {
	if err == nil || errors.Is(err, io.EOF) {
		return ErrnoSuccess
	}
	var e Errno
	if errors.As(err, &e) {
		return e
	}
	return FromSys(experimentalsys.UnwrapOSError(err))
}
