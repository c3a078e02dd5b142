package preview1

import (
	"encoding/binary"
	"math"

	"github.com/tetratelabs/wazero/sys"
	wasirunner "github.com/wippyai/wasi-runner"
)

var le = binary.LittleEndian

// span computes base+count*size, reporting overflow of the 32-bit address space.
func span(base, count, size uint32) (uint32, bool) {
	total := uint64(count) * uint64(size)
	if uint64(base)+total > math.MaxUint32+1 {
		return 0, false
	}
	return uint32(total), true
}

func readString(mem wasirunner.Memory, ptr, length int32) (string, Errno) {
	b, err := mem.Read(uint32(ptr), uint32(length))
	if err != nil {
		return "", ErrnoFault
	}
	return string(b), ErrnoSuccess
}

// readBytes copies length bytes out of guest memory.
func readBytes(mem wasirunner.Memory, ptr, length uint32) ([]byte, Errno) {
	b, err := mem.Read(ptr, length)
	if err != nil {
		return nil, ErrnoFault
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, ErrnoSuccess
}

func putU32(mem wasirunner.Memory, ptr int32, v uint32) Errno {
	if err := mem.WriteU32(uint32(ptr), v); err != nil {
		return ErrnoFault
	}
	return ErrnoSuccess
}

func putU64(mem wasirunner.Memory, ptr int32, v uint64) Errno {
	if err := mem.WriteU64(uint32(ptr), v); err != nil {
		return ErrnoFault
	}
	return ErrnoSuccess
}

func putBytes(mem wasirunner.Memory, ptr uint32, b []byte) Errno {
	if err := mem.Write(ptr, b); err != nil {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// iovec is one guest buffer of a scatter/gather list.
type iovec struct {
	ptr uint32
	len uint32
}

// readIovecs decodes a ciovec/iovec array and checks that every buffer lies
// within guest memory before any data moves.
func readIovecs(mem wasirunner.Memory, iovs, count int32) ([]iovec, Errno) {
	if count < 0 {
		return nil, ErrnoInval
	}
	size, ok := span(uint32(iovs), uint32(count), sizeIovec)
	if !ok {
		return nil, ErrnoFault
	}
	raw, err := mem.Read(uint32(iovs), size)
	if err != nil {
		return nil, ErrnoFault
	}
	vecs := make([]iovec, count)
	for i := range vecs {
		vecs[i] = iovec{
			ptr: le.Uint32(raw[i*sizeIovec:]),
			len: le.Uint32(raw[i*sizeIovec+4:]),
		}
		if _, err := mem.Read(vecs[i].ptr, vecs[i].len); err != nil {
			return nil, ErrnoFault
		}
	}
	return vecs, ErrnoSuccess
}

func encodeFilestat(st sys.Stat_t, ft Filetype) []byte {
	buf := make([]byte, sizeFilestat)
	le.PutUint64(buf[0:], st.Dev)
	le.PutUint64(buf[8:], st.Ino)
	buf[16] = byte(ft)
	le.PutUint64(buf[24:], st.Nlink)
	le.PutUint64(buf[32:], uint64(st.Size))
	le.PutUint64(buf[40:], uint64(st.Atim))
	le.PutUint64(buf[48:], uint64(st.Mtim))
	le.PutUint64(buf[56:], uint64(st.Ctim))
	return buf
}

func encodeFdstat(ft Filetype, flags uint16, rights, inheriting uint64) []byte {
	buf := make([]byte, sizeFdstat)
	buf[0] = byte(ft)
	le.PutUint16(buf[2:], flags)
	le.PutUint64(buf[8:], rights)
	le.PutUint64(buf[16:], inheriting)
	return buf
}
