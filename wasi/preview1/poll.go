package preview1

import (
	"context"
	"time"

	wasirunner "github.com/wippyai/wasi-runner"
)

type clockWait struct {
	userdata uint64
	deadline int64 // on the monotonic clock
}

// PollOneoff waits for the first of nsubscriptions events and writes the
// triggered events to out. Descriptor subscriptions are reported ready at
// once; clock subscriptions block until their deadline or ctx is done.
func (w *WASI) PollOneoff(ctx context.Context, mem wasirunner.Memory, in, out, nsubscriptions, nevents int32) Errno {
	if nsubscriptions <= 0 {
		return ErrnoInval
	}
	count := uint32(nsubscriptions)
	size, ok := span(uint32(in), count, sizeSubscription)
	if !ok {
		return ErrnoFault
	}
	if _, ok := span(uint32(out), count, sizeEvent); !ok {
		return ErrnoFault
	}
	subs, errno := readBytes(mem, uint32(in), size)
	if errno != ErrnoSuccess {
		return errno
	}
	if _, err := mem.Read(uint32(out), count*sizeEvent); err != nil {
		return ErrnoFault
	}
	if errno := putU32(mem, nevents, 0); errno != ErrnoSuccess {
		return errno
	}

	now := w.nanotime()
	var events []byte
	var clocks []clockWait
	for i := uint32(0); i < count; i++ {
		sub := subs[i*sizeSubscription:]
		userdata := le.Uint64(sub[0:])
		tag := sub[8]
		switch tag {
		case EventtypeClock:
			id := le.Uint32(sub[16:])
			timeout := int64(le.Uint64(sub[24:]))
			flags := le.Uint16(sub[40:])
			deadline, errno := w.deadline(id, timeout, flags, now)
			if errno != ErrnoSuccess {
				events = append(events, encodeEvent(userdata, errno, tag)...)
				continue
			}
			clocks = append(clocks, clockWait{userdata: userdata, deadline: deadline})
		case EventtypeFdRead, EventtypeFdWrite:
			fd := int32(le.Uint32(sub[16:]))
			_, errno := w.lookup(fd)
			events = append(events, encodeEvent(userdata, errno, tag)...)
		default:
			return ErrnoInval
		}
	}

	if len(events) == 0 && len(clocks) > 0 {
		first := clocks[0]
		for _, c := range clocks[1:] {
			if c.deadline < first.deadline {
				first = c
			}
		}
		if wait := first.deadline - now; wait > 0 {
			timer := time.NewTimer(time.Duration(wait))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ErrnoIntr
			case <-timer.C:
			}
		}
		now = w.nanotime()
		for _, c := range clocks {
			if c == first || c.deadline <= now {
				events = append(events, encodeEvent(c.userdata, ErrnoSuccess, EventtypeClock)...)
			}
		}
	}

	if errno := putBytes(mem, uint32(out), events); errno != ErrnoSuccess {
		return errno
	}
	return putU32(mem, nevents, uint32(len(events)/sizeEvent))
}

// deadline converts a clock subscription into a monotonic deadline.
func (w *WASI) deadline(id uint32, timeout int64, flags uint16, now int64) (int64, Errno) {
	if flags&SubclockAbstime == 0 {
		if id != ClockRealtime && id != ClockMonotonic {
			return 0, ErrnoInval
		}
		return now + timeout, ErrnoSuccess
	}
	switch id {
	case ClockMonotonic:
		return timeout, ErrnoSuccess
	case ClockRealtime:
		return now + (timeout - w.walltime()), ErrnoSuccess
	default:
		return 0, ErrnoInval
	}
}

func encodeEvent(userdata uint64, errno Errno, tag uint8) []byte {
	buf := make([]byte, sizeEvent)
	le.PutUint64(buf[0:], userdata)
	le.PutUint16(buf[8:], uint16(errno))
	buf[10] = tag
	return buf
}
