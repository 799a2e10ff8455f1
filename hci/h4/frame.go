package h4

import (
	"fmt"
	"time"

	"github.com/rigado/blesim/hci"
)

const (
	commandHeaderLength = 4
	aclHeaderLength     = 5
	eventHeaderLength   = 3

	frameTimeout = 500 * time.Millisecond
)

// frame reassembles command, ACL and event packets from an H4 byte stream.
// Bytes ahead of a packet type indicator are dropped, and a partial packet
// is discarded once frameTimeout passes without it completing.
type frame struct {
	b       []byte
	timeout time.Time
	out     chan<- []byte
	done    <-chan struct{}
	pktType byte
}

func newFrame(c chan<- []byte, done <-chan struct{}) *frame {
	fr := &frame{
		b:    make([]byte, 0, 260),
		out:  c,
		done: done,
	}

	return fr
}

func (f *frame) Assemble(b []byte) {
	switch {
	case len(b) == 0:
		return

	case !f.timeout.IsZero() && time.Now().After(f.timeout):
		// stale partial packet
		fallthrough
	case f.b == nil:
		f.reset()

	default:
	}

	if len(f.b) == 0 {
		if err := f.waitStart(b); err != nil {
			return
		}
	} else {
		f.b = append(f.b, b...)
	}

	rf, err := f.frame()
	if err != nil {
		return
	}
	out := make([]byte, len(rf))
	copy(out, rf)
	select {
	case f.out <- out:
	case <-f.done:
		return
	}

	// shift
	if len(f.b) > len(rf) {
		rem := make([]byte, len(f.b[len(rf):]))
		copy(rem, f.b[len(rf):])
		f.reset()
		f.Assemble(rem)
	} else {
		f.reset()
	}
}

func (f *frame) reset() {
	f.b = make([]byte, 0, 260)
	f.timeout = time.Time{}
}

func (f *frame) waitStart(b []byte) error {
	for i, v := range b {
		switch v {
		case hci.PktTypeCommand, hci.PktTypeACLData, hci.PktTypeEvent:
			f.pktType = v
			f.timeout = time.Now().Add(frameTimeout)
			f.b = append(f.b, b[i:]...)
			return nil
		}
	}
	return fmt.Errorf("couldn't find start byte")
}

func (f *frame) dataLength() (int, error) {
	switch f.pktType {
	case hci.PktTypeCommand:
		if len(f.b) < commandHeaderLength {
			return 0, fmt.Errorf("not enough bytes")
		}
		return int(f.b[3]) + commandHeaderLength, nil

	case hci.PktTypeACLData:
		if len(f.b) < aclHeaderLength {
			return 0, fmt.Errorf("not enough bytes")
		}
		return (int(f.b[3]) | int(f.b[4])<<8) + aclHeaderLength, nil

	case hci.PktTypeEvent:
		if len(f.b) < eventHeaderLength {
			return 0, fmt.Errorf("not enough bytes")
		}
		return int(f.b[2]) + eventHeaderLength, nil

	default:
		return 0, fmt.Errorf("invalid packet type %v", f.pktType)
	}
}

func (f *frame) frame() ([]byte, error) {
	tl, err := f.dataLength()
	if err != nil {
		return nil, err
	}

	if len(f.b) < tl {
		return nil, fmt.Errorf("not enough bytes")
	}
	return f.b[:tl], nil
}
