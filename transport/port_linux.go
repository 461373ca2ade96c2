package transport

import (
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
	"github.com/daedaluz/fdev/poll"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/internal/xerr"
)

// pollSlice bounds how long a single ReadFull iteration blocks in
// poll.WaitInput before re-checking for a concurrent Close, mirroring
// goserial's readTimeout/poll.WaitInput pairing but re-armed in a loop
// rather than given the caller's whole deadline at once.
const pollSlice = 50 * time.Millisecond

// termios2, the ioctl flag words, and the raw request numbers below are
// trimmed from github.com/daedaluz/goserial's port_linux.go down to what a
// raw 8N1 port at an arbitrary (possibly non-standard, e.g. 12,000,000)
// baud rate needs: termios2 carries ISpeed/OSpeed directly rather than an
// index into the fixed B-constant table, via the BOTHER control flag.
type termios2 struct {
	Iflag  uint32
	Oflag  uint32
	Cflag  uint32
	Lflag  uint32
	Line   byte
	Cc     [19]byte
	ISpeed uint32
	OSpeed uint32
}

const (
	iCRNL  = 0000400
	iIXON  = 0002000
	oPOST  = 0000001
	lISIG  = 0000001
	lICANON = 0000002
	lECHO  = 0000010
	lIEXTEN = 0100000

	cBOTHER = 0010000
	cCS8    = 0000060
	cCREAD  = 0000200
	cCLOCAL = 0004000

	vmin  = 6
	vtime = 5
)

// makeRaw clears the flags that would otherwise let the kernel tty layer
// interpret bytes (line editing, signal characters, CR/NL translation) —
// the link must see the programmer's opcode stream byte for byte.
func (t *termios2) makeRaw(baud uint32) {
	t.Iflag &^= iCRNL | iIXON
	t.Oflag &^= oPOST
	t.Lflag &^= lISIG | lICANON | lECHO | lIEXTEN
	t.Cflag = cBOTHER | cCS8 | cCREAD | cCLOCAL
	t.ISpeed = baud
	t.OSpeed = baud
	t.Cc[vmin] = 1
	t.Cc[vtime] = 0
}

// Port is a thin, Open-returned handle onto a Linux tty device, adapted
// from goserial's *Port but scoped to what the serial link needs: raw-mode
// open at a custom baud, unbuffered write, blocking full-buffer read, and
// an input-queue byte count for the link's Task poll.
type Port struct {
	closed atomic.Bool
	fd     int
}

// Open opens name (e.g. "/dev/ttyACM0") and switches it to raw mode at baud.
func Open(name string, baud uint32) (*Port, error) {
	fd, err := syscall.Open(name, syscall.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, xerr.Wrap(xerr.Transport, "open "+name, err)
	}
	p := &Port{fd: fd}
	if err := p.setRaw(baud); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Port) setRaw(baud uint32) error {
	var t termios2
	if err := ioctlPtr(p.fd, tcgets2, unsafe.Pointer(&t)); err != nil {
		return xerr.Wrap(xerr.Transport, "TCGETS2", err)
	}
	t.makeRaw(baud)
	if err := ioctlPtr(p.fd, tcsets2, unsafe.Pointer(&t)); err != nil {
		return xerr.Wrap(xerr.Transport, "TCSETS2", err)
	}
	return nil
}

func ioctlPtr(fd int, req uintptr, p unsafe.Pointer) error {
	return ioctl.Ioctl(uintptr(fd), req, uintptr(p))
}

// Write sends data to the port. It does not itself chunk or pace writes;
// that is the serial-link layer's job.
func (p *Port) Write(data []byte) (int, error) {
	if p.closed.Load() {
		return 0, xerr.New(xerr.Transport, "port already closed")
	}
	n, err := syscall.Write(p.fd, data)
	if err != nil {
		return n, xerr.Wrap(xerr.Transport, "write", err)
	}
	return n, nil
}

// ReadFull blocks until len(buf) bytes have been read or an error occurs.
// Each byte's arrival is awaited with fdev/poll.WaitInput in pollSlice-sized
// waits — the same WaitInput-then-Read pairing goserial's Port.readTimeout
// uses, re-armed here in a loop so a concurrent Close unblocks the read
// within one slice instead of leaving it parked on the kernel indefinitely.
func (p *Port) ReadFull(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		if p.closed.Load() {
			return total, xerr.New(xerr.Transport, "port already closed")
		}
		n, err := p.readTimeout(buf[total:], pollSlice)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return total, xerr.Wrap(xerr.Transport, "read", err)
		}
		if n == 0 {
			continue
		}
		total += n
	}
	return total, nil
}

// readTimeout waits for input with the given slice timeout, then issues one
// Read, following goserial's Port.readTimeout.
func (p *Port) readTimeout(data []byte, timeout time.Duration) (int, error) {
	if err := poll.WaitInput(p.fd, timeout); err != nil {
		return 0, err
	}
	return syscall.Read(p.fd, data)
}

// isTimeout reports whether err is the expiry of a WaitInput slice rather
// than a real transport fault, so ReadFull can simply re-poll.
func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	t, ok := err.(timeouter)
	return ok && t.Timeout()
}

// Available reports how many bytes are queued to be read without blocking.
func (p *Port) Available() (int, error) {
	if p.closed.Load() {
		return 0, xerr.New(xerr.Transport, "port already closed")
	}
	var n int32
	if err := ioctlPtr(p.fd, tiocinq, unsafe.Pointer(&n)); err != nil {
		return 0, xerr.Wrap(xerr.Transport, "TIOCINQ", err)
	}
	return int(n), nil
}

func (p *Port) Close() error {
	if p.closed.Swap(true) {
		return xerr.New(xerr.Transport, "port already closed")
	}
	return syscall.Close(p.fd)
}
