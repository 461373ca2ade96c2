// Package transport implements the serial link (spec layer L1): buffered,
// asynchronous byte I/O to the USB-serial-attached programmer board.
//
// The buffering and FIFO read-completion design is adapted from
// github.com/daedaluz/goserial, generalized from synchronous termios calls
// to the asynchronous write-buffer/read-queue pump described by the
// protocol spec (and present, underneath the Python bindings, in the
// original TinyFPGA-A programmer's AsyncSerial class).
package transport

import (
	"io"
	"time"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/internal/xerr"
)

// Port is the byte-level transport a Link drives. *Port (this package)
// implements it against a real tty; tests use an in-memory fake.
type Port interface {
	io.Writer
	io.Closer
	// ReadFull blocks until len(buf) bytes have arrived.
	ReadFull(buf []byte) (int, error)
	// Available reports how many bytes are ready to read without blocking.
	Available() (int, error)
}

const (
	// flushThreshold is the write-buffer size (bytes) at which pending
	// writes are drained to the port, per spec section 4.1.
	flushThreshold = 63
	// flushTimeout is how long unflushed write data may sit before Task
	// forces a flush, per spec section 4.1.
	flushTimeout = time.Millisecond
)

// readRequest is one FIFO-ordered pending read.
type readRequest struct {
	n        int
	complete func([]byte)
}

// Link implements spec section 4.1: a pending-write buffer bounded by a
// flush threshold, a FIFO of pending reads, and a last-write timestamp for
// flush-timeout behavior. It is not safe for concurrent use — per spec
// section 5, the link is driven by a single cooperative scheduler.
type Link struct {
	port Port

	pendingWrite []byte
	lastWrite    time.Time

	reads []readRequest

	// err latches the first transport failure; the link does not retry.
	err error
}

// Err returns the first I/O failure observed by Task, ReadBlocking, or
// Flush, or nil if none has occurred. Once set it is sticky — the link is
// expected to be torn down after a transport failure, per spec section 7.
func (l *Link) Err() error {
	return l.err
}

// New wraps port in a Link using the default 63-byte flush threshold and
// 1ms flush timeout.
func New(port Port) *Link {
	return &Link{port: port}
}

// Write appends data to the pending write buffer. When the buffer reaches
// the flush threshold it is drained immediately, mirroring the original
// AsyncSerial.write's "if len(pending) >= write_buffer_size: self.task()".
func (l *Link) Write(data []byte) {
	l.pendingWrite = append(l.pendingWrite, data...)
	l.lastWrite = time.Now()
	if len(l.pendingWrite) >= flushThreshold {
		l.Task()
	}
}

// Read enqueues a read for n bytes; complete fires once n bytes have
// arrived, in the order Read was called relative to other Read calls.
func (l *Link) Read(n int, complete func([]byte)) {
	l.reads = append(l.reads, readRequest{n: n, complete: complete})
}

// ReadBlocking flushes pending writes and synchronously reads n bytes,
// the "blocking=true" variant of spec section 4.1.
func (l *Link) ReadBlocking(n int) ([]byte, error) {
	l.Flush()
	buf := make([]byte, n)
	if _, err := l.port.ReadFull(buf); err != nil {
		l.fail(err)
		return nil, l.err
	}
	return buf, nil
}

func (l *Link) fail(err error) {
	if l.err == nil {
		l.err = xerr.Wrap(xerr.Transport, "serial link", err)
	}
}

// Task is the progress tick described in spec section 4.1: it services the
// head-of-queue read if enough bytes are available, drains the write
// buffer in flushThreshold-sized chunks, and flushes any remainder once it
// has aged past flushTimeout. It returns the outstanding work (reads +
// pending write bytes), which callers can use to decide whether to keep
// pumping.
func (l *Link) Task() int {
	if l.err != nil {
		return 0
	}
	for len(l.reads) > 0 {
		req := l.reads[0]
		avail, err := l.port.Available()
		if err != nil {
			l.fail(err)
			return 0
		}
		if avail < req.n {
			break
		}
		buf := make([]byte, req.n)
		if _, err := l.port.ReadFull(buf); err != nil {
			l.fail(err)
			return 0
		}
		l.reads = l.reads[1:]
		req.complete(buf)
	}

	for len(l.pendingWrite) >= flushThreshold {
		chunk := l.pendingWrite[:flushThreshold]
		if _, err := l.port.Write(chunk); err != nil {
			l.fail(err)
			return 0
		}
		l.pendingWrite = l.pendingWrite[flushThreshold:]
	}

	if len(l.pendingWrite) > 0 && time.Since(l.lastWrite) >= flushTimeout {
		l.Flush()
	}

	return len(l.reads) + len(l.pendingWrite)
}

// Flush synchronously transmits all pending write bytes.
func (l *Link) Flush() {
	if len(l.pendingWrite) == 0 {
		return
	}
	data := l.pendingWrite
	l.pendingWrite = nil
	if _, err := l.port.Write(data); err != nil {
		l.fail(err)
	}
}

// Close releases the underlying port.
func (l *Link) Close() error {
	return l.port.Close()
}
