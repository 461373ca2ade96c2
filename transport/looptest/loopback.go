// Package looptest provides an in-memory transport.Port pair for exercising
// the protocol stack without real hardware. It is the adaptation of
// github.com/daedaluz/goserial's pty_linux.go OpenPTY (which hands back a
// connected master/slave pseudoterminal pair) to a buffer-backed pair that
// needs no kernel tty support, for use from package tests across this
// module.
package looptest

import (
	"sync"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/internal/xerr"
)

// Port is one end of a loopback pair: bytes written to it appear on its
// peer's read side, and vice versa. It implements transport.Port.
type Port struct {
	mu     sync.Mutex
	cond   *sync.Cond
	inbox  []byte
	peer   *Port
	closed bool
}

// Pair returns two connected Ports, analogous to OpenPTY's master/slave.
func Pair() (a, b *Port) {
	a = &Port{}
	b = &Port{}
	a.cond = sync.NewCond(&a.mu)
	b.cond = sync.NewCond(&b.mu)
	a.peer = b
	b.peer = a
	return a, b
}

// Write delivers data to the peer's inbox.
func (p *Port) Write(data []byte) (int, error) {
	peer := p.peer
	peer.mu.Lock()
	defer peer.mu.Unlock()
	if peer.closed {
		return 0, xerr.New(xerr.Transport, "looptest: peer closed")
	}
	peer.inbox = append(peer.inbox, data...)
	peer.cond.Broadcast()
	return len(data), nil
}

// ReadFull blocks until len(buf) bytes are available in this port's inbox.
func (p *Port) ReadFull(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.inbox) < len(buf) {
		if p.closed {
			return 0, xerr.New(xerr.Transport, "looptest: closed")
		}
		p.cond.Wait()
	}
	n := copy(buf, p.inbox)
	p.inbox = p.inbox[n:]
	return n, nil
}

// Available reports how many bytes are queued in this port's inbox.
func (p *Port) Available() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inbox), nil
}

// Close marks the port closed and wakes any blocked reader.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return xerr.New(xerr.Transport, "looptest: already closed")
	}
	p.closed = true
	p.cond.Broadcast()
	return nil
}
