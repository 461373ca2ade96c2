package svf_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/jtagops"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/jtagtap"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/programmer"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/svf"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/transport"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/transport/looptest"
)

func newPlayer(t *testing.T) (*svf.Player, *transport.Link, *looptest.Port) {
	t.Helper()
	host, board := looptest.Pair()
	t.Cleanup(func() { host.Close(); board.Close() })
	link := transport.New(host)
	prog := programmer.NewJTAG(link)
	link.Flush()
	_, err := board.ReadFull(make([]byte, 2+5*8))
	require.NoError(t, err)
	ops := jtagops.New(prog)
	ops.Tracker().SetCurrent(jtagtap.Idle)
	return svf.NewPlayer(ops), link, board
}

// STATE bit-bangs TMS pulses but never waits on a device reply, so it runs
// to completion with nothing flushed to the wire until we ask for it.
func TestRunStateCommandDrivesTracker(t *testing.T) {
	p, link, board := newPlayer(t)

	require.NoError(t, p.Run(strings.NewReader("STATE IRPAUSE;")))
	link.Flush()

	seqLen := len(jtagtap.TMSSequence(jtagtap.Idle, jtagtap.IRPause))
	_, err := board.ReadFull(make([]byte, seqLen*2))
	require.NoError(t, err)
}

// An unmasked SDR is a write-only TDI shift — also reply-free.
func TestRunSDRWithoutMaskWritesOnly(t *testing.T) {
	p, link, board := newPlayer(t)

	require.NoError(t, p.Run(strings.NewReader("SDR 8 TDI (ab);")))
	link.Flush()

	toDRShift := len(jtagtap.TMSSequence(jtagtap.Idle, jtagtap.DRShift))
	_, err := board.ReadFull(make([]byte, toDRShift*2))
	require.NoError(t, err)

	header := make([]byte, 4) // 3-byte header + 1 payload byte (write-only TDI)
	_, err = board.ReadFull(header)
	require.NoError(t, err)
	require.Equal(t, byte(0xab), header[3])

	toDRPause := len(jtagtap.TMSSequence(jtagtap.DRExit1, jtagtap.DRPause))
	_, err = board.ReadFull(make([]byte, toDRPause*2))
	require.NoError(t, err)
}

func TestRunSDRWithMaskComparesAndErrorsOnMismatch(t *testing.T) {
	p, _, board := newPlayer(t)

	done := make(chan error, 1)
	go func() { done <- p.Run(strings.NewReader("SDR 8 TDI (00) TDO (ab) MASK (ff);")) }()

	toDRShift := len(jtagtap.TMSSequence(jtagtap.Idle, jtagtap.DRShift))
	_, err := board.ReadFull(make([]byte, toDRShift*2))
	require.NoError(t, err)

	header := make([]byte, 3) // SIEShiftTDO is read-only: no output payload
	_, err = board.ReadFull(header)
	require.NoError(t, err)

	// Reply with a value that doesn't match the expected 0xab under 0xff.
	_, err = board.Write([]byte{0xcd})
	require.NoError(t, err)

	err = <-done
	require.Error(t, err)
}
