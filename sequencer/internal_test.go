package sequencer

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/jtagops"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/jtagtap"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/programmer"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/transport"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/transport/looptest"
)

// newTestSequencer builds a Sequencer over a live JTAG-configured ops stack
// backed by an in-memory loopback pair, draining the board side in the
// background. None of programRows/verifyRows/busyPoll ever wait on a device
// reply (their shifts are either write-only or captured inside a loop body),
// so the drain goroutine never needs to write anything back.
func newTestSequencer(t *testing.T) (*Sequencer, *transport.Link) {
	t.Helper()
	host, board := looptest.Pair()
	stop := make(chan struct{})
	t.Cleanup(func() {
		close(stop)
		host.Close()
		board.Close()
	})

	link := transport.New(host)
	prog := programmer.NewJTAG(link)
	link.Flush()
	_, err := board.ReadFull(make([]byte, 2+5*8))
	require.NoError(t, err)

	go func() {
		buf := make([]byte, 4096)
		for {
			select {
			case <-stop:
				return
			default:
			}
			n, err := board.Available()
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}
			if n > len(buf) {
				n = len(buf)
			}
			if _, err := board.ReadFull(buf[:n]); err != nil {
				return
			}
		}
	}()

	return New(jtagops.New(prog)), link
}

func TestProgramRowsCountsAndProgress(t *testing.T) {
	seq, link := newTestSequencer(t)
	seq.ops.Tracker().SetCurrent(jtagtap.Idle)

	rows := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)}
	rowsDone := 0
	var checkpoints int
	err := seq.programRows(context.Background(), rows, &rowsDone, len(rows), func(Progress) {
		checkpoints++
	}, "Writing bitstream")
	require.NoError(t, err)
	require.Equal(t, 3, rowsDone)
	require.Equal(t, 0, checkpoints, "fewer rows than the checkpoint cadence triggers none")
	link.Flush()
}

func TestVerifyRowsCountsRows(t *testing.T) {
	seq, link := newTestSequencer(t)
	seq.ops.Tracker().SetCurrent(jtagtap.Idle)

	rows := []*big.Int{big.NewInt(7), big.NewInt(8)}
	rowsDone := 0
	err := seq.verifyRows(context.Background(), rows, &rowsDone, len(rows), nil, "Verifying bitstream")
	require.NoError(t, err)
	require.Equal(t, 2, rowsDone)
	link.Flush()
}

func TestBusyPollCompletesWithoutDeviceReply(t *testing.T) {
	seq, link := newTestSequencer(t)
	seq.ops.Tracker().SetCurrent(jtagtap.Idle)

	require.NoError(t, seq.busyPoll(100))
	link.Flush()
}

func TestAllOnes(t *testing.T) {
	require.Equal(t, int64(0xff), allOnes(8).Int64())
	require.Equal(t, int64(0), allOnes(0).Int64())
}

func TestCtxErr(t *testing.T) {
	require.NoError(t, ctxErr(nil))
	require.NoError(t, ctxErr(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, ctxErr(ctx))
}
