package sequencer_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/jtagops"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/programmer"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/sequencer"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/transport"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/transport/looptest"
)

func TestStatusFailed(t *testing.T) {
	require.False(t, sequencer.Status(0).Failed())
	require.True(t, sequencer.Status(1).Failed())
	require.Equal(t, "ok", sequencer.Status(0).String())
	require.Equal(t, "failed", sequencer.Status(3).String())
}

// A context cancelled before Program is called must short-circuit before
// any device I/O — Program's first action is a ctx check, ahead of even
// ClearStatus — so this needs no board servicing at all.
func TestProgramReturnsImmediatelyOnCancelledContext(t *testing.T) {
	host, board := looptest.Pair()
	defer host.Close()
	defer board.Close()

	link := transport.New(host)
	prog := programmer.NewJTAG(link)
	link.Flush()
	_, err := board.ReadFull(make([]byte, 2+5*8))
	require.NoError(t, err)

	ops := jtagops.New(prog)
	seq := sequencer.New(ops)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = seq.Program(ctx, fakeRowSource{}, nil)
	require.Error(t, err)
}

type fakeRowSource struct{}

func (fakeRowSource) ConfigRows() []*big.Int  { return nil }
func (fakeRowSource) UFMRows() []*big.Int     { return nil }
func (fakeRowSource) FeatureRow() *big.Int    { return new(big.Int) }
func (fakeRowSource) FeatureBits() *big.Int   { return new(big.Int) }
func (fakeRowSource) NumRows() int            { return 0 }
