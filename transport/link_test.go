package transport_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/transport"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/transport/looptest"
)

func TestLinkReadCompletionOrder(t *testing.T) {
	host, board := looptest.Pair()
	defer host.Close()
	defer board.Close()

	link := transport.New(host)

	var first, second []byte
	link.Read(2, func(buf []byte) { first = append([]byte(nil), buf...) })
	link.Read(3, func(buf []byte) { second = append([]byte(nil), buf...) })

	_, err := board.Write([]byte{0xAA, 0xBB})
	require.NoError(t, err)
	link.Task()
	require.Nil(t, second, "second read must not complete before the first")

	_, err = board.Write([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	link.Task()

	require.Equal(t, []byte{0xAA, 0xBB}, first)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, second)
}

func TestLinkFlushesAtThreshold(t *testing.T) {
	host, board := looptest.Pair()
	defer host.Close()
	defer board.Close()

	link := transport.New(host)
	link.Write(make([]byte, 63))

	buf := make([]byte, 63)
	_, err := board.ReadFull(buf)
	require.NoError(t, err)
}

func TestLinkFlushTimeout(t *testing.T) {
	host, board := looptest.Pair()
	defer host.Close()
	defer board.Close()

	link := transport.New(host)
	link.Write([]byte{0x01, 0x02})

	time.Sleep(5 * time.Millisecond)
	link.Task()

	buf := make([]byte, 2)
	_, err := board.ReadFull(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, buf)
}

func TestLinkLatchesReadError(t *testing.T) {
	host, board := looptest.Pair()
	link := transport.New(host)

	board.Close()
	require.NoError(t, host.Close())

	_, err := link.ReadBlocking(1)
	require.Error(t, err)
	require.Error(t, link.Err())

	_, err = link.ReadBlocking(1)
	require.Equal(t, link.Err(), err)
}
