package programmer_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/programmer"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/transport"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/transport/looptest"
)

func TestConfigureIOSendsDirectionMask(t *testing.T) {
	host, board := looptest.Pair()
	defer host.Close()
	defer board.Close()

	link := transport.New(host)
	p := programmer.New(link)
	p.ConfigureIO(0b000111)
	link.Flush()

	buf := make([]byte, 2)
	_, err := board.ReadFull(buf)
	require.NoError(t, err)
	require.Equal(t, byte(0x00), buf[0])
	require.Equal(t, byte(0b000111), buf[1])
}

func TestNewJTAGConfiguresFiveSIESlots(t *testing.T) {
	host, board := looptest.Pair()
	defer host.Close()
	defer board.Close()

	link := transport.New(host)
	_ = programmer.NewJTAG(link)
	link.Flush()

	// configure_io (2 bytes) + 5 * configure_sie (8 bytes each).
	buf := make([]byte, 2+5*8)
	_, err := board.ReadFull(buf)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		off := 2 + i*8
		require.Equal(t, byte(0x08+i), buf[off], "sie slot %d opcode", i)
	}
}

func TestShiftTDIWritesLittleEndianPayload(t *testing.T) {
	host, board := looptest.Pair()
	defer host.Close()
	defer board.Close()

	link := transport.New(host)
	p := programmer.NewJTAG(link)

	// Drain the configuration traffic before issuing the shift under test.
	link.Flush()
	cfgLen := 2 + 5*8
	_, err := board.ReadFull(make([]byte, cfgLen))
	require.NoError(t, err)

	data := big.NewInt(0x1234)
	err = p.Shift(programmer.SIEShiftTDI, 16, data, nil, nil, false)
	require.NoError(t, err)
	link.Flush()

	buf := make([]byte, 3+2)
	_, err = board.ReadFull(buf)
	require.NoError(t, err)
	require.Equal(t, byte(0x18+programmer.SIEShiftTDI), buf[0])
	require.Equal(t, []byte{0x34, 0x12}, buf[3:5], "little-endian payload")
}

func TestLoopBodyFramedAsOneWrite(t *testing.T) {
	host, board := looptest.Pair()
	defer host.Close()
	defer board.Close()

	link := transport.New(host)
	p := programmer.NewJTAG(link)
	link.Flush()
	cfgLen := 2 + 5*8
	_, err := board.ReadFull(make([]byte, cfgLen))
	require.NoError(t, err)

	require.NoError(t, p.Loop(3))
	require.NoError(t, p.Shift(programmer.SIEShiftTDI, 8, big.NewInt(0xAB), nil, nil, false))
	require.NoError(t, p.EndLoop())

	// begin_loop opcode + u16 iter count + 3-byte shift header + 1 payload
	// byte + end_loop opcode.
	buf := make([]byte, 3+3+1+1)
	_, err = board.ReadFull(buf)
	require.NoError(t, err)
	require.Equal(t, byte(0x10), buf[0])
	require.Equal(t, byte(3), buf[1])
	require.Equal(t, byte(0), buf[2])
	require.Equal(t, byte(0x18+programmer.SIEShiftTDI), buf[3])
	require.Equal(t, byte(0xAB), buf[6])
	require.Equal(t, byte(0x11), buf[7])
}
