package programmer

import "testing"

func TestCmdByte(t *testing.T) {
	cases := []struct {
		group, payload int
		want           byte
	}{
		{groupControl, 0x00, 0x00},
		{groupUpdate, 0x3f, 0x7f},
		{groupUpdateRB, 0x2a, 0xaa},
	}
	for _, c := range cases {
		if got := cmdByte(c.group, c.payload); got != c.want {
			t.Errorf("cmdByte(%d, %#x) = %#x, want %#x", c.group, c.payload, got, c.want)
		}
	}
}

func TestEncodeBitCount(t *testing.T) {
	cases := []struct {
		numBits          int
		bits, extraBytes byte
	}{
		{0, 0, 0},
		{1, 1, 0},
		{7, 7, 0},
		{8, 8, 0},
		{9, 1, 1},
		{16, 8, 1},
		{208, 8, 25},
	}
	for _, c := range cases {
		bits, extra := encodeBitCount(c.numBits)
		if bits != c.bits || extra != c.extraBytes {
			t.Errorf("encodeBitCount(%d) = (%d, %d), want (%d, %d)",
				c.numBits, bits, extra, c.bits, c.extraBytes)
		}
	}
}
