package jedec_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/jedec"
)

func TestParseConfigRows(t *testing.T) {
	// A single L field spans multiple data lines up to its terminating '*'.
	src := "L0000\n" +
		"1100\n" +
		"0011*\n"

	f, err := jedec.Parse(strings.NewReader(src))
	require.NoError(t, err)

	rows := f.ConfigRows()
	require.Len(t, rows, 2)
	// "1100" reversed is "0011" = 3; the least-significant fuse comes first.
	require.Equal(t, int64(3), rows[0].Int64())
	// "0011" reversed is "1100" = 12.
	require.Equal(t, int64(12), rows[1].Int64())
	require.Equal(t, 2, f.NumRows())
}

func TestParseTagsUFMAndEBRRows(t *testing.T) {
	src := "NOTE TAG DATA*\n" +
		"L0000\n" +
		"1000*\n" +
		"NOTE EBR_INIT DATA*\n" +
		"L0001\n" +
		"0100*\n"

	f, err := jedec.Parse(strings.NewReader(src))
	require.NoError(t, err)

	require.Len(t, f.UFMRows(), 1)
	require.Len(t, f.ConfigRows(), 1, "EBR rows fold into ConfigRows")
	require.Equal(t, 2, f.NumRows())
}

func TestParseFeatureRowAndBits(t *testing.T) {
	src := "E0000000000000001\n" +
		"0000000000000001*\n"

	f, err := jedec.Parse(strings.NewReader(src))
	require.NoError(t, err)

	require.Equal(t, int64(1<<15), f.FeatureRow().Int64())
	require.Equal(t, int64(1<<15), f.FeatureBits().Int64())
}

func TestParseDefaultsFeatureFieldsWhenAbsent(t *testing.T) {
	f, err := jedec.Parse(strings.NewReader("L0000\n1111*\n"))
	require.NoError(t, err)
	require.Equal(t, int64(0), f.FeatureRow().Int64())
	require.Equal(t, int64(0), f.FeatureBits().Int64())
}
