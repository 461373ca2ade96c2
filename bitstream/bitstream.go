// Package bitstream provides a minimal binary configuration-row source for
// the CLI's --bitstream flag, resolving the BitstreamFile open question
// (see DESIGN.md): it implements jedec.RowSource directly over a flat
// binary file of 128-bit configuration rows, with no EBR/UFM/feature-row
// data of its own.
package bitstream

import (
	"io"
	"math/big"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/internal/xerr"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/jedec"
)

const rowBytes = 16 // 128 bits

// Reader is a jedec.RowSource backed by a flat sequence of 128-bit
// big-endian configuration rows.
type Reader struct {
	rows []*big.Int
}

// Read consumes all of r as a sequence of 128-bit rows. Trailing bytes
// that don't fill a full row are rejected rather than silently dropped.
func Read(r io.Reader) (*Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, xerr.Wrap(xerr.Transport, "bitstream: read", err)
	}
	if len(data)%rowBytes != 0 {
		return nil, xerr.New(xerr.Protocol, "bitstream: length is not a multiple of 16 bytes")
	}
	rows := make([]*big.Int, 0, len(data)/rowBytes)
	for i := 0; i < len(data); i += rowBytes {
		rows = append(rows, new(big.Int).SetBytes(data[i:i+rowBytes]))
	}
	return &Reader{rows: rows}, nil
}

func (r *Reader) ConfigRows() []*big.Int { return r.rows }

func (r *Reader) UFMRows() []*big.Int { return nil }

func (r *Reader) FeatureRow() *big.Int { return new(big.Int) }

func (r *Reader) FeatureBits() *big.Int { return new(big.Int) }

func (r *Reader) NumRows() int { return len(r.rows) }

var _ jedec.RowSource = (*Reader)(nil)
