// Package jedec parses JEDEC (JESD3-style) fuse-map files into the
// row/feature data DeviceSequencer.Program needs, following JedecFile's
// field-scanning parser in the original source.
package jedec

import (
	"bufio"
	"io"
	"math/big"
	"strings"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/internal/xerr"
)

// RowSource is the row/feature data a device sequencer programs from. Both
// File (this package) and bitstream.Reader implement it, resolving the
// spec's BitstreamFile contract (see DESIGN.md).
type RowSource interface {
	// ConfigRows returns the configuration-flash rows (128 bits each),
	// with any EBR initialization rows appended.
	ConfigRows() []*big.Int
	// UFMRows returns the user flash memory rows, or nil if the source
	// has none.
	UFMRows() []*big.Int
	// FeatureRow returns the 64-bit feature row value.
	FeatureRow() *big.Int
	// FeatureBits returns the 16-bit feature bits value.
	FeatureBits() *big.Int
	// NumRows is the total row count used for progress reporting.
	NumRows() int
}

// File is a parsed JEDEC fuse map.
type File struct {
	cfgData     []*big.Int
	ebrData     []*big.Int
	ufmData     []*big.Int
	featureRow  *big.Int
	featureBits *big.Int
}

// Parse reads a JEDEC file from r. It scans '*'-terminated fields the way
// JedecFile._parse does: an "L..." field holds fuse rows, tagged by the
// most recent "NOTE" field's text (EBR_INIT DATA, TAG DATA, or config data
// by default); an "E..." field holds the feature row and feature bits.
func Parse(r io.Reader) (*File, error) {
	f := &File{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var field []string
	lastNote := ""

	flush := func() error {
		if len(field) == 0 {
			return nil
		}
		head := field[0]
		switch {
		case strings.HasPrefix(head, "NOTE"):
			if len(head) > 5 {
				lastNote = strings.TrimSuffix(head[5:], "*")
			}
		case strings.HasPrefix(head, "L"):
			rows := make([]*big.Int, 0, len(field)-1)
			for _, line := range field[1:] {
				line = strings.TrimSuffix(line, "*")
				if line == "" {
					continue
				}
				v, err := parseFuseLine(line)
				if err != nil {
					return err
				}
				rows = append(rows, v)
			}
			switch {
			case strings.Contains(lastNote, "EBR_INIT DATA"):
				f.ebrData = rows
			case strings.Contains(lastNote, "END CONFIG DATA"):
				// ignored, matches the original parser
			case strings.Contains(lastNote, "TAG DATA"):
				f.ufmData = rows
			default:
				f.cfgData = rows
			}
		case strings.HasPrefix(head, "E"):
			if len(field) < 2 {
				return xerr.New(xerr.Protocol, "jedec: truncated E field")
			}
			row, err := parseFuseLine(strings.TrimPrefix(head, "E"))
			if err != nil {
				return err
			}
			bits, err := parseFuseLine(strings.TrimSuffix(field[1], "*"))
			if err != nil {
				return err
			}
			f.featureRow = row
			f.featureBits = bits
		}
		field = field[:0]
		return nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		field = append(field, line)
		if strings.Contains(line, "*") {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, xerr.Wrap(xerr.Protocol, "jedec: read", err)
	}
	if f.featureRow == nil {
		f.featureRow = new(big.Int)
	}
	if f.featureBits == nil {
		f.featureBits = new(big.Int)
	}
	return f, nil
}

// parseFuseLine mirrors JedecFile._parse's line_to_int: the fuse string is
// reversed before being parsed as a base-2 integer, since JEDEC stores the
// least-significant fuse first.
func parseFuseLine(line string) (*big.Int, error) {
	line = strings.TrimSpace(line)
	reversed := make([]byte, len(line))
	for i := 0; i < len(line); i++ {
		reversed[len(line)-1-i] = line[i]
	}
	v, ok := new(big.Int).SetString(string(reversed), 2)
	if !ok {
		return nil, xerr.New(xerr.Protocol, "jedec: malformed fuse line")
	}
	return v, nil
}

func (f *File) ConfigRows() []*big.Int {
	if f.ebrData == nil {
		return f.cfgData
	}
	rows := make([]*big.Int, 0, len(f.cfgData)+len(f.ebrData))
	rows = append(rows, f.cfgData...)
	rows = append(rows, f.ebrData...)
	return rows
}

func (f *File) UFMRows() []*big.Int { return f.ufmData }

func (f *File) FeatureRow() *big.Int { return f.featureRow }

func (f *File) FeatureBits() *big.Int { return f.featureBits }

func (f *File) NumRows() int {
	return len(f.cfgData) + len(f.ebrData) + len(f.ufmData)
}

var _ RowSource = (*File)(nil)
