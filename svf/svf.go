// Package svf implements a minimal SVF (Serial Vector Format) command
// player over jtagops.Ops, following JtagSvfParser in the original source.
// It is a secondary flow — the primary device-programming path is
// sequencer.Program — kept small per spec section 1's non-goals.
package svf

import (
	"fmt"
	"io"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/internal/xerr"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/jtagops"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/jtagtap"
)

var (
	commentRE = regexp.MustCompile(`!.*?\r?\n`)
	spacesRE  = regexp.MustCompile(`\s+`)
	parensRE  = regexp.MustCompile(`\(|\)`)
)

// Player replays SVF commands onto an Ops, tracking the current ENDDR/ENDIR
// pause states. HDR/HIR/TDR/TIR commands are accepted and ignored: no
// header or trailer padding is applied to shifts.
type Player struct {
	ops *jtagops.Ops

	enddr jtagtap.State
	endir jtagtap.State
}

// NewPlayer builds a Player defaulting ENDDR/ENDIR to DRPAUSE/IRPAUSE, the
// original parser's defaults.
func NewPlayer(ops *jtagops.Ops) *Player {
	return &Player{ops: ops, enddr: jtagtap.DRPause, endir: jtagtap.IRPause}
}

var stateByName = map[string]jtagtap.State{
	"RESET": jtagtap.Reset, "IDLE": jtagtap.Idle,
	"DRSELECT": jtagtap.DRSelect, "DRCAPTURE": jtagtap.DRCapture,
	"DRSHIFT": jtagtap.DRShift, "DREXIT1": jtagtap.DRExit1,
	"DRPAUSE": jtagtap.DRPause, "DREXIT2": jtagtap.DRExit2,
	"DRUPDATE": jtagtap.DRUpdate, "IRSELECT": jtagtap.IRSelect,
	"IRCAPTURE": jtagtap.IRCapture, "IRSHIFT": jtagtap.IRShift,
	"IREXIT1": jtagtap.IRExit1, "IRPAUSE": jtagtap.IRPause,
	"IREXIT2": jtagtap.IRExit2, "IRUPDATE": jtagtap.IRUpdate,
}

// Run reads and replays every command in r. A masked SIR/SDR reads the
// register back and compares it host-side (see shiftIR), so unlike the
// original's print-and-exit behavior, a mismatch here returns an error.
func (p *Player) Run(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return xerr.Wrap(xerr.Transport, "svf: read", err)
	}
	text := commentRE.ReplaceAllString(string(raw), " ")
	text = spacesRE.ReplaceAllString(text, " ")
	rawCmds := strings.Split(strings.ToLower(text), ";")

	var cmds [][]string
	for _, c := range rawCmds {
		c = parensRE.ReplaceAllString(c, "")
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		cmds = append(cmds, strings.Fields(c))
	}

	loopIndex := -1
	loopCount := -1

	for i := 0; i < len(cmds); i++ {
		cmd := cmds[i]
		name := cmd[0]

		switch name {
		case "enddr":
			p.enddr = stateByName[strings.ToUpper(cmd[1])]
		case "endir":
			p.endir = stateByName[strings.ToUpper(cmd[1])]
		case "state":
			if err := p.ops.Tracker().Goto(stateByName[strings.ToUpper(cmd[1])]); err != nil {
				return err
			}
		case "loop":
			n, err := strconv.Atoi(cmd[1])
			if err != nil {
				return xerr.Wrap(xerr.Protocol, "svf: malformed loop count", err)
			}
			loopCount = n
			loopIndex = i + 1
		case "endloop":
			if loopCount >= 0 {
				loopCount--
				if loopCount > 0 {
					i = loopIndex - 1
				} else {
					loopCount = -1
					loopIndex = -1
				}
			}
		case "runtest":
			if err := p.runtest(cmd); err != nil {
				return err
			}
		case "sir":
			if err := p.shiftIR(cmd); err != nil {
				return err
			}
		case "sdr":
			if err := p.shiftDR(cmd); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Player) runtest(cmd []string) error {
	if err := p.ops.Tracker().Goto(stateByName[strings.ToUpper(cmd[1])]); err != nil {
		return err
	}
	tck := 0
	for i := 2; i+1 < len(cmd); i += 2 {
		val, key := cmd[i], cmd[i+1]
		switch key {
		case "tck":
			n, err := strconv.Atoi(val)
			if err == nil {
				tck = n
			}
		case "sec":
			sec, err := strconv.ParseFloat(val, 64)
			if err == nil {
				if n := int(sec / 0.00001); n > tck {
					tck = n
				}
			}
		}
	}
	return p.ops.Tracker().RunClocks(tck, 0)
}

// shiftIR replays an SVF "sir" command. Following Jtag.shift (which the
// original SVF parser calls directly rather than going through
// JtagCustomProgrammer.check_dr), a masked compare reads the register back
// in full over the plain shift_tdo slot and compares host-side, rather
// than using the hardware comparator.
func (p *Player) shiftIR(cmd []string) error {
	numBits, err := strconv.Atoi(cmd[1])
	if err != nil {
		return xerr.Wrap(xerr.Protocol, "svf: malformed sir bit count", err)
	}
	tdi, tdo, mask := fieldValues(cmd, numBits)

	if mask.Sign() != 0 {
		var readBits *big.Int
		if err := p.ops.ReadIR(numBits, func(v *big.Int) { readBits = v }, true); err != nil {
			return err
		}
		if !masksMatch(tdo, readBits, mask) {
			return fmt.Errorf("svf: sir mismatch: %s", strings.Join(cmd, " "))
		}
	} else if err := p.ops.WriteIR(numBits, tdi); err != nil {
		return err
	}
	return p.ops.Tracker().Goto(p.endir)
}

// shiftDR is shiftIR's data-register counterpart.
func (p *Player) shiftDR(cmd []string) error {
	numBits, err := strconv.Atoi(cmd[1])
	if err != nil {
		return xerr.Wrap(xerr.Protocol, "svf: malformed sdr bit count", err)
	}
	tdi, tdo, mask := fieldValues(cmd, numBits)

	if mask.Sign() != 0 {
		var readBits *big.Int
		if err := p.ops.ReadDR(numBits, func(v *big.Int) { readBits = v }, true); err != nil {
			return err
		}
		if !masksMatch(tdo, readBits, mask) {
			return fmt.Errorf("svf: sdr mismatch: %s", strings.Join(cmd, " "))
		}
	} else if err := p.ops.WriteDR(numBits, tdi); err != nil {
		return err
	}
	return p.ops.Tracker().Goto(p.enddr)
}

// masksMatch reports whether (expected & mask) == (got & mask).
func masksMatch(expected, got, mask *big.Int) bool {
	e := new(big.Int).And(expected, mask)
	g := new(big.Int).And(got, mask)
	return e.Cmp(g) == 0
}

// fieldValues extracts the tdi/tdo/mask hex fields from an SIR/SDR command,
// following JtagSvfParser.run's inner `field` closure: a missing mask on a
// command with a tdo field defaults to all-ones.
func fieldValues(cmd []string, numBits int) (tdi, tdo, mask *big.Int) {
	tdi, tdo, mask = new(big.Int), new(big.Int), new(big.Int)
	hasTDO := false
	for i := 2; i+1 < len(cmd); i += 2 {
		key, val := cmd[i], cmd[i+1]
		v, ok := new(big.Int).SetString(val, 16)
		if !ok {
			continue
		}
		switch key {
		case "tdi":
			tdi = v
		case "tdo":
			tdo = v
			hasTDO = true
		case "mask":
			mask = v
		}
	}
	if hasTDO && mask.Sign() == 0 {
		one := big.NewInt(1)
		mask = new(big.Int).Sub(new(big.Int).Lsh(one, uint(numBits)), one)
	}
	return tdi, tdo, mask
}
