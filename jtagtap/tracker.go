package jtagtap

import "github.com/tinyfpga/TinyFPGA-A-Programmer/programmer"

// unknownPrefixLen is the number of TMS=1 pulses Tracker drives before
// routing anywhere once its state is unknown. IEEE 1149.1 guarantees 5
// pulses forces RESET from any state; the original source used 25 — "safe
// for any chain" per spec section 4.6 — which this keeps for parity.
const unknownPrefixLen = 25

// Tracker drives TMS transitions onto a programmer.Programmer's TMS/TCK
// pins and keeps the host-side notion of the TAP's current state in sync,
// following Jtag.run_tms/goto_state. TMS bits are bit-banged through pin
// updates rather than the board's shift_tms SIE slot — see DESIGN.md for
// why that matches the original's actually-executed behavior.
type Tracker struct {
	prog    *programmer.Programmer
	current State
	known   bool
}

// NewTracker wraps prog, which must already be configured for JTAG (see
// programmer.NewJTAG).
func NewTracker(prog *programmer.Programmer) *Tracker {
	return &Tracker{prog: prog}
}

// Current returns the tracker's believed TAP state. Only meaningful once
// Goto has been called at least once (or SetCurrent used to seed it).
func (t *Tracker) Current() State {
	return t.current
}

// SetCurrent forces the tracker's believed state without issuing any TMS
// pulses. JtagOps uses this to record state changes a shift's last-phase
// overlay already performed in hardware (e.g. write_ir's automatic
// IRSHIFT->IREXIT1 move).
func (t *Tracker) SetCurrent(s State) {
	t.current = s
	t.known = true
}

// Goto drives whatever TMS sequence is required to reach target, forcing
// RESET first if the current state is unknown.
func (t *Tracker) Goto(target State) error {
	var seq []int
	if !t.known {
		seq = make([]int, unknownPrefixLen)
		for i := range seq {
			seq[i] = 1
		}
		t.current = Reset
		t.known = true
	}
	seq = append(seq, TMSSequence(t.current, target)...)
	if err := t.RunTMS(seq); err != nil {
		return err
	}
	t.current = target
	return nil
}

// RunTMS bit-bangs the given TMS sequence: for each bit it sets TMS, pulses
// TCK low then high, following Jtag.run_tms.
func (t *Tracker) RunTMS(seq []int) error {
	for _, tms := range seq {
		t.prog.SetPin(programmer.PinTMS, tms != 0)
		t.prog.SetPin(programmer.PinTCK, false)
		if err := t.prog.Update(false); err != nil {
			return err
		}
		t.prog.SetPin(programmer.PinTCK, true)
		if err := t.prog.Update(false); err != nil {
			return err
		}
	}
	return nil
}

// RunClocks pulses TCK clks times with TMS held at tms, via the board's
// run_tck SIE acceleration (SIE 0) in chunks of up to 1000 clocks, matching
// Jtag.run — used by runtest to idle the TAP.
func (t *Tracker) RunClocks(clks int, tms int) error {
	t.prog.SetPin(programmer.PinTMS, tms != 0)
	if err := t.prog.Update(false); err != nil {
		return err
	}
	for clks > 0 {
		now := clks
		if now > 1000 {
			now = 1000
		}
		if err := t.prog.Shift(programmer.SIERunTCK, now, nil, nil, nil, false); err != nil {
			return err
		}
		clks -= now
	}
	return nil
}
