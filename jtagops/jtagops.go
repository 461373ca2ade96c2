// Package jtagops implements the high-level JTAG register operations (spec
// layer L4) — write_ir, read_dr, write_dr, check_dr, runtest, and loop
// blocks — in terms of a jtagtap.Tracker and the SIE-accelerated shifts it
// drives, following JtagCustomProgrammer in the original source.
package jtagops

import (
	"math/big"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/jtagtap"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/programmer"
)

// Ops bundles a tracker and its backing programmer, exposing one register
// operation per exported method. The enddr/endir pause states are fixed at
// DRPAUSE/IRPAUSE, matching JtagCustomProgrammer's defaults (the SVF
// player's ENDDR/ENDIR state commands are handled above this layer).
type Ops struct {
	tracker *jtagtap.Tracker
	prog    *programmer.Programmer
}

// New builds an Ops instance over an already-JTAG-configured programmer.
func New(prog *programmer.Programmer) *Ops {
	return &Ops{tracker: jtagtap.NewTracker(prog), prog: prog}
}

// Tracker exposes the underlying TAP tracker, e.g. for an SVF player's
// STATE command.
func (o *Ops) Tracker() *jtagtap.Tracker { return o.tracker }

// WriteIR shifts numBits bits of data into the instruction register. The
// SIE's last-phase overlay drives TMS high on the final bit, which moves
// the TAP straight to IREXIT1 in hardware; the tracker is updated to match
// without issuing any further TMS pulses, then routed to IRPAUSE.
func (o *Ops) WriteIR(numBits int, data *big.Int) error {
	if numBits == 0 {
		return nil
	}
	if err := o.tracker.Goto(jtagtap.IRShift); err != nil {
		return err
	}
	if err := o.prog.Shift(programmer.SIEShiftTDI, numBits, data, nil, nil, false); err != nil {
		return err
	}
	o.tracker.SetCurrent(jtagtap.IRExit1)
	return o.tracker.Goto(jtagtap.IRPause)
}

// WriteDR is WriteIR's data-register counterpart.
func (o *Ops) WriteDR(numBits int, data *big.Int) error {
	if numBits == 0 {
		return nil
	}
	if err := o.tracker.Goto(jtagtap.DRShift); err != nil {
		return err
	}
	if err := o.prog.Shift(programmer.SIEShiftTDI, numBits, data, nil, nil, false); err != nil {
		return err
	}
	o.tracker.SetCurrent(jtagtap.DRExit1)
	return o.tracker.Goto(jtagtap.DRPause)
}

// ReadIR shifts numBits bits out of the instruction register, delivering
// the captured value to completion once it arrives. This is IR's
// counterpart to ReadDR, used by the SVF player's masked "sir" command
// (which, per the original source's Jtag.shift, reads back the full
// register via the plain shift_tdo slot and compares host-side rather than
// using the hardware comparator check_dr uses).
func (o *Ops) ReadIR(numBits int, completion func(*big.Int), blocking bool) error {
	if numBits == 0 {
		return nil
	}
	if err := o.tracker.Goto(jtagtap.IRShift); err != nil {
		return err
	}
	err := o.prog.Shift(programmer.SIEShiftTDO, numBits, nil, nil, func(buf []byte) {
		if completion != nil {
			completion(programmer.FromLEBytes(buf))
		}
	}, blocking)
	if err != nil {
		return err
	}
	o.tracker.SetCurrent(jtagtap.IRExit1)
	return o.tracker.Goto(jtagtap.IRPause)
}

// ReadDR shifts numBits bits out of the data register, delivering the
// captured value to completion once it arrives.
func (o *Ops) ReadDR(numBits int, completion func(*big.Int), blocking bool) error {
	if numBits == 0 {
		return nil
	}
	if err := o.tracker.Goto(jtagtap.DRShift); err != nil {
		return err
	}
	err := o.prog.Shift(programmer.SIEShiftTDO, numBits, nil, nil, func(buf []byte) {
		if completion != nil {
			completion(programmer.FromLEBytes(buf))
		}
	}, blocking)
	if err != nil {
		return err
	}
	o.tracker.SetCurrent(jtagtap.DRExit1)
	return o.tracker.Goto(jtagtap.DRPause)
}

// CheckDR shifts numBits bits of expected through the data register with
// mask applied, using the board's hardware comparator (SIE 4). When
// statusCB is non-nil, it is invoked with the match result — the original
// source always called this slot with no read callback, leaving the
// per-shift result unobserved and relying on the board's sticky status
// byte instead; here, supplying statusCB exercises the
// same do_output-and-mask response branch the firmware already supports.
func (o *Ops) CheckDR(numBits int, expected, mask *big.Int, statusCB func(match bool)) error {
	if numBits == 0 {
		return nil
	}
	if err := o.tracker.Goto(jtagtap.DRShift); err != nil {
		return err
	}
	var cb func([]byte)
	if statusCB != nil {
		cb = func(buf []byte) {
			statusCB(len(buf) > 0 && buf[0] == 0)
		}
	}
	if err := o.prog.Shift(programmer.SIEShiftTDOPoll, numBits, expected, mask, cb, statusCB != nil); err != nil {
		return err
	}
	o.tracker.SetCurrent(jtagtap.DRExit1)
	return o.tracker.Goto(jtagtap.DRPause)
}

// Runtest idles the TAP at state for clks TCK cycles, in chunks of up to
// 1000 clocks per the board's run_tck acceleration.
func (o *Ops) Runtest(clks int, state jtagtap.State) error {
	if err := o.tracker.Goto(state); err != nil {
		return err
	}
	return o.tracker.RunClocks(clks, 0)
}

// Loop opens a firmware-evaluated loop block; operations issued until
// EndLoop are captured rather than sent immediately. Loops cannot nest.
func (o *Ops) Loop(iterCount int) error {
	return o.prog.Loop(iterCount)
}

// EndLoop closes and transmits the loop block opened by Loop.
func (o *Ops) EndLoop() error {
	return o.prog.EndLoop()
}

// GetStatus fetches the board's latched status byte, blocking for the
// response, and clears nothing itself (pair with a ClearStatus call on the
// programmer layer between checkpoints if a fresh reading is needed).
func (o *Ops) GetStatus() (byte, error) {
	var status byte
	err := o.prog.GetStatus(func(s byte) { status = s }, true)
	return status, err
}

// ClearStatus resets the board's latched status byte.
func (o *Ops) ClearStatus() error {
	o.prog.ClearStatus()
	return o.prog.Err()
}

// Err returns the first transport failure observed on the underlying link.
func (o *Ops) Err() error {
	return o.prog.Err()
}
