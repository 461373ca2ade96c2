// Package sequencer implements DeviceSequencer (spec layer L5): the fixed
// erase/program/verify opcode sequence for the Lattice-style FPGA config
// flash, expressed as a straight-line series of jtagops calls, following
// JtagCustomProgrammer.program in the original source.
package sequencer

import (
	"context"
	"math/big"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/internal/xerr"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/jedec"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/jtagops"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/jtagtap"
)

// progressUpdateFreq is how many programmed/verified rows pass between
// progress checkpoints, matching the original's prog_update_freq = 20.
const progressUpdateFreq = 20

// Progress describes one checkpoint during Program: a phase description
// plus how many rows have been processed since the last checkpoint (0 for
// phase-transition-only checkpoints).
type Progress struct {
	Phase string
	Rows  int
	Total int
}

// ProgressFunc receives Program's checkpoints. It may be nil.
type ProgressFunc func(Progress)

// Status is the board's latched status byte, fetched via get_status. A
// non-zero value indicates some operation since the last ClearStatus
// failed — following the bit-accessor-plus-String() idiom used for status
// registers elsewhere in this codebase's lineage.
type Status byte

// Failed reports whether any operation since the last clear-status has
// failed.
func (s Status) Failed() bool { return s != 0 }

func (s Status) String() string {
	if s.Failed() {
		return "failed"
	}
	return "ok"
}

// Sequencer drives the fixed program sequence over a jtagops.Ops.
type Sequencer struct {
	ops *jtagops.Ops
}

// New wraps ops, which must already be configured for JTAG.
func New(ops *jtagops.Ops) *Sequencer {
	return &Sequencer{ops: ops}
}

// Program erases, writes, and verifies src's configuration (and, if
// present, UFM and feature row) data, reporting progress through fn. ctx
// cancellation is checked once before any device I/O and again before each
// programmed or verified row; a cancelled context causes Program to stop
// and return ctx.Err() (wrapped)
// without completing the "exit programming" phases, leaving the device in
// programming mode.
func (s *Sequencer) Program(ctx context.Context, src jedec.RowSource, fn ProgressFunc) error {
	progress := fn
	if progress == nil {
		progress = func(Progress) {}
	}

	o := s.ops
	numRows := src.NumRows()
	rowsDone := 0

	checkpoint := func(phase string, rows int) error {
		rowsDone += rows
		var status Status
		if err := s.getStatus(&status); err != nil {
			return err
		}
		if status.Failed() {
			return xerr.New(xerr.StatusFailure, phase)
		}
		progress(Progress{Phase: phase, Rows: rows, Total: numRows})
		return nil
	}

	if err := ctxErr(ctx); err != nil {
		return err
	}

	// Pre-flight.
	if err := o.ClearStatus(); err != nil {
		return err
	}

	// Boundary-scan load.
	if err := o.WriteIR(8, big.NewInt(irProgramBScan)); err != nil {
		return err
	}
	if err := o.WriteDR(208, allOnes(208)); err != nil {
		return err
	}

	// Key-protection fuse check.
	if err := o.WriteIR(8, big.NewInt(irLSCReadStatus)); err != nil {
		return err
	}
	if err := o.Runtest(1000, jtagtap.Idle); err != nil {
		return err
	}
	if err := o.CheckDR(32, big.NewInt(0), big.NewInt(0x00010000), nil); err != nil {
		return err
	}

	// Enable programming mode.
	for _, step := range []struct {
		ir   int64
		dr   int64
		clks int
	}{
		{irISCEnable, 0x00, 1000},
		{irISCErase, 0x01, 1000},
	} {
		if err := o.WriteIR(8, big.NewInt(step.ir)); err != nil {
			return err
		}
		if err := o.WriteDR(8, big.NewInt(step.dr)); err != nil {
			return err
		}
		if err := o.Runtest(step.clks, jtagtap.Idle); err != nil {
			return err
		}
	}
	if err := o.WriteIR(8, big.NewInt(irBypass)); err != nil {
		return err
	}
	if err := o.WriteIR(8, big.NewInt(irISCEnable)); err != nil {
		return err
	}
	if err := o.WriteDR(8, big.NewInt(0x08)); err != nil {
		return err
	}
	if err := o.Runtest(1000, jtagtap.Idle); err != nil {
		return err
	}

	// OTP sanity.
	if err := o.WriteIR(8, big.NewInt(irLSCReadStatus)); err != nil {
		return err
	}
	if err := o.Runtest(1000, jtagtap.Idle); err != nil {
		return err
	}
	if err := o.CheckDR(32, big.NewInt(0), big.NewInt(0x00024040), nil); err != nil {
		return err
	}

	// Bulk erase.
	progress(Progress{Phase: "Erasing configuration flash"})
	if err := o.WriteIR(8, big.NewInt(irISCErase)); err != nil {
		return err
	}
	if err := o.WriteDR(8, big.NewInt(0x0E)); err != nil {
		return err
	}
	if err := o.Runtest(1000, jtagtap.Idle); err != nil {
		return err
	}
	if err := s.busyPoll(1000); err != nil {
		return err
	}
	if err := checkpoint("Writing bitstream", 0); err != nil {
		return err
	}

	// Status readback.
	if err := o.CheckDR(32, big.NewInt(0), big.NewInt(0x00003000), nil); err != nil {
		return err
	}

	// Program configuration flash.
	if err := o.WriteIR(8, big.NewInt(irLSCInitAddress)); err != nil {
		return err
	}
	if err := o.WriteDR(8, big.NewInt(0x04)); err != nil {
		return err
	}
	if err := o.Runtest(1000, jtagtap.Idle); err != nil {
		return err
	}
	cfgRows := src.ConfigRows()
	if err := s.programRows(ctx, cfgRows, &rowsDone, numRows, progress, "Writing bitstream"); err != nil {
		return err
	}

	// Program user flash, if present.
	ufmRows := src.UFMRows()
	if len(ufmRows) > 0 {
		if err := o.WriteIR(8, big.NewInt(irLSCInitUFM)); err != nil {
			return err
		}
		if err := o.Runtest(1000, jtagtap.Idle); err != nil {
			return err
		}
		if err := s.programRows(ctx, ufmRows, &rowsDone, numRows, progress, "Writing bitstream"); err != nil {
			return err
		}
	}

	// Verify configuration flash.
	if err := o.WriteIR(8, big.NewInt(irLSCInitAddress)); err != nil {
		return err
	}
	if err := o.WriteDR(8, big.NewInt(0x04)); err != nil {
		return err
	}
	if err := o.Runtest(1000, jtagtap.Idle); err != nil {
		return err
	}
	if err := o.WriteIR(8, big.NewInt(irLSCReadIncrNV)); err != nil {
		return err
	}
	if err := s.verifyRows(ctx, cfgRows, &rowsDone, numRows, progress, "Verifying bitstream"); err != nil {
		return err
	}

	// Verify user flash, if present.
	if len(ufmRows) > 0 {
		if err := o.WriteIR(8, big.NewInt(irLSCInitUFM)); err != nil {
			return err
		}
		if err := o.Runtest(1000, jtagtap.Idle); err != nil {
			return err
		}
		if err := o.WriteIR(8, big.NewInt(irLSCReadIncrNV)); err != nil {
			return err
		}
		if err := s.verifyRows(ctx, ufmRows, &rowsDone, numRows, progress, "Verifying bitstream"); err != nil {
			return err
		}
	}

	if err := checkpoint("Writing and verifying feature rows", 0); err != nil {
		return err
	}

	// Program feature row and feature bits.
	if err := o.WriteIR(8, big.NewInt(irLSCInitAddress)); err != nil {
		return err
	}
	if err := o.WriteDR(8, big.NewInt(0x02)); err != nil {
		return err
	}
	if err := o.Runtest(2, jtagtap.Idle); err != nil {
		return err
	}
	if err := o.WriteIR(8, big.NewInt(irLSCProgFeature)); err != nil {
		return err
	}
	if err := o.WriteDR(64, src.FeatureRow()); err != nil {
		return err
	}
	if err := o.Runtest(2, jtagtap.Idle); err != nil {
		return err
	}
	if err := s.busyPoll(100); err != nil {
		return err
	}
	if err := o.WriteIR(8, big.NewInt(irLSCReadFeature)); err != nil {
		return err
	}
	if err := o.Runtest(2, jtagtap.Idle); err != nil {
		return err
	}
	if err := o.CheckDR(64, src.FeatureRow(), allOnes(128), nil); err != nil {
		return err
	}
	if err := o.WriteIR(8, big.NewInt(irLSCProgFeabits)); err != nil {
		return err
	}
	if err := o.WriteDR(16, src.FeatureBits()); err != nil {
		return err
	}
	if err := o.Runtest(2, jtagtap.Idle); err != nil {
		return err
	}
	if err := s.busyPoll(100); err != nil {
		return err
	}
	if err := o.WriteIR(8, big.NewInt(irLSCReadFeabits)); err != nil {
		return err
	}
	if err := o.Runtest(2, jtagtap.Idle); err != nil {
		return err
	}
	if err := o.CheckDR(16, src.FeatureBits(), big.NewInt(0xFFFF), nil); err != nil {
		return err
	}

	// Status check.
	if err := o.WriteIR(8, big.NewInt(irLSCReadStatus)); err != nil {
		return err
	}
	if err := o.Runtest(2, jtagtap.Idle); err != nil {
		return err
	}
	if err := o.CheckDR(32, big.NewInt(0), big.NewInt(0x00003000), nil); err != nil {
		return err
	}

	// Program done bit.
	if err := o.WriteIR(8, big.NewInt(irISCProgramDone)); err != nil {
		return err
	}
	if err := o.Runtest(2, jtagtap.Idle); err != nil {
		return err
	}
	if err := o.WriteDR(8, big.NewInt(0xF0)); err != nil {
		return err
	}
	if err := s.busyPoll(100); err != nil {
		return err
	}
	if err := o.WriteIR(8, big.NewInt(irBypass)); err != nil {
		return err
	}

	// Exit programming mode.
	if err := o.WriteIR(8, big.NewInt(irISCDisable)); err != nil {
		return err
	}
	if err := o.Runtest(1000, jtagtap.Idle); err != nil {
		return err
	}
	if err := o.WriteIR(8, big.NewInt(irBypass)); err != nil {
		return err
	}
	if err := o.Runtest(1000, jtagtap.Idle); err != nil {
		return err
	}

	// Verify SRAM done bit.
	if err := o.Runtest(10000, jtagtap.Idle); err != nil {
		return err
	}
	if err := o.WriteIR(8, big.NewInt(irLSCReadStatus)); err != nil {
		return err
	}
	if err := o.CheckDR(32, big.NewInt(0x00000100), big.NewInt(0x00002100), nil); err != nil {
		return err
	}

	if err := o.Tracker().Goto(jtagtap.Reset); err != nil {
		return err
	}

	return checkpoint("Done", 0)
}

// programRows issues LSC_PROG_INCR_NV + busy-poll for each row, checkpointing
// every progressUpdateFreq rows.
func (s *Sequencer) programRows(ctx context.Context, rows []*big.Int, rowsDone *int, total int, progress ProgressFunc, phase string) error {
	o := s.ops
	sinceCheckpoint := 0
	for _, row := range rows {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		if err := o.WriteIR(8, big.NewInt(irLSCProgIncrNV)); err != nil {
			return err
		}
		if err := o.WriteDR(128, row); err != nil {
			return err
		}
		if err := o.Runtest(2, jtagtap.Idle); err != nil {
			return err
		}
		if err := s.busyPoll(100); err != nil {
			return err
		}

		*rowsDone++
		sinceCheckpoint++
		if sinceCheckpoint == progressUpdateFreq {
			var status Status
			if err := s.getStatus(&status); err != nil {
				return err
			}
			if status.Failed() {
				return xerr.New(xerr.StatusFailure, phase)
			}
			progress(Progress{Phase: phase, Rows: sinceCheckpoint, Total: total})
			sinceCheckpoint = 0
		}
	}
	return nil
}

// verifyRows issues check_dr against each row's expected value, using the
// board's LSC_READ_INCR_NV auto-increment sequence already started by the
// caller.
func (s *Sequencer) verifyRows(ctx context.Context, rows []*big.Int, rowsDone *int, total int, progress ProgressFunc, phase string) error {
	o := s.ops
	sinceCheckpoint := 0
	for _, row := range rows {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		if err := o.Runtest(2, jtagtap.Idle); err != nil {
			return err
		}
		if err := o.CheckDR(128, row, allOnes(128), nil); err != nil {
			return err
		}

		*rowsDone++
		sinceCheckpoint++
		if sinceCheckpoint == progressUpdateFreq {
			var status Status
			if err := s.getStatus(&status); err != nil {
				return err
			}
			if status.Failed() {
				return xerr.New(xerr.StatusFailure, phase)
			}
			progress(Progress{Phase: phase, Rows: sinceCheckpoint, Total: total})
			sinceCheckpoint = 0
		}
	}
	return nil
}

// busyPoll wraps LSC_CHECK_BUSY in a firmware-evaluated loop block polling
// the busy bit, following the program sequence's repeated
// write_ir(0xF0)/loop(10000){runtest;check_dr(1,0,1)}/endloop idiom.
func (s *Sequencer) busyPoll(runtestClks int) error {
	o := s.ops
	if err := o.WriteIR(8, big.NewInt(irLSCCheckBusy)); err != nil {
		return err
	}
	if err := o.Loop(10000); err != nil {
		return err
	}
	if err := o.Runtest(runtestClks, jtagtap.Idle); err != nil {
		return err
	}
	if err := o.CheckDR(1, big.NewInt(0), big.NewInt(1), nil); err != nil {
		return err
	}
	return o.EndLoop()
}

// getStatus fetches the board's latched status byte, blocking for the
// response, matching get_status(blocking=True) at every program()
// checkpoint.
func (s *Sequencer) getStatus(out *Status) error {
	got, err := s.ops.GetStatus()
	if err != nil {
		return err
	}
	*out = Status(got)
	return nil
}

func allOnes(bits int) *big.Int {
	v := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	return v.Sub(v, big.NewInt(1))
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return xerr.Wrap(xerr.Transport, "program cancelled", ctx.Err())
	default:
		return nil
	}
}
