package programmer

// sieConfig is one slot's worth of configure_sie arguments, named the way
// tinyfpgaa.py's JtagTinyFpgaProgrammer.__init__ calls configure_sie for
// each of the five JTAG-mode slots.
type sieConfig struct {
	id                int
	sendsOutput       bool
	inputOnPhase0     bool
	inputOnPhase1     bool
	hasInputMask      bool
	inputMask         byte
	do0p0, do0p1      byte
	do1p0, do1p1      byte
	lastPhaseOverlay  byte
}

// JTAG pin indices on the programmer board, matching JtagTinyFpgaProgrammer's
// Pin descriptors (tdo=2, tdi=3, tck=4, tms=5).
const (
	PinTDO = 2
	PinTDI = 3
	PinTCK = 4
	PinTMS = 5
)

// jtagIODirections is the pin direction mask configure_io(0b000111) sends:
// bit set means "input". TDO (bit 2) is the only device-driven pin; TMS,
// TCK, and TDI (bits 5, 4, 3) are host-driven outputs.
const jtagIODirections = 0b000111

// SIE slot IDs used in JTAG mode, named after tinyfpgaa.py's comments and
// exported so jtagops can target the right accelerated shift slot.
const (
	SIERunTCK       = 0
	SIEShiftTMS     = 1
	SIEShiftTDI     = 2
	SIEShiftTDO     = 3
	SIEShiftTDOPoll = 4
)

// jtagSIESlots are the five SIE configurations JtagTinyFpgaProgrammer wires
// up in its constructor. Slot 1 (shift_tms) is configured, matching the
// original firmware's capability, but the TMS tracker drives pin updates
// directly rather than this slot — see jtagtap for why.
var jtagSIESlots = []sieConfig{
	{
		id: SIERunTCK,
		do0p0: 0x00, do0p1: 0x10, do1p0: 0x00, do1p1: 0x10,
	},
	{
		id: SIEShiftTMS, sendsOutput: true,
		do0p0: 0x00, do0p1: 0x10, do1p0: 0x20, do1p1: 0x30,
	},
	{
		id: SIEShiftTDI, sendsOutput: true,
		do0p0: 0x00, do0p1: 0x10, do1p0: 0x08, do1p1: 0x18,
		lastPhaseOverlay: 0x20,
	},
	{
		id: SIEShiftTDO, inputOnPhase1: true,
		do0p0: 0x00, do0p1: 0x10, do1p0: 0x00, do1p1: 0x10,
		lastPhaseOverlay: 0x20,
	},
	{
		id: SIEShiftTDOPoll, inputOnPhase1: true, hasInputMask: true, inputMask: 0x04,
		do0p0: 0x00, do0p1: 0x10, do1p0: 0x00, do1p1: 0x10,
		lastPhaseOverlay: 0x20,
	},
}
