package sequencer

// Lattice-style JTAG instruction register opcodes used by the fixed
// program sequence, named per the original source's inline comments.
const (
	irProgramBScan   = 0x1C // program the boundary-scan register
	irLSCReadStatus  = 0x3C
	irISCEnable      = 0xC6
	irISCErase       = 0x0E
	irBypass         = 0xFF
	irLSCInitAddress = 0x46
	irLSCInitUFM     = 0x47 // LSC_INIT_ADDRESS variant used for UFM, no write_dr follows
	irLSCProgIncrNV  = 0x70
	irLSCCheckBusy   = 0xF0
	irLSCReadIncrNV  = 0x73
	irLSCProgFeature = 0xE4
	irLSCReadFeature = 0xE7
	irLSCProgFeabits = 0xF8
	irLSCReadFeabits = 0xFB
	irISCProgramDone = 0x5E
	irISCDisable     = 0x26
)
