package programmer

import (
	"math/big"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/internal/xerr"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/transport"
)

// Programmer drives the L2 byte protocol over a transport.Link: pin
// direction/output shadow state, the eight SIE slots, and loop blocks.
// It is not safe for concurrent use, matching the link it wraps.
type Programmer struct {
	link *transport.Link

	directions    byte
	outputValues  byte
	pendingInput  int

	inLoopBody  bool
	loopIters   int
	loopBody    []byte

	sieGetsInput   [8]bool
	sieSendsOutput [8]bool
	sieHasMask     [8]bool
}

// New wraps link in a Programmer with no pins configured yet.
func New(link *transport.Link) *Programmer {
	return &Programmer{link: link}
}

// NewJTAG wraps link in a Programmer pre-configured for JTAG use: TMS, TCK,
// and TDI driven as outputs, TDO as input, and the five JTAG SIE slots
// loaded, matching JtagTinyFpgaProgrammer's constructor.
func NewJTAG(link *transport.Link) *Programmer {
	p := New(link)
	p.ConfigureIO(jtagIODirections)
	for _, s := range jtagSIESlots {
		p.configureSIE(s)
	}
	return p
}

// emit writes a single already-grouped opcode byte, or appends it to the
// open loop body, following TinyFpgaProgrammer._cmd's loop-capture branch.
func (p *Programmer) emit(b byte) {
	if p.inLoopBody {
		p.loopBody = append(p.loopBody, b)
		return
	}
	p.link.Write([]byte{b})
}

func (p *Programmer) emitAll(bs []byte) {
	if p.inLoopBody {
		p.loopBody = append(p.loopBody, bs...)
		return
	}
	p.link.Write(bs)
}

// Err returns the first transport failure observed on the underlying link.
func (p *Programmer) Err() error {
	return p.link.Err()
}

// Send runs one link Task tick and, if a shift or get_status opcode queued a
// read, flushes pending writes and issues it; with nothing to read it does
// not force a flush. numReadBytes/callback override the auto-tracked pending
// read count, the way TinyFpgaProgrammer.send's optional arguments do.
func (p *Programmer) Send(numReadBytes int, callback func([]byte), blocking bool) error {
	p.link.Task()

	n := p.pendingInput
	if numReadBytes > 0 {
		if p.pendingInput != 0 {
			return xerr.New(xerr.Protocol, "send: explicit read count given with pending auto-tracked read")
		}
		n = numReadBytes
	}

	if n > 0 {
		p.link.Flush()
		if blocking {
			buf, err := p.link.ReadBlocking(n)
			if err != nil {
				return err
			}
			if callback != nil {
				callback(buf)
			}
		} else {
			p.link.Read(n, func(buf []byte) {
				if callback != nil {
					callback(buf)
				}
			})
		}
		p.pendingInput = 0
	}
	return nil
}

// SetDirection marks pin as an input (input=true) or output (input=false)
// in the shadow direction register. It sends nothing to the board, and
// ConfigureIO sends the mask it is given, replacing this shadow value.
func (p *Programmer) SetDirection(pin int, input bool) {
	if input {
		p.directions |= 1 << uint(pin)
	} else {
		p.directions &^= 1 << uint(pin)
	}
}

// SetPin stages pin's next output value; it takes effect on the next Update.
func (p *Programmer) SetPin(pin int, high bool) {
	if high {
		p.outputValues |= 1 << uint(pin)
	} else {
		p.outputValues &^= 1 << uint(pin)
	}
}

// Update drives the staged pin output values to the board. With readBack
// set it also samples the inputs (TDO) after the drive, queuing one
// pin-sample byte for the next Send.
func (p *Programmer) Update(readBack bool) error {
	if p.inLoopBody && readBack {
		return xerr.New(xerr.Protocol, "update: readback not allowed inside a loop body")
	}
	if readBack {
		p.emit(cmdByte(groupUpdateRB, int(p.outputValues)))
		p.pendingInput++
	} else {
		p.emit(cmdByte(groupUpdate, int(p.outputValues)))
	}
	return nil
}

// DriveAndUpdate replaces the whole staged output byte and drives it in one
// call, the re-expression of the original source's "set a pin, which
// implicitly drives and updates" attribute semantics (design note in
// SPEC_FULL.md) as a single explicit method taking the full pin byte.
func (p *Programmer) DriveAndUpdate(outputValues byte, readBack bool) error {
	p.outputValues = outputValues
	return p.Update(readBack)
}

// ClearStatus resets the board's latched status byte.
func (p *Programmer) ClearStatus() {
	p.link.Write([]byte{opClearStatus})
}

// GetStatus requests the board's latched status byte. status is non-zero
// if any operation since the last ClearStatus failed (e.g. a masked
// check_dr compare mismatch).
func (p *Programmer) GetStatus(callback func(status byte), blocking bool) error {
	p.link.Write([]byte{opGetStatus})
	return p.Send(1, func(buf []byte) {
		if callback != nil && len(buf) > 0 {
			callback(buf[0])
		}
	}, blocking)
}

// ConfigureIO sends the pin direction mask (bit set = input) to the board.
func (p *Programmer) ConfigureIO(directions byte) {
	p.directions = directions
	p.emitAll([]byte{opConfigureIO, directions})
}

func (p *Programmer) configureSIE(c sieConfig) {
	p.sieGetsInput[c.id] = (c.inputOnPhase0 || c.inputOnPhase1) && !c.hasInputMask
	p.sieSendsOutput[c.id] = c.sendsOutput || c.hasInputMask
	p.sieHasMask[c.id] = c.hasInputMask

	var cfg byte
	if c.sendsOutput {
		cfg |= 1
	}
	if c.inputOnPhase0 {
		cfg |= 2
	}
	if c.inputOnPhase1 {
		cfg |= 4
	}
	if c.hasInputMask {
		cfg |= 8
	}

	p.link.Write([]byte{
		byte(opConfigureSIE + c.id),
		cfg,
		c.inputMask,
		c.do0p0, c.do0p1,
		c.do1p0, c.do1p1,
		c.lastPhaseOverlay,
	})
}

// Shift issues an accelerated SIE shift of numBits bits. data and mask are
// interpreted as little-endian bit streams of numBits width (via math/big,
// since a boundary-scan shift can be 208 bits, far past a uint64). callback
// receives the raw response bytes for slots that read back; it is ignored
// for write-only slots.
func (p *Programmer) Shift(sieID int, numBits int, data, mask *big.Int, callback func([]byte), blocking bool) error {
	if sieID < 0 || sieID > 7 {
		return xerr.New(xerr.Protocol, "shift: sie id out of range")
	}
	doInput := p.sieGetsInput[sieID]
	doOutput := p.sieSendsOutput[sieID]
	doMask := p.sieHasMask[sieID]

	numBytes := (numBits + 7) / 8
	bits, extraBytes := encodeBitCount(numBits)
	cmd := []byte{byte(opShift + sieID), bits, extraBytes}

	switch {
	case doOutput && doMask:
		cmd = append(cmd, interleaveLE(data, mask, numBytes)...)
	case doOutput:
		cmd = append(cmd, toLEBytes(data, numBytes)...)
	}

	if p.inLoopBody {
		p.loopBody = append(p.loopBody, cmd...)
		return nil
	}

	p.link.Write(cmd)

	switch {
	case doInput:
		return p.Send(numBytes, callback, blocking)
	case doOutput && doMask:
		if callback == nil {
			return p.Send(0, nil, blocking)
		}
		return p.Send(1, callback, blocking)
	}
	return nil
}

// Loop opens a loop block: subsequent opcodes (until EndLoop) are captured
// into a body the board's firmware replays iterCount times on its own,
// without round-tripping to the host between iterations. Loops cannot be
// nested.
func (p *Programmer) Loop(iterCount int) error {
	if p.inLoopBody {
		return xerr.New(xerr.Protocol, "loop: already inside a loop body")
	}
	p.inLoopBody = true
	p.loopIters = iterCount
	p.loopBody = p.loopBody[:0]
	return nil
}

// EndLoop closes the loop body opened by Loop and sends it as a single
// framed packet (the firmware has no second buffer for loop bodies, so the
// whole loop must fit in one write), matching end_loop's explicit Flush
// before writing.
func (p *Programmer) EndLoop() error {
	if !p.inLoopBody {
		return xerr.New(xerr.Protocol, "end_loop: not inside a loop body")
	}
	p.link.Flush()

	frame := make([]byte, 0, 3+len(p.loopBody)+1)
	frame = append(frame, opBeginLoop, byte(p.loopIters&0xff), byte((p.loopIters>>8)&0xff))
	frame = append(frame, p.loopBody...)
	frame = append(frame, opEndLoop)

	p.link.Write(frame)
	p.link.Flush()
	p.inLoopBody = false
	return p.Send(0, nil, false)
}

// ToLEBytes renders v as a little-endian byte slice of exactly n bytes, the
// encoding Shift uses for its data and mask payloads.
func ToLEBytes(v *big.Int, n int) []byte {
	return toLEBytes(v, n)
}

func toLEBytes(v *big.Int, n int) []byte {
	out := make([]byte, n)
	if v == nil {
		return out
	}
	be := v.Bytes()
	for i := 0; i < len(be) && i < n; i++ {
		out[i] = be[len(be)-1-i]
	}
	return out
}

// interleaveLE produces the data[0],mask[0],data[1],mask[1],... byte
// sequence configure_sie's has_input_mask shift variant expects, following
// TinyFpgaProgrammer.shift's itertools.cycle over the two byte lists.
func interleaveLE(data, mask *big.Int, n int) []byte {
	d := toLEBytes(data, n)
	m := toLEBytes(mask, n)
	out := make([]byte, 0, 2*n)
	for i := 0; i < n; i++ {
		out = append(out, d[i], m[i])
	}
	return out
}

// FromLEBytes parses buf as a little-endian unsigned integer.
func FromLEBytes(buf []byte) *big.Int {
	be := make([]byte, len(buf))
	for i, b := range buf {
		be[len(buf)-1-i] = b
	}
	return new(big.Int).SetBytes(be)
}
