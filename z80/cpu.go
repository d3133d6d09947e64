// Package z80 implements the CPU core: the register file, the seven
// instruction decode tables, and the T-state micro-step scheduler that
// drives fetch, decode, execute, operand-read and prefix-chaining cycles
// off the shared CLCK signal.
package z80

import "github.com/z0x50/z0x50/signal"

// State is the CPU's externally observable phase.
type State int

const (
	StateFetch State = iota
	StateDecode
	StateExecute
	StateFailure
)

func (s State) String() string {
	switch s {
	case StateFetch:
		return "Fetch"
	case StateDecode:
		return "Decode"
	case StateExecute:
		return "Execute"
	case StateFailure:
		return "Failure"
	default:
		return "Unknown"
	}
}

// Logger is the minimal logging surface the CPU needs to report scheduler
// faults and decode anomalies.
type Logger interface {
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{}) {}

// sink tags the destination field of an in-flight read cycle: an explicit
// tagged value the sampling step dispatches on, rather than a raw mutable
// pointer into the instruction record.
type sink int

const (
	sinkNone sink = iota
	sinkOpcode
	sinkOperand0
	sinkOperand1
)

// step tags the next scheduled micro-step: a single exhaustively-dispatched
// value standing in for what would otherwise be several optional
// function-pointer slots.
type step int

const (
	stepNone step = iota
	stepM1T1Rise
	stepM1T1Fall
	stepM1T2Fall
	stepM1T3Rise
	stepM1T3Fall
	stepM1T4Fall
	stepPrefixPrepRise
	stepOperandPrepRise
	stepReadR1Rise
	stepReadR1Fall
	stepReadR2Rise
	stepReadR2Fall
	stepWriteW1Rise
	stepWriteW1Fall
	stepWriteW2Fall
	stepWriteW3Fall
	stepExecute
	stepFetchStart
)

// CPU is the Z80 core. It owns the register file and the current
// instruction record, and advances one micro-step per CLCK edge it is
// subscribed to.
type CPU struct {
	Regs  Registers
	Instr Instruction

	fabric *signal.Fabric
	log    Logger
	state  State

	currentStep step
	risingEdge  bool // which edge currentStep is scheduled for

	addressLatch uint16
	pendingSink  sink
	onReadComplete func(c *CPU)

	pendingBranch step

	currentHandler HandlerFn

	writeAddr        uint16
	writeByte        uint8
	writePending     bool
	writeContinuation func(c *CPU)

	clckHandle signal.Handle
	waitHandle signal.Handle
}

// New returns a CPU bound to fabric. Call Init to zero it and arm the
// first fetch cycle.
func New(fabric *signal.Fabric, log Logger) *CPU {
	if log == nil {
		log = nopLogger{}
	}
	return &CPU{fabric: fabric, log: log}
}

// Init zeros the register file, subscribes to CLCK and WAIT, and arms the
// M1T1-rising micro-step.
func (c *CPU) Init() error {
	c.Regs = Registers{}
	c.Instr.reset()
	c.state = StateFetch
	c.currentStep = stepM1T1Rise
	c.risingEdge = true

	h, err := c.fabric.Subscribe(signal.CLCK, func(level bool) { c.onCLCK(level) })
	if err != nil {
		return err
	}
	c.clckHandle = h

	wh, err := c.fabric.Subscribe(signal.WAIT, func(bool) {})
	if err != nil {
		return err
	}
	c.waitHandle = wh
	return nil
}

// State returns the CPU's current phase.
func (c *CPU) State() State { return c.state }

// onCLCK is the CLCK subscriber installed by Init: short-circuit while
// WAIT is high or the CPU has latched Failure; otherwise dispatch
// currentStep if it is due on this edge. An edge that doesn't match the
// step's expected polarity is a deliberate no-op rather than a failure,
// since plenty of intervening edges arrive while a step is armed for the
// opposite polarity.
func (c *CPU) onCLCK(rising bool) {
	if c.fabric.Read(signal.WAIT) || c.state == StateFailure {
		return
	}
	if rising != c.risingEdge {
		return
	}
	if c.currentStep == stepNone {
		c.fail("scheduler starvation: no micro-step armed")
		return
	}
	c.dispatch(c.currentStep)
}

func (c *CPU) fail(reason string) {
	c.state = StateFailure
	c.currentStep = stepNone
	c.fabric.Raise(signal.WAIT)
	c.log.Warnf("z80: %s", reason)
}

func (c *CPU) arm(s step, rising bool) {
	c.currentStep = s
	c.risingEdge = rising
}

func (c *CPU) dispatch(s step) {
	switch s {
	case stepM1T1Rise, stepFetchStart:
		c.stepM1T1Rise()
	case stepM1T1Fall:
		c.stepM1T1Fall()
	case stepM1T2Fall:
		c.stepM1T2Fall()
	case stepM1T3Rise:
		c.stepM1T3Rise()
	case stepM1T3Fall:
		c.stepM1T3Fall()
	case stepM1T4Fall:
		c.stepM1T4Fall()
	case stepPrefixPrepRise:
		c.stepPrefixPrepRise()
	case stepOperandPrepRise:
		c.stepOperandPrepRise()
	case stepReadR1Rise:
		c.stepReadR1Rise()
	case stepReadR1Fall:
		c.stepReadR1Fall()
	case stepReadR2Rise:
		c.stepReadR2Rise()
	case stepReadR2Fall:
		c.stepReadR2Fall()
	case stepWriteW1Rise:
		c.stepWriteW1Rise()
	case stepWriteW1Fall:
		c.stepWriteW1Fall()
	case stepWriteW2Fall:
		c.stepWriteW2Fall()
	case stepWriteW3Fall:
		c.stepWriteW3Fall()
	case stepExecute:
		c.stepExecute()
	default:
		c.fail("unreachable micro-step")
	}
}

// --- M1 fetch cycle ---

func (c *CPU) stepM1T1Rise() {
	c.Instr.reset()
	c.writePending = false
	c.currentHandler = nil

	c.fabric.Raise(signal.MREQ)
	c.fabric.Raise(signal.RD)
	c.fabric.Raise(signal.RFSH)
	c.fabric.Drop(signal.M1)
	c.fabric.SetAddress(uint16(c.Regs.PC))
	c.addressLatch = uint16(c.Regs.PC)
	c.arm(stepM1T1Fall, false)
}

func (c *CPU) stepM1T1Fall() {
	c.fabric.Drop(signal.MREQ)
	c.fabric.Drop(signal.RD)
	c.arm(stepM1T2Fall, false)
}

func (c *CPU) stepM1T2Fall() {
	// Instr was already zeroed by stepM1T1Rise at the start of this fetch;
	// only the opcode byte needs sampling here.
	c.Instr.Opcode = c.fabric.Data()
	c.arm(stepM1T3Rise, true)
}

func (c *CPU) stepM1T3Rise() {
	c.fabric.Raise(signal.MREQ)
	c.fabric.Raise(signal.RD)
	c.fabric.Raise(signal.M1)
	c.fabric.Drop(signal.RFSH)
	c.state = StateDecode
	c.decode()
	c.arm(stepM1T3Fall, false)
}

func (c *CPU) stepM1T3Fall() {
	c.pendingBranch = c.branchTarget()
	c.arm(stepM1T4Fall, false)
}

func (c *CPU) stepM1T4Fall() {
	c.fabric.Raise(signal.MREQ)
	c.arm(c.pendingBranch, true)
}

func (c *CPU) branchTarget() step {
	switch {
	case c.state == StateFailure:
		return stepNone
	case c.Instr.DetectedPrefix:
		return stepPrefixPrepRise
	case c.Instr.NumOperands == 0:
		return stepExecute
	default:
		return stepOperandPrepRise
	}
}

// --- Decode ---

func (c *CPU) family() Family {
	switch c.Instr.Prefix {
	case 0:
		return FamilyMain
	case 0x00CB:
		return FamilyCB
	case 0x00ED:
		return FamilyED
	case 0x00DD:
		return FamilyDD
	case 0x00FD:
		return FamilyFD
	case 0xDDCB:
		return FamilyDDCB
	case 0xFDCB:
		return FamilyFDCB
	default:
		return FamilyMain
	}
}

// prefixByteCount does not special-case the DD/FD -> CB chain: a genuine
// DDCB/FDCB sequence interposes a displacement byte between the second
// prefix and the final opcode-selecting byte, which this generic
// single-byte-per-link prefix chain does not thread through. DDCB/FDCB
// decoding is consequently approximate; see DESIGN.md.
func (c *CPU) prefixByteCount() int {
	switch {
	case c.Instr.Prefix == 0:
		return 0
	case c.Instr.Prefix > 0xFF:
		return 2
	default:
		return 1
	}
}

func (c *CPU) decode() {
	table := TableFor(c.family())
	entry := table[c.Instr.Opcode]
	x, y, z, p, q := decodeFields(c.Instr.Opcode)
	c.Instr.X, c.Instr.Y, c.Instr.Z, c.Instr.P, c.Instr.Q = x, y, z, p, q
	c.Instr.Mnemonic = entry.Mnemonic
	c.Instr.Class = entry.Class
	c.currentHandler = entry.Handler

	if entry.ByteLen < 0 {
		if entry.ByteLen == -1 {
			c.Instr.DetectedPrefix = true
			return
		}
		c.fail("unknown prefix during decode")
		return
	}

	c.Instr.DetectedPrefix = false
	c.Instr.ByteLen = uint8(entry.ByteLen)
	operands := int(entry.ByteLen) - c.prefixByteCount() - 1
	if operands < 0 {
		operands = 0
	}
	if operands >= 3 {
		c.log.Warnf("z80: clamping implausible operand count %d to 0 for opcode %#02x", operands, c.Instr.Opcode)
		operands = 0
	}
	c.Instr.NumOperands = uint8(operands)
	c.Instr.OperandsRemaining = uint8(operands)
}

// --- Prefix chaining ---

func (c *CPU) stepPrefixPrepRise() {
	c.Instr.Prefix = (c.Instr.Prefix << 8) | uint16(c.Instr.Opcode)
	c.beginReadCycleNow(sinkOpcode, func(cpu *CPU) {
		cpu.decode()
		target := cpu.branchTarget()
		cpu.arm(target, true)
	})
}

// --- Operand read cycle ---
//
// The first read cycle samples into Operand0 and the second into
// Operand1; combined with the low-byte-first Z80 convention, LD BC,NN
// with bytes [0x34, 0x12] yields Operand0==0x34, Operand1==0x12.

func (c *CPU) stepOperandPrepRise() {
	if c.Instr.NumOperands == 2 {
		c.beginReadCycleNow(sinkOperand0, func(cpu *CPU) {
			cpu.Instr.OperandsRemaining--
			cpu.armReadCycle(sinkOperand1, func(cpu2 *CPU) {
				cpu2.Instr.OperandsRemaining--
				cpu2.arm(stepExecute, true)
			})
		})
		return
	}
	c.beginReadCycleNow(sinkOperand0, func(cpu *CPU) {
		cpu.Instr.OperandsRemaining--
		cpu.arm(stepExecute, true)
	})
}

// armReadCycle schedules a read cycle's R1-rising step for the next rising
// edge. Use this from a falling-edge context (e.g. the completion callback
// of a prior read cycle), where that next rising edge is the genuine next
// edge the scheduler will see.
func (c *CPU) armReadCycle(s sink, onComplete func(*CPU)) {
	c.addressLatch++
	c.pendingSink = s
	c.onReadComplete = onComplete
	c.arm(stepReadR1Rise, true)
}

// beginReadCycleNow performs the R1-rising body immediately. Use this from
// a step handler that is itself already executing on the rising edge the
// read cycle should start on (stepOperandPrepRise, stepPrefixPrepRise):
// going through armReadCycle here would strand the cycle waiting a full
// extra rising-edge lap for a step it could perform this instant.
func (c *CPU) beginReadCycleNow(s sink, onComplete func(*CPU)) {
	c.addressLatch++
	c.pendingSink = s
	c.onReadComplete = onComplete
	c.stepReadR1Rise()
}

func (c *CPU) stepReadR1Rise() {
	c.fabric.SetAddress(c.addressLatch)
	c.arm(stepReadR1Fall, false)
}

func (c *CPU) stepReadR1Fall() {
	c.fabric.Drop(signal.MREQ)
	c.fabric.Drop(signal.RD)
	c.arm(stepReadR2Rise, true)
}

func (c *CPU) stepReadR2Rise() {
	v := c.fabric.Data()
	switch c.pendingSink {
	case sinkOpcode:
		c.Instr.Opcode = v
	case sinkOperand0:
		c.Instr.Operand0 = v
	case sinkOperand1:
		c.Instr.Operand1 = v
	}
	c.arm(stepReadR2Fall, false)
}

func (c *CPU) stepReadR2Fall() {
	c.fabric.Raise(signal.MREQ)
	c.fabric.Raise(signal.RD)
	onComplete := c.onReadComplete
	c.onReadComplete = nil
	if onComplete != nil {
		onComplete(c)
	}
}

// --- Memory write cycle ---
//
// Callers (opcode handlers) must have already asserted MREQ and WR; the
// address and data are driven together on the rising edge so the memory
// controller's CLCK subscriber (which must be registered before the CPU)
// observes a consistent bus on the very next edge it inspects, rather
// than splitting address and data across separate edges, which does not
// compose with this engine's synchronous same-edge subscriber ordering.
// See DESIGN.md for the full rationale.

func (c *CPU) armWriteCycle(addr uint16, value uint8, continuation func(*CPU)) {
	c.writeAddr = addr
	c.writeByte = value
	c.writePending = true
	c.writeContinuation = continuation
	c.arm(stepWriteW1Rise, true)
}

func (c *CPU) stepWriteW1Rise() {
	c.fabric.SetAddress(c.writeAddr)
	c.fabric.SetData(c.writeByte)
	c.arm(stepWriteW1Fall, false)
}

func (c *CPU) stepWriteW1Fall() {
	c.fabric.Drop(signal.MREQ)
	c.arm(stepWriteW2Fall, false)
}

func (c *CPU) stepWriteW2Fall() {
	c.fabric.Drop(signal.WR)
	c.arm(stepWriteW3Fall, false)
}

func (c *CPU) stepWriteW3Fall() {
	c.fabric.Raise(signal.MREQ)
	c.fabric.Raise(signal.WR)
	c.writePending = false
	cont := c.writeContinuation
	c.writeContinuation = nil
	if cont != nil {
		cont(c)
	} else {
		c.arm(stepFetchStart, true)
		c.state = StateFetch
	}
}

// --- Execute ---

func (c *CPU) stepExecute() {
	c.Regs.PC += Reg16(c.Instr.ByteLen)
	c.state = StateExecute
	if c.currentHandler != nil {
		c.currentHandler(c)
	}
	if !c.writePending {
		c.arm(stepFetchStart, true)
		c.state = StateFetch
	}
}
