package z80

import "github.com/z0x50/z0x50/signal"

// installHandlers attaches HandlerFn implementations to a focused subset of
// MainTable (NOP, the 16-bit immediate loads, register-to-register LD,
// INC/DEC r, the eight ALU ops, HALT and DI/EI), spanning the data-transfer,
// arithmetic, logical and CPU-control classes; no rotate/shift, bit,
// jump/call/return or I/O opcode has a handler. Every other slot keeps
// Handler == nil, which
// stepExecute treats as a no-op: a handler may be absent for an opcode not
// yet implemented.
func installHandlers(t *Table) {
	for op := 0; op < 256; op++ {
		opcode := uint8(op)
		x, y, z, p, q := decodeFields(opcode)
		e := &t[op]

		switch {
		case opcode == 0x00:
			e.Handler = handleNOP
		case x == 0 && z == 1 && q == 0:
			e.Handler = handleLDrpNN(p)
		case x == 0 && z == 4:
			e.Handler = handleINCr(y)
		case x == 0 && z == 5:
			e.Handler = handleDECr(y)
		case x == 1 && !(z == 6 && y == 6):
			e.Handler = handleLDrr(y, z)
		case x == 1 && z == 6 && y == 6:
			e.Handler = handleHALT
		case x == 2:
			e.Handler = handleALU(y, z)
		case opcode == 0xF3:
			e.Handler = handleDI
		case opcode == 0xFB:
			e.Handler = handleEI
		}
	}
}

func handleNOP(c *CPU) {}

// handleLDrpNN implements LD rp,NN for rp selected by p: the execute step
// consumes Operand0/Operand1 as the low/high immediate bytes, per the
// resolution recorded in DESIGN.md.
func handleLDrpNN(p uint8) HandlerFn {
	return func(c *CPU) {
		v := uint16(c.Instr.Operand1)<<8 | uint16(c.Instr.Operand0)
		switch p {
		case 0:
			c.Regs.BC = Reg16(v)
		case 1:
			c.Regs.DE = Reg16(v)
		case 2:
			c.Regs.HL = Reg16(v)
		case 3:
			c.Regs.SP = Reg16(v)
		}
	}
}

func readReg8(c *CPU, idx uint8) uint8 {
	switch idx {
	case 0:
		return c.Regs.BC.Hi()
	case 1:
		return c.Regs.BC.Lo()
	case 2:
		return c.Regs.DE.Hi()
	case 3:
		return c.Regs.DE.Lo()
	case 4:
		return c.Regs.HL.Hi()
	case 5:
		return c.Regs.HL.Lo()
	case 6:
		return 0 // (HL) indirect memory operand: not wired through this focused subset.
	default:
		return c.Regs.A()
	}
}

func writeReg8(c *CPU, idx uint8, v uint8) {
	switch idx {
	case 0:
		c.Regs.BC.SetHi(v)
	case 1:
		c.Regs.BC.SetLo(v)
	case 2:
		c.Regs.DE.SetHi(v)
	case 3:
		c.Regs.DE.SetLo(v)
	case 4:
		c.Regs.HL.SetHi(v)
	case 5:
		c.Regs.HL.SetLo(v)
	case 6:
		// (HL) indirect memory operand: not wired through this focused subset.
	default:
		c.Regs.SetA(v)
	}
}

func handleLDrr(dst, src uint8) HandlerFn {
	return func(c *CPU) {
		writeReg8(c, dst, readReg8(c, src))
	}
}

func handleINCr(dst uint8) HandlerFn {
	return func(c *CPU) {
		v := readReg8(c, dst)
		result := v + 1
		c.Regs.SetFlag(FlagS, result&0x80 != 0)
		c.Regs.SetFlag(FlagZ, result == 0)
		c.Regs.SetFlag(FlagH, v&0x0F == 0x0F)
		c.Regs.SetFlag(FlagPV, v == 0x7F)
		c.Regs.SetFlag(FlagN, false)
		writeReg8(c, dst, result)
	}
}

func handleDECr(dst uint8) HandlerFn {
	return func(c *CPU) {
		v := readReg8(c, dst)
		result := v - 1
		c.Regs.SetFlag(FlagS, result&0x80 != 0)
		c.Regs.SetFlag(FlagZ, result == 0)
		c.Regs.SetFlag(FlagH, v&0x0F == 0x00)
		c.Regs.SetFlag(FlagPV, v == 0x80)
		c.Regs.SetFlag(FlagN, true)
		writeReg8(c, dst, result)
	}
}

// handleALU implements the eight ADD/ADC/SUB/SBC/AND/XOR/OR/CP A,r
// instructions selected by y, against the operand register selected by z.
func handleALU(y, z uint8) HandlerFn {
	return func(c *CPU) {
		a := c.Regs.A()
		b := readReg8(c, z)
		switch y {
		case 0:
			c.Regs.SetA(add8(&c.Regs, a, b, false))
		case 1:
			c.Regs.SetA(add8(&c.Regs, a, b, true))
		case 2:
			c.Regs.SetA(sub8(&c.Regs, a, b, false))
		case 3:
			c.Regs.SetA(sub8(&c.Regs, a, b, true))
		case 4:
			c.Regs.SetA(and8(&c.Regs, a, b))
		case 5:
			c.Regs.SetA(xor8(&c.Regs, a, b))
		case 6:
			c.Regs.SetA(or8(&c.Regs, a, b))
		case 7:
			cp8(&c.Regs, a, b)
		}
	}
}

func handleHALT(c *CPU) {
	c.fabric.Raise(signal.HALT)
}

func handleDI(c *CPU) {
	c.Regs.IFF1 = false
	c.Regs.IFF2 = false
}

func handleEI(c *CPU) {
	c.Regs.IFF1 = true
	c.Regs.IFF2 = true
}
