package z80

// Class tags an opcode table entry with its instruction category,
// independent of its mnemonic string, so callers can group or filter the
// instruction set without string-matching mnemonics.
type Class int

const (
	ClassUnknown Class = iota
	ClassDataTransfer
	ClassArithmetic
	ClassLogical
	ClassRotateShift
	ClassBitManipulation
	ClassJumpCallReturn
	ClassIO
	ClassCPUControl
	ClassPrefix
)

func (c Class) String() string {
	switch c {
	case ClassDataTransfer:
		return "DataTransfer"
	case ClassArithmetic:
		return "Arithmetic"
	case ClassLogical:
		return "Logical"
	case ClassRotateShift:
		return "RotateShift"
	case ClassBitManipulation:
		return "BitManipulation"
	case ClassJumpCallReturn:
		return "JumpCallReturn"
	case ClassIO:
		return "IO"
	case ClassCPUControl:
		return "CPUControl"
	case ClassPrefix:
		return "Prefix"
	default:
		return "Unknown"
	}
}
