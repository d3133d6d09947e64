// Package disasm implements a linear-sweep disassembler: walk a byte range
// using the same seven prefix-family tables the CPU core decodes against,
// emitting one record per instruction and accumulating non-fatal warnings
// for undecodable bytes rather than aborting the sweep.
package disasm

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/z0x50/z0x50/z80"
)

// Reader is the minimal byte-source the disassembler needs. memory.Controller
// satisfies this via RawRead.
type Reader interface {
	RawRead(addr uint16) uint8
}

// Record is one disassembled instruction.
type Record struct {
	Index    uint16
	Prefix   uint16
	Opcode   uint8
	Operand  uint32 // low bytes hold the operand bytes, little-endian; Format does not print it
	Mnemonic string
}

// Warning flags a byte the sweep could not cleanly decode. Accumulated as
// a plain append-only slice rather than a linked list.
type Warning struct {
	Index  uint16
	Reason string
}

// cacheKey is the sweep start offset: decoding always begins against the
// main table, so the offset alone identifies a cached record (the family
// reached after prefix chaining is part of the cached Record, not the key).
type cacheKey = uint16

// Disassembler sweeps a Reader linearly, caching decoded records by
// offset so repeated passes (the orchestrator's Decompile mode
// re-entering) don't redecode the same offsets. The cache is not
// invalidated when the Reader's bytes change.
type Disassembler struct {
	mem   Reader
	cache *lru.Cache[cacheKey, Record]
}

const defaultCacheSize = 4096

// New returns a Disassembler reading from mem.
func New(mem Reader) *Disassembler {
	cache, _ := lru.New[cacheKey, Record](defaultCacheSize)
	return &Disassembler{mem: mem, cache: cache}
}

// Sweep disassembles length bytes starting at start, advancing by each
// decoded instruction's byte length (or 1, on a warning) and returns the
// resulting records plus any warnings encountered.
func (d *Disassembler) Sweep(start uint16, length uint16) ([]Record, []Warning) {
	var records []Record
	var warnings []Warning

	end := uint32(start) + uint32(length)
	idx := start
	for uint32(idx) < end {
		rec, consumed, warn := d.decodeOne(idx)
		if warn != "" {
			warnings = append(warnings, Warning{Index: idx, Reason: warn})
			idx++
			continue
		}
		records = append(records, rec)
		idx += consumed
	}
	return records, warnings
}

// decodeOne decodes the instruction at idx, chaining through prefix bytes
// exactly as the CPU core's decode does, and returns the record, the total
// byte length consumed, and a non-empty warning reason on failure.
func (d *Disassembler) decodeOne(idx uint16) (Record, uint16, string) {
	fam := z80.FamilyMain
	prefix := uint16(0)
	cur := idx

	if rec, ok := d.cache.Get(idx); ok {
		return rec, uint16(entryByteLen(familyFromPrefix(rec.Prefix), rec.Opcode)), ""
	}

	for {
		opcode := d.mem.RawRead(cur)
		table := z80.TableFor(fam)
		entry := table[opcode]

		if entry.ByteLen == -1 {
			prefix = (prefix << 8) | uint16(opcode)
			fam = nextFamily(fam, opcode)
			cur++
			continue
		}
		// No table slot currently satisfies this condition (every family's
		// build function populates all 256 opcodes), but a future partial
		// table should still fail a sweep cleanly instead of panicking.
		if entry.ByteLen <= 0 || entry.Mnemonic == "" {
			return Record{}, 0, fmt.Sprintf("undecodable opcode %#02x at family %v", opcode, fam)
		}

		// entry.ByteLen already counts this family's own prefix byte(s), so
		// the instruction's total length from idx is simply entry.ByteLen.
		rec := Record{Index: idx, Prefix: prefix, Opcode: opcode, Mnemonic: entry.Mnemonic}
		operandBytes := int(entry.ByteLen) - prefixLen(prefix) - 1
		rec.Operand = d.readOperand(cur+1, operandBytes)

		d.cache.Add(idx, rec)
		return rec, uint16(entry.ByteLen), ""
	}
}

func familyFromPrefix(prefix uint16) z80.Family {
	switch prefix {
	case 0x00CB:
		return z80.FamilyCB
	case 0x00ED:
		return z80.FamilyED
	case 0x00DD:
		return z80.FamilyDD
	case 0x00FD:
		return z80.FamilyFD
	case 0xDDCB:
		return z80.FamilyDDCB
	case 0xFDCB:
		return z80.FamilyFDCB
	default:
		return z80.FamilyMain
	}
}

func entryByteLen(fam z80.Family, opcode uint8) int8 {
	return z80.TableFor(fam)[opcode].ByteLen
}

func prefixLen(prefix uint16) int {
	switch {
	case prefix == 0:
		return 0
	case prefix > 0xFF:
		return 2
	default:
		return 1
	}
}

func nextFamily(cur z80.Family, opcode uint8) z80.Family {
	switch {
	case cur == z80.FamilyMain && opcode == 0xCB:
		return z80.FamilyCB
	case cur == z80.FamilyMain && opcode == 0xED:
		return z80.FamilyED
	case cur == z80.FamilyMain && opcode == 0xDD:
		return z80.FamilyDD
	case cur == z80.FamilyMain && opcode == 0xFD:
		return z80.FamilyFD
	case cur == z80.FamilyDD && opcode == 0xCB:
		return z80.FamilyDDCB
	case cur == z80.FamilyFD && opcode == 0xCB:
		return z80.FamilyFDCB
	default:
		return cur
	}
}

// readOperand reads n little-endian bytes starting at addr into the low
// bits of the returned value, matching the low-byte-first convention the
// CPU core's operand-read cycle uses.
func (d *Disassembler) readOperand(addr uint16, n int) uint32 {
	var v uint32
	for i := 0; i < n && i < 4; i++ {
		v |= uint32(d.mem.RawRead(addr+uint16(i))) << (8 * i)
	}
	return v
}

// Format renders a record as "%04X\t%s", the conventional decompile line
// format: four hex digits for the address, a tab, then the mnemonic.
func (r Record) Format() string {
	return fmt.Sprintf("%04X\t%s", r.Index, r.Mnemonic)
}
