// Package nfa compiles regular expressions (or programmatically built
// expression trees) into a compact bytecode program and executes it as a
// Thompson-construction non-deterministic finite automaton over 8-bit byte
// input.
//
// A program is a flat array of 16-bit opcode words produced by a Builder
// and driven either directly or by the regex-text parser in Compile. A
// Machine simulates the program one input byte at a time, tracking the set
// of currently active states and, when captures are requested, the
// beginning/end byte offsets of each numbered group.
package nfa

import "encoding/binary"

// Opcode is the high byte of a packed instruction word.
type Opcode byte

const (
	// OpNop is produced only as the body of an explicit empty match.
	OpNop Opcode = iota
	// OpMatchAny matches any single input byte.
	OpMatchAny
	// OpMatchByte matches one exact byte, carried in the low byte of the word.
	OpMatchByte
	// OpMatchByteCI matches an ASCII letter in either case; its argument is
	// always the lower-case form of the letter.
	OpMatchByteCI
	// OpMatchClass is followed by N range words, N given by the argument.
	OpMatchClass
	// OpAssertContext passes iff the named bit is set in the current context.
	OpAssertContext
	// OpSaveStart records the current input position into capture[id].Begin.
	OpSaveStart
	// OpSaveEnd records the current input position into capture[id].End.
	OpSaveEnd
	// OpJump is followed by K signed 16-bit offsets; K=1 is an
	// unconditional jump, K>1 forks into K branches in priority order.
	OpJump
	// OpAccept terminates a program; always the final word.
	OpAccept
)

var opcodeNames map[Opcode]string

func init() {
	opcodeNames = map[Opcode]string{
		OpNop:           "NOP",
		OpMatchAny:      "MATCH_ANY",
		OpMatchByte:     "MATCH_BYTE",
		OpMatchByteCI:   "MATCH_BYTE_CI",
		OpMatchClass:    "MATCH_CLASS",
		OpAssertContext: "ASSERT_CONTEXT",
		OpSaveStart:     "SAVE_START",
		OpSaveEnd:       "SAVE_END",
		OpJump:          "JUMP",
		OpAccept:        "ACCEPT",
	}
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return "UNKNOWN"
}

// maxProgramLen is the upper bound on program length in opcode words (2^16-1).
const maxProgramLen = 1<<16 - 1

// maxJumpOffset is the magnitude bound on a JUMP offset (2^15-2).
const maxJumpOffset = 1<<15 - 2

func fitsOffset(v int) bool {
	return v >= -maxJumpOffset && v <= maxJumpOffset
}

func packWord(op Opcode, arg byte) uint16 {
	return uint16(op)<<8 | uint16(arg)
}

func opcodeOf(word uint16) Opcode {
	return Opcode(word >> 8)
}

func argOf(word uint16) byte {
	return byte(word & 0xFF)
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func toLowerASCII(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c - 'A' + 'a'
	}
	return c
}

func toUpperASCII(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// Program is a compiled bytecode program: NOps opcode words, the last of
// which is always ACCEPT. It is a plain value and safe to read concurrently
// from any number of Machines.
type Program struct {
	NOps        int32
	Ops         []uint16
	NumCaptures int
}

func programSize(nops int) int { return 4 + nops*2 }

// Size returns the byte length of the program's serialised form.
func (p *Program) Size() int { return programSize(len(p.Ops)) }

func (p *Program) encodeInto(buf []byte) {
	binary.LittleEndian.PutUint32(buf, uint32(len(p.Ops)))
	for i, w := range p.Ops {
		binary.LittleEndian.PutUint16(buf[4+i*2:], w)
	}
}

// Bytes serialises the program into a freshly allocated buffer.
func (p *Program) Bytes() []byte {
	buf := make([]byte, p.Size())
	p.encodeInto(buf)
	return buf
}

// WriteTo copies the serialised program into buf, which must be at least
// p.Size() bytes, returning ErrBufferTooSmall otherwise.
func (p *Program) WriteTo(buf []byte) (int, error) {
	size := p.Size()
	if len(buf) < size {
		return 0, ErrBufferTooSmall
	}
	p.encodeInto(buf)
	return size, nil
}

// ProgramFromBytes reconstructs a Program from the layout written by Bytes
// or WriteTo. The serialised form is always little-endian, whatever the
// host's byte order.
func ProgramFromBytes(buf []byte) (*Program, error) {
	if len(buf) < 4 {
		return nil, ErrBufferTooSmall
	}
	n := binary.LittleEndian.Uint32(buf)
	need := programSize(int(n))
	if len(buf) < need {
		return nil, ErrBufferTooSmall
	}
	ops := make([]uint16, n)
	for i := range ops {
		ops[i] = binary.LittleEndian.Uint16(buf[4+i*2:])
	}
	return &Program{NOps: int32(n), Ops: ops}, nil
}
