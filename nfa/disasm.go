package nfa

import (
	"fmt"
	"io"
	"strings"
)

// Disassemble writes one human-readable line per instruction of p to w,
// byte literals shown via C-escape forms and jump targets printed as
// absolute indices.
func Disassemble(w io.Writer, p *Program) error {
	i := int32(0)
	for i < p.NOps {
		word := p.Ops[i]
		arg := argOf(word)
		switch opcodeOf(word) {
		case OpJump:
			k := int(arg)
			targets := make([]string, k)
			for j := 0; j < k; j++ {
				off := int16(p.Ops[i+1+int32(j)])
				target := int32(int(i)+1+k) + int32(off)
				targets[j] = fmt.Sprintf("%d", target)
			}
			fmt.Fprintf(w, "%4d: JUMP %s\n", i, strings.Join(targets, ", "))
			i += int32(1 + k)
		case OpMatchClass:
			n := int(arg)
			parts := make([]string, n)
			for j := 0; j < n; j++ {
				rw := p.Ops[i+1+int32(j)]
				parts[j] = fmt.Sprintf("%s-%s", quoteByte(byte(rw>>8)), quoteByte(byte(rw)))
			}
			fmt.Fprintf(w, "%4d: MATCH_CLASS [%s]\n", i, strings.Join(parts, ","))
			i += int32(1 + n)
		case OpMatchByte:
			fmt.Fprintf(w, "%4d: MATCH_BYTE %s\n", i, quoteByte(arg))
			i++
		case OpMatchByteCI:
			fmt.Fprintf(w, "%4d: MATCH_BYTE_CI %s\n", i, quoteByte(arg))
			i++
		case OpSaveStart:
			fmt.Fprintf(w, "%4d: SAVE_START %d\n", i, arg)
			i++
		case OpSaveEnd:
			fmt.Fprintf(w, "%4d: SAVE_END %d\n", i, arg)
			i++
		case OpAssertContext:
			fmt.Fprintf(w, "%4d: ASSERT_CONTEXT %d\n", i, arg)
			i++
		case OpMatchAny:
			fmt.Fprintf(w, "%4d: MATCH_ANY\n", i)
			i++
		case OpNop:
			fmt.Fprintf(w, "%4d: NOP\n", i)
			i++
		case OpAccept:
			fmt.Fprintf(w, "%4d: ACCEPT\n", i)
			i++
		default:
			return fmt.Errorf("%w: unknown opcode 0x%02x at %d", ErrNfaCorrupt, word>>8, i)
		}
	}
	return nil
}

func quoteByte(b byte) string {
	switch b {
	case 0:
		return `\0`
	case 7:
		return `\a`
	case 8:
		return `\b`
	case 9:
		return `\t`
	case 10:
		return `\n`
	case 11:
		return `\v`
	case 12:
		return `\f`
	case 13:
		return `\r`
	case 27:
		return `\e`
	}
	if b >= 0x20 && b < 0x7f {
		return fmt.Sprintf("'%c'", b)
	}
	return fmt.Sprintf(`\x%02x`, b)
}

// String renders the program's disassembly. Errors from a corrupt program
// are folded into the text rather than returned, since String must satisfy
// fmt.Stringer.
func (p *Program) String() string {
	var sb strings.Builder
	if err := Disassemble(&sb, p); err != nil {
		fmt.Fprintf(&sb, "<%v>\n", err)
	}
	return sb.String()
}
