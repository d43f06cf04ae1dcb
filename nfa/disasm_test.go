package nfa

import (
	"strings"
	"testing"
)

func TestDisassemble(t *testing.T) {
	p := compilePattern(t, "a[0-9]*\n", DisableCaptures)
	text := p.String()
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	assert(t, strings.HasPrefix(lines[0], "   0: "), "first line must be instruction 0: %q", lines[0])
	assert(t, strings.HasSuffix(lines[len(lines)-1], "ACCEPT"), "last line must be ACCEPT: %q", lines[len(lines)-1])

	assert(t, strings.Contains(text, "MATCH_BYTE 'a'"), "missing byte literal:\n%s", text)
	assert(t, strings.Contains(text, `MATCH_BYTE \n`), "newline should print as \\n:\n%s", text)
	assert(t, strings.Contains(text, "MATCH_CLASS ['0'-'9']"), "missing class ranges:\n%s", text)
	assert(t, strings.Contains(text, "ACCEPT"), "missing ACCEPT:\n%s", text)

	// Jump targets print as absolute indices, and every printed target
	// must name a listed instruction.
	for _, line := range lines {
		if !strings.Contains(line, "JUMP") {
			continue
		}
		_, targets, ok := strings.Cut(line, "JUMP ")
		assert(t, ok, "malformed JUMP line %q", line)
		for _, tgt := range strings.Split(targets, ", ") {
			found := false
			for _, other := range lines {
				if strings.HasPrefix(strings.TrimLeft(other, " "), tgt+":") {
					found = true
					break
				}
			}
			assert(t, found, "JUMP target %s does not label an instruction:\n%s", tgt, text)
		}
	}
}

func TestDisassembleCorrupt(t *testing.T) {
	p := &Program{NOps: 1, Ops: []uint16{packWord(Opcode(0xEE), 0)}}
	var sb strings.Builder
	err := Disassemble(&sb, p)
	assert(t, err != nil, "disassembling an unknown opcode must fail")
}
