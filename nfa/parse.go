package nfa

import "fmt"

// CompileFlags governs Compile's pattern handling.
type CompileFlags uint32

const (
	// CaseInsensitiveFlag folds ASCII letters in byte and range matches
	// throughout the pattern.
	CaseInsensitiveFlag CompileFlags = 1 << 0
	// DisableCaptures suppresses Capture emission for every group while
	// still treating "(" ")" as grouping for alternation/repetition.
	DisableCaptures CompileFlags = 1 << 1
)

// maxGroupDepth bounds parser recursion comfortably under the builder's
// stack capacity, since each open group consumes a handful of builder
// stack slots by the time it closes.
const maxGroupDepth = 40

// Compile parses pattern and drives a fresh Builder to produce a Program.
// Unless DisableCaptures is set, capture slot 0 holds the whole match and
// user groups are numbered from 1; with it set, no captures are recorded.
func Compile(pattern string, flags CompileFlags) (*Program, error) {
	b := NewBuilder()
	if err := compileInto(b, pattern, flags); err != nil {
		return nil, err
	}
	if flags&DisableCaptures == 0 {
		if err := b.Capture(0); err != nil {
			return nil, fmt.Errorf("regex %q: %w", pattern, err)
		}
	}
	p, err := b.Output()
	if err != nil {
		return nil, fmt.Errorf("regex %q: %w", pattern, err)
	}
	return p, nil
}

// Match compiles pattern and matches it against input in one call,
// returning the accept verdict and captures if accepted.
func Match(pattern, input string, flags CompileFlags) (bool, []Capture, error) {
	p, err := Compile(pattern, flags)
	if err != nil {
		return false, nil, err
	}
	m := NewMachine(p)
	accepted, caps := m.MatchString(input)
	return accepted, caps, nil
}

type parser struct {
	b           *Builder
	pattern     []byte
	pos         int
	flags       CompileFlags
	nextCapture int
	groupDepth  int
}

func compileInto(b *Builder, pattern string, flags CompileFlags) error {
	p := &parser{b: b, pattern: []byte(pattern), flags: flags, nextCapture: 1}
	startDepth := len(b.stack)

	err := p.parseAlt()
	if err == nil && p.pos < len(p.pattern) {
		// Only an unmatched ')' can still be pending here: parseConcat
		// stops at '|', ')', or end of input, and parseAlt consumes every
		// '|' it sees.
		err = ErrRegexUnexpectedRParen
	}
	if err != nil {
		b.stack = b.stack[:startDepth]
		return fmt.Errorf("regex %q: %w", pattern, err)
	}
	return nil
}

func (p *parser) peek() byte {
	if p.pos >= len(p.pattern) {
		return 0
	}
	return p.pattern[p.pos]
}

func (p *parser) matchFlags() MatchFlags {
	if p.flags&CaseInsensitiveFlag != 0 {
		return CaseInsensitive
	}
	return 0
}

// parseAlt parses rep ('|' rep)*.
func (p *parser) parseAlt() error {
	if err := p.parseConcat(); err != nil {
		return err
	}
	count := 1
	for p.peek() == '|' {
		p.pos++
		if err := p.parseConcat(); err != nil {
			return err
		}
		count++
	}
	for i := 1; i < count; i++ {
		if err := p.b.Alt(); err != nil {
			return err
		}
	}
	return nil
}

// parseConcat parses zero or more rep terms, joining them left to right.
// Zero terms push an explicit empty match (this is how "||", "(|a)", and a
// wholly empty pattern are represented).
func (p *parser) parseConcat() error {
	count := 0
	for {
		c := p.peek()
		if c == 0 || c == '|' || c == ')' {
			break
		}
		if err := p.parseRep(); err != nil {
			return err
		}
		if count > 0 {
			if err := p.b.Join(); err != nil {
				return err
			}
		}
		count++
	}
	if count == 0 {
		return p.b.MatchEmpty()
	}
	return nil
}

// parseRep parses greedy '?'?, where the trailing '?' makes the preceding
// quantifier non-greedy.
func (p *parser) parseRep() error {
	quant, err := p.parseGreedy()
	if err != nil {
		return err
	}
	if quant == 0 {
		return nil
	}
	var flags RepeatFlags
	if p.peek() == '?' {
		p.pos++
		flags |= NonGreedy
	}
	switch quant {
	case '?':
		return p.b.ZeroOrOne(flags)
	case '*':
		return p.b.ZeroOrMore(flags)
	default: // '+'
		return p.b.OneOrMore(flags)
	}
}

// parseGreedy parses a term followed by an optional ?, * or +, returning
// which quantifier character followed (0 if none).
func (p *parser) parseGreedy() (byte, error) {
	if err := p.parseTerm(); err != nil {
		return 0, err
	}
	switch c := p.peek(); c {
	case '?', '*', '+':
		p.pos++
		return c, nil
	default:
		return 0, nil
	}
}

func (p *parser) parseTerm() error {
	switch c := p.peek(); c {
	case '?', '*', '+':
		return ErrRegexRepeatedEmpty
	case '(':
		return p.parseGroup()
	case '[':
		return p.parseClass()
	case '.':
		p.pos++
		return p.b.MatchAny()
	case '^':
		p.pos++
		return p.b.AssertAtStart()
	case '$':
		p.pos++
		return p.b.AssertAtEnd()
	case '\\':
		byt, err := p.parseEscape()
		if err != nil {
			return err
		}
		return p.b.MatchByte(byt, p.matchFlags())
	default:
		p.pos++
		return p.b.MatchByte(c, p.matchFlags())
	}
}

func (p *parser) parseGroup() error {
	p.pos++ // consume '('
	if p.groupDepth >= maxGroupDepth {
		return ErrRegexNestingOverflow
	}
	p.groupDepth++

	captures := p.flags&DisableCaptures == 0
	var id int
	if captures {
		id = p.nextCapture
		p.nextCapture++
	}

	if err := p.parseAlt(); err != nil {
		p.groupDepth--
		return err
	}
	if p.peek() != ')' {
		p.groupDepth--
		return ErrRegexUnclosedGroup
	}
	p.pos++
	p.groupDepth--

	if captures {
		return p.b.Capture(id)
	}
	return nil
}

// parseEscape consumes a backslash and the byte following it, mapping the
// small set of C-style escapes to their meanings; any other \X stands for
// byte X.
func (p *parser) parseEscape() (byte, error) {
	p.pos++ // consume '\'
	if p.pos >= len(p.pattern) {
		return 0, ErrRegexTrailingSlash
	}
	c := p.pattern[p.pos]
	p.pos++
	switch c {
	case 'r':
		return '\r', nil
	case 'n':
		return '\n', nil
	case '0':
		return 0, nil
	case 't':
		return '\t', nil
	case 'b':
		return '\b', nil
	case 'v':
		return '\v', nil
	default:
		return c, nil
	}
}

func (p *parser) classByte() (byte, error) {
	c := p.peek()
	if c == 0 {
		return 0, ErrRegexUnclosedClass
	}
	if c == '\\' {
		return p.parseEscape()
	}
	p.pos++
	return c, nil
}

// parseClass parses '[' '^'? range+ ']', consuming both brackets,
// chaining each atom with Alt so the builder folds them into one class,
// and complementing the result once if the class began with '^'.
func (p *parser) parseClass() error {
	p.pos++ // consume '['
	negate := false
	if p.peek() == '^' {
		negate = true
		p.pos++
	}

	count := 0
	for {
		c := p.peek()
		if c == 0 {
			return ErrRegexUnclosedClass
		}
		if c == ']' {
			break
		}
		lo, err := p.classByte()
		if err != nil {
			return err
		}
		hi := lo
		if p.peek() == '-' {
			save := p.pos
			p.pos++
			if next := p.peek(); next == ']' || next == 0 {
				// Trailing '-' with nothing after it is a literal byte,
				// not the start of a range.
				p.pos = save
			} else {
				hi, err = p.classByte()
				if err != nil {
					return err
				}
				if hi < lo {
					return ErrRegexRangeBackwards
				}
			}
		}
		if err := p.b.MatchByteRange(lo, hi, p.matchFlags()); err != nil {
			return err
		}
		if count > 0 {
			if err := p.b.Alt(); err != nil {
				return err
			}
		}
		count++
	}
	if count == 0 {
		return ErrRegexEmptyCharclass
	}
	p.pos++ // consume ']'
	if negate {
		return p.b.ComplementChar()
	}
	return nil
}
