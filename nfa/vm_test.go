package nfa

import (
	"errors"
	"testing"
)

func capEqual(c Capture, begin, end int) bool {
	return c.Begin == begin && c.End == end
}

var captureTests = []struct {
	pattern string
	flags   CompileFlags
	input   string
	want    []Capture // indexed by group; -1,-1 means unset
}{
	// Scenario table from the acceptance criteria.
	{"Hello", CaseInsensitiveFlag, "hELLo", []Capture{{0, 5}}},
	{"a(b|c)+d", 0, "abcbd", []Capture{{0, 5}, {3, 4}}},
	{"a.*?b", 0, "axbxb", []Capture{{0, 3}}},
	{"[^abc]+", 0, "xyzabc", []Capture{{0, 3}}},
	{"(ab)|(a)", 0, "ab", []Capture{{0, 2}, {0, 2}, {-1, -1}}},

	// Greedy vs non-greedy.
	{"a.*b", 0, "axbxb", []Capture{{0, 5}}},
	{"a(x*)(x*)b", 0, "axxb", []Capture{{0, 4}, {1, 3}, {3, 3}}},
	{"a(x*?)(x*)b", 0, "axxb", []Capture{{0, 4}, {1, 1}, {1, 3}}},

	// Alternation priority: the first branch wins on ties.
	{"(a)|(ab)", 0, "ab", []Capture{{0, 1}, {0, 1}, {-1, -1}}},
	{"(a|ab)(b?)", 0, "ab", []Capture{{0, 2}, {0, 1}, {1, 2}}},

	// A group inside repetition reports its final iteration.
	{"(a|b)+", 0, "abab", []Capture{{0, 4}, {3, 4}}},
}

func TestCaptures(t *testing.T) {
	for _, c := range captureTests {
		ok, caps := matchPattern(t, c.pattern, c.input, c.flags)
		assert(t, ok, "/%s/ should match %q", c.pattern, c.input)
		assert(t, len(caps) == len(c.want), "/%s/ on %q: got %d captures, want %d", c.pattern, c.input, len(caps), len(c.want))
		for i, w := range c.want {
			assert(t, capEqual(caps[i], w.Begin, w.End),
				"/%s/ on %q: capture %d = (%d,%d), want (%d,%d)",
				c.pattern, c.input, i, caps[i].Begin, caps[i].End, w.Begin, w.End)
		}
	}
}

func TestMatchConvenience(t *testing.T) {
	ok, caps, err := Match("(ab)|(a)", "ab", 0)
	assert(t, err == nil, "Match failed: %s", err)
	assert(t, ok, "(ab)|(a) should match ab")
	assert(t, capEqual(caps[1], 0, 2), "group 1 = (%d,%d), want (0,2)", caps[1].Begin, caps[1].End)
	assert(t, capEqual(caps[2], -1, -1), "group 2 should be unset")

	_, _, err = Match("(a", "x", 0)
	assert(t, errors.Is(err, ErrRegexUnclosedGroup), "Match with a bad pattern: got %v", err)
}

// a* over k bytes of input must hold a bounded number of active states,
// independent of k: the active frontier of the Thompson construction, not
// the number of paths through it.
func TestKleeneStateBound(t *testing.T) {
	p := compilePattern(t, "a*", DisableCaptures)
	m := NewMachine(p)
	m.Start(AtStart)

	bound := 0
	for i := 0; i < 1000; i++ {
		m.Step('a', 0)
		assert(t, !m.IsRejected(), "a* rejected at step %d", i)
		if n := len(m.current.dense); n > bound {
			if i > 0 {
				assert(t, false, "active states grew from %d to %d at step %d", bound, n, i)
			}
			bound = n
		}
	}
	assert(t, bound <= int(p.NOps), "active states %d exceed program length", bound)
	assert(t, m.IsAccepted(), "a* should accept a^1000")
}

// Streaming use: Start, then Step per byte, polling the predicates.
func TestStreaming(t *testing.T) {
	p := compilePattern(t, "ab+c", 0)
	m := NewMachine(p)

	m.Start(AtStart)
	for _, b := range []byte("abbb") {
		assert(t, !m.IsFinished(), "finished too early")
		m.Step(b, 0)
	}
	assert(t, !m.IsAccepted(), "must not accept before the final c")
	m.Step('c', AtEnd)
	assert(t, m.IsAccepted(), "ab+c should accept abbbc")
	assert(t, m.IsFinished(), "accepted implies finished")

	// A dead prefix rejects immediately and stays rejected.
	m.Start(AtStart)
	m.Step('x', 0)
	assert(t, m.IsRejected(), "ab+c should reject x after one byte")
	assert(t, m.IsFinished(), "rejected implies finished")

	// The machine is reusable: Start resets it completely.
	ok, _ := m.MatchString("abc")
	assert(t, ok, "machine must be reusable after a rejection")
}

// User-defined context bits beyond AtStart/AtEnd pass through to
// ASSERT_CONTEXT untouched.
func TestUserContextFlags(t *testing.T) {
	const wordBoundary = ContextFlags(1 << 2)

	b := NewBuilder()
	defer b.Free()
	b.AssertContext(2)
	b.MatchByte('a', 0)
	b.Join()
	p, err := b.Output()
	assert(t, err == nil, "Output failed: %s", err)

	m := NewMachine(p)
	m.Start(wordBoundary)
	m.Step('a', 0)
	assert(t, m.IsAccepted(), "assertion should pass when its bit is set")

	m.Start(0)
	m.Step('a', 0)
	assert(t, m.IsRejected(), "assertion should cut the path when its bit is clear")
}

func TestMachineFixedBuffer(t *testing.T) {
	p := compilePattern(t, "(a+)(b+)", 0)

	// Too small to even hold the state sets: fails at construction,
	// surfacing once the machine is used.
	m := NewMachineWithBuffer(p, make([]byte, 16))
	ok, _ := m.MatchString("aabb")
	assert(t, !ok, "an out-of-memory machine must not report a match")
	assert(t, errors.Is(m.Err(), ErrOutOfMemory), "expected ErrOutOfMemory, got %v", m.Err())
	assert(t, m.IsRejected(), "an errored machine reports rejected")

	// Roomy enough: behaves identically to the heap-backed machine.
	m = NewMachineWithBuffer(p, make([]byte, 1<<16))
	ok, caps := m.MatchString("aabb")
	assert(t, ok, "(a+)(b+) should match aabb")
	assert(t, capEqual(caps[1], 0, 2) && capEqual(caps[2], 2, 4), "captures wrong under a fixed buffer: %v", caps)
	m.Free()
}

// A malformed program (a jump outside the program) is caught and reported
// as corruption rather than crashing the host.
func TestCorruptProgram(t *testing.T) {
	p := &Program{NOps: 3, Ops: []uint16{packWord(OpJump, 1), uint16(int16(100)), packWord(OpAccept, 0)}}
	m := NewMachine(p)
	ok, _ := m.MatchString("x")
	assert(t, !ok, "a corrupt program must not match")
	assert(t, errors.Is(m.Err(), ErrNfaCorrupt), "expected ErrNfaCorrupt, got %v", m.Err())
}

// Two machines over one shared program do not interfere.
func TestSharedProgram(t *testing.T) {
	p := compilePattern(t, "(x*)y", 0)
	m1, m2 := NewMachine(p), NewMachine(p)

	m1.Start(AtStart)
	m2.Start(AtStart)
	for i := 0; i < 3; i++ {
		m1.Step('x', 0)
	}
	m2.Step('y', AtEnd)

	m1.Step('y', AtEnd)
	assert(t, m1.IsAccepted(), "machine 1 should accept xxxy")
	assert(t, m2.IsAccepted(), "machine 2 should accept y")
}

func TestEmptyInput(t *testing.T) {
	ok, caps := matchPattern(t, "a*", "", 0)
	assert(t, ok, "a* should accept the empty string")
	assert(t, capEqual(caps[0], 0, 0), "group 0 on empty input = (%d,%d)", caps[0].Begin, caps[0].End)

	ok, _ = matchPattern(t, "^$", "", 0)
	assert(t, ok, "^$ should accept the empty string")
}
