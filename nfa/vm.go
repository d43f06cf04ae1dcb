package nfa

import "runtime/debug"

// ContextFlags is the 32-bit context word the caller computes at each
// input position. Bit 0 is AtStart, bit 1 is AtEnd; bits 2..31 are
// available for user-defined boundary classes, none of which this package
// builds in.
type ContextFlags uint32

const (
	AtStart ContextFlags = 1 << 0
	AtEnd   ContextFlags = 1 << 1
)

// Machine simulates a Program as a Thompson-construction NFA, advancing a
// set of active states one input byte at a time while tracking capture
// positions. Start must precede Step; a single Machine is not safe for
// concurrent use, though the underlying Program may be shared read-only
// across any number of Machines.
type Machine struct {
	prog    *Program
	pool    *Pool
	sets    *captureSets
	current *stateSet
	next    *stateSet
	loc     int
	err     error
}

// stateSlotCost is the logical per-state cost of one state-set slot
// (dense entry, sparse entry and capture pointer), charged against the
// Machine's pool once at construction for both sets.
const stateSlotCost = 24

// NewMachine returns a Machine over p using p.NumCaptures as the capture
// count, as set by Compile, backed by a default heap pool.
func NewMachine(p *Program) *Machine {
	return newMachine(p, p.NumCaptures, NewPool())
}

// NewMachineWithCaptures returns a Machine over p tracking numCaptures
// capture slots, overriding whatever p.NumCaptures records. Useful when a
// Program was built directly with a Builder rather than through Compile.
func NewMachineWithCaptures(p *Program, numCaptures int) *Machine {
	return newMachine(p, numCaptures, NewPool())
}

// NewMachineWithBuffer returns a Machine whose state-set and capture-set
// storage is bounded by len(buf) bytes of logical allocation; once
// exhausted the machine fails with ErrOutOfMemory.
func NewMachineWithBuffer(p *Program, buf []byte) *Machine {
	return newMachine(p, p.NumCaptures, NewPoolWithBuffer(buf))
}

// NewMachineWithAllocator returns a Machine that requests pages from a
// caller-supplied callback instead of the default heap strategy.
func NewMachineWithAllocator(p *Program, alloc PageAllocator) *Machine {
	return newMachine(p, p.NumCaptures, NewPoolWithAllocator(alloc))
}

func newMachine(p *Program, numCaptures int, pool *Pool) *Machine {
	n := int(p.NOps)
	m := &Machine{
		prog: p,
		pool: pool,
		sets: newCaptureSets(pool, numCaptures),
	}
	if err := pool.reserve(2 * n * stateSlotCost); err != nil {
		m.err = err
		return m
	}
	m.current = newStateSet(n)
	m.next = newStateSet(n)
	return m
}

// Err returns the machine's sticky error, or nil if none has occurred.
func (m *Machine) Err() error { return m.err }

func (m *Machine) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}

// recoverCorrupt maps a panic out of the simulation loop (a slice-index
// violation on a malformed program) to the sticky ErrNfaCorrupt state.
func (m *Machine) recoverCorrupt() {
	if r := recover(); r != nil {
		m.fail(ErrNfaCorrupt)
	}
}

// Free drops the Machine's state-set and capture-set storage and releases
// its pool. It always runs to completion even in an error state.
func (m *Machine) Free() {
	m.pool.Free()
	m.current = nil
	m.next = nil
	m.sets = nil
	m.err = nil
}

// trace adds s to the next state-set, idempotently, and for a consuming
// opcode or ACCEPT stores caps at its slot. Epsilon opcodes (JUMP,
// ASSERT_CONTEXT, SAVE_*, NOP) are fully resolved here rather than left for
// step and are marked with no capture reference.
func (m *Machine) trace(loc int, s int32, caps *captureSet, ctx ContextFlags) {
	if m.next.has(s) {
		m.sets.release(caps)
		return
	}
	word := m.prog.Ops[s]
	switch opcodeOf(word) {
	case OpJump:
		k := int(argOf(word))
		m.next.add(s, nil)
		for i := 1; i < k; i++ {
			m.sets.retain(caps)
		}
		for i := 0; i < k; i++ {
			offset := int16(m.prog.Ops[int(s)+1+i])
			target := int32(int(s) + 1 + k + int(offset))
			m.trace(loc, target, caps, ctx)
		}
	case OpAssertContext:
		bit := argOf(word)
		m.next.add(s, nil)
		if ctx&(1<<bit) != 0 {
			m.trace(loc, s+1, caps, ctx)
		} else {
			m.sets.release(caps)
		}
	case OpSaveStart, OpSaveEnd:
		m.next.add(s, nil)
		if m.sets.n == 0 {
			m.trace(loc, s+1, caps, ctx)
			return
		}
		owned := m.sets.own(caps)
		if owned == nil {
			m.sets.release(caps)
			m.fail(ErrOutOfMemory)
			return
		}
		id := int(argOf(word))
		if id < len(owned.captures) {
			if opcodeOf(word) == OpSaveStart {
				owned.captures[id].Begin = loc
			} else {
				owned.captures[id].End = loc
			}
		}
		m.trace(loc, s+1, owned, ctx)
	case OpNop:
		m.next.add(s, nil)
		m.trace(loc, s+1, caps, ctx)
	case OpAccept:
		m.next.add(s, caps)
	default:
		// Consuming opcode: store its capture reference for step to use.
		m.next.add(s, caps)
	}
}

// Start resets the machine and seeds the initial state-set from the
// program's entry point.
func (m *Machine) Start(ctx ContextFlags) {
	if m.err != nil {
		return
	}
	defer m.recoverCorrupt()
	m.loc = 0
	m.current.clear()
	m.next.clear()
	var caps *captureSet
	if m.sets.n > 0 {
		caps = m.sets.alloc()
		if caps == nil {
			m.fail(ErrOutOfMemory)
			return
		}
	}
	m.trace(m.loc, 0, caps, ctx)
	m.current, m.next = m.next, m.current
}

// Step advances the machine by one input byte, consuming the active
// states in current and tracing successors into next, then swapping the
// two sets. ACCEPT is sticky: once an ACCEPT state is reached while
// iterating current, it is traced forward to keep it alive, and all
// lower-priority states still pending in this step are abandoned. This is
// what enforces leftmost-first alternation priority.
func (m *Machine) Step(b byte, ctx ContextFlags) {
	if m.err != nil {
		return
	}
	defer m.recoverCorrupt()
	m.stepAt(b, m.loc, ctx)
	m.loc++
}

func (m *Machine) stepAt(b byte, loc int, ctx ContextFlags) {
	cur := m.current
	stopped := false
	for _, s := range cur.dense {
		caps := cur.caps[s]
		if stopped {
			m.sets.release(caps)
			continue
		}
		word := m.prog.Ops[s]
		var matched bool
		var nextState int32
		switch opcodeOf(word) {
		case OpAccept:
			m.trace(loc+1, s, caps, ctx)
			stopped = true
			continue
		case OpMatchAny:
			matched, nextState = true, s+1
		case OpMatchByte:
			matched, nextState = b == argOf(word), s+1
		case OpMatchByteCI:
			matched, nextState = toLowerASCII(b) == argOf(word), s+1
		case OpMatchClass:
			n := int32(argOf(word))
			matched, nextState = classMatches(m.prog.Ops[s+1:s+1+n], b), s+1+n
		default:
			// Epsilon states stay marked in the set (trace marks them so
			// they are not revisited) but were fully resolved when traced;
			// they hold no capture reference and consume nothing.
			m.sets.release(caps)
			continue
		}
		if matched {
			m.trace(loc+1, nextState, caps, ctx)
		} else {
			m.sets.release(caps)
		}
	}
	cur.clear()
	m.current, m.next = m.next, m.current
}

func classMatches(ranges []uint16, b byte) bool {
	for _, w := range ranges {
		first := byte(w >> 8)
		if b < first {
			return false // ranges are sorted ascending: no later range can match
		}
		if b <= byte(w) {
			return true
		}
	}
	return false
}

// IsAccepted reports whether the ACCEPT state is currently marked.
func (m *Machine) IsAccepted() bool {
	return m.err == nil && m.current.has(m.prog.NOps-1)
}

// IsRejected reports whether the active state-set is empty or the machine
// is in an error state.
func (m *Machine) IsRejected() bool {
	return m.err != nil || len(m.current.dense) == 0
}

// IsFinished reports IsAccepted() || IsRejected().
func (m *Machine) IsFinished() bool {
	return m.IsAccepted() || m.IsRejected()
}

// MatchBytes runs a full match over b and returns whether it was accepted
// along with the capture positions, if any were requested. The garbage
// collector is disabled for the duration of the step loop; per-step
// allocation goes through the pool-backed capture-set free list, so there
// is nothing for a collection cycle to reclaim mid-match.
func (m *Machine) MatchBytes(b []byte) (bool, []Capture) {
	gcPercent := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gcPercent)

	ctx := AtStart
	if len(b) == 0 {
		ctx |= AtEnd
	}
	m.Start(ctx)
	for i, c := range b {
		if m.IsRejected() {
			break
		}
		stepCtx := ContextFlags(0)
		if i == len(b)-1 {
			stepCtx |= AtEnd
		}
		m.Step(c, stepCtx)
	}
	return m.result()
}

// MatchString is MatchBytes over the UTF-8 bytes of s (the engine itself
// is byte-oriented and does no codepoint decoding).
func (m *Machine) MatchString(s string) (bool, []Capture) {
	return m.MatchBytes([]byte(s))
}

func (m *Machine) result() (bool, []Capture) {
	accepted := m.IsAccepted()
	if !accepted || m.sets.n == 0 {
		return accepted, nil
	}
	caps := m.current.caps[m.prog.NOps-1]
	if caps == nil {
		return accepted, nil
	}
	out := make([]Capture, len(caps.captures))
	copy(out, caps.captures)
	return accepted, out
}
