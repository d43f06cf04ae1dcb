package nfa

import "sort"

// builderStackCapacity bounds the expression stack.
const builderStackCapacity = 64

// MatchFlags governs byte- and range-matching operations.
type MatchFlags uint32

// CaseInsensitive folds ASCII letters in either case when matching a byte
// or byte range.
const CaseInsensitive MatchFlags = 1 << 0

// RepeatFlags governs the zero_or_one/zero_or_more/one_or_more operations.
type RepeatFlags uint32

// NonGreedy flips branch priority so the shorter match is preferred.
const NonGreedy RepeatFlags = 1 << 0

type rangePair struct {
	first, last byte
}

type stackEntry struct {
	frag *fragment
	nops int
}

// Builder is an expression-stack compiler: push primitives (MatchByte,
// MatchAny, ...) and combinators (Join, Alt, ZeroOrMore, Capture, ...) pop
// their operands and push the combined fragment. Output serialises the
// single remaining stack entry into a Program.
//
// Every method's first action is to check the builder's sticky error slot
// and return immediately if it is already set; all methods but Free and
// Reset are no-ops once an error has occurred. Builder is not safe for
// concurrent use.
type Builder struct {
	pool         *Pool
	stack        []stackEntry
	err          error
	captureCount int
}

// NewBuilder returns a Builder backed by a default heap pool.
func NewBuilder() *Builder {
	return &Builder{pool: NewPool()}
}

// NewBuilderWithBuffer returns a Builder backed by a fixed buffer; once the
// buffer is exhausted every operation fails with ErrOutOfMemory.
func NewBuilderWithBuffer(buf []byte) *Builder {
	return &Builder{pool: NewPoolWithBuffer(buf)}
}

// NewBuilderWithAllocator returns a Builder that requests pages from a
// caller-supplied callback instead of the heap.
func NewBuilderWithAllocator(alloc PageAllocator) *Builder {
	return &Builder{pool: NewPoolWithAllocator(alloc)}
}

// Err returns the builder's sticky error, or nil if none has occurred.
func (b *Builder) Err() error { return b.err }

// Free releases the builder's pool. It always runs to completion even if
// the builder is in an error state.
func (b *Builder) Free() {
	b.pool.Free()
	b.stack = nil
	b.err = nil
	b.captureCount = 0
}

// Reset clears the expression stack, the sticky error and the pool, so the
// builder can compile another expression from scratch on the same backing
// storage.
func (b *Builder) Reset() {
	b.pool.Reset()
	b.stack = b.stack[:0]
	b.err = nil
	b.captureCount = 0
}

func (b *Builder) fail(err error) error {
	if b.err == nil {
		b.err = err
	}
	return b.err
}

func (b *Builder) push(f *fragment, nops int) error {
	if len(b.stack) >= builderStackCapacity {
		return b.fail(ErrStackOverflow)
	}
	b.stack = append(b.stack, stackEntry{f, nops})
	return nil
}

func (b *Builder) pop() stackEntry {
	n := len(b.stack) - 1
	e := b.stack[n]
	b.stack = b.stack[:n]
	return e
}

// emit allocates a single-node fragment carrying ops and pushes it.
func (b *Builder) emit(ops []uint16) error {
	if b.err != nil {
		return b.err
	}
	f, err := newFragment(b.pool, ops)
	if err != nil {
		return b.fail(err)
	}
	return b.push(f, len(ops))
}

// MatchEmpty pushes the neutral element for Join.
func (b *Builder) MatchEmpty() error {
	if b.err != nil {
		return b.err
	}
	return b.push(emptyFragment, 0)
}

// MatchAny pushes MATCH_ANY.
func (b *Builder) MatchAny() error {
	if b.err != nil {
		return b.err
	}
	return b.emit([]uint16{packWord(OpMatchAny, 0)})
}

// MatchByte pushes a single-byte matcher. With CaseInsensitive set on an
// ASCII letter it emits MATCH_BYTE_CI with the lower-case form stored,
// otherwise MATCH_BYTE.
func (b *Builder) MatchByte(c byte, flags MatchFlags) error {
	if b.err != nil {
		return b.err
	}
	if flags&CaseInsensitive != 0 && isASCIILetter(c) {
		return b.emit([]uint16{packWord(OpMatchByteCI, toLowerASCII(c))})
	}
	return b.emit([]uint16{packWord(OpMatchByte, c)})
}

// MatchByteRange pushes a MATCH_CLASS matcher over [lo, hi]. lo must be
// <= hi: violating it is a programmer error and panics rather than
// silently swapping the bounds. With CaseInsensitive set, the range is
// folded to cover both letter cases before being emitted.
func (b *Builder) MatchByteRange(lo, hi byte, flags MatchFlags) error {
	if b.err != nil {
		return b.err
	}
	if lo > hi {
		panic("nfa: MatchByteRange requires lo <= hi")
	}
	var ranges []rangePair
	if flags&CaseInsensitive != 0 {
		ranges = foldRangeCI(lo, hi)
	} else {
		ranges = []rangePair{{lo, hi}}
	}
	return b.emitClass(ranges)
}

// MatchString pushes the concatenation of one byte matcher per byte of s.
// An empty s pushes an explicit NOP fragment (the only situation the NOP
// opcode is ever produced in).
func (b *Builder) MatchString(s []byte, flags MatchFlags) error {
	if b.err != nil {
		return b.err
	}
	if len(s) == 0 {
		return b.emit([]uint16{packWord(OpNop, 0)})
	}
	if err := b.MatchByte(s[0], flags); err != nil {
		return err
	}
	for _, c := range s[1:] {
		if err := b.MatchByte(c, flags); err != nil {
			return err
		}
		if err := b.Join(); err != nil {
			return err
		}
	}
	return nil
}

// Join pops two fragments and pushes their concatenation.
func (b *Builder) Join() error {
	if b.err != nil {
		return b.err
	}
	if len(b.stack) < 2 {
		return b.fail(ErrStackUnderflow)
	}
	rhs := b.pop()
	lhs := b.pop()
	nops := lhs.nops + rhs.nops
	if nops > maxProgramLen {
		return b.fail(ErrNfaTooLarge)
	}
	return b.push(link(lhs.frag, rhs.frag), nops)
}

// singleCharRanges reports whether e is a single, unlinked fragment whose
// only opcode is a character matcher (ANY, BYTE, BYTE_CI or CLASS), and if
// so returns its matched set as a list of disjoint sorted ranges.
func singleCharRanges(e stackEntry) ([]rangePair, bool) {
	f := e.frag
	if f == emptyFragment || f.next != f {
		return nil, false
	}
	ops := f.ops
	if len(ops) == 0 {
		return nil, false
	}
	switch opcodeOf(ops[0]) {
	case OpMatchAny:
		if len(ops) != 1 {
			return nil, false
		}
		return []rangePair{{0, 255}}, true
	case OpMatchByte:
		if len(ops) != 1 {
			return nil, false
		}
		c := argOf(ops[0])
		return []rangePair{{c, c}}, true
	case OpMatchByteCI:
		if len(ops) != 1 {
			return nil, false
		}
		c := argOf(ops[0])
		up := toUpperASCII(c)
		return mergeRanges([]rangePair{{c, c}, {up, up}}), true
	case OpMatchClass:
		n := int(argOf(ops[0]))
		if len(ops) != 1+n {
			return nil, false
		}
		rs := make([]rangePair, n)
		for i := 0; i < n; i++ {
			w := ops[1+i]
			rs[i] = rangePair{byte(w >> 8), byte(w)}
		}
		return rs, true
	default:
		return nil, false
	}
}

// Alt pops two fragments and pushes their ordered alternation, the first
// branch winning ties. When both operands are single single-character
// matchers the builder fuses them into one MATCH_CLASS instead of
// emitting a JUMP fork, so [abc] costs the same as a single byte match.
func (b *Builder) Alt() error {
	if b.err != nil {
		return b.err
	}
	if len(b.stack) < 2 {
		return b.fail(ErrStackUnderflow)
	}
	rhs := b.pop()
	lhs := b.pop()

	if lr, ok := singleCharRanges(lhs); ok {
		if rr, ok := singleCharRanges(rhs); ok {
			return b.emitClass(mergeRanges(append(append([]rangePair{}, lr...), rr...)))
		}
	}
	return b.altEncode(lhs, rhs)
}

// altEncode emits the general alt(a,b) fork: JUMP K=2 [0, |a|+2], a,
// JUMP K=1 [|b|], b. A side with zero opcodes (the empty fragment) reduces
// to a single fork, JUMP K=2 [0, |other|] with the zero offset in the
// position corresponding to the non-empty side; this is the form ZeroOrOne
// produces for e? and e??.
func (b *Builder) altEncode(lhs, rhs stackEntry) error {
	aLen, bLen := lhs.nops, rhs.nops
	if aLen == 0 && bLen == 0 {
		return b.push(emptyFragment, 0)
	}
	if aLen == 0 || bLen == 0 {
		eLen := aLen + bLen
		o0, o1 := 0, eLen
		if aLen == 0 {
			o0, o1 = o1, o0
		}
		total := 3 + eLen
		if total > maxProgramLen || !fitsOffset(eLen) {
			return b.fail(ErrNfaTooLarge)
		}
		forkFrag, err := newFragment(b.pool, []uint16{packWord(OpJump, 2), uint16(int16(o0)), uint16(int16(o1))})
		if err != nil {
			return b.fail(err)
		}
		head := link(forkFrag, link(lhs.frag, rhs.frag))
		return b.push(head, total)
	}
	total := 3 + aLen + 2 + bLen
	if total > maxProgramLen || !fitsOffset(aLen+2) || !fitsOffset(bLen) {
		return b.fail(ErrNfaTooLarge)
	}
	jumpFrag, err := newFragment(b.pool, []uint16{packWord(OpJump, 2), uint16(int16(0)), uint16(int16(aLen + 2))})
	if err != nil {
		return b.fail(err)
	}
	skipFrag, err := newFragment(b.pool, []uint16{packWord(OpJump, 1), uint16(int16(bLen))})
	if err != nil {
		return b.fail(err)
	}
	head := link(jumpFrag, lhs.frag)
	head = link(head, skipFrag)
	head = link(head, rhs.frag)
	return b.push(head, total)
}

// ZeroOrOne implements e?. Repetition of the empty fragment is a no-op,
// not an error.
func (b *Builder) ZeroOrOne(flags RepeatFlags) error {
	if b.err != nil {
		return b.err
	}
	if len(b.stack) < 1 {
		return b.fail(ErrStackUnderflow)
	}
	e := b.pop()
	if e.frag == emptyFragment {
		return b.push(e.frag, e.nops)
	}
	empty := stackEntry{emptyFragment, 0}
	if flags&NonGreedy != 0 {
		return b.altEncode(empty, e)
	}
	return b.altEncode(e, empty)
}

// ZeroOrMore implements e*.
func (b *Builder) ZeroOrMore(flags RepeatFlags) error {
	if b.err != nil {
		return b.err
	}
	if len(b.stack) < 1 {
		return b.fail(ErrStackUnderflow)
	}
	e := b.pop()
	if e.frag == emptyFragment {
		return b.push(e.frag, e.nops)
	}
	eLen := e.nops
	o0, o1 := 0, eLen+2
	if flags&NonGreedy != 0 {
		o0, o1 = o1, o0
	}
	back := -(eLen + 5)
	total := 3 + eLen + 2
	if total > maxProgramLen || !fitsOffset(o0) || !fitsOffset(o1) || !fitsOffset(back) {
		return b.fail(ErrNfaTooLarge)
	}
	forkFrag, err := newFragment(b.pool, []uint16{packWord(OpJump, 2), uint16(int16(o0)), uint16(int16(o1))})
	if err != nil {
		return b.fail(err)
	}
	backFrag, err := newFragment(b.pool, []uint16{packWord(OpJump, 1), uint16(int16(back))})
	if err != nil {
		return b.fail(err)
	}
	head := link(forkFrag, e.frag)
	head = link(head, backFrag)
	return b.push(head, total)
}

// OneOrMore implements e+.
func (b *Builder) OneOrMore(flags RepeatFlags) error {
	if b.err != nil {
		return b.err
	}
	if len(b.stack) < 1 {
		return b.fail(ErrStackUnderflow)
	}
	e := b.pop()
	if e.frag == emptyFragment {
		return b.push(e.frag, e.nops)
	}
	eLen := e.nops
	repeat, exit := -(eLen + 3), 0
	o0, o1 := repeat, exit
	if flags&NonGreedy != 0 {
		o0, o1 = o1, o0
	}
	total := eLen + 3
	if total > maxProgramLen || !fitsOffset(o0) || !fitsOffset(o1) {
		return b.fail(ErrNfaTooLarge)
	}
	forkFrag, err := newFragment(b.pool, []uint16{packWord(OpJump, 2), uint16(int16(o0)), uint16(int16(o1))})
	if err != nil {
		return b.fail(err)
	}
	return b.push(link(e.frag, forkFrag), total)
}

// ComplementChar requires the top of stack to be a single-opcode character
// matcher and inverts its matched set over [0,255].
func (b *Builder) ComplementChar() error {
	if b.err != nil {
		return b.err
	}
	if len(b.stack) < 1 {
		return b.fail(ErrStackUnderflow)
	}
	e := b.pop()
	ranges, ok := singleCharRanges(e)
	if !ok {
		return b.fail(ErrComplementOfNonChar)
	}
	return b.emitClass(complementRanges(ranges))
}

// Capture brackets e with SAVE_START(id)/SAVE_END(id).
func (b *Builder) Capture(id int) error {
	if b.err != nil {
		return b.err
	}
	if id < 0 || id > 255 {
		return b.fail(ErrNfaTooLarge)
	}
	if len(b.stack) < 1 {
		return b.fail(ErrStackUnderflow)
	}
	e := b.pop()
	startFrag, err := newFragment(b.pool, []uint16{packWord(OpSaveStart, byte(id))})
	if err != nil {
		return b.fail(err)
	}
	endFrag, err := newFragment(b.pool, []uint16{packWord(OpSaveEnd, byte(id))})
	if err != nil {
		return b.fail(err)
	}
	total := 1 + e.nops + 1
	if total > maxProgramLen {
		return b.fail(ErrNfaTooLarge)
	}
	head := link(startFrag, e.frag)
	head = link(head, endFrag)
	if err := b.push(head, total); err != nil {
		return err
	}
	if id+1 > b.captureCount {
		b.captureCount = id + 1
	}
	return nil
}

// AssertContext pushes ASSERT_CONTEXT for the given bit (0..31).
func (b *Builder) AssertContext(bit int) error {
	if b.err != nil {
		return b.err
	}
	if bit < 0 || bit > 31 {
		return b.fail(ErrNfaTooLarge)
	}
	return b.emit([]uint16{packWord(OpAssertContext, byte(bit))})
}

// AssertAtStart pushes ASSERT_CONTEXT(AtStart).
func (b *Builder) AssertAtStart() error { return b.AssertContext(0) }

// AssertAtEnd pushes ASSERT_CONTEXT(AtEnd).
func (b *Builder) AssertAtEnd() error { return b.AssertContext(1) }

func (b *Builder) finish() ([]uint16, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.stack) == 0 {
		return nil, b.fail(ErrStackUnderflow)
	}
	if len(b.stack) > 1 {
		return nil, b.fail(ErrUnclosed)
	}
	ops := collect(b.stack[0].frag)
	ops = append(ops, packWord(OpAccept, 0))
	if len(ops) > maxProgramLen {
		return nil, b.fail(ErrNfaTooLarge)
	}
	return ops, nil
}

// Output concatenates the single remaining stack entry's fragment list,
// appends ACCEPT, and returns the finished Program.
func (b *Builder) Output() (*Program, error) {
	ops, err := b.finish()
	if err != nil {
		return nil, err
	}
	return &Program{NOps: int32(len(ops)), Ops: ops, NumCaptures: b.captureCount}, nil
}

// OutputSize reports the byte length Output's program would serialise to.
func (b *Builder) OutputSize() (int, error) {
	ops, err := b.finish()
	if err != nil {
		return 0, err
	}
	return programSize(len(ops)), nil
}

// OutputToBuffer serialises the finished program into buf, returning
// ErrBufferTooSmall if buf is not large enough.
func (b *Builder) OutputToBuffer(buf []byte) (int, error) {
	p, err := b.Output()
	if err != nil {
		return 0, err
	}
	size := p.Size()
	if len(buf) < size {
		return 0, b.fail(ErrBufferTooSmall)
	}
	p.encodeInto(buf)
	return size, nil
}

// mergeRanges sorts ranges by first and coalesces overlapping or adjacent
// entries, extending the current range whenever current.last+1 >=
// next.first.
func mergeRanges(rs []rangePair) []rangePair {
	if len(rs) < 2 {
		return rs
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].first < rs[j].first })
	out := rs[:1]
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if int(last.last)+1 >= int(r.first) {
			if r.last > last.last {
				last.last = r.last
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// foldRangeCI mirrors the portion of [lo,hi] intersecting the upper-case
// ASCII block into lower case, and vice versa, then merges. This yields 1
// to 3 ranges, e.g. 'X'-'c' folds to [A-C],[X-c],[x-z].
func foldRangeCI(lo, hi byte) []rangePair {
	ranges := []rangePair{{lo, hi}}
	if a, b, ok := intersect(lo, hi, 'A', 'Z'); ok {
		ranges = append(ranges, rangePair{a - 'A' + 'a', b - 'A' + 'a'})
	}
	if a, b, ok := intersect(lo, hi, 'a', 'z'); ok {
		ranges = append(ranges, rangePair{a - 'a' + 'A', b - 'a' + 'A'})
	}
	return mergeRanges(ranges)
}

func intersect(lo, hi, blockLo, blockHi byte) (byte, byte, bool) {
	l, h := lo, hi
	if l < blockLo {
		l = blockLo
	}
	if h > blockHi {
		h = blockHi
	}
	if l > h {
		return 0, 0, false
	}
	return l, h, true
}

// complementRanges lists the gaps in rs over [0,255]; rs must already be
// sorted and disjoint. At most one leading and one trailing gap appear
// plus len(rs)-1 interior gaps.
func complementRanges(rs []rangePair) []rangePair {
	var out []rangePair
	next := 0
	for _, r := range rs {
		if int(r.first) > next {
			out = append(out, rangePair{byte(next), r.first - 1})
		}
		next = int(r.last) + 1
	}
	if next <= 255 {
		out = append(out, rangePair{byte(next), 255})
	}
	return out
}

func (b *Builder) emitClass(ranges []rangePair) error {
	if len(ranges) == 0 || len(ranges) > 255 {
		return b.fail(ErrNfaTooLarge)
	}
	ops := make([]uint16, 0, 1+len(ranges))
	ops = append(ops, packWord(OpMatchClass, byte(len(ranges))))
	for _, r := range ranges {
		ops = append(ops, uint16(r.first)<<8|uint16(r.last))
	}
	return b.emit(ops)
}
