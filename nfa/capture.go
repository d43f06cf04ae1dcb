package nfa

// Capture is the (begin, end) byte-offset pair of a captured group. A
// group that never matched has Begin == End == -1.
type Capture struct {
	Begin, End int
}

// captureSet is a reference-counted, copy-on-write array of captures.
// Sharing collapses the per-active-path capture cost to per-distinct-path;
// a set is cloned only just before a write when more than one reference is
// live. Dropped sets are recycled through captureSets' free-list rather
// than returned to the garbage collector, mirroring the pool-recycling
// discipline the rest of the package uses for fragments and pages.
type captureSet struct {
	refcount int
	captures []Capture
	next     *captureSet
}

// captureSetOverhead is the logical per-set bookkeeping cost charged
// against the Machine's pool on a fresh allocation, in addition to the
// capture pairs themselves. Free-list reuse costs nothing.
const captureSetOverhead = 24

// captureSets owns the free-list of captureSet values for one Machine.
type captureSets struct {
	n    int
	pool *Pool
	free *captureSet
}

func newCaptureSets(pool *Pool, n int) *captureSets {
	return &captureSets{n: n, pool: pool}
}

// alloc returns a fresh set with every capture unset, reusing a free-list
// node when one is available. It returns nil once the pool is exhausted.
func (cs *captureSets) alloc() *captureSet {
	if cs.free != nil {
		s := cs.free
		cs.free = s.next
		s.next = nil
		s.refcount = 1
		for i := range s.captures {
			s.captures[i] = Capture{-1, -1}
		}
		return s
	}
	if err := cs.pool.reserve(captureSetOverhead + cs.n*16); err != nil {
		return nil
	}
	caps := make([]Capture, cs.n)
	for i := range caps {
		caps[i] = Capture{-1, -1}
	}
	return &captureSet{refcount: 1, captures: caps}
}

func (cs *captureSets) retain(s *captureSet) *captureSet {
	if s != nil {
		s.refcount++
	}
	return s
}

func (cs *captureSets) release(s *captureSet) {
	if s == nil {
		return
	}
	s.refcount--
	if s.refcount <= 0 {
		s.next = cs.free
		cs.free = s
	}
}

// own returns a uniquely-owned capture set equal to s, cloning on write
// when s is shared (refcount > 1). The caller's reference to s is
// consumed; the returned set is the caller's new reference. A nil return
// means the pool is exhausted (s keeps the caller's reference in that
// case, so the caller can release it while failing).
func (cs *captureSets) own(s *captureSet) *captureSet {
	if s == nil {
		return cs.alloc()
	}
	if s.refcount == 1 {
		return s
	}
	clone := cs.alloc()
	if clone == nil {
		return nil
	}
	copy(clone.captures, s.captures)
	s.refcount--
	return clone
}
