package nfa

// stateSet is the dense/sparse ("Briggs/Torczon trick") pair: membership
// testing and clearing are both O(1) without needing to zero the sparse
// array on every clear.
type stateSet struct {
	dense  []int32
	sparse []int32
	caps   []*captureSet
}

func newStateSet(nStates int) *stateSet {
	return &stateSet{
		dense:  make([]int32, 0, nStates),
		sparse: make([]int32, nStates),
		caps:   make([]*captureSet, nStates),
	}
}

// has reports whether state is currently marked.
func (s *stateSet) has(state int32) bool {
	idx := s.sparse[state]
	return idx >= 0 && int(idx) < len(s.dense) && s.dense[idx] == state
}

// add marks state and records its associated capture reference (nil for
// JUMP, ASSERT_CONTEXT, SAVE_* and NOP states, which carry no meaningful
// capture slot for the step phase to read).
func (s *stateSet) add(state int32, caps *captureSet) {
	idx := int32(len(s.dense))
	s.dense = append(s.dense, state)
	s.sparse[state] = idx
	s.caps[state] = caps
}

// clear empties the set in O(1); the sparse array is left untouched, which
// is exactly what makes the trick work.
func (s *stateSet) clear() {
	s.dense = s.dense[:0]
}
