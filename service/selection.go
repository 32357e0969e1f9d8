package service

import "sync"

// SelectionMode says whether the multi-select affordance is active.
type SelectionMode int

const (
	SelectionOff SelectionMode = iota
	SelectionActive
)

func (m SelectionMode) String() string {
	return [...]string{"OFF", "ACTIVE"}[m]
}

// Selection tracks which agents the operator currently targets. It stores
// ids only, never agent snapshots, and is re-validated against the roster on
// every refresh so a disconnect cannot leave a dangling reference. All
// transitions are pure state changes; no I/O happens here.
//
// Invariant: when the mode is off the set is empty. Membership order is
// insertion order, which is also the dispatch fan-out order.
type Selection struct {
	mu     sync.Mutex
	mode   SelectionMode
	ids    []string
	member map[string]bool
}

func NewSelection() *Selection {
	return &Selection{member: make(map[string]bool)}
}

// EnterMode activates multi-select. With selectAll the set starts as every
// known agent (in the given order); otherwise it starts empty.
func (s *Selection) EnterMode(knownIDs []string, selectAll bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = SelectionActive
	s.resetLocked()
	if selectAll {
		for _, id := range knownIDs {
			s.addLocked(id)
		}
	}
}

// Toggle flips one agent's membership. It is a no-op outside selection mode.
// Returns the new membership state.
func (s *Selection) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != SelectionActive {
		return false
	}
	if s.member[id] {
		s.removeLocked(id)
		return false
	}
	s.addLocked(id)
	return true
}

// AllOrNone toggles between "every known agent" and "nothing": if the set
// already covers the whole roster it is cleared, otherwise it becomes the
// whole roster. Calling it twice lands back where it started.
func (s *Selection) AllOrNone(knownIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != SelectionActive {
		return
	}
	if len(s.ids) == len(knownIDs) && len(knownIDs) > 0 {
		s.resetLocked()
		return
	}
	s.resetLocked()
	for _, id := range knownIDs {
		s.addLocked(id)
	}
}

// Exit leaves selection mode and empties the set. Triggered by an explicit
// cancel, the global escape signal, or a completed dispatch.
func (s *Selection) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = SelectionOff
	s.resetLocked()
}

// Prune drops ids that are no longer in the roster. The poller calls this
// after every refresh.
func (s *Selection) Prune(knownIDs []string) {
	known := make(map[string]bool, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.ids[:0]
	for _, id := range s.ids {
		if known[id] {
			kept = append(kept, id)
		} else {
			delete(s.member, id)
		}
	}
	s.ids = kept
}

// IDs returns the selected ids in insertion order.
func (s *Selection) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s *Selection) Mode() SelectionMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Selection) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *Selection) addLocked(id string) {
	if id == "" || s.member[id] {
		return
	}
	s.member[id] = true
	s.ids = append(s.ids, id)
}

func (s *Selection) removeLocked(id string) {
	delete(s.member, id)
	for i, existing := range s.ids {
		if existing == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			return
		}
	}
}

func (s *Selection) resetLocked() {
	s.ids = s.ids[:0]
	s.member = make(map[string]bool)
}
