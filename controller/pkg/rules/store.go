package rules

import (
	"sync"
	"sync/atomic"
)

// Store holds the current rule set. Snapshot is a single atomic load and
// never waits for Replace. A snapshot stays valid after a newer set is
// installed.
type Store struct {
	current atomic.Pointer[RuleSet]
	version atomic.Uint64

	sync.Mutex
}

// NewStore returns a store holding the empty rule set.
func NewStore() *Store {

	s := &Store{}
	s.current.Store(NewRuleSet())

	return s
}

// Snapshot returns the current rule set.
func (s *Store) Snapshot() *RuleSet {
	return s.current.Load()
}

// Replace installs set as the current rule set and returns the new
// version. A nil set installs the empty set.
func (s *Store) Replace(set *RuleSet) uint64 {

	if set == nil {
		set = NewRuleSet()
	}

	s.Lock()
	defer s.Unlock()

	s.current.Store(set)

	return s.version.Add(1)
}

// Version returns the number of replacements done so far.
func (s *Store) Version() uint64 {
	return s.version.Load()
}
