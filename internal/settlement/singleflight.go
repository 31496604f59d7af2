package settlement

import "sync"

// inflightSet guards against re-entrant release processing of the same
// transaction id within this process. Multi-instance deployments need
// a storage-level claim instead.
type inflightSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{ids: make(map[string]struct{})}
}

// tryAcquire claims the id; returns false if already held.
func (s *inflightSet) tryAcquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.ids[id]; held {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// release frees the id after an attempt, success or failure.
func (s *inflightSet) release(id string) {
	s.mu.Lock()
	delete(s.ids, id)
	s.mu.Unlock()
}
