// Package randomtest provides deterministic random.Source implementations for tests.
package randomtest

import "sync"

// Sequence returns queued strings in order, then repeats the last one.
type Sequence struct {
	mu     sync.Mutex
	values []string
	next   int
}

func NewSequence(values ...string) *Sequence {
	return &Sequence{values: values}
}

func (s *Sequence) String(int, string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return ""
	}
	if s.next >= len(s.values) {
		return s.values[len(s.values)-1]
	}
	v := s.values[s.next]
	s.next++
	return v
}
