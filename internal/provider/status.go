package provider

import "sync/atomic"

// statusTracker implements the READY → GENERATING → (READY | ERROR)
// lifecycle shared by every binding. An ERROR status never blocks the next
// call: callers reset to GENERATING unconditionally on entry to Generate.
type statusTracker struct {
	v atomic.Value // Status
}

func newStatusTracker() *statusTracker {
	st := &statusTracker{}
	st.v.Store(StatusReady)
	return st
}

func (s *statusTracker) set(v Status) { s.v.Store(v) }

func (s *statusTracker) get() Status {
	v, _ := s.v.Load().(Status)
	if v == "" {
		return StatusReady
	}
	return v
}

// wrap runs fn with GENERATING set on entry and READY/ERROR set on exit
// depending on whether fn returned an error.
func (s *statusTracker) wrap(fn func() error) error {
	s.set(StatusGenerating)
	err := fn()
	if err != nil {
		s.set(StatusError)
	} else {
		s.set(StatusReady)
	}
	return err
}
