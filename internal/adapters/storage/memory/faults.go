package memory

import "sync"

type faults struct {
	mu   sync.Mutex
	byOp map[string]error
	// after counts successful calls still allowed before the fault fires.
	after map[string]int
}

func (f *faults) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err, ok := f.byOp[op]
	if !ok {
		return nil
	}
	if n := f.after[op]; n > 0 {
		f.after[op] = n - 1
		return nil
	}
	return err
}

// Fail makes every later call of the named method (e.g. "UpdateTask")
// return err until Heal is called.
func (s *Store) Fail(op string, err error) {
	s.FailAfter(op, 0, err)
}

// FailAfter lets n calls of op succeed, then fails the rest with err.
func (s *Store) FailAfter(op string, n int, err error) {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	s.faults.byOp[op] = err
	if s.faults.after == nil {
		s.faults.after = make(map[string]int)
	}
	s.faults.after[op] = n
}

// Heal clears every injected fault.
func (s *Store) Heal() {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	s.faults.byOp = make(map[string]error)
	s.faults.after = make(map[string]int)
}
