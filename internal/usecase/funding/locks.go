package funding

import "sync"

// loanLocks hands out one mutex per loan id so contributions to the same
// loan serialize while different loans proceed independently. Entries are
// reference-counted and dropped once unused.
type loanLocks struct {
	mu sync.Mutex
	m  map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLoanLocks() *loanLocks {
	return &loanLocks{m: make(map[string]*lockEntry)}
}

func (k *loanLocks) lock(id string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.m[id]
	if !ok {
		e = &lockEntry{}
		k.m[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.m, id)
		}
		k.mu.Unlock()
	}
}
