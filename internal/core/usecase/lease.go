package usecase

// Lease is a single-slot token guarding the drain pass. It is an
// explicit owned value rather than a flag, so several orchestrator
// instances can share one lease and contention stays observable.
type Lease struct {
	slot chan struct{}
}

func NewLease() *Lease {
	l := &Lease{slot: make(chan struct{}, 1)}
	l.slot <- struct{}{}
	return l
}

// TryAcquire claims the slot without blocking. On success the returned
// release func must be called exactly once.
func (l *Lease) TryAcquire() (release func(), ok bool) {
	select {
	case token := <-l.slot:
		var released bool
		return func() {
			if released {
				return
			}
			released = true
			l.slot <- token
		}, true
	default:
		return nil, false
	}
}

// Held reports whether the slot is currently claimed.
func (l *Lease) Held() bool {
	return len(l.slot) == 0
}
