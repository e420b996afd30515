package storage

import (
	"sync"
	"time"
)

// saveTimer is a cancellable one-shot timer. Arming while armed replaces the
// pending fire, which is what gives debounced saves their coalescing
// behavior.
type saveTimer struct {
	mu sync.Mutex
	t  *time.Timer
}

// Arm schedules fn to run after d, replacing any pending fire.
func (st *saveTimer) Arm(d time.Duration, fn func()) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.t != nil {
		st.t.Stop()
	}
	st.t = time.AfterFunc(d, func() {
		st.mu.Lock()
		st.t = nil
		st.mu.Unlock()
		fn()
	})
}

// Cancel drops any pending fire.
func (st *saveTimer) Cancel() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.t != nil {
		st.t.Stop()
		st.t = nil
	}
}

// Armed reports whether a fire is pending.
func (st *saveTimer) Armed() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.t != nil
}
