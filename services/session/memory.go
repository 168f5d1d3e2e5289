package sessionsvc

import (
	"context"
	"sync"
	"time"
)

// MemoryRegistry keeps the live session ids in process. Sessions do not survive restarts.
type MemoryRegistry struct {
	mu       sync.Mutex
	sessions map[string]time.Time // id: expiry
	nowFunc  func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{sessions: make(map[string]time.Time), nowFunc: time.Now}
}

func (r *MemoryRegistry) Register(_ context.Context, id, _ string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	for sid, exp := range r.sessions { // drop expired sessions
		if !exp.After(now) {
			delete(r.sessions, sid)
		}
	}
	r.sessions[id] = now.Add(ttl)
	return nil
}

func (r *MemoryRegistry) Active(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.sessions[id]
	return ok && exp.After(r.nowFunc()), nil
}

func (r *MemoryRegistry) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}
