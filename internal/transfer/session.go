package transfer

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrActiveTransfer is returned by Begin when the requester already has
// a transfer in flight.
var ErrActiveTransfer = errors.New("requester already has an active transfer")

// Session is the in-memory record of one in-flight transfer. The cancel
// flag is set by the callback handler and observed by the engine's copy
// loop.
type Session struct {
	RequesterID int64

	mu        sync.Mutex
	cancelled bool
}

func (s *Session) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Registry holds the per-requester sessions and the global admission
// gate. Both are shared across concurrently handled updates, so the
// check-and-insert and the slot accounting must be atomic.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	gate     *semaphore.Weighted
}

func NewRegistry(maxConcurrent int64) *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		gate:     semaphore.NewWeighted(maxConcurrent),
	}
}

// Begin atomically claims the requester slot. A second call for the
// same requester before End fails with ErrActiveTransfer.
func (r *Registry) Begin(requesterID int64) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[requesterID]; exists {
		return nil, ErrActiveTransfer
	}
	s := &Session{RequesterID: requesterID}
	r.sessions[requesterID] = s
	return s, nil
}

// End releases the requester slot. Safe to call on every exit path,
// including ones where Begin failed.
func (r *Registry) End(requesterID int64) {
	r.mu.Lock()
	delete(r.sessions, requesterID)
	r.mu.Unlock()
}

// Get returns the active session for a requester, or nil.
func (r *Registry) Get(requesterID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[requesterID]
}

// Cancel flags the requester's active session. Returns false when there
// is nothing to cancel.
func (r *Registry) Cancel(requesterID int64) bool {
	s := r.Get(requesterID)
	if s == nil {
		return false
	}
	s.Cancel()
	return true
}

// Acquire blocks until a global transfer slot frees or ctx is done.
// Callers surface "queued" state before calling when TryAcquire failed.
func (r *Registry) Acquire(ctx context.Context) error {
	return r.gate.Acquire(ctx, 1)
}

// TryAcquire grabs a slot without blocking.
func (r *Registry) TryAcquire() bool {
	return r.gate.TryAcquire(1)
}

// Release frees a global transfer slot. Must run on every exit path.
func (r *Registry) Release() {
	r.gate.Release(1)
}
