// Package session is the in-process session attribute store. Sessions are
// keyed by the id carried in the session cookie and expire after an idle
// timeout; expiry and explicit invalidation both run the end-of-session hook.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/portalprefs/internal/domain"
)

// End reasons passed to the Recorder and the end hook.
const (
	EndLogout   = "logout"
	EndExpired  = "expired"
	EndShutdown = "shutdown"
)

// Attributes is the attribute slot of one session. Get, Set and Remove are safe
// for concurrent use. Lock and Unlock serialize whole requests of the session.
type Attributes struct {
	serial sync.Mutex

	mu     sync.RWMutex
	values map[string]any
}

var _ domain.SessionAttributes = (*Attributes)(nil)

func NewAttributes() *Attributes {
	return &Attributes{values: make(map[string]any)}
}

func (a *Attributes) Get(key string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.values[key]
	return v, ok
}

func (a *Attributes) Set(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values[key] = value
}

func (a *Attributes) Remove(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.values, key)
}

// Lock holds the session for one request.
func (a *Attributes) Lock() { a.serial.Lock() }

func (a *Attributes) Unlock() { a.serial.Unlock() }

// EndFunc is called once per session when it ends. Expired sessions are locked
// for the call; on Invalidate the calling request already holds the lock.
type EndFunc func(ctx context.Context, id string, attrs *Attributes, reason string)

// Recorder observes the session population.
type Recorder interface {
	SetActiveSessions(n int)
	RecordSessionEnd(reason string)
}

type entry struct {
	attrs      *Attributes
	lastAccess time.Time
}

// Store holds the sessions of this process.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	idle     time.Duration
	clock    clockwork.Clock
	onEnd    EndFunc
	recorder Recorder
}

type Option func(*Store)

// WithEndFunc registers the end-of-session hook.
func WithEndFunc(fn EndFunc) Option {
	return func(s *Store) { s.onEnd = fn }
}

func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

// NewStore creates a store whose sessions expire after idle without access.
func NewStore(idle time.Duration, clock clockwork.Clock, opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*entry),
		idle:     idle,
		clock:    clock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the attributes of a live session and refreshes its idle timer.
// An expired session is reported as missing; it is ended by the next eviction.
func (s *Store) Get(id string) (*Attributes, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || s.expired(e) {
		return nil, false
	}
	e.lastAccess = s.clock.Now()
	return e.attrs, true
}

// GetOrCreate returns the live session with this id, creating it if needed.
// The boolean reports whether the session was created.
func (s *Store) GetOrCreate(ctx context.Context, id string) (*Attributes, bool) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	var stale *entry
	if ok && s.expired(e) {
		stale, ok = e, false
	}
	if ok {
		e.lastAccess = s.clock.Now()
		s.mu.Unlock()
		return e.attrs, false
	}
	e = &entry{attrs: NewAttributes(), lastAccess: s.clock.Now()}
	s.sessions[id] = e
	n := len(s.sessions)
	s.mu.Unlock()

	if stale != nil {
		s.end(ctx, id, stale.attrs, EndExpired)
	}
	s.setActive(n)
	return e.attrs, true
}

// Invalidate ends the session now. It is meant to run inside a request of that
// session, which already holds its lock. It reports false for unknown sessions.
func (s *Store) Invalidate(ctx context.Context, id string) bool {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.end(ctx, id, e.attrs, EndLogout)
	s.setActive(n)
	return true
}

// Size returns the number of sessions, including expired ones not yet evicted.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictExpired ends every session idle for longer than the timeout and returns
// how many were ended.
func (s *Store) EvictExpired(ctx context.Context) int {
	s.mu.Lock()
	expired := make(map[string]*Attributes)
	for id, e := range s.sessions {
		if s.expired(e) {
			expired[id] = e.attrs
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for id, attrs := range expired {
		s.end(ctx, id, attrs, EndExpired)
	}
	s.setActive(n)
	return len(expired)
}

// Close ends every remaining session, e.g. on shutdown.
func (s *Store) Close(ctx context.Context) {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*entry)
	s.mu.Unlock()

	for id, e := range all {
		s.end(ctx, id, e.attrs, EndShutdown)
	}
	s.setActive(0)
}

// StartEvictionTimer starts a background goroutine that periodically ends
// expired sessions. Returns a stop function that should be called to clean up
// the goroutine.
func (s *Store) StartEvictionTimer(interval time.Duration) func() {
	ticker := s.clock.NewTicker(interval)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			select {
			case <-ticker.Chan():
				if evicted := s.EvictExpired(context.Background()); evicted > 0 {
					slog.Debug("Evicted idle sessions", "count", evicted, "remaining", s.Size())
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

func (s *Store) expired(e *entry) bool {
	return s.clock.Since(e.lastAccess) > s.idle
}

func (s *Store) end(ctx context.Context, id string, attrs *Attributes, reason string) {
	if s.recorder != nil {
		s.recorder.RecordSessionEnd(reason)
	}
	if s.onEnd == nil {
		return
	}
	// Logout runs inside the request that holds the session lock.
	if reason != EndLogout {
		attrs.Lock()
		defer attrs.Unlock()
	}
	s.onEnd(ctx, id, attrs, reason)
}

func (s *Store) setActive(n int) {
	if s.recorder != nil {
		s.recorder.SetActiveSessions(n)
	}
}
