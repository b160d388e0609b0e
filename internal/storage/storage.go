package storage

import (
	"sync"
	"time"

	"github.com/lehigh-university-libraries/bookledger/internal/session"
)

// Entry is one browser session and the controller serving it.
type Entry struct {
	ID         string
	Controller *session.Controller
	CreatedAt  time.Time

	// guarded by the store
	lastSeen time.Time
	streams  int
}

type SessionStore struct {
	sessions map[string]*Entry
	mu       sync.RWMutex
	now      func() time.Time
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Entry),
		now:      time.Now,
	}
}

// WithClock replaces the clock used for last-seen times.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Get returns the session and marks it as seen.
func (s *SessionStore) Get(sessionID string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, exists := s.sessions[sessionID]
	if exists {
		entry.lastSeen = s.now()
	}
	return entry, exists
}

func (s *SessionStore) Set(sessionID string, entry *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.sessions[sessionID]; ok && old != entry {
		old.Controller.Close()
	}
	entry.lastSeen = s.now()
	s.sessions[sessionID] = entry
}

func (s *SessionStore) GetAll() map[string]*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*Entry, len(s.sessions))
	for k, v := range s.sessions {
		result[k] = v
	}
	return result
}

// Attach records an open event stream on the session. Sessions with a stream
// are never swept; release marks the session seen and drops the stream.
func (s *SessionStore) Attach(sessionID string) (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return func() {}
	}
	entry.streams++
	entry.lastSeen = s.now()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			entry.streams--
			entry.lastSeen = s.now()
		})
	}
}

// Delete removes the session and closes its controller.
func (s *SessionStore) Delete(sessionID string) bool {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if ok {
		entry.Controller.Close()
	}
	return ok
}

// Sweep closes the sessions without an event stream that were not seen for
// longer than idle, and returns how many it removed.
func (s *SessionStore) Sweep(idle time.Duration) int {
	s.mu.Lock()
	cutoff := s.now().Add(-idle)
	var stale []*Entry
	for id, entry := range s.sessions {
		if entry.streams == 0 && entry.lastSeen.Before(cutoff) {
			stale = append(stale, entry)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, entry := range stale {
		entry.Controller.Close()
	}
	return len(stale)
}

// CloseAll closes every controller and empties the store.
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[string]*Entry)
	s.mu.Unlock()

	for _, entry := range entries {
		entry.Controller.Close()
	}
}
