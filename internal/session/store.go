// Package session keeps one seating chart per booking session in memory.
// Triggers on a session are serialized: each call reads the current chart,
// derives a new one through the seating package and swaps it in, so no
// observer ever sees a half-applied allocation.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/smart-seat-booking/internal/seating"
)

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

// Session is a snapshot of one booking session.
type Session struct {
	ID        string        `json:"session_id"`
	Chart     seating.Chart `json:"chart"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type entry struct {
	mu        sync.Mutex
	chart     seating.Chart
	createdAt time.Time
	updatedAt time.Time
}

func (e *entry) snapshot(id string) *Session {
	return &Session{ID: id, Chart: e.chart.Clone(), CreatedAt: e.createdAt, UpdatedAt: e.updatedAt}
}

// Store holds the sessions.  A zero TTL keeps sessions until deleted.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time
}

// NewStore returns an empty store whose sessions expire after ttl without
// activity.
func NewStore(ttl time.Duration) *Store {
	return &Store{sessions: map[string]*entry{}, ttl: ttl, now: time.Now}
}

// Create starts a session with a fresh chart.
func (s *Store) Create() *Session {
	now := s.now().UTC()
	e := &entry{chart: seating.New(), createdAt: now, updatedAt: now}
	id := uuid.NewString()

	s.mu.Lock()
	s.evictLocked(now)
	s.sessions[id] = e
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(id)
}

// Get returns the current state of a session.
func (s *Store) Get(id string) (*Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(id), nil
}

// Allocate seats a party of count in the session's chart.  The returned
// positions are the seats taken; allocated is false when no rule matched, in
// which case the chart is left as it was.
func (s *Store) Allocate(id string, count int) (sess *Session, taken []seating.Position, allocated bool, err error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, nil, false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next, taken, err := seating.Seat(e.chart, count)
	if errors.Is(err, seating.ErrNoSuitableSeats) {
		return e.snapshot(id), nil, false, nil
	}
	e.chart = next
	e.updatedAt = s.now().UTC()
	return e.snapshot(id), taken, true, nil
}

// Reset frees every seat in the session's chart.
func (s *Store) Reset(id string) (*Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.chart = seating.Reset(e.chart)
	e.updatedAt = s.now().UTC()
	return e.snapshot(id), nil
}

// Delete ends a session.  Deleting an unknown session is an error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len reports the number of live sessions, dropping idle ones first.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(s.now().UTC())
	return len(s.sessions)
}

// Alive reports whether id names a live session.
func (s *Store) Alive(id string) bool {
	_, err := s.lookup(id)
	return err == nil
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.expired(e, s.now().UTC()) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return e, nil
}

func (s *Store) expired(e *entry, now time.Time) bool {
	if s.ttl <= 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Sub(e.updatedAt) > s.ttl
}

// evictLocked drops idle sessions; s.mu must be held for writing.
func (s *Store) evictLocked(now time.Time) {
	for id, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, id)
		}
	}
}
