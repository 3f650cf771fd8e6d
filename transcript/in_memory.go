package transcript

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/patientsim/core"
)

// InMemoryStore implements core.TranscriptStore with in-process state. It is
// intended for tests and examples.
type InMemoryStore struct {
	mu      sync.RWMutex
	users   map[string]core.User
	nextID  int64
	turns   []core.TurnRecord
	results []core.ResultRecord
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:  make(map[string]core.User),
		nextID: 1,
	}
}

// SaveUser implements the core.TranscriptStore interface.
func (s *InMemoryStore) SaveUser(_ context.Context, name, identity string) (core.User, error) {
	name = strings.TrimSpace(name)
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return core.User{}, &StoreError{Op: "save user", Err: errors.New("empty identity")}
	}
	if name == "" {
		name = identity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[identity]; ok {
		return user, nil
	}

	user := core.User{ID: s.nextID, Name: name, Identity: identity}
	s.nextID++
	s.users[identity] = user

	return user, nil
}

// SaveTurn implements the core.TranscriptStore interface.
func (s *InMemoryStore) SaveTurn(_ context.Context, rec core.TurnRecord) error {
	if strings.TrimSpace(rec.SessionID) == "" {
		return &StoreError{Op: "save turn", Err: errors.New("missing session id")}
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, rec)

	return nil
}

// SaveResult implements the core.TranscriptStore interface.
func (s *InMemoryStore) SaveResult(_ context.Context, rec core.ResultRecord) error {
	if strings.TrimSpace(rec.SessionID) == "" {
		return &StoreError{Op: "save result", Err: errors.New("missing session id")}
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, rec)

	return nil
}

// Turns returns the stored turns of a session in insertion order.
func (s *InMemoryStore) Turns(_ context.Context, sessionID string) ([]core.TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.TurnRecord
	for _, rec := range s.turns {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}

	return out, nil
}

// Results returns the stored debrief results of a session in insertion order.
func (s *InMemoryStore) Results(_ context.Context, sessionID string) ([]core.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.ResultRecord
	for _, rec := range s.results {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}

	return out, nil
}

// UserCount returns the number of distinct stored users.
func (s *InMemoryStore) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users)
}
