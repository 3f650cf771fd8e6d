package core

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State identifies a session lifecycle phase. The phases are strictly
// ordered; a session only ever moves forward through them.
type State int

const (
	// StateIntake is the initial phase in which the trainee is identified
	// and a credential is pinned. Every session starts here.
	StateIntake State = iota
	// StateDialogue is the conversational phase between trainee and patient.
	StateDialogue
	// StateDebrief is the terminal phase entered once the evaluation has
	// been produced.
	StateDebrief
)

// String returns the lowercase phase name.
func (s State) String() string {
	switch s {
	case StateIntake:
		return "intake"
	case StateDialogue:
		return "dialogue"
	case StateDebrief:
		return "debrief"
	default:
		return "unknown"
	}
}

// ErrIllegalTransition is returned when a state change would skip a phase or
// move backwards. Seeing it outside of tests indicates a programming error
// in the calling layer, not a user mistake.
var ErrIllegalTransition = errors.New("illegal session state transition")

// Session is one trainee/patient conversation. It exclusively owns its
// Window and tracks the lifecycle phase. It is safe for concurrent access.
//
// Contract:
//   - Sessions always start in StateIntake
//   - AdvanceTo permits exactly Intake -> Dialogue and Dialogue -> Debrief
//   - The pinned Credential never changes after intake completes
type Session struct {
	ID          string    `json:"id"`
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name"`
	Credential  string    `json:"-"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`

	window *Window
	state  State
	mu     sync.RWMutex
}

// NewSession creates a session in StateIntake with an empty window. Identity
// is the durable trainee token (an email address in practice); DisplayName
// is the label used when the trainee's turns are persisted.
func NewSession(id, identity, displayName string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, Identity: identity, DisplayName: displayName, Created: now, Updated: now, window: NewWindow()}
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Window returns the conversation window owned by this session.
func (s *Session) Window() *Window { return s.window }

// AdvanceTo moves the session into the next lifecycle phase, updating the
// Updated timestamp. Any transition other than the direct successor of the
// current phase fails with ErrIllegalTransition.
func (s *Session) AdvanceTo(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next != s.state+1 || next > StateDebrief {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.state, next)
	}
	s.state = next
	s.Updated = time.Now().UTC()
	return nil
}

// SessionStore tracks live sessions by id. Sessions are shared by pointer;
// they carry their own locking and must not be copied.
type SessionStore interface {
	Put(sess *Session) error
	Get(id string) (*Session, error)
	Delete(id string) error
}
