package core

import (
	"time"

	"github.com/google/uuid"
)

// Speaker identifies the originator of conversational content. The set is
// closed: only the declared values are valid and Window.Append rejects
// anything else.
type Speaker string

const (
	// SpeakerUser is the trainee driving the conversation.
	SpeakerUser Speaker = "user"
	// SpeakerAgent is the simulated patient played by the model.
	SpeakerAgent Speaker = "agent"
	// SpeakerSystem marks configuration content injected ahead of the
	// dialogue. System content never enters a session window.
	SpeakerSystem Speaker = "system"
)

// Valid reports whether s is one of the declared speakers.
func (s Speaker) Valid() bool {
	switch s {
	case SpeakerUser, SpeakerAgent, SpeakerSystem:
		return true
	default:
		return false
	}
}

// Turn is a single utterance in a conversation. After creation it should be
// treated as immutable.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a turn stamped with the current UTC time.
func NewTurn(speaker Speaker, content string) Turn {
	return Turn{Speaker: speaker, Content: content, Timestamp: time.Now().UTC()}
}

// NewUserTurn creates a trainee-authored turn.
func NewUserTurn(content string) Turn { return NewTurn(SpeakerUser, content) }

// NewAgentTurn creates a patient-authored turn.
func NewAgentTurn(content string) Turn { return NewTurn(SpeakerAgent, content) }

// NewID generates a new unique identifier for sessions and records.
//
// Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }
