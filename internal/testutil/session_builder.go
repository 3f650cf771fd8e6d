package testutil

import (
	"fmt"

	"github.com/hupe1980/patientsim/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").Identity("a@b.c").Exchanges(10).Build()
type SessionBuilder struct {
	id          string
	identity    string
	displayName string
	credential  string
	turns       []core.Turn
	state       core.State
}

// NewSessionBuilder creates a new builder for a session with the given id.
// The built session defaults to the dialogue phase; use chainable methods
// then call Build.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{
		id:          id,
		identity:    "trainee@test.example",
		displayName: "Trainee",
		state:       core.StateDialogue,
	}
}

// Identity sets the trainee identity token (chainable).
func (b *SessionBuilder) Identity(identity string) *SessionBuilder {
	b.identity = identity
	return b
}

// DisplayName sets the trainee display name (chainable).
func (b *SessionBuilder) DisplayName(name string) *SessionBuilder {
	b.displayName = name
	return b
}

// Credential pins a credential to the session (chainable).
func (b *SessionBuilder) Credential(cred string) *SessionBuilder {
	b.credential = cred
	return b
}

// Turn appends a single turn to the window (chainable).
func (b *SessionBuilder) Turn(speaker core.Speaker, content string) *SessionBuilder {
	b.turns = append(b.turns, core.NewTurn(speaker, content))
	return b
}

// Exchanges appends n user/agent pairs to the window, growing it by 2n turns
// (chainable).
func (b *SessionBuilder) Exchanges(n int) *SessionBuilder {
	for i := 0; i < n; i++ {
		b.turns = append(b.turns,
			core.NewUserTurn(fmt.Sprintf("question %d", i+1)),
			core.NewAgentTurn(fmt.Sprintf("answer %d", i+1)),
		)
	}
	return b
}

// Intake leaves the built session in the intake phase instead of dialogue
// (chainable).
func (b *SessionBuilder) Intake() *SessionBuilder {
	b.state = core.StateIntake
	return b
}

// Build returns a *core.Session advanced to the requested phase with the
// collected turns appended. Build panics on window errors so tests fail
// loudly on malformed fixtures.
func (b *SessionBuilder) Build() *core.Session {
	sess := core.NewSession(b.id, b.identity, b.displayName)
	sess.Credential = b.credential

	if b.state >= core.StateDialogue {
		if err := sess.AdvanceTo(core.StateDialogue); err != nil {
			panic(err)
		}
	}

	for _, turn := range b.turns {
		if err := sess.Window().Append(turn); err != nil {
			panic(err)
		}
	}

	return sess
}
