// Package session houses concrete implementations of the core.SessionStore.
// The interface itself (and the Session struct) live in the core package to
// centralize domain contracts. Keeping only implementations here prevents
// higher level packages (simulation, server) from depending on concrete
// storage.
//
// Stores hand out the live *core.Session rather than a copy: a session
// guards its own state with an internal mutex, and the orchestrator mutates
// the registered object in place as the conversation advances.
package session
