package core

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrInvalidTurn is returned by Window.Append for turns with an unknown
// speaker or empty content.
var ErrInvalidTurn = errors.New("invalid turn")

// Window is the append-only turn log of a session. Turns are never reordered
// or rewritten and reads return defensive copies. It is safe for concurrent
// access.
//
// Contract:
//   - Append only ever grows the log; existing turns stay untouched
//   - ContextSuffix and Turns are pure reads returning copies
//   - An empty window reads as an empty (non-nil) slice
type Window struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewWindow creates an empty window.
func NewWindow() *Window { return &Window{} }

// Append adds a turn to the end of the log.
func (w *Window) Append(t Turn) error {
	if !t.Speaker.Valid() {
		return fmt.Errorf("%w: unknown speaker %q", ErrInvalidTurn, t.Speaker)
	}
	if strings.TrimSpace(t.Content) == "" {
		return fmt.Errorf("%w: empty content", ErrInvalidTurn)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = append(w.turns, t)
	return nil
}

// Size returns the number of turns in the log.
func (w *Window) Size() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.turns)
}

// ContextSuffix returns a copy of the last k turns in conversation order. A
// window holding fewer than k turns yields the whole log; k <= 0 yields an
// empty slice. The read never mutates the window.
func (w *Window) ContextSuffix(k int) []Turn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if k < 0 {
		k = 0
	}
	if k > len(w.turns) {
		k = len(w.turns)
	}
	suffix := make([]Turn, k)
	copy(suffix, w.turns[len(w.turns)-k:])
	return suffix
}

// Turns returns a defensive copy of the full log.
func (w *Window) Turns() []Turn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	turns := make([]Turn, len(w.turns))
	copy(turns, w.turns)
	return turns
}
