// Package rotation distributes provider API credentials across sessions in
// strict round-robin order. The rotation cursor is held in a pluggable
// CursorStore so the sequence survives process restarts.
package rotation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/patientsim/logging"
)

// ErrNoCredentials is returned by New when the credential list is empty.
var ErrNoCredentials = errors.New("rotation: no credentials configured")

// Credential is an opaque provider API key.
type Credential string

// Options configure the Rotator.
type Options struct {
	Logger logging.Logger
}

// Rotator hands out credentials in round-robin order.
//
// Contract:
//   - Next is fully serialized: load, selection, advance and persist happen
//     under a single lock, so concurrent callers observe a strict rotation.
//   - The stored cursor is normalized modulo the list length, so a cursor
//     written against a longer list never indexes out of range.
//   - A persist failure fails the call and leaves the durable cursor
//     unadvanced; the same credential is selected again on the next call.
type Rotator struct {
	creds []Credential
	store CursorStore
	opts  Options

	mu sync.Mutex
}

// New creates a Rotator over creds. A nil store falls back to a volatile
// in-memory cursor.
func New(creds []Credential, store CursorStore, optFns ...func(o *Options)) (*Rotator, error) {
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}

	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if store == nil {
		store = NewMemoryCursorStore()
	}

	return &Rotator{
		creds: append([]Credential(nil), creds...),
		store: store,
		opts:  opts,
	}, nil
}

// Next returns the credential at the persisted cursor, then advances the
// cursor by one modulo the list length and persists it before returning.
func (r *Rotator) Next() (Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cursor, err := r.store.Load()
	if err != nil {
		return "", fmt.Errorf("load rotation cursor: %w", err)
	}
	if cursor < 0 {
		cursor = 0
	}
	cursor %= len(r.creds)

	next := (cursor + 1) % len(r.creds)
	if err := r.store.Save(next); err != nil {
		return "", fmt.Errorf("save rotation cursor: %w", err)
	}

	r.opts.Logger.Debug("credential selected", "cursor", cursor, "next", next)

	return r.creds[cursor], nil
}

// Size returns the number of configured credentials.
func (r *Rotator) Size() int {
	return len(r.creds)
}
