package rotation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CursorStore persists the rotation cursor between calls.
type CursorStore interface {
	// Load returns the stored cursor. Implementations return 0 when no
	// usable cursor exists.
	Load() (int, error)
	// Save durably stores the cursor.
	Save(cursor int) error
}

type cursorFile struct {
	Cursor int `json:"cursor"`
}

// FileCursorStore keeps the cursor in a JSON file. Writes go through a
// temporary file followed by a rename, so readers never observe a partial
// write. An absent, unreadable or corrupt file loads as cursor 0, which
// restarts the rotation from the first credential instead of failing intake.
type FileCursorStore struct {
	path string
}

// NewFileCursorStore creates a store backed by the file at path.
func NewFileCursorStore(path string) *FileCursorStore {
	return &FileCursorStore{path: path}
}

// Load implements the CursorStore interface.
func (s *FileCursorStore) Load() (int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, nil
	}

	var cf cursorFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return 0, nil
	}
	if cf.Cursor < 0 {
		return 0, nil
	}

	return cf.Cursor, nil
}

// Save implements the CursorStore interface.
func (s *FileCursorStore) Save(cursor int) error {
	data, err := json.Marshal(cursorFile{Cursor: cursor})
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create cursor dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cursor-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cursor file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cursor: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod cursor file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cursor file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename cursor file: %w", err)
	}

	return nil
}

// MemoryCursorStore keeps the cursor in memory. It is volatile and intended
// for tests and examples.
type MemoryCursorStore struct {
	mu     sync.Mutex
	cursor int
}

// NewMemoryCursorStore creates an empty in-memory store.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{}
}

// Load implements the CursorStore interface.
func (s *MemoryCursorStore) Load() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cursor, nil
}

// Save implements the CursorStore interface.
func (s *MemoryCursorStore) Save(cursor int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursor = cursor

	return nil
}
