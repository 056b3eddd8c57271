package store

import (
	"fmt"
	"path/filepath"
	"sync"
)

// writers tracks which database files have an open read-write connection in
// this process. SQLite serializes writers across processes with file locks;
// the token makes the same rule visible inside one process without waiting
// on busy_timeout.
var writers = &writerTokens{held: make(map[string]struct{})}

type writerTokens struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// acquire takes the token for path without blocking.
func (w *writerTokens) acquire(path string) (func(), error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.held[key]; ok {
		return nil, fmt.Errorf("%s: %w", path, ErrWriterBusy)
	}
	w.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.held, key)
			w.mu.Unlock()
		})
	}, nil
}

// isHeld reports whether path currently has a writer. Used for testing.
func (w *writerTokens) isHeld(path string) bool {
	key, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.held[key]
	return ok
}
