package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrWriterBusy is returned when another connection in this process already
// holds the writer token for a database file.
var ErrWriterBusy = errors.New("database writer already held in this process")

// ContentionError is returned when every open attempt failed on a lock.
type ContentionError struct {
	Path     string
	Mode     Mode
	Attempts int
	Err      error
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("open %s database %s: lock not acquired after %d attempt(s): %v",
		e.Mode, e.Path, e.Attempts, e.Err)
}

func (e *ContentionError) Unwrap() error {
	return e.Err
}

// IsContention reports whether err means the write lock could not be
// acquired. This is the only place that knows about engine error codes.
func IsContention(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrWriterBusy) {
		return true
	}
	var ce *ContentionError
	if errors.As(err, &ce) {
		return true
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}
