package sync

import (
	"errors"
	"fmt"
)

// Errors reported by sync passes. Every failure returned by the syncer
// wraps one of these or a schema error, so callers can branch with
// errors.Is:
//
//	if errors.Is(err, sync.ErrStaleFileDeletion) {
//	    // the record was written, but its old file is still there
//	}
var (
	// ErrStaleFileDeletion is returned when a renamed record's previous
	// file could not be removed.
	ErrStaleFileDeletion = errors.New("failed to remove stale file")

	// ErrStore wraps failures reported by the Store.
	ErrStore = errors.New("store error")

	// ErrFilesystem wraps directory creation, write and walk failures.
	ErrFilesystem = errors.New("filesystem error")
)

// RecordError locates a failure to the file or record it concerns.
type RecordError struct {
	Op   string // "dump" or "load"
	Path string
	ID   int64
	Err  error
}

func (e *RecordError) Error() string {
	switch {
	case e.Path != "" && e.ID != 0:
		return fmt.Sprintf("%s %s (id=%d): %v", e.Op, e.Path, e.ID, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s id=%d: %v", e.Op, e.ID, e.Err)
	}
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStore, err)
}

func fsErr(err error) error {
	return fmt.Errorf("%w: %w", ErrFilesystem, err)
}
