package vcs

import "errors"

// Errors returned by detection.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, vcs.ErrNotInVCS) {
//	    // Handle case where we're outside any VCS repository
//	}
var (
	// ErrNotInVCS is returned when no VCS metadata directory was found in
	// the given directory or any of its parents.
	ErrNotInVCS = errors.New("not in a VCS repository")
)
