package sync

import (
	"errors"
	"regexp"
	gosync "sync"
)

// UploadsDir is the repository subdirectory that receives uploaded assets.
// The walker never reads record files from it.
const UploadsDir = "uploads"

// Options tune a single pass.
type Options struct {
	// NoCleanup disables body normalization on dump and load.
	NoCleanup bool

	// KeepDate keeps the file's modified timestamp on load instead of
	// stamping the current time.
	KeepDate bool

	// NoRefresh skips re-dumping a record after it was loaded.
	NoRefresh bool

	// Grep restricts a pass to record files whose path matches.
	Grep *regexp.Regexp

	// Jobs is the number of records processed concurrently. Values below
	// 2 process records one at a time.
	Jobs int

	// UploadsDir is the asset directory Sync copies into {repo}/uploads.
	// Empty disables the copy.
	UploadsDir string
}

func (o Options) matches(path string) bool {
	return o.Grep == nil || o.Grep.MatchString(path)
}

// Failure is one record that could not be processed during a bulk pass.
type Failure struct {
	Path string
	ID   int64
	Err  error
}

// Report summarizes a bulk pass. Failures are collected rather than
// aborting the pass.
type Report struct {
	mu gosync.Mutex

	// Written counts records written to disk (dump) or to the store (load).
	Written int
	// Skipped counts records excluded by the grep filter.
	Skipped int
	// Failed counts records that produced an error.
	Failed int

	Failures []Failure

	// Orphans lists stored record ids with no file in the repository.
	Orphans []int64
}

func (r *Report) written() {
	r.mu.Lock()
	r.Written++
	r.mu.Unlock()
}

func (r *Report) skipped() {
	r.mu.Lock()
	r.Skipped++
	r.mu.Unlock()
}

func (r *Report) fail(path string, id int64, err error) {
	r.mu.Lock()
	r.Failed++
	r.Failures = append(r.Failures, Failure{Path: path, ID: id, Err: err})
	r.mu.Unlock()
}

// Err joins every collected failure, or returns nil when the pass was clean.
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f.Err
	}
	return errors.Join(errs...)
}
