package sync

import (
	"io/fs"
	"iter"
	"path/filepath"

	"github.com/clarive/filesync/internal/content/schema"
	"github.com/clarive/filesync/internal/vcs"
)

// StateDir holds the local database and configuration. It is never walked.
const StateDir = ".filesync"

// Walk yields every record file under repoRoot in lexical order.
//
// VCS metadata directories, the state directory and {repoRoot}/uploads are
// skipped. Only regular files with a record extension are yielded.
// Unreadable entries are yielded with a non-nil error and the walk goes on.
func Walk(repoRoot string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		root := filepath.Clean(repoRoot)
		uploads := filepath.Join(root, UploadsDir)

		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if !yield(path, fsErr(err)) {
					return fs.SkipAll
				}
				return nil
			}

			if d.IsDir() {
				if path == root {
					return nil
				}
				if vcs.IsMetadataDir(d.Name()) || d.Name() == StateDir || path == uploads {
					return fs.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() || !schema.IsRecordFile(path) {
				return nil
			}
			if !yield(path, nil) {
				return fs.SkipAll
			}
			return nil
		})
	}
}

// RepoRootOf returns the repository root of a record file, the parent of
// its type directory.
func RepoRootOf(path string) string {
	return filepath.Dir(filepath.Dir(path))
}
