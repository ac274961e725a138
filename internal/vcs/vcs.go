// Package vcs detects the version control system a content repository
// lives in.
//
// filesync does not drive git or jj itself; users commit the dumped tree
// with whatever tool they prefer. The package only answers two questions:
// which directory names belong to a VCS (so the walker never descends into
// them) and where the enclosing repository root is (for the status command).
//
// # Usage
//
//	if vcs.IsMetadataDir(d.Name()) {
//	    return fs.SkipDir
//	}
//
//	res, err := vcs.Detect(repo)
//	if errors.Is(err, vcs.ErrNotInVCS) {
//	    // dumped files are not under version control
//	}
package vcs

// Type represents the VCS backend type
type Type string

const (
	// TypeGit indicates a git-only repository
	TypeGit Type = "git"

	// TypeJJ indicates a jj-only repository (non-colocated)
	TypeJJ Type = "jj"

	// TypeColocate indicates a colocated repository (jj + git together)
	TypeColocate Type = "colocate"
)

// String returns the string representation of the VCS type
func (t Type) String() string {
	return string(t)
}

// Metadata directory names.
const (
	GitDir = ".git"
	JJDir  = ".jj"
)

// MetadataDirs lists every directory name owned by a supported VCS.
var MetadataDirs = []string{GitDir, JJDir}

// IsMetadataDir reports whether name is a VCS metadata directory.
func IsMetadataDir(name string) bool {
	for _, d := range MetadataDirs {
		if name == d {
			return true
		}
	}
	return false
}
