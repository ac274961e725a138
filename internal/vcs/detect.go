package vcs

import (
	"os"
	"path/filepath"
	"strings"
)

// DetectionResult contains information about the detected VCS
type DetectionResult struct {
	// Type is the detected VCS type
	Type Type

	// RepoRoot is the repository root directory path
	RepoRoot string

	// VCSDir is the VCS metadata directory path (.git or .jj)
	VCSDir string

	// IsWorktree indicates .git is a file pointing elsewhere
	IsWorktree bool
}

// Colocated reports whether both jj and git manage the repository.
func (r *DetectionResult) Colocated() bool {
	return r.Type == TypeColocate
}

// Detect identifies the VCS type for a given directory.
//
// Detection precedence:
//  1. Check for .jj directory (indicates jj or colocated mode)
//  2. Check for .git directory or file (indicates git or worktree)
//  3. Walk up parent directories until VCS found or root reached
//
// Returns ErrNotInVCS if no VCS is found.
func Detect(path string) (*DetectionResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	current := absPath
	for {
		var hasJJ, hasGit bool
		result := &DetectionResult{RepoRoot: current}

		jjDir := filepath.Join(current, JJDir)
		if info, err := os.Stat(jjDir); err == nil && info.IsDir() {
			hasJJ = true
			result.VCSDir = jjDir
		}

		// .git is a file in worktrees
		gitPath := filepath.Join(current, GitDir)
		if info, err := os.Stat(gitPath); err == nil {
			hasGit = true
			if info.Mode().IsRegular() {
				result.IsWorktree = true
			}
			if result.VCSDir == "" {
				result.VCSDir = worktreeGitDir(current, gitPath, info.Mode().IsRegular())
			}
		}

		switch {
		case hasJJ && hasGit:
			result.Type = TypeColocate
			return result, nil
		case hasJJ:
			result.Type = TypeJJ
			return result, nil
		case hasGit:
			result.Type = TypeGit
			return result, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return nil, ErrNotInVCS
		}
		current = parent
	}
}

// worktreeGitDir resolves the metadata directory a worktree's .git file
// points to:
//
//	gitdir: /path/to/main/.git/worktrees/name
func worktreeGitDir(root, gitPath string, isFile bool) string {
	if !isFile {
		return gitPath
	}
	content, err := os.ReadFile(gitPath)
	if err != nil {
		return gitPath
	}
	line := strings.TrimSpace(string(content))
	gitDir, ok := strings.CutPrefix(line, "gitdir: ")
	if !ok {
		return gitPath
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(root, gitDir)
	}
	return filepath.Clean(gitDir)
}
