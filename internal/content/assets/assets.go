// Package assets copies uploaded media into a content repository.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// CopyTree copies every regular file under src into dst, creating
// directories as needed and overwriting existing files. A file that cannot
// be copied does not stop the copy; all failures are returned joined.
func CopyTree(src, dst string) error {
	var errs []error

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to read %s: %w", path, err))
			if d != nil && d.IsDir() && path != src {
				return fs.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				errs = append(errs, fmt.Errorf("failed to create directory %s: %w", target, err))
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if err := copyFile(path, target, d); err != nil {
			errs = append(errs, err)
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func copyFile(src, dst string, d fs.DirEntry) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if err := atomic.WriteFile(dst, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}

	perm := os.FileMode(0644)
	if info, err := d.Info(); err == nil {
		perm = info.Mode().Perm()
	}
	if err := os.Chmod(dst, perm); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", dst, err)
	}
	return nil
}
