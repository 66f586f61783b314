// Package fsops provides filesystem operations with safety guarantees.
//
// All filesystem mutations in modlay go through the FS interface: writing the
// run report and deleting the relocated build output. Removal targets are
// validated first so a misconfigured output base can never delete the project
// itself, one of its ancestors, the home directory or a filesystem root.
package fsops

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafeTarget indicates a removal target failed validation.
var ErrUnsafeTarget = errors.New("unsafe removal target")

// FS is the filesystem surface modlay writes and deletes through.
type FS interface {
	Lstat(path string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	RemoveAll(path string) error
	ReadFile(path string) ([]byte, error)
	Exists(path string) (bool, error)

	// AtomicWrite replaces path with data; readers see the old or the new
	// content, never a mix.
	AtomicWrite(path string, data []byte, perm os.FileMode) error

	// ValidateRemovalTarget checks that target may be deleted on behalf of
	// the project rooted at root.
	ValidateRemovalTarget(target, root string) error
}

// RealFS is the FS backed by the operating system.
type RealFS struct{}

// NewRealFS creates a new RealFS.
func NewRealFS() *RealFS {
	return &RealFS{}
}

func (r *RealFS) Lstat(path string) (os.FileInfo, error) {
	return os.Lstat(path)
}

func (r *RealFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (r *RealFS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (r *RealFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// AtomicWrite writes data next to path under a hidden temporary name and
// renames it into place, so readers of a report or metrics textfile never see
// a partial file. Missing parent directories are created.
func (r *RealFS) AtomicWrite(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".modlay-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists. A dangling symlink exists.
func (r *RealFS) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, iofs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// ValidateRemovalTarget rejects empty targets, filesystem roots, the home
// directory, the project root and any ancestor of it. Relative targets are
// resolved against root. Targets outside the project are allowed: a shared
// build directory next to the project is the common case.
func (r *RealFS) ValidateRemovalTarget(target, root string) error {
	if strings.TrimSpace(target) == "" {
		return fmt.Errorf("%w: empty path", ErrUnsafeTarget)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve project root: %w", err)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(absRoot, target)
	}
	absTarget := filepath.Clean(target)

	if absTarget == filepath.VolumeName(absTarget)+string(filepath.Separator) {
		return fmt.Errorf("%w: %s is a filesystem root", ErrUnsafeTarget, absTarget)
	}
	if home, err := os.UserHomeDir(); err == nil && filepath.Clean(home) == absTarget {
		return fmt.Errorf("%w: %s is the home directory", ErrUnsafeTarget, absTarget)
	}
	if absTarget == absRoot {
		return fmt.Errorf("%w: %s is the project root", ErrUnsafeTarget, absTarget)
	}
	rel, err := filepath.Rel(absTarget, absRoot)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s contains the project root", ErrUnsafeTarget, absTarget)
	}
	return nil
}
