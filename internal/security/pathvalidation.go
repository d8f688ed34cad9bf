// Package security checks the file paths a run reads and writes. Layer
// names and export targets come from rule sets and the command line, so
// they are validated before anything is joined onto a directory.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscape marks a path that resolves outside the directory it must
// stay within.
var ErrPathEscape = errors.New("path escapes directory")

// ValidateLayerName rejects reference-layer names that are empty, absolute
// or climb out of the layer directory. Subdirectories are allowed.
func ValidateLayerName(name string) error {
	if name == "" {
		return errors.New("empty layer name")
	}
	if !filepath.IsLocal(name) {
		return fmt.Errorf("%w: layer %q", ErrPathEscape, name)
	}
	return nil
}

// ValidatePathWithinDirectory checks that filePath stays inside dir once
// both are made absolute and their symlinks resolved. filePath need not
// exist yet: the deepest existing parent is resolved instead, so a new file
// under a symlinked directory is still caught.
func ValidatePathWithinDirectory(filePath, dir string) error {
	target, err := canonical(filePath)
	if err != nil {
		return err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}
	root, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(root, target)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPathEscape, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is outside %s", ErrPathEscape, filePath, dir)
	}
	return nil
}

// canonical returns the absolute, symlink-free form of p, resolving the
// deepest existing ancestor when p itself does not exist.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest), nil
		}
		if dir == filepath.Dir(dir) {
			return abs, nil
		}
	}
}

// ValidateExportPath restricts export targets to the temp directory or the
// working directory.
func ValidateExportPath(filePath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	for _, dir := range []string{os.TempDir(), cwd} {
		if ValidatePathWithinDirectory(filePath, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: export path %s must be under %s or %s", ErrPathEscape, filePath, os.TempDir(), cwd)
}
