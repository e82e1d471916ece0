package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathTraversal   = errors.New("security: path traversal detected")
	ErrInvalidPath     = errors.New("security: invalid path")
	ErrPathOutsideRoot = errors.New("security: path outside allowed root")
	ErrNullByte        = errors.New("security: null byte in path")
)

// MaxPathLength bounds operator-supplied paths.
const MaxPathLength = 4096

// CleanPath turns an operator-supplied path into a clean absolute one.
// Relative segments are allowed; empty, NUL-bearing and oversized paths are not.
func CleanPath(path string) (string, error) {
	switch {
	case path == "":
		return "", ErrInvalidPath
	case strings.ContainsRune(path, 0):
		return "", ErrNullByte
	case len(path) > MaxPathLength:
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidPath, len(path), MaxPathLength)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return abs, nil
}

// Within joins an untrusted archive entry name onto root and fails if the
// result would land outside root.
func Within(root, name string) (string, error) {
	if strings.ContainsRune(name, 0) {
		return "", ErrNullByte
	}
	slashed := filepath.ToSlash(name)
	if filepath.IsAbs(name) || strings.HasPrefix(slashed, "/") || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: absolute entry %q", ErrPathOutsideRoot, name)
	}
	for _, part := range strings.Split(strings.ReplaceAll(slashed, `\`, "/"), "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrPathTraversal, name)
		}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	target := filepath.Join(absRoot, filepath.FromSlash(slashed))
	rel, err := filepath.Rel(absRoot, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathOutsideRoot, name)
	}
	return target, nil
}

// Exists reports whether path exists without following a final symlink.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
