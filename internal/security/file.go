package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// PermSecretFile is used for the pointer file, config and archives.
	PermSecretFile os.FileMode = 0600
	// PermSecretDir is used for every directory ledgerctl creates.
	PermSecretDir os.FileMode = 0700
	// PermExecutable is used for installed client binaries.
	PermExecutable os.FileMode = 0755
)

var (
	ErrAtomicWriteFailed = errors.New("security: atomic write failed")
	ErrTempFileFailed    = errors.New("security: temporary file creation failed")
	ErrUnsupportedFile   = errors.New("security: unsupported file type")
)

// SecureFileWriter stages writes in a hidden sibling of the destination and
// publishes them with a single rename on Commit. Until then the destination
// is untouched.
type SecureFileWriter struct {
	path string
	perm os.FileMode
	tmp  *os.File
}

// NewSecureFileWriter starts an atomic write of path with mode perm,
// creating missing parent directories owner-only.
func NewSecureFileWriter(path string, perm os.FileMode) (*SecureFileWriter, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, PermSecretDir); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	var suffix [6]byte
	rand.Read(suffix[:])
	tmpPath := filepath.Join(dir, "."+filepath.Base(path)+".tmp-"+hex.EncodeToString(suffix[:]))
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, PermSecretFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTempFileFailed, err)
	}
	return &SecureFileWriter{path: path, perm: perm, tmp: tmp}, nil
}

func (w *SecureFileWriter) Write(p []byte) (int, error) {
	return w.tmp.Write(p)
}

// Path returns the destination.
func (w *SecureFileWriter) Path() string {
	return w.path
}

// TempPath returns the staged file.
func (w *SecureFileWriter) TempPath() string {
	return w.tmp.Name()
}

// Commit flushes the staged file, applies the final mode and renames it
// over the destination. On failure the staged file is removed.
func (w *SecureFileWriter) Commit() error {
	tmpPath := w.tmp.Name()
	err := w.tmp.Sync()
	if cerr := w.tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpPath, w.perm)
	}
	if err == nil {
		if rerr := os.Rename(tmpPath, w.path); rerr != nil {
			err = fmt.Errorf("%w: %v", ErrAtomicWriteFailed, rerr)
		}
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("commit %s: %w", w.path, err)
	}
	return nil
}

// Abort discards the staged file.
func (w *SecureFileWriter) Abort() {
	w.tmp.Close()
	os.Remove(w.tmp.Name())
}

// WriteSecretFile atomically replaces path with data, readable by the owner only.
func WriteSecretFile(path string, data []byte) error {
	w, err := NewSecureFileWriter(path, PermSecretFile)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Abort()
		return err
	}
	return w.Commit()
}

// EnsureSecureDir creates path owner-only, or tightens an existing
// directory that is group or world accessible.
func EnsureSecureDir(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(path, PermSecretDir)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, path)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
		if err := os.Chmod(path, PermSecretDir); err != nil {
			return fmt.Errorf("tighten %s: %w", path, err)
		}
	}
	return nil
}

// CopyTree copies src into dst, which must not exist yet. Directories are
// created owner-only and regular files keep their mode; symlinks and other
// special files abort the copy.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, PermSecretDir)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return copyFile(path, target, info.Mode().Perm())
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
