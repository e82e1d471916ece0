package logging

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotateOptions controls FileRotator retention.
type RotateOptions struct {
	Path       string
	MaxSizeMB  int64
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// FileRotator is an io.Writer over a log file that rolls over by size or day.
type FileRotator struct {
	opts     RotateOptions
	mu       sync.Mutex
	file     *os.File
	size     int64
	openedAt time.Time
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewFileRotator opens (or creates) the log file at opts.Path.
func NewFileRotator(opts RotateOptions) (*FileRotator, error) {
	if opts.Path == "" {
		return nil, errors.New("log file path is empty")
	}

	r := &FileRotator{opts: opts, now: time.Now}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRotator) open() error {
	file, err := os.OpenFile(r.opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	r.file = file
	r.size = info.Size()
	r.openedAt = r.now()
	return nil
}

// Write implements io.Writer.
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}

	if r.due(int64(len(p))) {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *FileRotator) due(incoming int64) bool {
	if r.size == 0 {
		return false
	}
	if r.opts.MaxSizeMB > 0 && r.size+incoming > r.opts.MaxSizeMB*1024*1024 {
		return true
	}
	y1, m1, d1 := r.openedAt.Date()
	y2, m2, d2 := r.now().Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

// Rotate forces a rollover.
func (r *FileRotator) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rotate()
}

func (r *FileRotator) rotate() error {
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("close current log: %w", err)
		}
		r.file = nil
	}

	stem, ext := r.parts()
	rolled := filepath.Join(filepath.Dir(r.opts.Path),
		fmt.Sprintf("%s-%s%s", stem, r.now().Format("20060102-150405.000"), ext))

	if err := os.Rename(r.opts.Path, rolled); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}

	if err := r.open(); err != nil {
		return err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if r.opts.Compress {
			compress(rolled)
		}
		r.prune()
	}()
	return nil
}

func (r *FileRotator) parts() (stem, ext string) {
	base := filepath.Base(r.opts.Path)
	ext = filepath.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}

// compress gzips path in place; the original is removed only on success.
func compress(path string) {
	in, err := os.Open(path)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return
	}

	gz := gzip.NewWriter(out)
	gz.Name = filepath.Base(path)
	_, copyErr := io.Copy(gz, in)
	closeErr := gz.Close()
	out.Close()

	if copyErr != nil || closeErr != nil {
		os.Remove(path + ".gz")
		return
	}
	os.Remove(path)
}

// prune enforces MaxBackups and MaxAgeDays over rolled files.
func (r *FileRotator) prune() {
	rolled, err := r.Backups()
	if err != nil {
		return
	}

	type entry struct {
		path string
		mod  time.Time
	}
	files := make([]entry, 0, len(rolled))
	for _, p := range rolled {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		files = append(files, entry{p, info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.After(files[j].mod) })

	cutoff := r.now().AddDate(0, 0, -r.opts.MaxAgeDays)
	for i, f := range files {
		tooMany := r.opts.MaxBackups > 0 && i >= r.opts.MaxBackups
		tooOld := r.opts.MaxAgeDays > 0 && f.mod.Before(cutoff)
		if tooMany || tooOld {
			os.Remove(f.path)
		}
	}
}

// Backups lists rolled log files, compressed or not.
func (r *FileRotator) Backups() ([]string, error) {
	stem, ext := r.parts()
	return filepath.Glob(filepath.Join(filepath.Dir(r.opts.Path), stem+"-*"+ext+"*"))
}

// Close waits for background compression and closes the file.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wg.Wait()
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

// Sync flushes the file to disk.
func (r *FileRotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return r.file.Sync()
	}
	return nil
}
