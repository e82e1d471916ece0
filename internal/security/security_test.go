package security

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Memory Security Tests
// =============================================================================

func TestWipe(t *testing.T) {
	data := []byte("correct horse battery staple")

	Wipe(data)

	for i, b := range data {
		if b != 0 {
			t.Errorf("byte %d was not wiped: got %d, want 0", i, b)
		}
	}
}

func TestWipeEmpty(t *testing.T) {
	// Should not panic on empty slice
	Wipe(nil)
	Wipe([]byte{})
}

func TestGuardedExecWipesKey(t *testing.T) {
	key := []byte("derived-key-material")
	err := GuardedExec(key, func(k []byte) error {
		if string(k) != "derived-key-material" {
			t.Errorf("unexpected key inside guard: %q", k)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("GuardedExec: %v", err)
	}
	for _, b := range key {
		if b != 0 {
			t.Fatal("key not wiped after GuardedExec")
		}
	}
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestCleanPath(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path    string
		want    string
		wantErr error
	}{
		{"backup/main", filepath.Join(cwd, "backup", "main"), nil},
		{"../elsewhere", filepath.Join(filepath.Dir(cwd), "elsewhere"), nil},
		{"", "", ErrInvalidPath},
		{"wallet\x00.toml", "", ErrNullByte},
		{strings.Repeat("a", MaxPathLength+1), "", ErrInvalidPath},
	}

	for _, tt := range tests {
		got, err := CleanPath(tt.path)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CleanPath(%.20q) error = %v, want %v", tt.path, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("CleanPath(%q) = %q, %v; want %q", tt.path, got, err, tt.want)
		}
	}
}

func TestWithin(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		wantErr error
	}{
		{"wallets/main/.config/client.yaml", nil},
		{"wallets", nil},
		{"../escape", ErrPathTraversal},
		{"wallets/../../escape", ErrPathTraversal},
		{"/etc/passwd", ErrPathOutsideRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Within(root, tt.name)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Within(%q) error = %v, want %v", tt.name, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Within(%q): %v", tt.name, err)
			}
			absRoot, _ := filepath.Abs(root)
			if !strings.HasPrefix(got, absRoot) {
				t.Errorf("Within(%q) = %s, not under %s", tt.name, got, absRoot)
			}
		})
	}
}

// =============================================================================
// File Tests
// =============================================================================

func TestWriteSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "active_wallet")

	if err := WriteSecretFile(path, []byte("main\n")); err != nil {
		t.Fatalf("WriteSecretFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "main\n" {
		t.Errorf("content = %q", data)
	}

	if runtime.GOOS != "windows" {
		info, _ := os.Stat(path)
		if info.Mode().Perm() != PermSecretFile {
			t.Errorf("mode = %04o, want %04o", info.Mode().Perm(), PermSecretFile)
		}
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestSecureFileWriterAbort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact")

	w, err := NewSecureFileWriter(path, PermSecretFile)
	if err != nil {
		t.Fatalf("NewSecureFileWriter: %v", err)
	}
	w.Write([]byte("partial"))
	w.Abort()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("target should not exist after abort")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temp file left behind: %d entries", len(entries))
	}
}

func TestSecureFileWriterCommitMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bin", "ledger-1.0.0.0-linux-amd64")

	w, err := NewSecureFileWriter(path, PermExecutable)
	if err != nil {
		t.Fatalf("NewSecureFileWriter: %v", err)
	}
	if _, err := w.Write([]byte("#!/bin/sh\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("destination visible before commit")
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if runtime.GOOS != "windows" {
		info, _ := os.Stat(path)
		if info.Mode().Perm() != PermExecutable {
			t.Errorf("mode = %04o, want %04o", info.Mode().Perm(), PermExecutable)
		}
	}
}

func TestEnsureSecureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "wallets")
	if err := EnsureSecureDir(dir); err != nil {
		t.Fatalf("EnsureSecureDir: %v", err)
	}
	if runtime.GOOS == "windows" {
		return
	}
	if err := os.Chmod(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := EnsureSecureDir(dir); err != nil {
		t.Fatalf("EnsureSecureDir: %v", err)
	}
	info, _ := os.Stat(dir)
	if info.Mode().Perm() != PermSecretDir {
		t.Errorf("mode = %04o, want %04o", info.Mode().Perm(), PermSecretDir)
	}
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, ".config", "keys"), 0700); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(src, ".config", "client.yaml"), []byte("rpc: public\n"), 0600)
	os.WriteFile(filepath.Join(src, ".config", "keys", "k1"), []byte("secret"), 0600)

	dst := filepath.Join(t.TempDir(), "copy")
	if err := CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dst, ".config", "keys", "k1"))
	if err != nil {
		t.Fatalf("copied file missing: %v", err)
	}
	if string(data) != "secret" {
		t.Errorf("copied content = %q", data)
	}
}

func TestAcquireLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")

	lock, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	// Releasing twice is harmless.
	if err := lock.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}

	again, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	again.Release()
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	ok, err := Exists(dir)
	if err != nil || !ok {
		t.Errorf("Exists(dir) = %v, %v", ok, err)
	}
	ok, err = Exists(filepath.Join(dir, "missing"))
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v", ok, err)
	}
}

// =============================================================================
// Failure Limiter Tests
// =============================================================================

func TestFailureLimiterBackoff(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	fl := NewFailureLimiter(FailurePolicy{BaseDelay: time.Second, MaxDelay: 4 * time.Second, ResetAfter: time.Hour})
	fl.now = func() time.Time { return now }

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	for i, w := range want {
		if d := fl.RecordFailure("vault"); d != w {
			t.Errorf("failure %d: delay = %v, want %v", i+1, d, w)
		}
	}
	if d := fl.Delay("vault"); d != 4*time.Second {
		t.Errorf("pending delay = %v, want 4s", d)
	}
	if fl.Delay("other") != 0 {
		t.Error("unrelated key should not wait")
	}

	now = now.Add(3 * time.Second)
	if d := fl.Delay("vault"); d != time.Second {
		t.Errorf("delay after 3s = %v, want 1s", d)
	}

	fl.RecordSuccess("vault")
	if fl.Delay("vault") != 0 {
		t.Error("success should clear the delay")
	}
}

func TestFailureLimiterLockoutAndReset(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	fl := NewFailureLimiter(FailurePolicy{ResetAfter: time.Minute, MaxFailures: 2, Lockout: time.Hour})
	fl.now = func() time.Time { return now }

	fl.RecordFailure("vault")
	if fl.IsLocked("vault") {
		t.Fatal("locked after a single failure")
	}
	if fl.Delay("vault") != 0 {
		t.Error("zero base delay should not add backoff")
	}

	// The first failure has expired, so this one starts a new streak.
	now = now.Add(2 * time.Minute)
	fl.RecordFailure("vault")
	if fl.IsLocked("vault") {
		t.Fatal("stale failures should not count towards the lockout")
	}

	fl.RecordFailure("vault")
	if !fl.IsLocked("vault") {
		t.Fatal("expected lockout after max failures")
	}
	now = now.Add(time.Hour + time.Second)
	if fl.IsLocked("vault") {
		t.Error("lockout should expire")
	}
}

func TestHardenRestrictsUmask(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("umask is not supported on Windows")
	}
	Harden()

	path := filepath.Join(t.TempDir(), "umask-check")
	if err := os.WriteFile(path, []byte("x"), 0666); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Errorf("file created with %o, want owner-only", perm)
	}
}
