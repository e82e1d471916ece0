// Package vault keeps the wallets tree either as plaintext or as a single
// password-protected archive, never both.
package vault

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ledgerctl/internal/security"
)

var (
	ErrAlreadyEncrypted       = errors.New("vault: wallets are already encrypted")
	ErrNothingToEncrypt       = errors.New("vault: no wallets directory to encrypt")
	ErrNotEncrypted           = errors.New("vault: no encrypted archive to decrypt")
	ErrWrongPasswordOrCorrupt = errors.New("vault: wrong password or corrupt archive")
	ErrInconsistent           = errors.New("vault: both the wallets directory and the encrypted archive exist; move one aside manually")
	ErrLocked                 = errors.New("vault: wallets are encrypted, decrypt them first")
	ErrInvalidParams          = errors.New("vault: invalid scrypt parameters")
	ErrTooManyAttempts        = errors.New("vault: too many failed password attempts")
)

// State is the on-disk representation of the wallets tree.
type State int

const (
	// StateAbsent means neither representation exists yet (first run).
	StateAbsent State = iota
	StatePlain
	StateEncrypted
	// StateInconsistent means both exist. It is never resolved automatically.
	StateInconsistent
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StatePlain:
		return "plain"
	case StateEncrypted:
		return "encrypted"
	case StateInconsistent:
		return "inconsistent"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a Vault.
type Options struct {
	WalletsDir  string
	ArchivePath string
	Params      Params
	// Attempts throttles wrong passwords. Nil selects a default limiter.
	Attempts *security.FailureLimiter
	Logger   *slog.Logger
}

// Vault transitions the wallets tree between its two representations.
type Vault struct {
	dir      string
	archive  string
	params   Params
	attempts *security.FailureLimiter
	logger   *slog.Logger
}

// New creates a Vault. Zero Params select DefaultParams.
func New(opts Options) *Vault {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	params := opts.Params
	if params == (Params{}) {
		params = DefaultParams
	}
	attempts := opts.Attempts
	if attempts == nil {
		attempts = security.NewFailureLimiter(security.DefaultFailurePolicy)
	}
	return &Vault{
		dir:      opts.WalletsDir,
		archive:  opts.ArchivePath,
		params:   params,
		attempts: attempts,
		logger:   logger.With("component", "vault"),
	}
}

// ArchivePath returns the archive location.
func (v *Vault) ArchivePath() string {
	return v.archive
}

// Status reports the current representation.
func (v *Vault) Status() (State, error) {
	plain, err := security.Exists(v.dir)
	if err != nil {
		return StateAbsent, fmt.Errorf("vault status: %w", err)
	}
	sealed, err := security.Exists(v.archive)
	if err != nil {
		return StateAbsent, fmt.Errorf("vault status: %w", err)
	}

	switch {
	case plain && sealed:
		return StateInconsistent, nil
	case sealed:
		return StateEncrypted, nil
	case plain:
		return StatePlain, nil
	default:
		return StateAbsent, nil
	}
}

// RequireUnlocked fails unless wallet files may be read, i.e. the tree is
// plain or has not been created yet.
func (v *Vault) RequireUnlocked() error {
	state, err := v.Status()
	if err != nil {
		return err
	}
	switch state {
	case StateEncrypted:
		return ErrLocked
	case StateInconsistent:
		return ErrInconsistent
	}
	return nil
}

func (v *Vault) lock() (*security.FileLock, error) {
	lock, err := security.AcquireLock(v.archive + ".lock")
	if err != nil {
		return nil, fmt.Errorf("vault lock: %w", err)
	}
	return lock, nil
}

// Encrypt archives the wallets tree under password and removes the
// plaintext once the archive has been written and read back successfully.
func (v *Vault) Encrypt(password []byte) error {
	if !v.params.valid() {
		return ErrInvalidParams
	}

	lock, err := v.lock()
	if err != nil {
		return err
	}
	defer lock.Release()

	state, err := v.Status()
	if err != nil {
		return err
	}
	switch state {
	case StateInconsistent:
		return fmt.Errorf("%w: %w", ErrAlreadyEncrypted, ErrInconsistent)
	case StateEncrypted:
		return ErrAlreadyEncrypted
	case StateAbsent:
		return ErrNothingToEncrypt
	}

	plaintext, err := packTree(v.dir)
	if err != nil {
		return err
	}
	defer security.Wipe(plaintext)

	sealed, err := seal(password, plaintext, v.params)
	if err != nil {
		return err
	}
	if err := security.WriteSecretFile(v.archive, sealed); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	if err := v.verify(password, plaintext); err != nil {
		os.Remove(v.archive)
		return err
	}

	if err := v.removePlain(); err != nil {
		// Roll back to plain rather than leave both representations.
		os.Remove(v.archive)
		return err
	}

	v.logger.Info("wallets encrypted", "archive", v.archive, "bytes", len(sealed))
	return nil
}

// verify re-reads the archive from disk and checks it decrypts to plaintext.
func (v *Vault) verify(password, plaintext []byte) error {
	written, err := os.ReadFile(v.archive)
	if err != nil {
		return fmt.Errorf("verify archive: %w", err)
	}
	got, err := open(password, written)
	if err != nil {
		return fmt.Errorf("verify archive: %w", err)
	}
	defer security.Wipe(got)
	if !bytes.Equal(got, plaintext) {
		return errors.New("verify archive: content mismatch")
	}
	return nil
}

// removePlain hides the tree by rename before deleting it, so an
// interrupted removal never looks like a valid plaintext tree.
func (v *Vault) removePlain() error {
	trash, err := os.MkdirTemp(filepath.Dir(v.dir), "."+filepath.Base(v.dir)+".shred-")
	if err != nil {
		return fmt.Errorf("remove plaintext: %w", err)
	}
	if err := os.Rename(v.dir, filepath.Join(trash, filepath.Base(v.dir))); err != nil {
		os.Remove(trash)
		return fmt.Errorf("remove plaintext: %w", err)
	}
	if err := os.RemoveAll(trash); err != nil {
		v.logger.Warn("plaintext remnants left behind", "path", trash, "error", err)
	}
	return nil
}

// Decrypt restores the wallets tree from the archive. Extraction happens in
// a hidden staging directory; on any failure nothing is left at the wallets
// path and the archive is untouched.
func (v *Vault) Decrypt(password []byte) error {
	lock, err := v.lock()
	if err != nil {
		return err
	}
	defer lock.Release()

	state, err := v.Status()
	if err != nil {
		return err
	}
	switch state {
	case StateInconsistent:
		return ErrInconsistent
	case StatePlain, StateAbsent:
		return ErrNotEncrypted
	}

	if v.attempts.IsLocked(v.archive) {
		return fmt.Errorf("%w, try again later", ErrTooManyAttempts)
	}
	if wait := v.attempts.Delay(v.archive); wait > 0 {
		return fmt.Errorf("%w, retry in %s", ErrTooManyAttempts, wait.Round(time.Second))
	}

	sealed, err := os.ReadFile(v.archive)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	plaintext, err := open(password, sealed)
	if err != nil {
		if errors.Is(err, ErrWrongPasswordOrCorrupt) {
			v.attempts.RecordFailure(v.archive)
			v.logger.Warn("vault decryption failed", "archive", v.archive)
		}
		return err
	}
	defer security.Wipe(plaintext)
	v.attempts.RecordSuccess(v.archive)

	parent := filepath.Dir(v.dir)
	if err := os.MkdirAll(parent, security.PermSecretDir); err != nil {
		return fmt.Errorf("prepare restore: %w", err)
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(v.dir)+".restore-")
	if err != nil {
		return fmt.Errorf("prepare restore: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := unpackTree(plaintext, staging); err != nil {
		return fmt.Errorf("%w: %v", ErrWrongPasswordOrCorrupt, err)
	}

	restored := filepath.Join(staging, filepath.Base(v.dir))
	if info, err := os.Stat(restored); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: archive does not contain %s", ErrWrongPasswordOrCorrupt, filepath.Base(v.dir))
	}
	if err := os.Rename(restored, v.dir); err != nil {
		return fmt.Errorf("restore wallets: %w", err)
	}

	if info, err := os.Stat(v.dir); err != nil || !info.IsDir() {
		return fmt.Errorf("restore wallets: %s missing after rename", v.dir)
	}
	if err := os.Remove(v.archive); err != nil {
		return fmt.Errorf("remove archive: %w", err)
	}

	v.logger.Info("wallets decrypted", "dir", v.dir)
	return nil
}
