// Package wallet manages the wallet directory tree and the active-wallet pointer.
//
// Layout:
//
//	<root>/<name>/.config/   client configuration, the only validity marker
//	<pointer file>           single line naming the active wallet
//
// Every mutation that makes a wallet visible (create, import) builds it in a
// hidden staging directory and renames it into place before the pointer is
// written, so the pointer never names a half-built wallet.
package wallet

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"ledgerctl/internal/prompt"
	"ledgerctl/internal/security"
)

// ConfigDirName is the per-wallet client configuration directory.
const ConfigDirName = ".config"

var namePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

var (
	ErrInvalidName           = errors.New("wallet: name must match ^[a-z0-9_-]+$")
	ErrAlreadyExists         = errors.New("wallet: already exists")
	ErrNotFound              = errors.New("wallet: not found")
	ErrNoOp                  = errors.New("wallet: already active")
	ErrActiveWalletProtected = errors.New("wallet: cannot delete the active wallet, switch to another wallet first")
	ErrDeleteAborted         = errors.New("wallet: deletion not confirmed")
	ErrNoActiveWallet        = errors.New("wallet: no active wallet selected")
	ErrActiveMissing         = errors.New("wallet: active wallet pointer names a missing wallet")
	ErrInvalidSource         = errors.New("wallet: import source has no .config directory")
)

// ValidName reports whether name is an acceptable wallet name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Options configures a Registry.
type Options struct {
	// Root is the wallets directory.
	Root string

	// PointerPath is the active-wallet pointer file.
	PointerPath string

	// DefaultName is created on first run when no wallet exists.
	DefaultName string

	Logger *slog.Logger
}

// Registry manages wallets under a single root.
type Registry struct {
	root        string
	pointer     string
	defaultName string
	logger      *slog.Logger
}

// NewRegistry creates a Registry. The root is not created until a wallet is.
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := opts.DefaultName
	if name == "" {
		name = "main"
	}
	return &Registry{
		root:        opts.Root,
		pointer:     opts.PointerPath,
		defaultName: name,
		logger:      logger.With("component", "wallet"),
	}
}

// Root returns the wallets directory.
func (r *Registry) Root() string {
	return r.root
}

// Dir returns the directory of the named wallet.
func (r *Registry) Dir(name string) string {
	return filepath.Join(r.root, name)
}

// ConfigPath returns the client configuration directory of the named wallet.
func (r *Registry) ConfigPath(name string) string {
	return filepath.Join(r.root, name, ConfigDirName)
}

// Exists reports whether name is a wallet, i.e. has a .config directory.
func (r *Registry) Exists(name string) bool {
	if !ValidName(name) {
		return false
	}
	info, err := os.Stat(r.ConfigPath(name))
	return err == nil && info.IsDir()
}

// List returns the wallets under the root in lexical order.
// A missing root yields an empty list.
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list wallets: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || !ValidName(e.Name()) {
			continue
		}
		if r.Exists(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Create makes a new wallet and activates it.
func (r *Registry) Create(name string) error {
	if err := r.checkNew(name); err != nil {
		return err
	}

	staging, err := r.stage(name, "create")
	if err != nil {
		return err
	}
	if err := os.Mkdir(filepath.Join(staging, ConfigDirName), security.PermSecretDir); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("create wallet %s: %w", name, err)
	}

	if err := r.publish(staging, name); err != nil {
		return err
	}
	r.logger.Info("wallet created", "wallet", name)
	return nil
}

// Import copies an existing client configuration into a new wallet and
// activates it. source is either a .config directory or a directory
// containing one.
func (r *Registry) Import(name, source string) error {
	if err := r.checkNew(name); err != nil {
		return err
	}

	configDir, err := importSource(source)
	if err != nil {
		return err
	}

	staging, err := r.stage(name, "import")
	if err != nil {
		return err
	}
	if err := security.CopyTree(configDir, filepath.Join(staging, ConfigDirName)); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("import wallet %s: %w", name, err)
	}

	if err := r.publish(staging, name); err != nil {
		return err
	}
	r.logger.Info("wallet imported", "wallet", name, "source", source)
	return nil
}

func importSource(source string) (string, error) {
	source, err := security.CleanPath(source)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	candidates := []string{filepath.Join(source, ConfigDirName)}
	if filepath.Base(source) == ConfigDirName {
		candidates = append([]string{source}, candidates...)
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidSource, source)
}

func (r *Registry) checkNew(name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, err := os.Lstat(r.Dir(name)); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("check wallet %s: %w", name, err)
	}
	return nil
}

// stage creates a hidden working directory inside the root.
func (r *Registry) stage(name, purpose string) (string, error) {
	if err := security.EnsureSecureDir(r.root); err != nil {
		return "", fmt.Errorf("prepare wallets directory: %w", err)
	}
	dir, err := os.MkdirTemp(r.root, "."+name+"."+purpose+"-")
	if err != nil {
		return "", fmt.Errorf("stage wallet %s: %w", name, err)
	}
	return dir, nil
}

// publish renames a staged wallet into place and points at it. On pointer
// failure the wallet is removed again.
func (r *Registry) publish(staging, name string) error {
	target := r.Dir(name)
	if err := os.Rename(staging, target); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("install wallet %s: %w", name, err)
	}
	if err := r.writePointer(name); err != nil {
		os.RemoveAll(target)
		return err
	}
	return nil
}

// Switch makes name the active wallet.
func (r *Registry) Switch(name string) error {
	if !r.Exists(name) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	active, err := r.readPointer()
	if err != nil && !errors.Is(err, ErrNoActiveWallet) {
		return err
	}
	if active == name {
		return fmt.Errorf("%w: %s", ErrNoOp, name)
	}
	if err := r.writePointer(name); err != nil {
		return err
	}
	r.logger.Info("wallet switched", "wallet", name, "previous", active)
	return nil
}

// Delete removes a non-active wallet after the operator answers yes and
// then retypes the exact name.
func (r *Registry) Delete(name string, c prompt.Confirmer) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, err := os.Stat(r.Dir(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("check wallet %s: %w", name, err)
	}
	active, err := r.readPointer()
	if err != nil && !errors.Is(err, ErrNoActiveWallet) {
		return err
	}
	if active == name {
		return ErrActiveWalletProtected
	}

	ok, err := c.Confirm(fmt.Sprintf("Permanently delete wallet %q? This cannot be undone", name))
	if err != nil {
		return fmt.Errorf("confirm deletion: %w", err)
	}
	if !ok {
		return ErrDeleteAborted
	}
	typed, err := c.Ask(fmt.Sprintf("Type %q to confirm", name))
	if err != nil {
		return fmt.Errorf("confirm deletion: %w", err)
	}
	if strings.TrimSpace(typed) != name {
		return fmt.Errorf("%w: typed name did not match", ErrDeleteAborted)
	}

	// Hide the wallet first so an interrupted removal never lists.
	trash, err := os.MkdirTemp(r.root, "."+name+".delete-")
	if err != nil {
		return fmt.Errorf("delete wallet %s: %w", name, err)
	}
	hidden := filepath.Join(trash, name)
	if err := os.Rename(r.Dir(name), hidden); err != nil {
		os.Remove(trash)
		return fmt.Errorf("delete wallet %s: %w", name, err)
	}
	if err := os.RemoveAll(trash); err != nil {
		return fmt.Errorf("delete wallet %s: %w", name, err)
	}

	r.logger.Info("wallet deleted", "wallet", name)
	return nil
}

// Active returns the wallet named by the pointer. ErrNoActiveWallet means
// there is no pointer; ErrActiveMissing means it names a missing wallet.
func (r *Registry) Active() (string, error) {
	name, err := r.readPointer()
	if err != nil {
		return "", err
	}
	if !r.Exists(name) {
		return "", fmt.Errorf("%w: %s", ErrActiveMissing, name)
	}
	return name, nil
}

// ResolveActive guarantees an active wallet. Without a pointer the first
// listed wallet is selected, or the default wallet is created when none
// exist. A pointer naming a missing wallet is reported, never repaired.
func (r *Registry) ResolveActive() (string, error) {
	name, err := r.Active()
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, ErrNoActiveWallet) {
		return "", err
	}

	names, err := r.List()
	if err != nil {
		return "", err
	}
	if len(names) > 0 {
		if err := r.writePointer(names[0]); err != nil {
			return "", err
		}
		r.logger.Info("active wallet selected", "wallet", names[0])
		return names[0], nil
	}

	if err := r.Create(r.defaultName); err != nil {
		return "", fmt.Errorf("create default wallet: %w", err)
	}
	return r.defaultName, nil
}

func (r *Registry) readPointer() (string, error) {
	data, err := os.ReadFile(r.pointer)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoActiveWallet
		}
		return "", fmt.Errorf("read active wallet: %w", err)
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", ErrNoActiveWallet
	}
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrActiveMissing, name)
	}
	return name, nil
}

func (r *Registry) writePointer(name string) error {
	if err := security.WriteSecretFile(r.pointer, []byte(name+"\n")); err != nil {
		return fmt.Errorf("write active wallet: %w", err)
	}
	return nil
}
