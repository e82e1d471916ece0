// Package artifact discovers, ranks, downloads and prunes versioned builds
// of the external ledger client for a platform.
package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ledgerctl/internal/security"
)

var (
	ErrNoArtifactsForPlatform = errors.New("artifact: no published artifacts for this platform")
	ErrNoLocalArtifact        = errors.New("artifact: no client binary installed for this platform")
	ErrDigestMismatch         = errors.New("artifact: downloaded file does not match its published digest")
	ErrNoSource               = errors.New("artifact: no release server configured")
)

// permCompanion is used for digest and signature side-files.
const permCompanion os.FileMode = 0644

// maxCompanionBytes bounds digest and signature downloads.
const maxCompanionBytes = 64 << 10

// Action is the outcome of a reconcile.
type Action int

const (
	ActionUpToDate Action = iota
	ActionInstalled
	ActionUpgraded
)

func (a Action) String() string {
	switch a {
	case ActionInstalled:
		return "installed"
	case ActionUpgraded:
		return "upgraded"
	default:
		return "up to date"
	}
}

// Result describes what Reconcile did.
type Result struct {
	Action Action

	// Previous is the local release before reconciling, if any.
	Previous *Release

	// Current is the selected release afterwards.
	Current Release

	// Downloaded and Pruned list file names.
	Downloaded []string
	Pruned     []string
}

// Options configures a Resolver.
type Options struct {
	// Dir holds installed artifacts.
	Dir string

	// Program is the artifact name prefix.
	Program string

	// Source is consulted by FetchRemote and Reconcile. May be nil for
	// offline use.
	Source Source

	Logger *slog.Logger
}

// Resolver manages installed artifacts in a single directory.
type Resolver struct {
	dir     string
	program string
	source  Source
	logger  *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		dir:     opts.Dir,
		program: opts.Program,
		source:  opts.Source,
		logger:  logger.With("component", "artifact"),
	}
}

// Dir returns the artifact directory.
func (r *Resolver) Dir() string {
	return r.dir
}

func (r *Resolver) localNames() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// DiscoverLocal returns the highest installed release for p. The boolean
// is false when nothing is installed.
func (r *Resolver) DiscoverLocal(p Platform) (Release, bool, error) {
	names, err := r.localNames()
	if err != nil {
		return Release{}, false, err
	}
	rel, ok := latest(r.program, p, names)
	return rel, ok, nil
}

// Selected returns the path of the executable to run for p.
func (r *Resolver) Selected(p Platform) (string, Release, error) {
	rel, ok, err := r.DiscoverLocal(p)
	if err != nil {
		return "", Release{}, err
	}
	if !ok {
		return "", Release{}, fmt.Errorf("%w: %s", ErrNoLocalArtifact, p)
	}
	return filepath.Join(r.dir, rel.Primary), rel, nil
}

// FetchRemote returns the highest published release for p.
func (r *Resolver) FetchRemote(ctx context.Context, p Platform) (Release, error) {
	if r.source == nil {
		return Release{}, ErrNoSource
	}
	names, err := r.source.Manifest(ctx)
	if err != nil {
		return Release{}, err
	}
	rel, ok := latest(r.program, p, names)
	if !ok {
		return Release{}, fmt.Errorf("%w: %s", ErrNoArtifactsForPlatform, p)
	}
	return rel, nil
}

// Reconcile installs the newest published release for p when the local one
// is missing or older, then prunes every other installed version for p.
// Any failure before the new files are committed leaves the directory as
// it was.
func (r *Resolver) Reconcile(ctx context.Context, p Platform) (*Result, error) {
	if err := os.MkdirAll(r.dir, security.PermSecretDir); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	lock, err := security.AcquireLock(filepath.Join(r.dir, ".reconcile.lock"))
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	local, hasLocal, err := r.DiscoverLocal(p)
	if err != nil {
		return nil, err
	}
	remote, err := r.FetchRemote(ctx, p)
	if err != nil {
		return nil, err
	}

	result := &Result{Current: remote, Action: ActionInstalled}
	if hasLocal {
		prev := local
		result.Previous = &prev
		if local.Version.Compare(remote.Version) >= 0 {
			result.Action = ActionUpToDate
			result.Current = local
			r.logger.Debug("client up to date", "platform", p.String(), "version", local.Version.String())
			return result, nil
		}
		result.Action = ActionUpgraded
	}

	r.logger.Info("downloading client", "platform", p.String(), "version", remote.Version.String())
	if err := r.install(ctx, remote); err != nil {
		return nil, err
	}
	result.Downloaded = remote.Files()

	pruned, err := r.prune(p, remote.Version)
	result.Pruned = pruned
	if err != nil {
		// Prune failures leave the new release installed.
		r.logger.Warn("prune old client versions", "error", err)
	}

	r.logger.Info("client "+result.Action.String(), "platform", p.String(),
		"version", remote.Version.String(), "pruned", len(pruned))
	return result, nil
}

type staged struct {
	name    string
	writer  *security.SecureFileWriter
	sum     []byte
	content []byte
}

// install downloads every file of rel to temporary files, verifies digests
// and only then commits them, companions first and the primary last.
func (r *Resolver) install(ctx context.Context, rel Release) error {
	var files []*staged
	abort := func() {
		for _, f := range files {
			f.writer.Abort()
		}
	}

	for _, name := range rel.Files() {
		perm := permCompanion
		if name == rel.Primary {
			perm = security.PermExecutable
		}
		f, err := r.download(ctx, name, perm, name == rel.Primary)
		if err != nil {
			abort()
			return err
		}
		files = append(files, f)
	}

	primary := files[len(files)-1]
	for _, f := range files[:len(files)-1] {
		if err := verifyDigest(f, primary); err != nil {
			abort()
			return err
		}
	}

	for i, f := range files {
		if err := f.writer.Commit(); err != nil {
			for _, rest := range files[i+1:] {
				rest.writer.Abort()
			}
			return fmt.Errorf("install %s: %w", f.name, err)
		}
	}
	return nil
}

func (r *Resolver) download(ctx context.Context, name string, perm os.FileMode, primary bool) (*staged, error) {
	body, err := r.source.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	w, err := security.NewSecureFileWriter(filepath.Join(r.dir, name), perm)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}
	f := &staged{name: name, writer: w}

	if primary {
		h256 := sha256.New()
		h512 := sha512.New()
		if _, err := io.Copy(io.MultiWriter(w, h256, h512), body); err != nil {
			w.Abort()
			return nil, fmt.Errorf("download %s: %w", name, err)
		}
		f.sum = append(h256.Sum(nil), h512.Sum(nil)...)
		return f, nil
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(body, maxCompanionBytes+1))
	if err == nil && n > maxCompanionBytes {
		err = errors.New("side-file too large")
	}
	if err == nil {
		_, err = w.Write(buf.Bytes())
	}
	if err != nil {
		w.Abort()
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	f.content = buf.Bytes()
	return f, nil
}

// verifyDigest checks a .sha256 or .sha512 side-file against the primary.
// Signature files are kept but not checked here.
func verifyDigest(companion, primary *staged) error {
	var sum []byte
	switch {
	case strings.HasSuffix(companion.name, ".sha256"):
		sum = primary.sum[:sha256.Size]
	case strings.HasSuffix(companion.name, ".sha512"):
		sum = primary.sum[sha256.Size:]
	default:
		return nil
	}

	fields := strings.Fields(string(companion.content))
	if len(fields) == 0 {
		return fmt.Errorf("%w: %s is empty", ErrDigestMismatch, companion.name)
	}
	want, err := hex.DecodeString(strings.ToLower(fields[0]))
	if err != nil || len(want) != len(sum) {
		return fmt.Errorf("%w: %s is not a hex digest", ErrDigestMismatch, companion.name)
	}
	if !security.ConstantTimeCompare(want, sum) {
		return fmt.Errorf("%w: %s", ErrDigestMismatch, primary.name)
	}
	return nil
}

// prune removes installed artifacts for p whose version is not keep.
func (r *Resolver) prune(p Platform, keep Version) ([]string, error) {
	names, err := r.localNames()
	if err != nil {
		return nil, err
	}

	var pruned []string
	var errs []error
	for _, name := range names {
		a, err := ParseName(r.program, name)
		if err != nil || a.Platform != p || a.Version == keep {
			continue
		}
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		pruned = append(pruned, name)
	}
	return pruned, errors.Join(errs...)
}
