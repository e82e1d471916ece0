// Package session holds the state of one ledgerctl run: the loaded
// configuration, the wallet registry, the vault, the client resolver and
// the operation history. Every command path goes through a Session so the
// vault gate and wallet resolution are applied the same way everywhere.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"ledgerctl/internal/artifact"
	"ledgerctl/internal/config"
	"ledgerctl/internal/history"
	"ledgerctl/internal/invoker"
	"ledgerctl/internal/logging"
	"ledgerctl/internal/operation"
	"ledgerctl/internal/progress"
	"ledgerctl/internal/vault"
	"ledgerctl/internal/wallet"
)

var (
	ErrNoConfig     = errors.New("session: no configuration")
	ErrTotalUnknown = errors.New("session: coin amount is not in the coin listing, enter the total explicitly")
)

// Options configures Open.
type Options struct {
	Config *config.Config

	// Source overrides the release server built from the config.
	Source artifact.Source

	// Invoker overrides the default process invoker.
	Invoker *invoker.Invoker

	// NoHistory skips opening the history database.
	NoHistory bool

	Logger *slog.Logger
}

// Session is the explicit context every operation runs in.
type Session struct {
	mu         sync.Mutex
	cfg        *config.Config
	platform   artifact.Platform
	client     string
	reconciled bool

	wallets  *wallet.Registry
	vault    *vault.Vault
	resolver *artifact.Resolver
	invoker  *invoker.Invoker
	history  *history.Store
	logger   *slog.Logger
}

// Open builds a Session from opts.Config.
func Open(ctx context.Context, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, ErrNoConfig
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	platform, err := artifact.ParsePlatform(cfg.Binary.Platform)
	if err != nil {
		return nil, err
	}

	source := opts.Source
	if source == nil && cfg.Binary.BaseURL != "" {
		source, err = artifact.NewHTTPSource(artifact.HTTPConfig{
			BaseURL:         cfg.Binary.BaseURL,
			ManifestPath:    cfg.Binary.ManifestPath,
			ManifestTimeout: cfg.ManifestTimeout(),
			DownloadTimeout: cfg.DownloadTimeout(),
		})
		if err != nil {
			return nil, err
		}
	}

	inv := opts.Invoker
	if inv == nil {
		inv = invoker.New(invoker.Options{Logger: logger})
	}

	s := &Session{
		cfg:      cfg,
		platform: platform,
		wallets: wallet.NewRegistry(wallet.Options{
			Root:        cfg.WalletsDir(),
			PointerPath: cfg.PointerPath(),
			DefaultName: cfg.Wallet.DefaultName,
			Logger:      logger,
		}),
		vault: vault.New(vault.Options{
			WalletsDir:  cfg.WalletsDir(),
			ArchivePath: cfg.ArchivePath(),
			Params:      vault.Params{N: cfg.Vault.ScryptN, R: cfg.Vault.ScryptR, P: cfg.Vault.ScryptP},
			Logger:      logger,
		}),
		resolver: artifact.NewResolver(artifact.Options{
			Dir:     cfg.BinDir(),
			Program: cfg.Binary.Program,
			Source:  source,
			Logger:  logger,
		}),
		invoker: inv,
		logger:  logger.With("component", "session"),
	}

	if !opts.NoHistory {
		s.history, err = history.Open(ctx, cfg.HistoryPath(), logger)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close releases the history database.
func (s *Session) Close() error {
	if s.history != nil {
		return s.history.Close()
	}
	return nil
}

// Config returns the configuration currently in effect.
func (s *Session) Config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Apply installs a reloaded configuration. Operation settings and client
// flags take effect immediately; path and vault changes need a restart.
func (s *Session) Apply(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.Paths != s.cfg.Paths || cfg.Vault != s.cfg.Vault || cfg.Binary.Program != s.cfg.Binary.Program {
		s.logger.Warn("path, vault and program changes take effect on restart")
	}

	next := s.cfg.Clone()
	next.Binary.AutoUpdate = cfg.Binary.AutoUpdate
	next.Binary.PublicRPC = cfg.Binary.PublicRPC
	next.Operations = cfg.Operations
	next.Logging = cfg.Logging
	s.cfg = next
	s.logger.Info("configuration reloaded")
}

// Wallets returns the wallet registry.
func (s *Session) Wallets() *wallet.Registry { return s.wallets }

// Vault returns the vault.
func (s *Session) Vault() *vault.Vault { return s.vault }

// Resolver returns the client resolver.
func (s *Session) Resolver() *artifact.Resolver { return s.resolver }

// Platform returns the artifact platform this session selects.
func (s *Session) Platform() artifact.Platform { return s.platform }

// History returns the history store, or nil when disabled.
func (s *Session) History() *history.Store { return s.history }

// ActiveWallet returns the wallet operations run against. The vault must
// be unlocked; a missing pointer selects or creates a wallet.
func (s *Session) ActiveWallet() (string, error) {
	if err := s.vault.RequireUnlocked(); err != nil {
		return "", err
	}
	return s.wallets.ResolveActive()
}

// Client returns the executable to run. With auto_update the first call
// reconciles against the release server; if that fails the installed
// client is used and the failure is logged.
func (s *Session) Client(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != "" {
		return s.client, nil
	}

	if s.cfg.Binary.AutoUpdate && !s.reconciled {
		s.reconciled = true
		if _, err := s.resolver.Reconcile(ctx, s.platform); err != nil {
			s.logger.Warn("client update failed, using installed client", "error", err)
			path, _, localErr := s.resolver.Selected(s.platform)
			if localErr != nil {
				return "", fmt.Errorf("%w (update failed: %w)", localErr, err)
			}
			s.client = path
			return path, nil
		}
	}

	path, _, err := s.resolver.Selected(s.platform)
	if err != nil {
		return "", err
	}
	s.client = path
	return path, nil
}

// UpdateClient reconciles the installed client with the release server.
func (s *Session) UpdateClient(ctx context.Context) (*artifact.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.resolver.Reconcile(ctx, s.platform)
	if err != nil {
		return nil, err
	}
	s.reconciled = true
	s.client = ""
	return res, nil
}

// Builder returns an operation builder bound to the active wallet and the
// resolved client.
func (s *Session) Builder(ctx context.Context) (*operation.Builder, error) {
	name, err := s.ActiveWallet()
	if err != nil {
		return nil, err
	}
	exe, err := s.Client(ctx)
	if err != nil {
		return nil, err
	}

	cfg := s.Config()
	cmds := cfg.Operations.Commands
	return operation.NewBuilder(operation.Commands{
		Balance:  cmds.Balance,
		Coins:    cmds.Coins,
		Transfer: cmds.Transfer,
		Split:    cmds.Split,
		Merge:    cmds.Merge,
		MergeAll: cmds.MergeAll,
	}, cfg.Operations.AmountPrecision, operation.Target{
		Executable: exe,
		Wallet:     name,
		ConfigPath: s.wallets.ConfigPath(name),
		PublicRPC:  cfg.Binary.PublicRPC,
	}), nil
}

// Execute runs a confirmed operation and records mutating ones in the
// history, whether or not the client succeeded.
func (s *Session) Execute(ctx context.Context, op *operation.PendingOperation) (*invoker.Result, error) {
	if err := s.vault.RequireUnlocked(); err != nil {
		return nil, err
	}

	ctx = logging.ContextWithOperationID(ctx, op.ID.String())

	res, err := s.invoker.Run(ctx, op)
	if res != nil && op.Kind.Mutating() && s.history != nil {
		entry := history.Entry{
			ID:       op.ID,
			Wallet:   op.Target.Wallet,
			Kind:     string(op.Kind),
			Argv:     op.Argv(),
			ExitCode: res.ExitCode,
			Output:   res.Output(),
			Duration: res.Duration,
		}
		// Record even when ctx was cancelled.
		if herr := s.history.Record(context.WithoutCancel(ctx), entry); herr != nil {
			s.logger.WarnContext(ctx, "record history", "wallet", op.Target.Wallet, "error", herr)
		}
	}
	return res, err
}

// Query runs a read-only balance or coin listing.
func (s *Session) Query(ctx context.Context, kind operation.Kind) (*invoker.Result, error) {
	b, err := s.Builder(ctx)
	if err != nil {
		return nil, err
	}
	op, err := b.Query(kind)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, op)
}

// Coins lists the active wallet's coins.
func (s *Session) Coins(ctx context.Context) ([]operation.Coin, error) {
	res, err := s.Query(ctx, operation.KindCoins)
	if err != nil {
		return nil, err
	}
	return operation.ParseCoins(res.Stdout), nil
}

// SplitTotal picks the total for splitting coin: explicit when given,
// otherwise the amount the coin listing reports for it.
func SplitTotal(coins []operation.Coin, coin, explicit string) (operation.Coin, error) {
	id, err := operation.ValidateIdentifier(coin)
	if err != nil {
		return operation.Coin{}, err
	}
	if explicit != "" {
		total, err := operation.ParseAmount(explicit)
		if err != nil {
			return operation.Coin{}, err
		}
		return operation.Coin{ID: id, Amount: total, HasAmount: true}, nil
	}
	c, ok := operation.FindCoin(coins, id)
	if !ok {
		return operation.Coin{}, fmt.Errorf("%w: %s", operation.ErrUnknownCoin, id)
	}
	if !c.HasAmount {
		return operation.Coin{}, ErrTotalUnknown
	}
	return c, nil
}

// Settle shows a spinner for the configured settle delay. Cancelling ctx
// ends the wait early.
func (s *Session) Settle(ctx context.Context, w io.Writer) {
	d := s.Config().SettleDelay()
	if err := progress.Wait(ctx, w, d, "waiting for the ledger to settle"); err != nil {
		s.logger.Debug("settle wait interrupted", "after", d, "error", err)
	}
}

// Recent returns the latest history entries.
func (s *Session) Recent(ctx context.Context, n int) ([]history.Entry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(ctx, n)
}

// Status summarises the session for display.
type Status struct {
	Vault         vault.State
	Active        string
	ActiveErr     error
	Wallets       []string
	Platform      artifact.Platform
	Client        *artifact.Release
	HistoryOpened bool
	CheckedAt     time.Time
}

// Status reports the current state without changing anything.
func (s *Session) Status() Status {
	st := Status{Platform: s.platform, HistoryOpened: s.history != nil, CheckedAt: time.Now()}

	state, err := s.vault.Status()
	if err != nil {
		st.Vault = vault.StateInconsistent
	} else {
		st.Vault = state
	}

	if st.Vault == vault.StateAbsent || st.Vault == vault.StatePlain {
		st.Wallets, _ = s.wallets.List()
		st.Active, st.ActiveErr = s.wallets.Active()
	}

	if rel, ok, err := s.resolver.DiscoverLocal(s.platform); err == nil && ok {
		st.Client = &rel
	}
	return st
}
