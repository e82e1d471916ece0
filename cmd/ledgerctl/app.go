package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"ledgerctl/internal/artifact"
	"ledgerctl/internal/config"
	"ledgerctl/internal/invoker"
	"ledgerctl/internal/logging"
	"ledgerctl/internal/operation"
	"ledgerctl/internal/prompt"
	"ledgerctl/internal/security"
	"ledgerctl/internal/session"
	"ledgerctl/internal/vault"
	"ledgerctl/internal/wallet"
)

// console is what the commands need from the user's terminal.
type console interface {
	prompt.Confirmer
	prompt.PasswordReader
}

// app wires one run of ledgerctl: config, logger, session and terminal.
type app struct {
	ctx     context.Context
	cfgPath string
	created bool
	logger  *logging.Logger
	sess    *session.Session
	in      console
	out     io.Writer
}

func newApp(ctx context.Context, cfgPath string, in console, out io.Writer) (*app, error) {
	if cfgPath == "" {
		cfgPath = os.Getenv("LEDGERCTL_CONFIG")
	}
	if cfgPath == "" {
		cfgPath = config.FindConfigFile()
	}
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}

	cfg, created, err := config.LoadOrCreate(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	logger, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	logging.SetDefault(logger)
	for _, w := range security.Harden() {
		logger.Warn("process hardening", "detail", w)
	}

	sess, err := session.Open(ctx, session.Options{Config: cfg, Logger: logger.Logger})
	if err != nil {
		logger.Close()
		return nil, err
	}

	logger.Info("ledgerctl started", "version", Version, "config", cfgPath, "platform", sess.Platform().String())
	return &app{
		ctx:     ctx,
		cfgPath: cfgPath,
		created: created,
		logger:  logger,
		sess:    sess,
		in:      in,
		out:     out,
	}, nil
}

func (a *app) Close() {
	a.sess.Close()
	a.logger.Close()
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) success(msg string) {
	fmt.Fprintln(a.out, prompt.ColorGreen+" ✓ "+msg+prompt.ColorReset)
}

func (a *app) failure(err error) {
	fmt.Fprintln(a.out, prompt.ColorRed+" ✗ "+err.Error()+prompt.ColorReset)
	if hint := remedy(err); hint != "" {
		fmt.Fprintln(a.out, prompt.ColorDim+"   "+hint+prompt.ColorReset)
	}
}

// remedy suggests what the operator can do about err.
func remedy(err error) string {
	switch {
	case errors.Is(err, vault.ErrLocked):
		return "Decrypt the wallets from the vault menu (or run: ledgerctl vault decrypt)."
	case errors.Is(err, vault.ErrInconsistent):
		return "Both the wallets directory and the archive exist. Move one of them aside and retry."
	case errors.Is(err, vault.ErrWrongPasswordOrCorrupt):
		return "Check the password. Nothing was changed on disk."
	case errors.Is(err, vault.ErrTooManyAttempts):
		return "Wait before trying the password again."
	case errors.Is(err, wallet.ErrActiveMissing):
		return "Switch to an existing wallet or create it again."
	case errors.Is(err, artifact.ErrNoLocalArtifact), errors.Is(err, artifact.ErrNoArtifactsForPlatform):
		return "Run 'ledgerctl binary update' once network access is available, or place the client in the bin directory."
	case errors.Is(err, artifact.ErrSourceUnavailable):
		return "The release server could not be reached. The installed client was left untouched."
	case errors.Is(err, artifact.ErrInvalidManifest):
		return "The release manifest is malformed. The installed client was left untouched."
	}
	return ""
}

// --- wallets ---

func (a *app) listWallets() error {
	names, err := a.sess.Wallets().List()
	if err != nil {
		return err
	}
	active, _ := a.sess.Wallets().Active()
	if len(names) == 0 {
		a.printf(" No wallets yet.\n")
		return nil
	}
	for _, n := range names {
		marker := "  "
		if n == active {
			marker = prompt.ColorGreen + "* " + prompt.ColorReset
		}
		a.printf(" %s%s\n", marker, n)
	}
	return nil
}

func (a *app) currentWallet() error {
	name, err := a.sess.ActiveWallet()
	if err != nil {
		return err
	}
	a.printf(" %s\n", name)
	return nil
}

func (a *app) createWallet(name string) error {
	if err := a.sess.Vault().RequireUnlocked(); err != nil {
		return err
	}
	if err := a.sess.Wallets().Create(name); err != nil {
		return err
	}
	a.success(fmt.Sprintf("Created wallet %s (now active)", name))
	a.printf(" Client configuration: %s\n", a.sess.Wallets().ConfigPath(name))
	return nil
}

func (a *app) importWallet(name, source string) error {
	if err := a.sess.Vault().RequireUnlocked(); err != nil {
		return err
	}
	if err := a.sess.Wallets().Import(name, source); err != nil {
		return err
	}
	a.success(fmt.Sprintf("Imported wallet %s (now active)", name))
	return nil
}

func (a *app) switchWallet(name string) error {
	if err := a.sess.Vault().RequireUnlocked(); err != nil {
		return err
	}
	if err := a.sess.Wallets().Switch(name); err != nil {
		return err
	}
	a.success("Active wallet: " + name)
	return nil
}

func (a *app) deleteWallet(name string) error {
	if err := a.sess.Vault().RequireUnlocked(); err != nil {
		return err
	}
	if err := a.sess.Wallets().Delete(name, a.in); err != nil {
		return err
	}
	a.success("Deleted wallet " + name)
	return nil
}

// --- vault ---

func (a *app) vaultStatus() error {
	state, err := a.sess.Vault().Status()
	if err != nil {
		return err
	}
	a.printf(" Vault:   %s\n", state)
	a.printf(" Archive: %s\n", a.sess.Vault().ArchivePath())
	return nil
}

func (a *app) encryptVault() error {
	password, err := prompt.NewPassword(a.in, "Vault password")
	if err != nil {
		return err
	}
	defer security.Wipe(password)

	if err := a.sess.Vault().Encrypt(password); err != nil {
		return err
	}
	a.success("Wallets encrypted to " + a.sess.Vault().ArchivePath())
	return nil
}

func (a *app) decryptVault() error {
	password, err := a.in.Password("Vault password")
	if err != nil {
		return err
	}
	defer security.Wipe(password)

	if err := a.sess.Vault().Decrypt(password); err != nil {
		return err
	}
	a.success("Wallets decrypted")
	return nil
}

// --- client binary ---

func (a *app) binaryStatus() error {
	p := a.sess.Platform()
	a.printf(" Platform:  %s\n", p)
	a.printf(" Directory: %s\n", a.sess.Resolver().Dir())

	rel, ok, err := a.sess.Resolver().DiscoverLocal(p)
	if err != nil {
		return err
	}
	if !ok {
		a.printf(" Installed: none\n")
		return nil
	}
	a.printf(" Installed: %s (%s)\n", rel.Version, rel.Primary)
	return nil
}

func (a *app) updateBinary() error {
	res, err := a.sess.UpdateClient(a.ctx)
	if err != nil {
		return err
	}
	switch res.Action {
	case artifact.ActionUpToDate:
		a.success(fmt.Sprintf("Client %s is up to date", res.Current.Version))
	default:
		a.success(fmt.Sprintf("Client %s %s", res.Current.Version, res.Action))
		for _, p := range res.Pruned {
			a.printf(" removed %s\n", p)
		}
	}
	return nil
}

// --- operations ---

func (a *app) query(kind operation.Kind) error {
	res, err := a.sess.Query(a.ctx, kind)
	if err != nil {
		return err
	}
	a.printf("%s\n", res.Display())
	return nil
}

// execute confirms op, runs it and waits for the ledger to settle. Mutating
// operations then show the coin listing again.
func (a *app) execute(op *operation.PendingOperation) error {
	final, err := operation.Finalize(op, a.in, a.out)
	if err != nil {
		return err
	}

	res, err := a.sess.Execute(a.ctx, final)
	if res != nil {
		if out := res.Display(); out != "" {
			a.printf("%s\n", out)
		}
	}
	var exitErr *invoker.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%s failed with exit status %d", op.Kind, exitErr.Result.ExitCode)
	}
	if err != nil {
		return err
	}

	a.success(fmt.Sprintf("%s submitted", op.Kind))
	a.settle()
	if op.Kind.Mutating() {
		a.printf(" Coins after %s:\n", op.Kind)
		if err := a.query(operation.KindCoins); err != nil {
			a.logger.Warn("refresh coin listing", "kind", op.Kind, "error", err)
			a.failure(fmt.Errorf("refresh coin listing: %w", err))
		}
	}
	return nil
}

// settle waits for the configured delay. Ctrl-C ends the wait only.
func (a *app) settle() {
	ctx, stop := signal.NotifyContext(a.ctx, os.Interrupt)
	defer stop()
	a.sess.Settle(ctx, a.out)
}

func (a *app) transfer(dest, coin string) error {
	b, err := a.sess.Builder(a.ctx)
	if err != nil {
		return err
	}
	op, err := b.Transfer(dest, coin)
	if err != nil {
		return err
	}
	return a.execute(op)
}

// Split modes.
const (
	splitEqual   = "equal"
	splitAmounts = "amounts"
	splitPercent = "percent"
)

// split builds a split of coin. spec is the part count for equal splits
// and a comma-separated list otherwise. An empty total is looked up in
// the coin listing.
func (a *app) split(mode, coin, spec, total string) error {
	b, err := a.sess.Builder(a.ctx)
	if err != nil {
		return err
	}

	var coins []operation.Coin
	if total == "" {
		if coins, err = a.sess.Coins(a.ctx); err != nil {
			return err
		}
	}
	c, err := session.SplitTotal(coins, coin, total)
	if err != nil {
		return err
	}

	var op *operation.PendingOperation
	switch mode {
	case splitEqual:
		n, convErr := strconv.Atoi(strings.TrimSpace(spec))
		if convErr != nil {
			return fmt.Errorf("%w: %q", operation.ErrInvalidPartCount, spec)
		}
		op, err = b.SplitEqual(c.ID, c.Amount, n)
	case splitAmounts:
		amounts, parseErr := operation.ParseAmountList(spec)
		if parseErr != nil {
			return parseErr
		}
		op, err = b.SplitAmounts(c.ID, c.Amount, amounts)
	case splitPercent:
		pcts, parseErr := operation.ParseAmountList(spec)
		if parseErr != nil {
			return parseErr
		}
		op, err = b.SplitPercentages(c.ID, c.Amount, pcts)
	default:
		return fmt.Errorf("unknown split mode %q (want equal, amounts or percent)", mode)
	}
	if err != nil {
		return err
	}
	return a.execute(op)
}

// mergeCoins lists the wallet's coins and fails when fewer than two exist,
// before the operator is asked to pick any.
func (a *app) mergeCoins() ([]operation.Coin, error) {
	coins, err := a.sess.Coins(a.ctx)
	if err != nil {
		return nil, err
	}
	if err := operation.Mergeable(coins); err != nil {
		return nil, err
	}
	return coins, nil
}

func (a *app) printCoins(coins []operation.Coin) {
	for _, c := range coins {
		if c.HasAmount {
			a.printf("  %s  %s\n", c.ID, c.Amount.String())
			continue
		}
		a.printf("  %s\n", c.ID)
	}
}

func (a *app) merge(coins []operation.Coin, first, second string) error {
	b, err := a.sess.Builder(a.ctx)
	if err != nil {
		return err
	}
	op, err := b.Merge(first, second, coins)
	if err != nil {
		return err
	}
	return a.execute(op)
}

func (a *app) mergeAll() error {
	b, err := a.sess.Builder(a.ctx)
	if err != nil {
		return err
	}
	coins, err := a.sess.Coins(a.ctx)
	if err != nil {
		return err
	}
	op, err := b.MergeAll(coins)
	if err != nil {
		return err
	}
	return a.execute(op)
}

func (a *app) history(n int) error {
	entries, err := a.sess.Recent(a.ctx, n)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.printf(" No operations recorded.\n")
		return nil
	}
	for _, e := range entries {
		status := prompt.ColorGreen + "ok" + prompt.ColorReset
		if e.ExitCode != 0 {
			status = fmt.Sprintf("%sexit %d%s", prompt.ColorRed, e.ExitCode, prompt.ColorReset)
		}
		a.printf(" %s  %-9s %-10s %s  %s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Wallet, status,
			prompt.ColorDim+e.ID.String()+prompt.ColorReset)
	}
	return nil
}
