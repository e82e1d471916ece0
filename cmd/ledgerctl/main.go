// ledgerctl - wallet session manager for the ledger command-line client
//
// Without arguments ledgerctl starts the interactive menu. Every menu
// action is also available as a subcommand:
//
//	ledgerctl wallet list|current|create|switch|delete|import
//	ledgerctl vault status|encrypt|decrypt
//	ledgerctl binary status|update
//	ledgerctl balance | coins
//	ledgerctl transfer <dest> <coin>
//	ledgerctl split equal|amounts|percent <coin> <spec> [total]
//	ledgerctl merge <coinA> <coinB> | merge all
//	ledgerctl history [n]
//	ledgerctl config path|show
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/BurntSushi/toml"

	"ledgerctl/internal/operation"
	"ledgerctl/internal/prompt"
	"ledgerctl/internal/wallet"
)

// Version is set at build time.
var Version = "dev"

// errUsage marks a malformed command line.
var errUsage = errors.New("invalid usage")

func main() {
	os.Exit(run(os.Args[1:], prompt.NewTerminal(), os.Stdout))
}

func run(args []string, in console, out io.Writer) int {
	fs := flag.NewFlagSet("ledgerctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfgPath := fs.String("config", "", "configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		usage(os.Stderr)
		return 2
	}
	args = fs.Args()

	if len(args) > 0 {
		switch args[0] {
		case "help", "-h", "--help":
			usage(out)
			return 0
		case "version", "--version":
			fmt.Fprintf(out, "ledgerctl %s\n", Version)
			return 0
		}
	}

	ctx := context.Background()
	if len(args) > 0 {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	a, err := newApp(ctx, *cfgPath, in, out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	if len(args) == 0 {
		newMenu(a).Run()
		return 0
	}

	if err := a.dispatch(args); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			usage(os.Stderr)
			return 2
		}
		if errors.Is(err, operation.ErrNotConfirmed) || errors.Is(err, wallet.ErrDeleteAborted) {
			fmt.Fprintln(out, " Cancelled.")
			return 1
		}
		a.logger.Error("command failed", "command", args[0], "error", err)
		a.failure(err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprint(w, `ledgerctl - wallet session manager for the ledger client

USAGE:
    ledgerctl [--config <file>] [command]

COMMANDS:
    (none)                              Start the interactive menu
    wallet list                         List wallets, marking the active one
    wallet current                      Print the active wallet
    wallet create <name>                Create a wallet and make it active
    wallet import <name> <dir>          Import a client .config directory
    wallet switch <name>                Make another wallet active
    wallet delete <name>                Delete a wallet (never the active one)
    vault status|encrypt|decrypt        Manage the password-protected archive
    binary status|update                Show or update the ledger client
    balance                             Show the active wallet's balance
    coins                               List the active wallet's coins
    transfer <dest> <coin>              Send a coin to an address
    split equal <coin> <n> [total]      Split into n equal parts
    split amounts <coin> <a,b,..> [total]
    split percent <coin> <p,q,..> [total]
    merge <coinA> <coinB>               Merge two coins
    merge all                           Merge every coin in the wallet
    history [n]                         Show recently executed operations
    config path|show                    Show the configuration
    version                             Print the version

Every transfer, split and merge prints the exact client command and asks
for confirmation before it runs.
`)
}

func need(args []string, n int, form string) error {
	if len(args) != n {
		return fmt.Errorf("%w: expected %s", errUsage, form)
	}
	return nil
}

func (a *app) dispatch(args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "wallet":
		return a.cmdWallet(rest)
	case "vault":
		return a.cmdVault(rest)
	case "binary":
		return a.cmdBinary(rest)
	case "balance":
		return a.query(operation.KindBalance)
	case "coins":
		return a.query(operation.KindCoins)
	case "transfer":
		if err := need(rest, 2, "transfer <dest> <coin>"); err != nil {
			return err
		}
		return a.transfer(rest[0], rest[1])
	case "split":
		if len(rest) != 3 && len(rest) != 4 {
			return fmt.Errorf("%w: expected split equal|amounts|percent <coin> <spec> [total]", errUsage)
		}
		total := ""
		if len(rest) == 4 {
			total = rest[3]
		}
		return a.split(rest[0], rest[1], rest[2], total)
	case "merge":
		if len(rest) == 1 && rest[0] == "all" {
			return a.mergeAll()
		}
		if err := need(rest, 2, "merge <coinA> <coinB> | merge all"); err != nil {
			return err
		}
		coins, err := a.mergeCoins()
		if err != nil {
			return err
		}
		return a.merge(coins, rest[0], rest[1])
	case "history":
		n := 20
		if len(rest) == 1 {
			v, err := strconv.Atoi(rest[0])
			if err != nil || v <= 0 {
				return fmt.Errorf("%w: history count must be a positive number", errUsage)
			}
			n = v
		}
		return a.history(n)
	case "config":
		return a.cmdConfig(rest)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) cmdWallet(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: expected wallet list|current|create|switch|delete|import", errUsage)
	}
	switch args[0] {
	case "list":
		return a.listWallets()
	case "current":
		return a.currentWallet()
	case "create":
		if err := need(args, 2, "wallet create <name>"); err != nil {
			return err
		}
		return a.createWallet(args[1])
	case "switch":
		if err := need(args, 2, "wallet switch <name>"); err != nil {
			return err
		}
		return a.switchWallet(args[1])
	case "delete":
		if err := need(args, 2, "wallet delete <name>"); err != nil {
			return err
		}
		return a.deleteWallet(args[1])
	case "import":
		if err := need(args, 3, "wallet import <name> <dir>"); err != nil {
			return err
		}
		return a.importWallet(args[1], args[2])
	default:
		return fmt.Errorf("%w: unknown wallet command %q", errUsage, args[0])
	}
}

func (a *app) cmdVault(args []string) error {
	if err := need(args, 1, "vault status|encrypt|decrypt"); err != nil {
		return err
	}
	switch args[0] {
	case "status":
		return a.vaultStatus()
	case "encrypt":
		return a.encryptVault()
	case "decrypt":
		return a.decryptVault()
	default:
		return fmt.Errorf("%w: unknown vault command %q", errUsage, args[0])
	}
}

func (a *app) cmdBinary(args []string) error {
	if err := need(args, 1, "binary status|update"); err != nil {
		return err
	}
	switch args[0] {
	case "status":
		return a.binaryStatus()
	case "update":
		return a.updateBinary()
	default:
		return fmt.Errorf("%w: unknown binary command %q", errUsage, args[0])
	}
}

func (a *app) cmdConfig(args []string) error {
	if err := need(args, 1, "config path|show"); err != nil {
		return err
	}
	switch args[0] {
	case "path":
		a.printf("%s\n", a.cfgPath)
		return nil
	case "show":
		return toml.NewEncoder(a.out).Encode(a.sess.Config())
	default:
		return fmt.Errorf("%w: unknown config command %q", errUsage, args[0])
	}
}
