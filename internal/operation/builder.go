// Package operation validates user input and assembles invocations of the
// ledger client for transfers, splits and merges.
//
// Builders never run anything. They return a PendingOperation that must be
// passed through Finalize, which shows the exact command line and asks the
// operator to confirm, before it may be executed.
package operation

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledgerctl/internal/prompt"
)

var (
	ErrInsufficientCoins = errors.New("operation: merging needs at least 2 coins in the wallet")
	ErrDuplicateCoin     = errors.New("operation: merge needs two different coins")
	ErrUnknownCoin       = errors.New("operation: coin is not in the wallet's coin listing")
	ErrNotConfirmed      = errors.New("operation: cancelled by operator")
)

// IsValidation reports whether err is an input error the operator can fix
// by answering the prompt again.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidIdentifierFormat,
		ErrInvalidAmount,
		ErrInvalidPartCount,
		ErrSumMismatch,
		ErrPercentageSumMismatch,
		ErrPartTooSmall,
		ErrDuplicateCoin,
		ErrUnknownCoin,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Kind names an operation.
type Kind string

const (
	KindBalance  Kind = "balance"
	KindCoins    Kind = "coins"
	KindTransfer Kind = "transfer"
	KindSplit    Kind = "split"
	KindMerge    Kind = "merge"
	KindMergeAll Kind = "merge-all"
)

// Mutating reports whether the kind changes ledger state.
func (k Kind) Mutating() bool {
	return k != KindBalance && k != KindCoins
}

// Commands maps operations to client subcommands. A verb may contain
// several words, e.g. "merge --all".
type Commands struct {
	Balance  string
	Coins    string
	Transfer string
	Split    string
	Merge    string
	MergeAll string
}

func (c Commands) verb(k Kind) []string {
	var v string
	switch k {
	case KindBalance:
		v = c.Balance
	case KindCoins:
		v = c.Coins
	case KindTransfer:
		v = c.Transfer
	case KindSplit:
		v = c.Split
	case KindMerge:
		v = c.Merge
	case KindMergeAll:
		v = c.MergeAll
	}
	if fields := strings.Fields(v); len(fields) > 0 {
		return fields
	}
	return []string{string(k)}
}

// Target is the wallet-scoped context every invocation carries.
type Target struct {
	Executable string
	Wallet     string
	ConfigPath string
	PublicRPC  bool
}

// Flags returns the trailing client flags.
func (t Target) Flags() []string {
	flags := []string{"--config", t.ConfigPath}
	if t.PublicRPC {
		flags = append(flags, "--public-rpc")
	}
	return flags
}

// PendingOperation is a validated, not yet executed client invocation.
type PendingOperation struct {
	ID     uuid.UUID
	Kind   Kind
	Target Target

	// Args is the subcommand and its positional arguments.
	Args []string

	// Coins are the participating identifiers, Amounts the split parts.
	Coins   []string
	Dest    string
	Total   decimal.Decimal
	Amounts []decimal.Decimal

	confirmed bool
}

// Argv returns the complete argument vector, without the executable.
func (p *PendingOperation) Argv() []string {
	return append(append([]string(nil), p.Args...), p.Target.Flags()...)
}

// Confirmed reports whether the operator approved a mutating operation.
// Read-only queries are always confirmed.
func (p *PendingOperation) Confirmed() bool {
	return p.confirmed || !p.Kind.Mutating()
}

// Summary renders the operation for the operator.
func (p *PendingOperation) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Operation: %s\n", p.Kind)
	fmt.Fprintf(&b, "Wallet:    %s\n", p.Target.Wallet)
	if p.Dest != "" {
		fmt.Fprintf(&b, "To:        %s\n", p.Dest)
	}
	for i, c := range p.Coins {
		fmt.Fprintf(&b, "Coin %d:    %s\n", i+1, c)
	}
	if len(p.Amounts) > 0 {
		fmt.Fprintf(&b, "Total:     %s\n", p.Total)
		for i, a := range p.Amounts {
			fmt.Fprintf(&b, "  part %3d: %s\n", i+1, a)
		}
	}
	fmt.Fprintf(&b, "Command:   %s %s\n", p.Target.Executable, strings.Join(p.Argv(), " "))
	return b.String()
}

// Finalize prints the summary to w and asks c for confirmation. The
// returned operation is the only one Confirmed reports true for.
func Finalize(op *PendingOperation, c prompt.Confirmer, w io.Writer) (*PendingOperation, error) {
	fmt.Fprintln(w)
	fmt.Fprint(w, op.Summary())
	fmt.Fprintln(w)

	ok, err := c.Confirm(fmt.Sprintf("Execute this %s?", op.Kind))
	if err != nil {
		return nil, fmt.Errorf("confirm %s: %w", op.Kind, err)
	}
	if !ok {
		return nil, ErrNotConfirmed
	}
	final := *op
	final.confirmed = true
	return &final, nil
}

// Builder assembles operations for one target.
type Builder struct {
	commands  Commands
	precision int32
	target    Target
}

// NewBuilder creates a Builder. precision is the number of fractional
// digits used for computed split parts.
func NewBuilder(commands Commands, precision int, target Target) *Builder {
	return &Builder{commands: commands, precision: int32(precision), target: target}
}

func (b *Builder) pending(kind Kind, args ...string) *PendingOperation {
	return &PendingOperation{
		ID:     uuid.New(),
		Kind:   kind,
		Target: b.target,
		Args:   append(b.commands.verb(kind), args...),
	}
}

// Query builds a read-only balance or coin listing request.
func (b *Builder) Query(kind Kind) (*PendingOperation, error) {
	if kind.Mutating() {
		return nil, fmt.Errorf("operation: %s is not a query", kind)
	}
	return b.pending(kind), nil
}

// Transfer sends coin to dest.
func (b *Builder) Transfer(dest, coin string) (*PendingOperation, error) {
	dest, err := ValidateIdentifier(dest)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	coin, err = ValidateIdentifier(coin)
	if err != nil {
		return nil, fmt.Errorf("coin: %w", err)
	}

	op := b.pending(KindTransfer, dest, coin)
	op.Dest = dest
	op.Coins = []string{coin}
	return op, nil
}

func (b *Builder) split(coin string, total decimal.Decimal, parts []decimal.Decimal) *PendingOperation {
	args := []string{coin}
	for _, p := range parts {
		args = append(args, p.String())
	}
	op := b.pending(KindSplit, args...)
	op.Coins = []string{coin}
	op.Total = total
	op.Amounts = parts
	return op
}

// SplitEqual splits coin into n equal parts of total.
func (b *Builder) SplitEqual(coin string, total decimal.Decimal, n int) (*PendingOperation, error) {
	coin, err := ValidateIdentifier(coin)
	if err != nil {
		return nil, err
	}
	parts, err := SplitEqual(total, n, b.precision)
	if err != nil {
		return nil, err
	}
	return b.split(coin, total, parts), nil
}

// SplitAmounts splits coin into the given amounts, which must add up to total.
func (b *Builder) SplitAmounts(coin string, total decimal.Decimal, amounts []decimal.Decimal) (*PendingOperation, error) {
	coin, err := ValidateIdentifier(coin)
	if err != nil {
		return nil, err
	}
	parts, err := SplitAmounts(total, amounts)
	if err != nil {
		return nil, err
	}
	return b.split(coin, total, parts), nil
}

// SplitPercentages splits coin by percentages of total.
func (b *Builder) SplitPercentages(coin string, total decimal.Decimal, pcts []decimal.Decimal) (*PendingOperation, error) {
	coin, err := ValidateIdentifier(coin)
	if err != nil {
		return nil, err
	}
	parts, err := SplitPercentages(total, pcts, b.precision)
	if err != nil {
		return nil, err
	}
	return b.split(coin, total, parts), nil
}

// Merge joins two coins. available is the wallet's current coin listing.
func (b *Builder) Merge(first, second string, available []Coin) (*PendingOperation, error) {
	if err := Mergeable(available); err != nil {
		return nil, err
	}
	first, err := ValidateIdentifier(first)
	if err != nil {
		return nil, fmt.Errorf("first coin: %w", err)
	}
	second, err = ValidateIdentifier(second)
	if err != nil {
		return nil, fmt.Errorf("second coin: %w", err)
	}
	if sameIdentifier(first, second) {
		return nil, ErrDuplicateCoin
	}
	for _, id := range []string{first, second} {
		if _, ok := FindCoin(available, id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCoin, id)
		}
	}

	op := b.pending(KindMerge, first, second)
	op.Coins = []string{first, second}
	return op, nil
}

// Mergeable fails with ErrInsufficientCoins unless the listing holds at
// least two coins. Callers check it before asking which coins to merge.
func Mergeable(available []Coin) error {
	if len(available) < 2 {
		return fmt.Errorf("%w: found %d", ErrInsufficientCoins, len(available))
	}
	return nil
}

// MergeAll joins every coin in the wallet.
func (b *Builder) MergeAll(available []Coin) (*PendingOperation, error) {
	if err := Mergeable(available); err != nil {
		return nil, err
	}
	op := b.pending(KindMergeAll)
	for _, c := range available {
		op.Coins = append(op.Coins, c.ID)
	}
	return op, nil
}
