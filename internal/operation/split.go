package operation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Part count bounds. An equal split needs at least MinParts; an amount or
// percentage list may hold a single entry.
const (
	MinParts     = 2
	MinListParts = 1
	MaxParts     = 100
)

var (
	ErrInvalidAmount         = errors.New("operation: amount must be a positive decimal number")
	ErrInvalidPartCount      = fmt.Errorf("operation: a split needs at most %d parts", MaxParts)
	ErrSumMismatch           = errors.New("operation: amounts do not add up to the coin total")
	ErrPercentageSumMismatch = errors.New("operation: percentages do not add up to 100")
	ErrPartTooSmall          = errors.New("operation: a computed part rounds to zero at the configured precision")
)

// Tolerance is the absolute slack allowed when checking sums.
var Tolerance = decimal.New(1, -12)

var hundred = decimal.NewFromInt(100)

// ParseAmount parses a positive decimal.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// ParseAmountList parses a comma-separated list of positive decimals.
func ParseAmountList(s string) ([]decimal.Decimal, error) {
	fields := strings.Split(s, ",")
	if len(fields) > MaxParts {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPartCount, len(fields))
	}
	out := make([]decimal.Decimal, 0, len(fields))
	for _, f := range fields {
		d, err := ParseAmount(f)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func checkParts(n, least int) error {
	if n < least || n > MaxParts {
		return fmt.Errorf("%w: got %d, want %d to %d", ErrInvalidPartCount, n, least, MaxParts)
	}
	return nil
}

func within(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// absorb returns parts with a last element equal to total minus the sum
// of the others, so the result always adds up to total exactly.
func absorb(total decimal.Decimal, head []decimal.Decimal) ([]decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range head {
		if !p.IsPositive() {
			return nil, ErrPartTooSmall
		}
		sum = sum.Add(p)
	}
	last := total.Sub(sum)
	if !last.IsPositive() {
		return nil, ErrPartTooSmall
	}
	return append(head, last), nil
}

// SplitEqual divides total into n parts. The first n-1 parts are total/n
// truncated to precision fractional digits and the last absorbs the rest.
func SplitEqual(total decimal.Decimal, n int, precision int32) ([]decimal.Decimal, error) {
	if err := checkParts(n, MinParts); err != nil {
		return nil, err
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: total %s", ErrInvalidAmount, total)
	}

	base, _ := total.QuoRem(decimal.NewFromInt(int64(n)), precision)
	head := make([]decimal.Decimal, n-1)
	for i := range head {
		head[i] = base
	}
	return absorb(total, head)
}

// SplitAmounts checks that amounts add up to total within Tolerance and
// returns them unchanged.
func SplitAmounts(total decimal.Decimal, amounts []decimal.Decimal) ([]decimal.Decimal, error) {
	if err := checkParts(len(amounts), MinListParts); err != nil {
		return nil, err
	}
	sum := decimal.Zero
	for _, a := range amounts {
		if !a.IsPositive() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, a)
		}
		sum = sum.Add(a)
	}
	if !within(sum, total) {
		return nil, fmt.Errorf("%w: sum %s, total %s", ErrSumMismatch, sum, total)
	}
	return append([]decimal.Decimal(nil), amounts...), nil
}

// SplitPercentages converts percentages of total into amounts. All but the
// last are total*pct/100 truncated to precision; the last absorbs the rest.
func SplitPercentages(total decimal.Decimal, pcts []decimal.Decimal, precision int32) ([]decimal.Decimal, error) {
	if err := checkParts(len(pcts), MinListParts); err != nil {
		return nil, err
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: total %s", ErrInvalidAmount, total)
	}

	sum := decimal.Zero
	for _, p := range pcts {
		if !p.IsPositive() {
			return nil, fmt.Errorf("%w: percentage %s", ErrInvalidAmount, p)
		}
		sum = sum.Add(p)
	}
	if !within(sum, hundred) {
		return nil, fmt.Errorf("%w: sum %s", ErrPercentageSumMismatch, sum)
	}

	head := make([]decimal.Decimal, len(pcts)-1)
	for i, p := range pcts[:len(pcts)-1] {
		head[i] = total.Mul(p).Shift(-2).Truncate(precision)
	}
	return absorb(total, head)
}

// Sum adds parts.
func Sum(parts []decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, parts...)
}
