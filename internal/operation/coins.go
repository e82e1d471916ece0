package operation

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Coin is one entry of the client's coin listing.
type Coin struct {
	ID string

	// Amount is valid when HasAmount is set.
	Amount    decimal.Decimal
	HasAmount bool
}

var (
	coinPattern   = regexp.MustCompile(`\b0x[0-9a-fA-F]{64}\b`)
	amountPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// ParseCoins extracts coins from free-form client output. Every distinct
// identifier is returned once, in order of first appearance. A decimal
// number on the same line is taken as that coin's amount.
func ParseCoins(output string) []Coin {
	var coins []Coin
	seen := map[string]bool{}

	for _, line := range strings.Split(output, "\n") {
		ids := coinPattern.FindAllString(line, -1)
		if len(ids) == 0 {
			continue
		}

		amount, hasAmount := lineAmount(coinPattern.ReplaceAllString(line, " "))
		for _, id := range ids {
			key := strings.ToLower(id)
			if seen[key] {
				continue
			}
			seen[key] = true
			c := Coin{ID: id}
			// An amount is only unambiguous when the line names one coin.
			if hasAmount && len(ids) == 1 {
				c.Amount, c.HasAmount = amount, true
			}
			coins = append(coins, c)
		}
	}
	return coins
}

func lineAmount(line string) (decimal.Decimal, bool) {
	for _, field := range strings.Fields(line) {
		field = strings.Trim(field, ",;:()[]{}|\"'")
		if !amountPattern.MatchString(field) {
			continue
		}
		if d, err := decimal.NewFromString(field); err == nil {
			return d, true
		}
	}
	return decimal.Decimal{}, false
}

// FindCoin returns the coin with identifier id.
func FindCoin(coins []Coin, id string) (Coin, bool) {
	for _, c := range coins {
		if sameIdentifier(c.ID, id) {
			return c, true
		}
	}
	return Coin{}, false
}
