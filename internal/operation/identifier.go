package operation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidIdentifierFormat is returned for coin and address identifiers
// that are not 0x followed by exactly 64 hex digits.
var ErrInvalidIdentifierFormat = errors.New("operation: identifier must be 0x followed by 64 hex characters")

var identifierPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// ValidateIdentifier trims s and checks it is a 256-bit hex identifier.
func ValidateIdentifier(s string) (string, error) {
	id := strings.TrimSpace(s)
	if !identifierPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifierFormat, s)
	}
	return id, nil
}

// sameIdentifier compares identifiers case-insensitively; hex digits are
// the same value in either case.
func sameIdentifier(a, b string) bool {
	return strings.EqualFold(a, b)
}
