// Package security holds the file and memory hygiene ledgerctl relies on
// while wallet secrets are in play: atomic owner-only writes, advisory locks
// between ledgerctl processes, archive path checks, password throttling,
// process hardening and wiping of key material.
package security

import (
	"crypto/subtle"
	"runtime"
)

// Wipe zeroes data in place.
func Wipe(data []byte) {
	clear(data)
	runtime.KeepAlive(data)
}

// ConstantTimeCompare reports whether a and b are equal without leaking
// the position of the first difference.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GuardedExec runs fn with key and wipes key afterwards.
func GuardedExec(key []byte, fn func([]byte) error) error {
	defer Wipe(key)
	return fn(key)
}
