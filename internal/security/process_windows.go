//go:build windows

package security

// Windows has no core dumps or umask in the Unix sense.

func disableCoreDumps() error { return nil }

func setUmask(int) int { return 0 }

func coreDumpsEnabled() bool { return false }
