package security

import (
	"os"
	"runtime"
)

// Harden prepares the process for handling wallet secrets: core dumps are
// disabled and newly created files default to owner-only permissions. It
// returns human-readable warnings for anything that could not be applied.
func Harden() []string {
	var warnings []string

	if err := disableCoreDumps(); err != nil {
		warnings = append(warnings, "could not disable core dumps: "+err.Error())
	} else if coreDumpsEnabled() {
		warnings = append(warnings, "core dumps are still enabled")
	}
	setUmask(0o077)

	if runtime.GOOS != "windows" && os.Geteuid() == 0 {
		warnings = append(warnings, "running as root; wallet files will be owned by root")
	}
	return warnings
}
