package artifact

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrInvalidPlatform is returned for tags that are not "<os>-<arch>".
var ErrInvalidPlatform = errors.New("artifact: platform tag must be <os>-<arch>")

// Platform identifies an operating system and CPU architecture as they
// appear in artifact names, e.g. linux-amd64.
type Platform struct {
	OS   string
	Arch string
}

// HostPlatform returns the platform of the running process. Release names
// use Go's own GOOS and GOARCH spellings, e.g. linux-amd64 or darwin-arm64.
func HostPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// ParsePlatform parses "<os>-<arch>". An empty tag yields the host platform.
func ParsePlatform(tag string) (Platform, error) {
	if tag == "" {
		return HostPlatform(), nil
	}
	osName, arch, ok := strings.Cut(tag, "-")
	if !ok || osName == "" || arch == "" || strings.Contains(arch, "-") {
		return Platform{}, fmt.Errorf("%w: %q", ErrInvalidPlatform, tag)
	}
	return Platform{OS: osName, Arch: arch}, nil
}

// Windows reports whether artifacts for p carry an .exe suffix.
func (p Platform) Windows() bool {
	return p.OS == "windows"
}

func (p Platform) String() string {
	return p.OS + "-" + p.Arch
}
