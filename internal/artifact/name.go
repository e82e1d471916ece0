package artifact

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotArtifact is returned for file names that do not follow
// <program>-<version>-<os>-<arch>[.exe][companion].
var ErrNotArtifact = errors.New("artifact: not an artifact name")

// CompanionSuffixes mark digest and signature side-files. They share the
// primary's stem and are never made executable. Suffixes may be chained
// (".dgst.sig") and a signature may be numbered (".sig.1").
var CompanionSuffixes = []string{".sha256", ".sha512", ".dgst", ".digest", ".sig", ".asc", ".minisig"}

const (
	numberedSig = ".sig."
	exeSuffix   = ".exe"
)

// Artifact is one file of a release.
type Artifact struct {
	Name      string
	Program   string
	Version   Version
	Platform  Platform
	Exe       bool
	Companion string
}

// IsPrimary reports whether a is the executable rather than a side-file.
func (a Artifact) IsPrimary() bool {
	return a.Companion == ""
}

// ParseName parses an artifact file name for program.
func ParseName(program, name string) (Artifact, error) {
	a := Artifact{Name: name, Program: program}

	rest, ok := strings.CutPrefix(name, program+"-")
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %q", ErrNotArtifact, name)
	}
	rest, a.Companion = cutCompanion(rest)
	if stem, ok := strings.CutSuffix(rest, exeSuffix); ok {
		a.Exe = true
		rest = stem
	}

	parts := strings.Split(rest, "-")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" || strings.ContainsRune(parts[1]+parts[2], '.') {
		return Artifact{}, fmt.Errorf("%w: %q", ErrNotArtifact, name)
	}
	v, err := ParseVersion(parts[0])
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %q: %v", ErrNotArtifact, name, err)
	}
	a.Version = v
	a.Platform = Platform{OS: parts[1], Arch: parts[2]}

	if a.Exe != a.Platform.Windows() {
		return Artifact{}, fmt.Errorf("%w: %q: .exe suffix does not match platform", ErrNotArtifact, name)
	}
	return a, nil
}

// cutCompanion strips every companion suffix from the end of rest.
func cutCompanion(rest string) (stem, companion string) {
	if i := strings.LastIndex(rest, numberedSig); i >= 0 && isDigits(rest[i+len(numberedSig):]) {
		companion = rest[i:]
		rest = rest[:i]
	}
	for {
		matched := false
		for _, suffix := range CompanionSuffixes {
			if s, ok := strings.CutSuffix(rest, suffix); ok {
				companion = suffix + companion
				rest = s
				matched = true
				break
			}
		}
		if !matched {
			return rest, companion
		}
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FileName builds the primary artifact name.
func FileName(program string, v Version, p Platform) string {
	name := fmt.Sprintf("%s-%s-%s", program, v, p)
	if p.Windows() {
		name += exeSuffix
	}
	return name
}

// Release groups the files of one version for one platform.
type Release struct {
	Version    Version
	Platform   Platform
	Primary    string
	Companions []string
}

// Files lists companions first, then the primary.
func (r Release) Files() []string {
	return append(append([]string(nil), r.Companions...), r.Primary)
}

// latest groups names by version for platform p and returns the highest
// version that has a primary. Names for other programs or platforms are
// skipped, so a version is only ever ranked against its own platform.
func latest(program string, p Platform, names []string) (Release, bool) {
	releases := map[Version]*Release{}
	for _, name := range names {
		a, err := ParseName(program, name)
		if err != nil || a.Platform != p {
			continue
		}
		rel := releases[a.Version]
		if rel == nil {
			rel = &Release{Version: a.Version, Platform: p}
			releases[a.Version] = rel
		}
		if a.IsPrimary() {
			rel.Primary = name
		} else {
			rel.Companions = append(rel.Companions, name)
		}
	}

	var best *Release
	for _, rel := range releases {
		if rel.Primary == "" {
			continue
		}
		if best == nil || best.Version.Less(rel.Version) {
			best = rel
		}
	}
	if best == nil {
		return Release{}, false
	}
	return *best, true
}
