package artifact

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("1.10.0.42")
	require.NoError(t, err)
	assert.Equal(t, Version{1, 10, 0, 42}, v)
	assert.Equal(t, "1.10.0.42", v.String())

	for _, bad := range []string{"", "1.2.3", "1.2.3.4.5", "1..2.3", "a.b.c.d", "-1.0.0.0", "+1.0.0.0", "1.0.0.0 ", "1.0.0.99999999999999999999"} {
		_, err := ParseVersion(bad)
		assert.ErrorIs(t, err, ErrInvalidVersion, "input %q", bad)
	}
}

func TestVersionCompareIsNumeric(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.9.9.9", "2.0.0.0", -1},
		{"1.10.0.0", "1.9.0.0", 1},
		{"0.0.0.10", "0.0.0.9", 1},
		{"3.2.1.0", "3.2.1.0", 0},
		{"10.0.0.0", "9.99.99.99", 1},
	}
	for _, tt := range tests {
		a, b := MustParseVersion(tt.a), MustParseVersion(tt.b)
		assert.Equal(t, tt.want, a.Compare(b), "%s vs %s", tt.a, tt.b)
		assert.Equal(t, -tt.want, b.Compare(a), "%s vs %s", tt.b, tt.a)
	}
}

func TestVersionSortDiffersFromLexicographic(t *testing.T) {
	raw := []string{"1.10.0.0", "1.9.0.0", "1.2.0.0", "10.0.0.0", "2.0.0.0"}

	versions := make([]Version, len(raw))
	for i, s := range raw {
		versions[i] = MustParseVersion(s)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Less(versions[j]) })

	var got []string
	for _, v := range versions {
		got = append(got, v.String())
	}
	assert.Equal(t, []string{"1.2.0.0", "1.9.0.0", "1.10.0.0", "2.0.0.0", "10.0.0.0"}, got)
}

func TestMustParseVersionPanics(t *testing.T) {
	assert.Panics(t, func() { MustParseVersion("1.2") })
}
