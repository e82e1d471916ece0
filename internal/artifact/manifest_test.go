package artifact

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	cases := []struct {
		name string
		path string
		body string
		want []string
	}{
		{
			name: "text",
			path: "manifest.txt",
			body: "# comment\n\nledger-1.0.0.0-linux-amd64\r\n bin/evil \nledger-1.0.0.0-linux-amd64.sha256\n",
			want: []string{"ledger-1.0.0.0-linux-amd64", "ledger-1.0.0.0-linux-amd64.sha256"},
		},
		{
			name: "json",
			path: "releases/manifest.JSON",
			body: `{"version": 1, "artifacts": ["ledger-2.0.0.0-darwin-arm64", "..\\x", " "], "channel": "stable"}`,
			want: []string{"ledger-2.0.0.0-darwin-arm64"},
		},
		{
			name: "json-empty",
			path: "manifest.json",
			body: `{"version": 1, "artifacts": []}`,
			want: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			names, err := ParseManifest(tc.path, strings.NewReader(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, names)
			for _, name := range names {
				_, err := ParseName("ledger", name)
				assert.NoError(t, err, "manifest entries are installable artifact names")
			}
		})
	}
}

func TestParseManifestRejectsInvalidJSON(t *testing.T) {
	for name, body := range map[string]string{
		"syntax":        `{"version": 1,`,
		"wrong-version": `{"version": 2, "artifacts": []}`,
		"missing-list":  `{"version": 1}`,
		"non-string":    `{"version": 1, "artifacts": [42]}`,
		"empty-name":    `{"version": 1, "artifacts": [""]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseManifest("manifest.json", strings.NewReader(body))
			assert.ErrorIs(t, err, ErrInvalidManifest)
		})
	}
}

func TestHTTPSourceJSONManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good.json":
			io.WriteString(w, `{"version": 1, "artifacts": ["ledger-1.0.0.0-linux-amd64"]}`)
		default:
			io.WriteString(w, `{"artifacts": "nope"}`)
		}
	}))
	defer srv.Close()

	src, err := NewHTTPSource(HTTPConfig{BaseURL: srv.URL, ManifestPath: "good.json", ManifestTimeout: time.Second})
	require.NoError(t, err)
	names, err := src.Manifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ledger-1.0.0.0-linux-amd64"}, names)

	bad, err := NewHTTPSource(HTTPConfig{BaseURL: srv.URL, ManifestPath: "bad.json", ManifestTimeout: time.Second})
	require.NoError(t, err)
	_, err = bad.Manifest(context.Background())
	assert.ErrorIs(t, err, ErrInvalidManifest)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)
}
