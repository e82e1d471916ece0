package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxManifestBytes bounds the manifest body.
const maxManifestBytes = 1 << 20

// ErrSourceUnavailable wraps transport failures and non-200 responses.
var ErrSourceUnavailable = errors.New("artifact: release server unavailable")

// Source publishes artifacts.
type Source interface {
	// Manifest lists published artifact file names.
	Manifest(ctx context.Context) ([]string, error)

	// Open streams one artifact. The caller closes the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// HTTPConfig configures an HTTPSource.
type HTTPConfig struct {
	// BaseURL serves ManifestPath and every artifact by file name.
	BaseURL      string
	ManifestPath string

	ManifestTimeout time.Duration
	DownloadTimeout time.Duration
}

// HTTPSource fetches the manifest and artifacts over HTTP(S). Each request
// runs under its own bounded timeout.
type HTTPSource struct {
	base   *url.URL
	config HTTPConfig
	client *http.Client
}

// NewHTTPSource validates the base URL and returns a source.
func NewHTTPSource(config HTTPConfig) (*HTTPSource, error) {
	base, err := url.Parse(config.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("artifact: invalid base URL %q", config.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if config.ManifestPath == "" {
		config.ManifestPath = "manifest.txt"
	}
	if config.ManifestTimeout <= 0 {
		config.ManifestTimeout = 15 * time.Second
	}
	if config.DownloadTimeout <= 0 {
		config.DownloadTimeout = 5 * time.Minute
	}
	return &HTTPSource{
		base:   base,
		config: config,
		client: &http.Client{},
	}, nil
}

func (s *HTTPSource) resolve(name string) string {
	return s.base.ResolveReference(&url.URL{Path: name}).String()
}

// Manifest fetches and parses the artifact list (see ParseManifest).
func (s *HTTPSource) Manifest(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ManifestTimeout)
	defer cancel()

	resp, err := s.get(ctx, s.resolve(s.config.ManifestPath))
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	names, err := ParseManifest(s.config.ManifestPath, io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		if errors.Is(err, ErrInvalidManifest) {
			return nil, err
		}
		return nil, fmt.Errorf("read manifest: %w: %v", ErrSourceUnavailable, err)
	}
	return names, nil
}

// Open starts downloading name. The download timeout covers the whole
// transfer, so the returned reader fails once it elapses.
func (s *HTTPSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.DownloadTimeout)

	resp, err := s.get(ctx, s.resolve(name))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	return &cancelBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

func (s *HTTPSource) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrSourceUnavailable, resp.StatusCode, u)
	}
	return resp, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
