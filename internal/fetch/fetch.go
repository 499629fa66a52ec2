// Package fetch retrieves function deployment packages by location.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/phobologic/cloudgraph/internal/model"
)

// DefaultMaxBytes caps a single package download (deployment packages are
// limited to 250 MB unzipped; zipped uploads are far smaller).
const DefaultMaxBytes = 256 << 20

// Fetcher returns the raw bytes of a package.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Router dispatches on the location scheme: http(s) to HTTP, s3 to S3, and
// file or bare paths to the local filesystem.
type Router struct {
	HTTP Fetcher
	S3   Fetcher
	File Fetcher
}

// NewRouter returns a Router with HTTP and file fetchers. s3 may be nil.
func NewRouter(s3 Fetcher) *Router {
	return &Router{
		HTTP: &HTTPFetcher{Client: http.DefaultClient},
		S3:   s3,
		File: FileFetcher{},
	}
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: package location %q: %v", model.ErrSourceUnavailable, location, err)
	}
	var f Fetcher
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		f = r.HTTP
	case "s3":
		f = r.S3
	case "", "file":
		f = r.File
	}
	if f == nil {
		return nil, fmt.Errorf("%w: no fetcher for package location %q", model.ErrSourceUnavailable, location)
	}
	return f.Fetch(ctx, location)
}

// HTTPFetcher downloads packages from pre-signed URLs.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

// Fetch implements Fetcher.
func (h *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building package request: %v", model.ErrSourceUnavailable, err)
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: downloading package: %v", model.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: package download failed with status: %s", model.ErrSourceUnavailable, resp.Status)
	}
	return readLimited(resp.Body, h.MaxBytes)
}

// FileFetcher reads packages from local paths or file:// URLs.
type FileFetcher struct{}

// Fetch implements Fetcher.
func (FileFetcher) Fetch(_ context.Context, location string) ([]byte, error) {
	path := strings.TrimPrefix(location, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading package: %v", model.ErrSourceUnavailable, err)
	}
	return data, nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		max = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading package: %v", model.ErrSourceUnavailable, err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: package exceeds %d bytes", model.ErrSourceUnavailable, max)
	}
	return data, nil
}
