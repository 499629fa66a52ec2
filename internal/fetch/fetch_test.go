package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/cloudgraph/internal/model"
)

type stubFetcher struct {
	data []byte
	seen string
}

func (s *stubFetcher) Fetch(_ context.Context, location string) ([]byte, error) {
	s.seen = location
	return s.data, nil
}

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.zip":
			_, _ = w.Write([]byte("PK-bytes"))
		default:
			http.Error(w, "nope", http.StatusForbidden)
		}
	}))
	defer srv.Close()

	f := &HTTPFetcher{Client: srv.Client()}

	t.Run("downloads body", func(t *testing.T) {
		data, err := f.Fetch(context.Background(), srv.URL+"/ok.zip")
		require.NoError(t, err)
		assert.Equal(t, "PK-bytes", string(data))
	})

	t.Run("non-200 is source unavailable", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/expired.zip")
		assert.ErrorIs(t, err, model.ErrSourceUnavailable)
		assert.ErrorContains(t, err, "403")
	})

	t.Run("size limit", func(t *testing.T) {
		small := &HTTPFetcher{Client: srv.Client(), MaxBytes: 3}
		_, err := small.Fetch(context.Background(), srv.URL+"/ok.zip")
		assert.ErrorIs(t, err, model.ErrSourceUnavailable)
	})
}

func TestFileFetcher(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, os.WriteFile(path, []byte("zip"), 0o644))

	data, err := FileFetcher{}.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "zip", string(data))

	data, err = FileFetcher{}.Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "zip", string(data))

	_, err = FileFetcher{}.Fetch(context.Background(), path+".missing")
	assert.True(t, errors.Is(err, model.ErrSourceUnavailable))
}

func TestRouterDispatch(t *testing.T) {
	t.Parallel()

	httpStub := &stubFetcher{data: []byte("http")}
	s3Stub := &stubFetcher{data: []byte("s3")}
	fileStub := &stubFetcher{data: []byte("file")}
	r := &Router{HTTP: httpStub, S3: s3Stub, File: fileStub}

	tests := []struct {
		location string
		want     string
	}{
		{"https://bucket.s3.amazonaws.com/pkg.zip?X-Amz-Signature=abc", "http"},
		{"HTTP://example.com/pkg.zip", "http"},
		{"s3://deploys/orders.zip", "s3"},
		{"/tmp/orders.zip", "file"},
		{"file:///tmp/orders.zip", "file"},
	}
	for _, tt := range tests {
		data, err := r.Fetch(context.Background(), tt.location)
		require.NoError(t, err, tt.location)
		assert.Equal(t, tt.want, string(data), tt.location)
	}

	_, err := r.Fetch(context.Background(), "ftp://example.com/pkg.zip")
	assert.ErrorIs(t, err, model.ErrSourceUnavailable)

	noS3 := NewRouter(nil)
	_, err = noS3.Fetch(context.Background(), "s3://deploys/orders.zip")
	assert.ErrorIs(t, err, model.ErrSourceUnavailable)
}

func TestSplitS3Location(t *testing.T) {
	t.Parallel()

	bucket, key, err := splitS3Location("s3://deploys/functions/orders.zip")
	require.NoError(t, err)
	assert.Equal(t, "deploys", bucket)
	assert.Equal(t, "functions/orders.zip", key)

	_, _, err = splitS3Location("s3://deploys")
	assert.Error(t, err)
}

func TestNewS3FetcherRequiresEndpoint(t *testing.T) {
	t.Parallel()

	_, err := NewS3Fetcher(S3Config{})
	assert.Error(t, err)

	f, err := NewS3Fetcher(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.NotNil(t, f)
}

func s3Server(t *testing.T, objects map[string][]byte) *httptest.Server {
	t.Helper()
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Format(http.TimeFormat)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("ETag", `"0123456789abcdef0123456789abcdef"`)
		w.Header().Set("Last-Modified", modified)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestS3Fetcher(t *testing.T, srv *httptest.Server) *S3Fetcher {
	t.Helper()
	f, err := NewS3Fetcher(S3Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		Region:    "us-east-1",
		AccessKey: "access",
		SecretKey: "secret",
		UseSSL:    false,
	})
	require.NoError(t, err)
	return f
}

func TestS3FetcherFetch(t *testing.T) {
	t.Parallel()

	pkg := []byte("PK\x03\x04 orders package")
	srv := s3Server(t, map[string][]byte{"/deploys/functions/orders.zip": pkg})
	f := newTestS3Fetcher(t, srv)
	ctx := context.Background()

	data, err := f.Fetch(ctx, "s3://deploys/functions/orders.zip")
	require.NoError(t, err)
	assert.Equal(t, pkg, data)

	_, err = f.Fetch(ctx, "s3://deploys/functions/missing.zip")
	assert.ErrorIs(t, err, model.ErrSourceUnavailable)

	_, err = f.Fetch(ctx, "s3://deploys")
	assert.ErrorIs(t, err, model.ErrSourceUnavailable)
}

func TestS3FetcherSizeCap(t *testing.T) {
	t.Parallel()

	srv := s3Server(t, map[string][]byte{"/deploys/big.zip": []byte("0123456789")})
	f := newTestS3Fetcher(t, srv)
	f.maxBytes = 4

	_, err := f.Fetch(context.Background(), "s3://deploys/big.zip")
	assert.ErrorIs(t, err, model.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "exceeds 4 bytes")

	f.maxBytes = 10
	data, err := f.Fetch(context.Background(), "s3://deploys/big.zip")
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), data)
}
