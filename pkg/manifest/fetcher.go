// Package manifest loads off-chain airdrop distribution manifests.
package manifest

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/withObsrvr/asset-graph-indexer/pkg/metrics"
)

// MaxSize bounds the bytes read from any manifest source.
const MaxSize = 32 << 20

// Fetcher returns the raw bytes behind a distribution URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Router picks a fetcher by URI scheme. Bare content ids are treated as ipfs.
type Router struct {
	IPFS    Fetcher
	S3      Fetcher
	File    Fetcher
	Timeout time.Duration
}

// Config configures the default Router.
type Config struct {
	IPFSGateway string
	S3Region    string
	S3Endpoint  string
	Timeout     time.Duration
}

// NewRouter builds a router with the HTTP gateway, file and, when a region is
// configured, S3 fetchers.
func NewRouter(ctx context.Context, cfg Config) (*Router, error) {
	r := &Router{
		IPFS:    NewGatewayFetcher(cfg.IPFSGateway, nil),
		File:    FileFetcher{},
		Timeout: cfg.Timeout,
	}
	if cfg.S3Region != "" {
		s3f, err := NewS3Fetcher(ctx, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return nil, err
		}
		r.S3 = s3f
	}
	return r, nil
}

// Scheme returns the routing scheme of uri.
func Scheme(uri string) string {
	if i := strings.Index(uri, "://"); i > 0 {
		return strings.ToLower(uri[:i])
	}
	return "ipfs"
}

func (r *Router) Fetch(ctx context.Context, uri string) ([]byte, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("empty manifest uri")
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	scheme := Scheme(uri)
	var f Fetcher
	switch scheme {
	case "ipfs", "http", "https":
		f = r.IPFS
	case "s3":
		f = r.S3
	case "file":
		f = r.File
	}
	if f == nil {
		metrics.Indexer().ObserveManifest(scheme, "unsupported")
		return nil, fmt.Errorf("no fetcher for scheme %q", scheme)
	}

	data, err := f.Fetch(ctx, uri)
	if err != nil {
		metrics.Indexer().ObserveManifest(scheme, "error")
		return nil, err
	}
	metrics.Indexer().ObserveManifest(scheme, "ok")
	return data, nil
}

// FileFetcher reads file:// URIs from the local filesystem.
type FileFetcher struct{}

func (FileFetcher) Fetch(_ context.Context, uri string) ([]byte, error) {
	path := strings.TrimPrefix(uri, "file://")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", path, err)
	}
	defer f.Close()
	return readLimited(f)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if len(data) > MaxSize {
		return nil, fmt.Errorf("manifest exceeds %d bytes", MaxSize)
	}
	return data, nil
}
