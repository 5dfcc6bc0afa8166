package manifest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const defaultGateway = "https://ipfs.io"

// GatewayFetcher resolves ipfs:// URIs and bare content ids through an HTTP
// gateway. Plain http(s) URLs are fetched as is.
type GatewayFetcher struct {
	gateway string
	client  *http.Client
}

func NewGatewayFetcher(gateway string, client *http.Client) *GatewayFetcher {
	if gateway == "" {
		gateway = defaultGateway
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GatewayFetcher{gateway: strings.TrimRight(gateway, "/"), client: client}
}

// URL returns the HTTP location of uri.
func (g *GatewayFetcher) URL(uri string) string {
	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return uri
	case strings.HasPrefix(uri, "ipfs://"):
		path := strings.TrimPrefix(uri, "ipfs://")
		path = strings.TrimPrefix(path, "ipfs/")
		return g.gateway + "/ipfs/" + path
	default:
		return g.gateway + "/ipfs/" + strings.TrimPrefix(uri, "/")
	}
}

func (g *GatewayFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL(uri), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build manifest request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest %s: unexpected status %d", uri, resp.StatusCode)
	}
	return readLimited(resp.Body)
}
