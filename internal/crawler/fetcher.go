package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/listing-harvester/internal/proxy"
)

// ErrFetchFailed is returned for every unsuccessful fetch, whatever the cause.
var ErrFetchFailed = errors.New("fetch failed")

const maxBodyBytes = 10 << 20

// Header values sent with every request.
const (
	UserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	AcceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	AcceptLanguage = "id-ID,id;q=0.9,en-US;q=0.8,en;q=0.7"
)

// PageFetcher retrieves the raw bytes of a page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Fetcher issues single GET requests with a fixed header set and timeout.
type Fetcher struct {
	client  *http.Client
	referer string
}

// NewFetcher creates a Fetcher. pm may be nil, in which case no proxy is used.
func NewFetcher(timeout time.Duration, referer string, pm *proxy.Manager) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if pm != nil && pm.Enabled() {
		transport.Proxy = pm.ProxyFunc
	}
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		referer: referer,
	}
}

// Fetch returns the body of a 2xx response. Anything else yields ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", AcceptHeader)
	req.Header.Set("Accept-Language", AcceptLanguage)
	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d for %s", ErrFetchFailed, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return body, nil
}
