// Package sources talks to the upstream collaborators: the caption endpoints,
// the yt-dlp media extractor and the speech-to-text API.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"golang.org/x/time/rate"
)

// maxPayloadBytes caps any caption or listing body read into memory.
const maxPayloadBytes = 4 << 20

// Fetcher retrieves a URL body.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is a paced, retrying net/http fetcher.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	retry   engine.RetryConfig
	ua      string
}

// NewHTTPFetcher builds a fetcher allowing rps requests per second (burst 2).
// rps <= 0 disables pacing.
func NewHTTPFetcher(client *http.Client, rps float64, userAgent string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), 2)
	}
	return &HTTPFetcher{client: client, limiter: lim, retry: engine.CaptionRetryConfig, ua: userAgent}
}

// Get fetches url. Non-2xx responses surface as *engine.StatusError.
func (f *HTTPFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	engine.IncrCaptionFetch()

	resp, err := engine.RetryHTTP(ctx, f.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		ua := f.ua
		if ua == "" {
			ua = engine.RandomUserAgent()
		}
		req.Header.Set("User-Agent", ua)
		req.Header.Set("Accept-Language", "ko,en;q=0.9")
		return f.client.Do(req)
	})
	if err != nil {
		engine.IncrCaptionFetchError()
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if err := engine.CheckStatus(resp.StatusCode); err != nil {
		engine.IncrCaptionFetchError()
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		engine.IncrCaptionFetchError()
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// BrowserFetcher fetches through the Chrome-fingerprinted stealth client.
type BrowserFetcher struct {
	bc    *engine.BrowserClient
	retry engine.RetryConfig
}

// NewBrowserFetcher wraps bc.
func NewBrowserFetcher(bc *engine.BrowserClient) *BrowserFetcher {
	return &BrowserFetcher{bc: bc, retry: engine.CaptionRetryConfig}
}

// Get fetches url with Chrome headers.
func (f *BrowserFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	engine.IncrCaptionFetch()
	headers := engine.ChromeHeaders()
	headers["accept"] = "*/*"
	headers["accept-language"] = "ko,en;q=0.9"

	data, err := engine.RetryDo(ctx, f.retry, func() ([]byte, error) {
		d, _, status, err := f.bc.Do(http.MethodGet, url, headers, nil)
		if err != nil {
			return nil, err
		}
		if err := engine.CheckStatus(status); err != nil {
			return nil, err
		}
		return d, nil
	})
	if err != nil {
		engine.IncrCaptionFetchError()
		return nil, fmt.Errorf("browser fetch: %w", err)
	}
	return data, nil
}
