package engine

import (
	"log/slog"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
)

// Re-export stealth types and functions for engine consumers.
type BrowserClient = stealth.BrowserClient

func ChromeHeaders() map[string]string { return stealth.ChromeHeaders() }
func RandomUserAgent() string          { return stealth.RandomUserAgent() }

// NewBrowserClient builds a Chrome-fingerprinted client, routed through a
// Webshare proxy pool when webshareKey is set. A pool failure degrades to a
// direct client.
func NewBrowserClient(timeoutSec int, webshareKey string) (*BrowserClient, error) {
	opts := []stealth.ClientOption{stealth.WithTimeout(timeoutSec)}

	if webshareKey != "" {
		pool, err := proxypool.NewWebshare(webshareKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}

	return stealth.NewClient(opts...)
}
