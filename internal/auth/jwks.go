// Package auth verifies identity-provider ID tokens against a cached JWKS
// and authorizes callers acting on a user id.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/cenkalti/backoff/v5"
	"github.com/go-jose/go-jose/v4"
	"resty.dev/v3"
)

// Key cache defaults.
const (
	DefaultJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	DefaultKeyTTL  = time.Hour
	MinKeyTTL      = time.Minute
)

var maxAgeRe = regexp.MustCompile(`max-age=(\d+)`)

// KeyCache holds the provider's signing keys by kid. The set is Fresh until
// its expiry and Stale after; a stale or forced read refetches under the lock.
type KeyCache struct {
	url        string
	client     *resty.Client
	defaultTTL time.Duration
	now        func() time.Time

	mu        sync.Mutex
	keys      map[string]any
	expiresAt time.Time

	fetches atomic.Int64
}

// NewKeyCache builds a cache for url. hc may be nil.
func NewKeyCache(url string, timeout, defaultTTL time.Duration, hc *http.Client) *KeyCache {
	if url == "" {
		url = DefaultJWKSURL
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultKeyTTL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	var client *resty.Client
	if hc != nil {
		client = resty.NewWithClient(hc)
	} else {
		client = resty.New()
	}
	client.SetTimeout(timeout).SetHeader("User-Agent", engine.UserAgentBot)
	return &KeyCache{
		url:        url,
		client:     client,
		defaultTTL: max(defaultTTL, MinKeyTTL),
		now:        time.Now,
	}
}

// Fetches reports how many network fetches the cache has made.
func (c *KeyCache) Fetches() int64 { return c.fetches.Load() }

// Key returns the key for kid, forcing one refresh when the current set lacks it.
func (c *KeyCache) Key(ctx context.Context, kid string) (any, error) {
	keys, err := c.Keys(ctx, false)
	if err != nil {
		return nil, err
	}
	if k, ok := keys[kid]; ok {
		return k, nil
	}
	keys, err = c.Keys(ctx, true)
	if err != nil {
		return nil, err
	}
	if k, ok := keys[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("jwks: unknown kid %q", kid)
}

// Keys returns the current key set, refetching when stale or forced.
// Concurrent callers wait on the same fetch.
func (c *KeyCache) Keys(ctx context.Context, force bool) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && len(c.keys) > 0 && c.now().Before(c.expiresAt) {
		return c.keys, nil
	}
	keys, ttl, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.keys = keys
	c.expiresAt = c.now().Add(ttl)
	return c.keys, nil
}

type jwksDocument struct {
	Keys []json.RawMessage `json:"keys"`
}

type jwksResponse struct {
	body   []byte
	header http.Header
}

func (c *KeyCache) fetch(ctx context.Context) (map[string]any, time.Duration, error) {
	c.fetches.Add(1)
	engine.IncrJWKSFetch()

	operation := func() (jwksResponse, error) {
		resp, err := c.client.R().SetContext(ctx).Get(c.url)
		if err != nil {
			return jwksResponse{}, err
		}
		code := resp.StatusCode()
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return jwksResponse{}, backoff.Permanent(fmt.Errorf("jwks: status %d", code))
		}
		if err := engine.CheckStatus(code); err != nil {
			return jwksResponse{}, err
		}
		return jwksResponse{body: resp.Bytes(), header: resp.Header()}, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(3),
		backoff.WithMaxElapsedTime(15*time.Second),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("jwks fetch: %w", err)
	}

	keys, err := publicKeys(resp.body)
	if err != nil {
		return nil, 0, err
	}
	return keys, c.ttlFrom(resp.header.Get("Cache-Control")), nil
}

func (c *KeyCache) ttlFrom(cacheControl string) time.Duration {
	ttl := c.defaultTTL
	if m := maxAgeRe.FindStringSubmatch(cacheControl); m != nil {
		if secs, err := strconv.Atoi(m[1]); err == nil {
			ttl = time.Duration(secs) * time.Second
		}
	}
	return max(ttl, MinKeyTTL)
}

// publicKeys decodes a JWKS document into public keys by kid. An entry that
// fails to decode or holds no public key under a kid is skipped on its own.
func publicKeys(body []byte) (map[string]any, error) {
	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("jwks decode: %w", err)
	}
	keys := make(map[string]any, len(doc.Keys))
	for _, raw := range doc.Keys {
		var k jose.JSONWebKey
		if err := k.UnmarshalJSON(raw); err != nil {
			slog.Debug("jwks: skipping key", slog.Any("error", err))
			continue
		}
		if k.KeyID == "" || !k.IsPublic() || !k.Valid() {
			slog.Debug("jwks: skipping key", slog.String("kid", k.KeyID))
			continue
		}
		keys[k.KeyID] = k.Key
	}
	if len(keys) == 0 {
		return nil, errors.New("jwks: no usable keys")
	}
	return keys, nil
}
