package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Open connects the durable store named by rawURL: postgres://, sqlite://
// (or file:), redis://. An empty URL returns a nil store.
func Open(ctx context.Context, rawURL string, ttl time.Duration) (Store, error) {
	rawURL = strings.TrimSpace(rawURL)
	switch {
	case rawURL == "":
		return nil, nil
	case strings.HasPrefix(rawURL, "postgres://"), strings.HasPrefix(rawURL, "postgresql://"):
		return wrap(OpenPostgres(ctx, rawURL))
	case strings.HasPrefix(rawURL, "sqlite://"):
		return wrap(OpenSQLite(ctx, strings.TrimPrefix(rawURL, "sqlite://")))
	case strings.HasPrefix(rawURL, "file:"):
		return wrap(OpenSQLite(ctx, rawURL))
	case strings.HasPrefix(rawURL, "redis://"), strings.HasPrefix(rawURL, "rediss://"):
		return wrap(OpenRedis(ctx, rawURL, ttl))
	}
	return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", schemeOf(rawURL))
}

func schemeOf(rawURL string) string {
	if i := strings.Index(rawURL, ":"); i > 0 {
		return rawURL[:i]
	}
	return rawURL
}

// wrap keeps a failed open from yielding a non-nil Store holding a nil pointer.
func wrap[T Store](s T, err error) (Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
