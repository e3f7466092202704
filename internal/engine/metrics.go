package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the service.
var metrics struct {
	TranscriptRequests  atomic.Int64
	CacheHits           atomic.Int64
	CacheMisses         atomic.Int64
	CacheFallbackWrites atomic.Int64
	CacheStoreErrors    atomic.Int64
	ResolvedCaptions    atomic.Int64
	ResolvedExtractor   atomic.Int64
	ResolvedSpeech      atomic.Int64
	ResolutionFailures  atomic.Int64
	CaptionFetches      atomic.Int64
	CaptionFetchErrors  atomic.Int64
	SummaryCalls        atomic.Int64
	SummaryErrors       atomic.Int64
	RateLimited         atomic.Int64
	QueueFull           atomic.Int64
	JWKSFetches         atomic.Int64
	AuthFailures        atomic.Int64
}

var (
	gaugesMu sync.RWMutex
	gauges   = map[string]func() int64{}
)

// RegisterGauge exposes a live value under name in FormatMetrics.
func RegisterGauge(name string, fn func() int64) {
	gaugesMu.Lock()
	gauges[name] = fn
	gaugesMu.Unlock()
}

// GetMetrics returns a snapshot of all counters and gauges.
func GetMetrics() map[string]int64 {
	m := map[string]int64{
		"transcript_requests":   metrics.TranscriptRequests.Load(),
		"cache_hits":            metrics.CacheHits.Load(),
		"cache_misses":          metrics.CacheMisses.Load(),
		"cache_fallback_writes": metrics.CacheFallbackWrites.Load(),
		"cache_store_errors":    metrics.CacheStoreErrors.Load(),
		"resolved_captions":     metrics.ResolvedCaptions.Load(),
		"resolved_extractor":    metrics.ResolvedExtractor.Load(),
		"resolved_speech":       metrics.ResolvedSpeech.Load(),
		"resolution_failures":   metrics.ResolutionFailures.Load(),
		"caption_fetches":       metrics.CaptionFetches.Load(),
		"caption_fetch_errors":  metrics.CaptionFetchErrors.Load(),
		"summary_calls":         metrics.SummaryCalls.Load(),
		"summary_errors":        metrics.SummaryErrors.Load(),
		"rate_limited":          metrics.RateLimited.Load(),
		"queue_full":            metrics.QueueFull.Load(),
		"jwks_fetches":          metrics.JWKSFetches.Load(),
		"auth_failures":         metrics.AuthFailures.Load(),
	}
	gaugesMu.RLock()
	for name, fn := range gauges {
		m[name] = fn()
	}
	gaugesMu.RUnlock()
	return m
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

func IncrTranscriptRequests() { metrics.TranscriptRequests.Add(1) }
func IncrCacheHit()           { metrics.CacheHits.Add(1) }
func IncrCacheMiss()          { metrics.CacheMisses.Add(1) }
func IncrCacheFallbackWrite() { metrics.CacheFallbackWrites.Add(1) }
func IncrCacheStoreError()    { metrics.CacheStoreErrors.Add(1) }
func IncrResolutionFailure()  { metrics.ResolutionFailures.Add(1) }
func IncrCaptionFetch()       { metrics.CaptionFetches.Add(1) }
func IncrCaptionFetchError()  { metrics.CaptionFetchErrors.Add(1) }
func IncrSummaryCall()        { metrics.SummaryCalls.Add(1) }
func IncrSummaryError()       { metrics.SummaryErrors.Add(1) }
func IncrRateLimited()        { metrics.RateLimited.Add(1) }
func IncrQueueFull()          { metrics.QueueFull.Add(1) }
func IncrJWKSFetch()          { metrics.JWKSFetches.Add(1) }
func IncrAuthFailure()        { metrics.AuthFailures.Add(1) }

// IncrResolved counts a successful resolution by the strategy that produced it.
func IncrResolved(strategy string) {
	switch strategy {
	case "captions":
		metrics.ResolvedCaptions.Add(1)
	case "extractor":
		metrics.ResolvedExtractor.Add(1)
	case "speech":
		metrics.ResolvedSpeech.Add(1)
	}
}

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > threshold {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
