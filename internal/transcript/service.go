// Package transcript serves transcript requests: rate policy, cache lookup,
// admission, resolution, trimming and summary, then cache write.
package transcript

import (
	"context"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/admission"
	"github.com/anatolykoptev/go_transcript/internal/cache"
	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/ratelimit"
	"github.com/anatolykoptev/go_transcript/internal/resolver"
	"github.com/anatolykoptev/go_transcript/internal/summary"
)

// Resolver finds the full transcript text for a video.
type Resolver interface {
	Resolve(ctx context.Context, videoID string) (resolver.Result, error)
}

// Cache stores finished responses by request key.
type Cache interface {
	Get(ctx context.Context, key string) (cache.Entry, error)
	Put(ctx context.Context, key string, e cache.Entry) error
	Delete(ctx context.Context, key string) (bool, error)
}

// Response is the transcript operation's result.
type Response struct {
	Text    string  `json:"text"`
	Summary *string `json:"summary"`
	Source  string  `json:"source"`
	Partial bool    `json:"partial"`
	Cached  bool    `json:"cached"`
}

// Options wires a Service. Policy and Summarizer may be nil.
type Options struct {
	Resolver     Resolver
	Cache        Cache
	Gate         *admission.Gate
	QueueTimeout time.Duration
	Policy       *ratelimit.Policy
	Summarizer   *summary.Summarizer
}

// Service runs the transcript operation.
type Service struct {
	resolver     Resolver
	cache        Cache
	gate         *admission.Gate
	queueTimeout time.Duration
	policy       *ratelimit.Policy
	summarizer   *summary.Summarizer
}

// New builds a Service.
func New(opts Options) *Service {
	gate := opts.Gate
	if gate == nil {
		gate = admission.New(1)
	}
	return &Service{
		resolver:     opts.Resolver,
		cache:        opts.Cache,
		gate:         gate,
		queueTimeout: opts.QueueTimeout,
		policy:       opts.Policy,
		summarizer:   opts.Summarizer,
	}
}

// Transcript returns the trimmed transcript and optional summary for req.
// principal keys the rate policy; an empty principal is not rate limited.
func (s *Service) Transcript(ctx context.Context, principal string, req engine.TranscriptRequest) (Response, error) {
	engine.IncrTranscriptRequests()
	if s.policy != nil && principal != "" {
		if err := s.policy.Enforce(principal); err != nil {
			return Response{}, err
		}
	}
	n, err := req.Normalize()
	if err != nil {
		return Response{}, err
	}
	key := n.CacheKey()

	if s.cache != nil {
		if e, err := s.cache.Get(ctx, key); err == nil {
			return fromEntry(e, true), nil
		}
	}

	var entry cache.Entry
	err = s.gate.Do(ctx, s.queueTimeout, func(ctx context.Context) error {
		res, err := s.resolver.Resolve(context.WithoutCancel(ctx), n.VideoID)
		if err != nil {
			return err
		}
		entry = s.build(ctx, res, n)
		return nil
	})
	if err != nil {
		return Response{}, err
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, entry); err != nil {
			slog.Warn("transcript: cache write failed", slog.String("video_id", n.VideoID), slog.Any("error", err))
		}
	}
	return fromEntry(entry, false), nil
}

func (s *Service) build(ctx context.Context, res resolver.Result, n engine.Normalized) cache.Entry {
	text, partial := engine.TrimText(res.Text, n.MaxChars)
	e := cache.Entry{Text: text, Source: res.Source, Partial: partial}
	if n.Summarize {
		e.Summary = s.summarizer.Summarize(context.WithoutCancel(ctx), res.Text, n.SummaryLines)
	}
	return e
}

// Invalidate drops the cached response for req's request shape.
func (s *Service) Invalidate(ctx context.Context, req engine.TranscriptRequest) (bool, error) {
	n, err := req.Normalize()
	if err != nil {
		return false, err
	}
	if s.cache == nil {
		return false, nil
	}
	removed, err := s.cache.Delete(ctx, n.CacheKey())
	if err != nil {
		return false, err
	}
	slog.Info("transcript: cache invalidated", slog.String("video_id", n.VideoID), slog.Bool("removed", removed))
	return removed, nil
}

func fromEntry(e cache.Entry, cached bool) Response {
	r := Response{Text: e.Text, Source: e.Source, Partial: e.Partial, Cached: cached}
	if e.Summary != "" {
		summary := e.Summary
		r.Summary = &summary
	}
	return r
}
