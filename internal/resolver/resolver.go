// Package resolver runs the transcript cascade: published captions, then the
// media extractor's subtitle listings, then speech-to-text over the audio.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anatolykoptev/go_transcript/internal/captions"
	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/sources"
)

// Source tags recorded with every resolved transcript.
const (
	SourceCaptions = "captions"
	SourceSpeech   = "speech-model"
)

// ErrNoTranscript marks a step that found nothing usable. The cascade moves on.
var ErrNoTranscript = errors.New("no transcript")

// CaptionSource lists and downloads published caption tracks.
type CaptionSource interface {
	ListTracks(ctx context.Context, videoID string) ([]captions.Track, error)
	FetchTrack(ctx context.Context, videoID string, track captions.Track, format captions.Format) ([]byte, error)
}

// Extractor reads video metadata and downloads audio.
type Extractor interface {
	Info(ctx context.Context, videoID, profile string) (*sources.VideoInfo, error)
	DownloadAudio(ctx context.Context, videoID, dir, profile string) (string, error)
}

// Transcriber converts an audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Result is a resolved transcript before trimming.
type Result struct {
	Text     string
	Source   string
	Strategy string
}

// Strategy is one step of the cascade.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, videoID string) (Result, error)
}

// Config wires the collaborators. Speech may be nil when no API key is set.
type Config struct {
	Captions       CaptionSource
	Extractor      Extractor
	Fetcher        sources.Fetcher
	Speech         Transcriber
	Preference     captions.Preference
	BrowserProfile string
	TempDir        string
}

// Resolver walks its strategies in order.
type Resolver struct {
	cfg        Config
	strategies []Strategy
}

// New builds the default captions → extractor → speech cascade.
func New(cfg Config) *Resolver {
	if cfg.Preference == (captions.Preference{}) {
		cfg.Preference = captions.DefaultPreference
	}
	r := &Resolver{cfg: cfg}
	r.strategies = []Strategy{
		{Name: "captions", Run: r.fromCaptions},
		{Name: "extractor", Run: r.fromExtractor},
		{Name: "speech", Run: r.fromSpeech},
	}
	return r
}

// NewWithStrategies builds a resolver over an explicit step list.
func NewWithStrategies(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// Resolve returns the first transcript any strategy produces. Recoverable
// failures advance the cascade; anything else is returned as is.
func (r *Resolver) Resolve(ctx context.Context, videoID string) (Result, error) {
	var lastErr error
	for _, s := range r.strategies {
		res, err := s.Run(ctx, videoID)
		if err == nil {
			res.Strategy = s.Name
			engine.IncrResolved(s.Name)
			slog.Info("resolver: transcript resolved",
				slog.String("video_id", videoID), slog.String("strategy", s.Name), slog.Int("chars", len(res.Text)))
			return res, nil
		}
		if !Recoverable(err) {
			engine.IncrResolutionFailure()
			return Result{}, err
		}
		slog.Debug("resolver: step failed", slog.String("video_id", videoID),
			slog.String("strategy", s.Name), slog.Any("error", err))
		lastErr = err
	}
	engine.IncrResolutionFailure()
	return Result{}, engine.Errorf(engine.KindResolution, engine.MsgNoTranscript, lastErr)
}

// Recoverable reports whether the cascade should try the next strategy.
// Classified errors are final.
func Recoverable(err error) bool {
	var classified *engine.Error
	if errors.As(err, &classified) {
		return false
	}
	return errors.Is(err, ErrNoTranscript) || engine.IsTransient(err)
}

type stepMiss struct {
	step string
	err  error
}

func (e *stepMiss) Error() string {
	if e.err == nil {
		return e.step + ": no transcript"
	}
	return fmt.Sprintf("%s: no transcript: %v", e.step, e.err)
}

func (e *stepMiss) Unwrap() error { return e.err }

func (e *stepMiss) Is(target error) bool { return target == ErrNoTranscript }

// miss wraps cause as a recoverable step failure.
func miss(step string, cause error) error {
	return &stepMiss{step: step, err: cause}
}
