package resolver

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/captions"
	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/sources"
)

// Browser profiles tried when none is configured.
var fallbackProfiles = []string{"chrome", "safari"}

var membersOnlyMarkers = []string{
	"members-only",
	"members only",
	"member-only",
	"membership",
	"join this channel",
	"available to this channel's members",
	"only available to channel members",
}

func (r *Resolver) fromCaptions(ctx context.Context, videoID string) (Result, error) {
	if r.cfg.Captions == nil {
		return Result{}, miss("captions", nil)
	}
	tracks, err := r.cfg.Captions.ListTracks(ctx, videoID)
	if err != nil {
		return Result{}, miss("captions", err)
	}
	track, ok := captions.PickTrack(tracks, r.cfg.Preference)
	if !ok {
		return Result{}, miss("captions", errors.New("no caption tracks"))
	}

	var lastErr error
	cand := captions.NewCandidate(track)
	for _, format := range cand.Formats {
		raw, err := r.cfg.Captions.FetchTrack(ctx, videoID, track, format)
		if err != nil {
			slog.Debug("captions: fetch failed", slog.String("lang", track.LanguageCode),
				slog.String("fmt", string(format)), slog.Any("error", err))
			lastErr = err
			continue
		}
		if text := captions.Parse(raw, format); text != "" {
			return Result{Text: text, Source: SourceCaptions}, nil
		}
	}
	return Result{}, miss("captions", lastErr)
}

func (r *Resolver) fromExtractor(ctx context.Context, videoID string) (Result, error) {
	if r.cfg.Extractor == nil {
		return Result{}, miss("extractor", nil)
	}
	var (
		info    *sources.VideoInfo
		lastErr error
	)
	for _, profile := range r.profiles() {
		i, err := r.cfg.Extractor.Info(ctx, videoID, profile)
		if err != nil {
			slog.Debug("extractor: metadata failed", slog.String("profile", profile), slog.Any("error", err))
			lastErr = err
			continue
		}
		info = i
		break
	}
	if info == nil {
		return Result{}, miss("extractor", lastErr)
	}

	for _, listing := range []map[string][]captions.Entry{info.Subtitles, info.AutomaticCaptions} {
		if len(listing) == 0 {
			continue
		}
		langs := make([]string, 0, len(listing))
		for l := range listing {
			langs = append(langs, l)
		}
		lang, ok := captions.PickLanguage(langs, r.cfg.Preference)
		if !ok {
			continue
		}
		for _, entry := range captions.SortEntries(listing[lang]) {
			if text := r.downloadSubtitle(ctx, entry); text != "" {
				return Result{Text: text, Source: SourceCaptions}, nil
			}
		}
	}
	return Result{}, miss("extractor", errors.New("no usable subtitle entries"))
}

// downloadSubtitle fetches and parses one extractor entry, retrying with
// fmt=vtt appended when the URL names no format.
func (r *Resolver) downloadSubtitle(ctx context.Context, entry captions.Entry) string {
	if r.cfg.Fetcher == nil || entry.URL == "" {
		return ""
	}
	hint := captions.Format(strings.ToLower(entry.Ext))
	if raw, err := r.cfg.Fetcher.Get(ctx, entry.URL); err == nil {
		if text := captions.Parse(raw, hint); text != "" {
			return text
		}
	} else {
		slog.Debug("extractor: subtitle fetch failed", slog.String("ext", entry.Ext), slog.Any("error", err))
	}
	if vttURL, ok := sources.WithVTT(entry.URL); ok {
		if raw, err := r.cfg.Fetcher.Get(ctx, vttURL); err == nil {
			return captions.Parse(raw, captions.FormatVTT)
		}
	}
	return ""
}

func (r *Resolver) fromSpeech(ctx context.Context, videoID string) (Result, error) {
	if r.cfg.Speech == nil {
		return Result{}, engine.Errorf(engine.KindMissingCredential, engine.MsgMissingSpeechKey, nil)
	}
	if r.cfg.Extractor == nil {
		return Result{}, engine.Errorf(engine.KindResolution, engine.MsgDownloadFailed, errors.New("no extractor configured"))
	}

	dir, err := os.MkdirTemp(r.cfg.TempDir, "transcript-audio-*")
	if err != nil {
		return Result{}, engine.Errorf(engine.KindInternal, engine.MsgDownloadFailed, err)
	}
	defer os.RemoveAll(dir)

	path, err := r.cfg.Extractor.DownloadAudio(ctx, videoID, dir, r.cfg.BrowserProfile)
	var dlErr *sources.DownloadError
	if err != nil && r.cfg.BrowserProfile == "" && errors.As(err, &dlErr) {
		slog.Info("speech: audio download failed, retrying with browser cookies",
			slog.String("video_id", videoID), slog.String("profile", fallbackProfiles[0]))
		path, err = r.cfg.Extractor.DownloadAudio(ctx, videoID, dir, fallbackProfiles[0])
	}
	if err != nil {
		return Result{}, ClassifyDownloadError(err)
	}

	text, err := r.cfg.Speech.Transcribe(ctx, path)
	if err != nil {
		return Result{}, engine.Errorf(engine.KindResolution, engine.MsgSpeechFailed, err)
	}
	text = engine.CollapseSpace(text)
	if text == "" {
		return Result{}, engine.Errorf(engine.KindResolution, engine.MsgSpeechFailed, errors.New("empty transcription"))
	}
	return Result{Text: text, Source: SourceSpeech}, nil
}

// ClassifyDownloadError maps an audio download failure onto a client-facing
// error: membership restrictions, access blocks, or a generic failure.
func ClassifyDownloadError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range membersOnlyMarkers {
		if strings.Contains(msg, marker) {
			return engine.Errorf(engine.KindMembersOnly, engine.MsgMembersOnly, err)
		}
	}
	if strings.Contains(msg, "http error 403") || strings.Contains(msg, "forbidden") {
		return engine.Errorf(engine.KindBlocked, engine.MsgDownloadBlocked, err)
	}
	return engine.Errorf(engine.KindResolution, engine.MsgDownloadFailed, err)
}

// profiles lists extractor cookie profiles in try order. "" means the
// default cookies file.
func (r *Resolver) profiles() []string {
	if r.cfg.BrowserProfile != "" {
		return []string{r.cfg.BrowserProfile}
	}
	return append([]string{""}, fallbackProfiles...)
}
