package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/anatolykoptev/go_transcript/internal/captions"
)

// DefaultTimedTextURL is the public caption endpoint.
const DefaultTimedTextURL = "https://www.youtube.com/api/timedtext"

// TimedText lists and downloads caption tracks from the timedtext endpoint.
type TimedText struct {
	BaseURL string
	Fetcher Fetcher

	// Player, when set, lists tracks if the timedtext listing is empty or fails.
	Player *Player
}

// NewTimedText returns a client for baseURL (DefaultTimedTextURL when empty).
func NewTimedText(baseURL string, f Fetcher) *TimedText {
	if baseURL == "" {
		baseURL = DefaultTimedTextURL
	}
	return &TimedText{BaseURL: baseURL, Fetcher: f}
}

// ListTracks returns the caption tracks advertised for videoID. An empty
// listing is not an error.
func (t *TimedText) ListTracks(ctx context.Context, videoID string) ([]captions.Track, error) {
	tracks, err := t.listTimedText(ctx, videoID)
	if t.Player == nil || (err == nil && len(tracks) > 0) {
		return tracks, err
	}
	fromPlayer, perr := t.Player.ListTracks(ctx, videoID)
	if perr != nil {
		if err != nil {
			return nil, err
		}
		return nil, perr
	}
	return fromPlayer, nil
}

func (t *TimedText) listTimedText(ctx context.Context, videoID string) ([]captions.Track, error) {
	q := url.Values{"type": {"list"}, "v": {videoID}}
	body, err := t.Fetcher.Get(ctx, t.BaseURL+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	return parseTrackList(body)
}

// parseTrackList reads <track lang_code=".." kind=".." name=".."/> entries.
func parseTrackList(body []byte) ([]captions.Track, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse track list: %w", err)
	}
	var tracks []captions.Track
	doc.Find("track").Each(func(_ int, s *goquery.Selection) {
		lang := strings.TrimSpace(s.AttrOr("lang_code", ""))
		if lang == "" {
			return
		}
		kind := captions.KindManual
		if strings.EqualFold(s.AttrOr("kind", ""), "asr") {
			kind = captions.KindASR
		}
		tracks = append(tracks, captions.Track{
			LanguageCode: lang,
			Kind:         kind,
			Name:         s.AttrOr("name", ""),
		})
	})
	return tracks, nil
}

// FetchTrack downloads one track in format; FormatNone omits fmt. Tracks
// listed with a BaseURL are fetched from it.
func (t *TimedText) FetchTrack(ctx context.Context, videoID string, track captions.Track, format captions.Format) ([]byte, error) {
	if track.BaseURL != "" {
		u, err := withFormat(track.BaseURL, format)
		if err != nil {
			return nil, err
		}
		return t.Fetcher.Get(ctx, u)
	}
	return t.Fetcher.Get(ctx, t.TrackURL(videoID, track, format))
}

// TrackURL builds the payload URL for track.
func (t *TimedText) TrackURL(videoID string, track captions.Track, format captions.Format) string {
	q := url.Values{"v": {videoID}, "lang": {track.LanguageCode}}
	if track.Name != "" {
		q.Set("name", track.Name)
	}
	if track.Kind == captions.KindASR {
		q.Set("kind", "asr")
	}
	if format != captions.FormatNone {
		q.Set("fmt", string(format))
	}
	return t.BaseURL + "?" + q.Encode()
}

// WithVTT appends fmt=vtt to a subtitle URL that names no format.
// ok is false when the URL already carries fmt or cannot be parsed.
func WithVTT(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	q := u.Query()
	if q.Has("fmt") {
		return "", false
	}
	q.Set("fmt", string(captions.FormatVTT))
	u.RawQuery = q.Encode()
	return u.String(), true
}
