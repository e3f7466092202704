package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/captions"
	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// DefaultPlayerURL is the Innertube player endpoint.
const DefaultPlayerURL = "https://www.youtube.com/youtubei/v1/player"

const (
	androidVersion = "20.10.38"
	androidUA      = "com.google.android.youtube/" + androidVersion + " (Linux; U; Android 11) gzip"
)

type playerRequest struct {
	VideoID        string        `json:"videoId"`
	Context        playerContext `json:"context"`
	RacyCheckOk    bool          `json:"racyCheckOk"`
	ContentCheckOk bool          `json:"contentCheckOk"`
}

type playerContext struct {
	Client playerClient `json:"client"`
}

type playerClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

type playerResponse struct {
	Captions *struct {
		Tracklist struct {
			CaptionTracks []struct {
				BaseURL      string `json:"baseUrl"`
				LanguageCode string `json:"languageCode"`
				Kind         string `json:"kind"`
				Name         struct {
					SimpleText string `json:"simpleText"`
				} `json:"name"`
			} `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

// Player lists caption tracks through the ANDROID Innertube client. Its
// tracks carry a signed BaseURL that TimedText fetches directly.
type Player struct {
	URL    string
	client *http.Client
	retry  engine.RetryConfig
}

// NewPlayer returns a player client for endpoint (DefaultPlayerURL when empty).
func NewPlayer(endpoint string, client *http.Client) *Player {
	if endpoint == "" {
		endpoint = DefaultPlayerURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Player{URL: endpoint, client: client, retry: engine.CaptionRetryConfig}
}

// ListTracks asks the player endpoint for videoID's caption tracks. A video
// without captions yields an empty listing.
func (p *Player) ListTracks(ctx context.Context, videoID string) ([]captions.Track, error) {
	body, err := json.Marshal(playerRequest{
		VideoID: videoID,
		Context: playerContext{Client: playerClient{
			ClientName:        "ANDROID",
			ClientVersion:     androidVersion,
			AndroidSdkVersion: 30,
			Hl:                "en",
			Gl:                "US",
		}},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return nil, err
	}

	engine.IncrCaptionFetch()
	resp, err := engine.RetryHTTP(ctx, p.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL+"?prettyPrint=false", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", androidUA)
		req.Header.Set("X-Youtube-Client-Name", "3")
		req.Header.Set("X-Youtube-Client-Version", androidVersion)
		return p.client.Do(req)
	})
	if err != nil {
		engine.IncrCaptionFetchError()
		return nil, fmt.Errorf("player: %w", err)
	}
	defer resp.Body.Close()

	if err := engine.CheckStatus(resp.StatusCode); err != nil {
		engine.IncrCaptionFetchError()
		return nil, err
	}
	var pr playerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPayloadBytes)).Decode(&pr); err != nil {
		engine.IncrCaptionFetchError()
		return nil, fmt.Errorf("decode player: %w", err)
	}
	if pr.Captions == nil {
		if ps := pr.PlayabilityStatus; ps != nil && ps.Status != "OK" {
			slog.Debug("player returned no captions", slog.String("video_id", videoID),
				slog.String("status", ps.Status), slog.String("reason", ps.Reason))
		}
		return nil, nil
	}

	var tracks []captions.Track
	for _, ct := range pr.Captions.Tracklist.CaptionTracks {
		if ct.LanguageCode == "" || ct.BaseURL == "" {
			continue
		}
		kind := captions.KindManual
		if strings.EqualFold(ct.Kind, "asr") {
			kind = captions.KindASR
		}
		tracks = append(tracks, captions.Track{
			LanguageCode: ct.LanguageCode,
			Kind:         kind,
			Name:         ct.Name.SimpleText,
			BaseURL:      ct.BaseURL,
		})
	}
	return tracks, nil
}

// withFormat sets or clears fmt on a signed track URL.
func withFormat(raw string, format captions.Format) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("track url: %w", err)
	}
	q := u.Query()
	if format == captions.FormatNone {
		q.Del("fmt")
	} else {
		q.Set("fmt", string(format))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
