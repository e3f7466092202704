package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/anatolykoptev/go_transcript/internal/captions"
	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trackListXML = `<?xml version="1.0" encoding="utf-8" ?>
<transcript_list docid="1">
<track id="0" name="" lang_code="en" lang_original="English" lang_translated="English" kind="asr"/>
<track id="1" name="Korean" lang_code="ko" lang_original="한국어" lang_translated="Korean"/>
</transcript_list>`

func TestTimedTextListAndFetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		q := r.URL.Query()
		switch {
		case q.Get("type") == "list":
			fmt.Fprint(w, trackListXML)
		case q.Get("lang") == "ko" && q.Get("fmt") == "vtt":
			assert.Equal(t, "Korean", q.Get("name"))
			fmt.Fprint(w, "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\n안녕하세요\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tt := NewTimedText(srv.URL, NewHTTPFetcher(srv.Client(), 0, engine.UserAgentBot))
	ctx := context.Background()

	tracks, err := tt.ListTracks(ctx, "abc12345xyz")
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, captions.Track{LanguageCode: "en", Kind: captions.KindASR}, tracks[0])
	assert.Equal(t, captions.Track{LanguageCode: "ko", Kind: captions.KindManual, Name: "Korean"}, tracks[1])

	body, err := tt.FetchTrack(ctx, "abc12345xyz", tracks[1], captions.FormatVTT)
	require.NoError(t, err)
	assert.Equal(t, "안녕하세요", captions.Parse(body, captions.FormatVTT))

	_, err = tt.FetchTrack(ctx, "abc12345xyz", tracks[1], captions.FormatJSON3)
	var se *engine.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.False(t, engine.IsTransient(err))
}

func TestTimedTextEmptyListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	tracks, err := NewTimedText(srv.URL, NewHTTPFetcher(srv.Client(), 0, "")).ListTracks(context.Background(), "abc12345xyz")
	require.NoError(t, err)
	assert.Empty(t, tracks)
}

func TestTrackURL(t *testing.T) {
	tt := NewTimedText("", nil)
	u := tt.TrackURL("abc12345xyz", captions.Track{LanguageCode: "en", Kind: captions.KindASR}, captions.FormatNone)
	assert.Equal(t, DefaultTimedTextURL+"?kind=asr&lang=en&v=abc12345xyz", u)
}

func TestWithVTT(t *testing.T) {
	got, ok := WithVTT("https://example.com/api/timedtext?v=a&lang=en")
	require.True(t, ok)
	assert.Contains(t, got, "fmt=vtt")

	_, ok = WithVTT("https://example.com/api/timedtext?v=a&fmt=json3")
	assert.False(t, ok)
}

type fakeExec struct {
	calls  [][]string
	stdout func(args []string) ([]byte, []byte, error)
}

func (f *fakeExec) Run(_ context.Context, _ string, args []string) ([]byte, []byte, error) {
	f.calls = append(f.calls, args)
	return f.stdout(args)
}

func TestYTDLPInfo(t *testing.T) {
	exec := &fakeExec{stdout: func([]string) ([]byte, []byte, error) {
		return []byte(`{"id":"abc12345xyz","subtitles":{"ko":[{"ext":"vtt","url":"https://s/ko.vtt"}]},"automatic_captions":{"en":[{"ext":"json3","url":"https://s/en"}]}}`), nil, nil
	}}
	y := NewYTDLP(ExtractorConfig{CookiesPath: "/tmp/cookies.txt", PlayerClients: []string{"web", "android"}}, WithExecutor(exec))

	info, err := y.Info(context.Background(), "abc12345xyz", "")
	require.NoError(t, err)
	assert.Equal(t, "https://s/ko.vtt", info.Subtitles["ko"][0].URL)
	assert.Equal(t, "json3", info.AutomaticCaptions["en"][0].Ext)

	args := strings.Join(exec.calls[0], " ")
	assert.Contains(t, args, "--cookies /tmp/cookies.txt")
	assert.Contains(t, args, "youtube:player_client=web,android")
	assert.Contains(t, args, "-J --skip-download")

	_, err = y.Info(context.Background(), "abc12345xyz", "chrome")
	require.NoError(t, err)
	args = strings.Join(exec.calls[1], " ")
	assert.Contains(t, args, "--cookies-from-browser chrome")
	assert.Contains(t, args, "--cookies /tmp/cookies.txt", "cookie file is passed alongside the browser profile")
}

func TestYTDLPDownloadAudio(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExec{stdout: func(args []string) ([]byte, []byte, error) {
		path := filepath.Join(dir, "abc12345xyz.m4a")
		if err := os.WriteFile(path, []byte("audio"), 0o600); err != nil {
			return nil, nil, err
		}
		return []byte(path + "\n"), nil, nil
	}}
	y := NewYTDLP(ExtractorConfig{}, WithExecutor(exec))

	path, err := y.DownloadAudio(context.Background(), "abc12345xyz", dir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc12345xyz.m4a"), path)
}

func TestYTDLPDownloadError(t *testing.T) {
	exec := &fakeExec{stdout: func([]string) ([]byte, []byte, error) {
		return nil, []byte("ERROR: [youtube] abc12345xyz: HTTP Error 403: Forbidden"), errors.New("exit status 1")
	}}
	y := NewYTDLP(ExtractorConfig{}, WithExecutor(exec))

	_, err := y.DownloadAudio(context.Background(), "abc12345xyz", t.TempDir(), "")
	var de *DownloadError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Error(), "HTTP Error 403")
}

func TestWhisperTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/transcriptions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text":"  recognized speech  "}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "a.m4a")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o600))

	w := NewWhisper("sk-test", srv.URL+"/v1", "")
	text, err := w.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "recognized speech", text)
}

const playerJSON = `{
  "playabilityStatus": {"status": "OK"},
  "captions": {"playerCaptionsTracklistRenderer": {"captionTracks": [
    {"baseUrl": "%[1]s/api/timedtext?v=abc12345xyz&lang=en&kind=asr&signature=x", "languageCode": "en", "kind": "asr"},
    {"baseUrl": "%[1]s/api/timedtext?v=abc12345xyz&lang=ko&signature=y&fmt=srv3", "languageCode": "ko", "name": {"simpleText": "Korean"}},
    {"baseUrl": "", "languageCode": "ja"}
  ]}}
}`

func TestPlayerListingFallback(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/youtubei/v1/player":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "3", r.Header.Get("X-Youtube-Client-Name"))
			fmt.Fprintf(w, playerJSON, srvURL)
		case r.URL.Query().Get("type") == "list":
			// empty listing
		case r.URL.Query().Get("signature") == "y":
			assert.Equal(t, "vtt", r.URL.Query().Get("fmt"))
			fmt.Fprint(w, "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\n반갑습니다\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	tt := NewTimedText(srv.URL+"/api/timedtext", NewHTTPFetcher(srv.Client(), 0, ""))
	tt.Player = NewPlayer(srv.URL+"/youtubei/v1/player", srv.Client())
	ctx := context.Background()

	tracks, err := tt.ListTracks(ctx, "abc12345xyz")
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, captions.KindASR, tracks[0].Kind)
	assert.Equal(t, "Korean", tracks[1].Name)
	assert.NotEmpty(t, tracks[1].BaseURL)

	body, err := tt.FetchTrack(ctx, "abc12345xyz", tracks[1], captions.FormatVTT)
	require.NoError(t, err)
	assert.Equal(t, "반갑습니다", captions.Parse(body, captions.FormatVTT))
}

func TestPlayerWithoutCaptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"playabilityStatus": {"status": "LOGIN_REQUIRED", "reason": "Sign in"}}`)
	}))
	defer srv.Close()

	tracks, err := NewPlayer(srv.URL, srv.Client()).ListTracks(context.Background(), "abc12345xyz")
	require.NoError(t, err)
	assert.Empty(t, tracks)
}

func TestWithFormat(t *testing.T) {
	got, err := withFormat("https://example.com/api/timedtext?v=a&fmt=srv3", captions.FormatNone)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/api/timedtext?v=a", got)

	got, err = withFormat("https://example.com/api/timedtext?v=a", captions.FormatJSON3)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/api/timedtext?fmt=json3&v=a", got)
}
