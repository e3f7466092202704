package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/captions"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stdout, stderr []byte, err error)
}

// Option configures the extractor.
type Option func(*YTDLP)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(y *YTDLP) {
		if exec != nil {
			y.exec = exec
		}
	}
}

// ExtractorConfig mirrors the yt-dlp settings in engine.Config.
type ExtractorConfig struct {
	Binary        string
	CookiesPath   string
	PlayerClients []string
	UserAgent     string
	Timeout       time.Duration
}

// YTDLP wraps yt-dlp CLI interactions.
type YTDLP struct {
	cfg  ExtractorConfig
	exec Executor
}

// VideoInfo is the subset of yt-dlp's -J output the resolver reads.
type VideoInfo struct {
	ID                string                      `json:"id"`
	Title             string                      `json:"title"`
	Subtitles         map[string][]captions.Entry `json:"subtitles"`
	AutomaticCaptions map[string][]captions.Entry `json:"automatic_captions"`
}

// DownloadError is a failed yt-dlp run; Stderr carries the tool's diagnostics.
type DownloadError struct {
	Stderr string
	Err    error
}

func (e *DownloadError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return "yt-dlp: " + msg
}

func (e *DownloadError) Unwrap() error { return e.Err }

// NewYTDLP constructs an extractor client.
func NewYTDLP(cfg ExtractorConfig, opts ...Option) *YTDLP {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "yt-dlp"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	y := &YTDLP{cfg: cfg, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// WatchURL returns the canonical watch page for videoID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// Info fetches metadata and subtitle listings. profile names a browser to
// read cookies from; empty uses the cookies file, if any.
func (y *YTDLP) Info(ctx context.Context, videoID, profile string) (*VideoInfo, error) {
	args := append(y.baseArgs(profile), "-J", "--skip-download", WatchURL(videoID))
	stdout, err := y.run(ctx, args)
	if err != nil {
		return nil, err
	}
	var info VideoInfo
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp metadata: %w", err)
	}
	return &info, nil
}

// DownloadAudio saves the best audio stream into dir and returns its path.
func (y *YTDLP) DownloadAudio(ctx context.Context, videoID, dir, profile string) (string, error) {
	args := append(y.baseArgs(profile),
		"-f", "bestaudio[ext=m4a]/bestaudio/best",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		"--print", "after_move:filepath",
		WatchURL(videoID),
	)
	stdout, err := y.run(ctx, args)
	if err != nil {
		return "", err
	}
	if path := lastLine(stdout); path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			return path, nil
		}
	}
	matches, _ := filepath.Glob(filepath.Join(dir, videoID+".*"))
	for _, m := range matches {
		if !strings.HasSuffix(m, ".part") {
			return m, nil
		}
	}
	return "", &DownloadError{Err: errors.New("no audio file produced")}
}

func (y *YTDLP) baseArgs(profile string) []string {
	args := []string{"--no-warnings", "--no-playlist", "--no-progress"}
	if y.cfg.UserAgent != "" {
		args = append(args, "--user-agent", y.cfg.UserAgent)
	}
	if len(y.cfg.PlayerClients) > 0 {
		args = append(args, "--extractor-args", "youtube:player_client="+strings.Join(y.cfg.PlayerClients, ","))
	}
	if y.cfg.CookiesPath != "" {
		args = append(args, "--cookies", y.cfg.CookiesPath)
	}
	if profile != "" {
		args = append(args, "--cookies-from-browser", profile)
	}
	return args
}

func (y *YTDLP) run(ctx context.Context, args []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, y.cfg.Timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, err := y.exec.Run(ctx, y.cfg.Binary, args)
	slog.Debug("yt-dlp finished", slog.Duration("elapsed", time.Since(start)), slog.Bool("ok", err == nil))
	if err != nil {
		return nil, &DownloadError{Stderr: string(stderr), Err: err}
	}
	return stdout, nil
}

func lastLine(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
