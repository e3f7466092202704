// Package summary condenses a transcript into a few short lines with an
// OpenAI-compatible chat model.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// Defaults for summary requests.
const (
	DefaultModel      = "gpt-4o-mini"
	DefaultAPIBase    = "https://api.openai.com/v1"
	DefaultInputChars = 4000
	DefaultMaxTokens  = 200
	DefaultLanguage   = "Korean"
)

const systemPrompt = "You summarize text concisely and factually in %s."

const userPrompt = `Summarize the following in %[1]s in exactly %[2]d lines.
- one sentence per line
- start each line with "• "
- output only the %[2]d lines separated by newlines
- key facts only, no exaggeration

%[3]s`

// Completer sends one chat completion and returns the reply text.
type Completer func(ctx context.Context, system, prompt string) (string, error)

// NewLLM builds a Completer backed by the go-kit llm client.
func NewLLM(apiBase, apiKey, model string, maxTokens int, hc *http.Client) Completer {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	client := llm.NewClient(apiBase, apiKey, model,
		llm.WithMaxTokens(maxTokens),
		llm.WithTemperature(0.2),
		llm.WithHTTPClient(hc),
	)
	return func(ctx context.Context, system, prompt string) (string, error) {
		return client.Complete(ctx, system, prompt,
			llm.WithChatTemperature(0.2),
			llm.WithChatMaxTokens(maxTokens),
		)
	}
}

// Summarizer produces normalized multi-line summaries.
type Summarizer struct {
	complete   Completer
	inputChars int
	language   string
}

// New returns a Summarizer. A nil complete disables summaries.
func New(complete Completer, inputChars int, language string) *Summarizer {
	if inputChars <= 0 {
		inputChars = DefaultInputChars
	}
	if language == "" {
		language = DefaultLanguage
	}
	return &Summarizer{complete: complete, inputChars: inputChars, language: language}
}

// Enabled reports whether a model is configured.
func (s *Summarizer) Enabled() bool { return s != nil && s.complete != nil }

// Summarize returns a summary of text in the clamped line count, or "" when
// summaries are disabled, text is blank, or the model fails.
func (s *Summarizer) Summarize(ctx context.Context, text string, lines int) string {
	if !s.Enabled() || strings.TrimSpace(text) == "" {
		return ""
	}
	lines = engine.ClampSummaryLines(&lines)
	input := engine.TruncateRunes(text, s.inputChars, "")

	var reply string
	err := engine.TrackOperation(ctx, "summary", 20*time.Second, func(ctx context.Context) error {
		engine.IncrSummaryCall()
		var err error
		reply, err = s.complete(ctx, fmt.Sprintf(systemPrompt, s.language), fmt.Sprintf(userPrompt, s.language, lines, input))
		return err
	})
	if err != nil {
		engine.IncrSummaryError()
		slog.Warn("summary: completion failed", slog.Any("error", err))
		return ""
	}
	if strings.TrimSpace(reply) == "" {
		return ""
	}
	return Normalize(reply, lines)
}

var (
	bulletRe   = regexp.MustCompile(`^[\s•\-\d.]+`)
	sentenceRe = regexp.MustCompile(`[.!?。]\s+`)
)

// Normalize reshapes a model reply into at most lines lines: escaped newlines
// become real ones and leading bullets or numbering are dropped. Replies with
// too few lines are split on sentence ends instead.
func Normalize(reply string, lines int) string {
	normalized := strings.ReplaceAll(reply, `\\n`, "\n")
	normalized = strings.ReplaceAll(normalized, `\n`, "\n")

	var cleaned []string
	for _, line := range strings.Split(normalized, "\n") {
		line = strings.TrimSpace(bulletRe.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	if len(cleaned) >= lines {
		return strings.Join(cleaned[:lines], "\n")
	}

	var sentences []string
	for _, part := range splitSentences(normalized) {
		if part = strings.TrimSpace(part); part != "" {
			sentences = append(sentences, part)
		}
	}
	if len(sentences) >= lines {
		return strings.Join(sentences[:lines], "\n")
	}
	return strings.TrimSpace(normalized)
}

// splitSentences splits after sentence-ending punctuation followed by space,
// keeping the punctuation.
func splitSentences(s string) []string {
	var parts []string
	start := 0
	for _, loc := range sentenceRe.FindAllStringIndex(s, -1) {
		end := loc[0] + len(strings.TrimRightFunc(s[loc[0]:loc[1]], isSpace))
		parts = append(parts, s[start:end])
		start = loc[1]
	}
	return append(parts, s[start:])
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }
