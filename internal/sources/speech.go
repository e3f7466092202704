package sources

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Whisper transcribes audio files through the OpenAI transcription API.
type Whisper struct {
	client *openai.Client
	model  string
}

// NewWhisper builds a client. baseURL may be empty for the public API.
func NewWhisper(apiKey, baseURL, model string) *Whisper {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &Whisper{client: openai.NewClientWithConfig(cfg), model: model}
}

// Transcribe returns the recognized text of the audio file at path.
func (w *Whisper) Transcribe(ctx context.Context, path string) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
