// Package transcriptserver exposes the transcript service as MCP tools.
package transcriptserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Principal keys the transcript rate policy for MCP callers.
const Principal = "mcp"

// RegisterTools registers youtube_transcript on server.
func RegisterTools(server *mcp.Server, svc *transcript.Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_transcript",
		Description: "Fetch the transcript of a YouTube video with an optional short summary. Uses published captions when available and falls back to speech recognition. Returns text (trimmed to max_chars), summary, source (captions or speech-model), partial, and cached.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, transcriptHandler(svc))
}

func transcriptHandler(svc *transcript.Service) mcp.ToolHandlerFor[engine.TranscriptRequest, transcript.Response] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input engine.TranscriptRequest) (*mcp.CallToolResult, transcript.Response, error) {
		out, err := svc.Transcript(ctx, Principal, input)
		if err != nil {
			slog.Warn("youtube_transcript failed",
				slog.String("video_id", input.VideoID),
				slog.String("kind", engine.KindOf(err).String()),
				slog.Any("error", err),
			)
			return nil, transcript.Response{}, errors.New(engine.MessageOf(err))
		}
		return nil, out, nil
	}
}
