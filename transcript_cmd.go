package main

import (
	"encoding/json"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/spf13/cobra"
)

func newTranscriptCommand() *cobra.Command {
	var (
		maxChars  int
		lines     int
		noSummary bool
	)
	cmd := &cobra.Command{
		Use:   "transcript <video_id>",
		Short: "Fetch one transcript and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			cfg.RequireAuth = false
			a, err := buildApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer a.closeStore()

			summarize := !noSummary
			req := engine.TranscriptRequest{VideoID: args[0], Summarize: &summarize}
			if cmd.Flags().Changed("max-chars") {
				req.MaxChars = &maxChars
			}
			if cmd.Flags().Changed("summary-lines") {
				req.SummaryLines = &lines
			}
			resp, err := a.transcripts.Transcript(cmd.Context(), "", req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().IntVar(&maxChars, "max-chars", engine.DefaultMaxChars, "maximum transcript characters")
	cmd.Flags().IntVar(&lines, "summary-lines", engine.DefaultSummaryLines, "summary line count")
	cmd.Flags().BoolVar(&noSummary, "no-summary", false, "skip the summary")
	return cmd
}
