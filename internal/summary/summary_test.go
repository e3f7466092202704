package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		lines int
		want  string
	}{
		{"bullets", "• 첫째 줄\n• 둘째 줄\n• 셋째 줄", 3, "첫째 줄\n둘째 줄\n셋째 줄"},
		{"numbered", "1. one\n2. two\n3. three\n4. four", 2, "one\ntwo"},
		{"dashes and blanks", "- a\n\n- b\n   \n- c", 3, "a\nb\nc"},
		{"escaped newlines", `• a\n• b\n• c`, 3, "a\nb\nc"},
		{"double escaped", `• a\\n• b`, 2, "a\nb"},
		{"sentence fallback", "First point. Second point! Third point? Extra.", 3, "First point.\nSecond point!\nThird point?"},
		{"cjk sentence fallback", "첫 문장。 둘째 문장。", 2, "첫 문장。\n둘째 문장。"},
		{"too short returns as-is", "  just one line  ", 3, "just one line"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.reply, tt.lines))
		})
	}
}

func TestSummarize(t *testing.T) {
	var gotSystem, gotPrompt string
	complete := func(_ context.Context, system, prompt string) (string, error) {
		gotSystem, gotPrompt = system, prompt
		return "• a\n• b\n• c\n• d\n• e\n• f", nil
	}
	s := New(complete, 10, "English")

	out := s.Summarize(context.Background(), strings.Repeat("가", 50), 9)
	assert.Equal(t, "a\nb\nc\nd\ne", out, "lines clamp to 5")
	assert.Contains(t, gotSystem, "English")
	assert.Contains(t, gotPrompt, "exactly 5 lines")
	assert.Contains(t, gotPrompt, strings.Repeat("가", 10))
	assert.NotContains(t, gotPrompt, strings.Repeat("가", 11), "input is capped in runes")
}

func TestSummarizeDisabledOrFailing(t *testing.T) {
	ctx := context.Background()

	var disabled *Summarizer
	assert.False(t, disabled.Enabled())
	assert.Empty(t, disabled.Summarize(ctx, "text", 3))
	assert.Empty(t, New(nil, 0, "").Summarize(ctx, "text", 3))

	calls := 0
	failing := New(func(context.Context, string, string) (string, error) {
		calls++
		return "", errors.New("upstream 500")
	}, 0, "")
	assert.Empty(t, failing.Summarize(ctx, "text", 3))
	assert.Equal(t, 1, calls)

	assert.Empty(t, failing.Summarize(ctx, "   ", 3))
	assert.Equal(t, 1, calls, "blank text never calls the model")
}

func TestDefaults(t *testing.T) {
	s := New(func(context.Context, string, string) (string, error) { return "x", nil }, 0, "")
	require.True(t, s.Enabled())
	assert.Equal(t, DefaultInputChars, s.inputChars)
	assert.Equal(t, DefaultLanguage, s.language)
}
