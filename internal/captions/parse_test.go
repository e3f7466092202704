package captions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		hint Format
		want string
	}{
		{
			name: "vtt",
			raw: "WEBVTT\nKind: captions\nLanguage: en\n\n1\n00:00:00.000 --> 00:00:01.000\nHello <c>there</c>\n\n2\n00:00:01.000 --> 00:00:02.000\nGeneral &amp; Kenobi\n",
			hint: FormatVTT,
			want: "Hello there General & Kenobi",
		},
		{
			name: "vtt rolling duplicates",
			raw:  "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\nfirst line\n\n00:00:01.000 --> 00:00:02.000\nfirst line\nsecond line\n",
			want: "first line second line",
		},
		{
			name: "vtt by hint without header",
			raw:  "00:00:00.000 --> 00:00:01.000\nno header\n",
			hint: FormatVTT,
			want: "no header",
		},
		{
			name: "json3",
			raw:  `{"events":[{"segs":[{"utf8":"Hello"},{"utf8":" world"}]},{"tStartMs":10},{"segs":[{"utf8":"\nagain"}]}]}`,
			hint: FormatJSON3,
			want: "Hello world again",
		},
		{
			name: "timedtext",
			raw:  `<?xml version="1.0" encoding="utf-8" ?><transcript><text start="0" dur="1">It&amp;#39;s</text><text start="1" dur="1">fine</text></transcript>`,
			want: "It's fine",
		},
		{
			name: "srv3",
			raw:  `<timedtext format="3"><body><p t="0" d="1"><s>one</s><s> two</s></p><p t="1" d="1">three</p></body></timedtext>`,
			hint: FormatSRV3,
			want: "one two three",
		},
		{
			name: "ttml",
			raw:  `<tt xmlns="http://www.w3.org/ns/ttml"><body><div><p begin="0s" end="1s">alpha<br/>beta</p><p begin="1s" end="2s">gamma</p></div></body></tt>`,
			hint: FormatTTML,
			want: "alpha beta gamma",
		},
		{
			name: "ttml with styling head",
			raw: `<?xml version="1.0" encoding="utf-8" ?><tt xml:lang="en" xmlns="http://www.w3.org/ns/ttml" xmlns:tts="http://www.w3.org/ns/ttml#styling">` +
				`<head><styling><style xml:id="s1" tts:textAlign="center" tts:color="white"/></styling></head>` +
				`<body><div><p begin="00:00:00.000" end="00:00:01.000" style="s1">hello</p><p begin="00:00:01.000" end="00:00:02.000" style="s1">world</p></div></body></tt>`,
			hint: FormatTTML,
			want: "hello world",
		},
		{
			name: "srv3 with stray entity",
			raw:  `<timedtext format="3"><body><p t="0">salt & pepper &lt;3</p></body></timedtext>`,
			hint: FormatSRV3,
			want: "salt & pepper <3",
		},
		{
			name: "vtt header without blank line",
			raw:  "WEBVTT\n00:00:00.000 --> 00:00:01.000\nhello\n",
			want: "hello",
		},
		{
			name: "json3 hint falls through to markup",
			raw:  `<transcript><text start="0">fallback</text></transcript>`,
			hint: FormatJSON3,
			want: "fallback",
		},
		{"empty", "   ", FormatVTT, ""},
		{"unknown", "just some words", FormatNone, ""},
		{"broken json", "{not json", FormatJSON3, ""},
		{"vtt with only cues", "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\n\n", FormatVTT, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse([]byte(tt.raw), tt.hint))
		})
	}
}

func TestParseHeaderOverridesHint(t *testing.T) {
	raw := []byte("WEBVTT\n\n00:00:00.000 --> 00:00:01.000\nsniffed\n")
	assert.Equal(t, "sniffed", Parse(raw, FormatJSON3))
}

func TestParseVTTHintWins(t *testing.T) {
	raw := []byte("00:00:00.000 --> 00:00:01.000\n<p>inline</p>\n")
	assert.Equal(t, "inline", Parse(raw, FormatVTT))
}
