package captions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickTrack(t *testing.T) {
	tests := []struct {
		name     string
		tracks   []Track
		wantLang string
		wantKind TrackKind
	}{
		{
			name: "manual outranks automatic primary",
			tracks: []Track{
				{LanguageCode: "ko", Kind: KindASR},
				{LanguageCode: "de", Kind: KindManual},
			},
			wantLang: "de",
			wantKind: KindManual,
		},
		{
			name: "primary prefix within kind",
			tracks: []Track{
				{LanguageCode: "en", Kind: KindManual},
				{LanguageCode: "ko-KR", Kind: KindManual},
			},
			wantLang: "ko-KR",
			wantKind: KindManual,
		},
		{
			name: "secondary when primary missing",
			tracks: []Track{
				{LanguageCode: "fr", Kind: KindManual},
				{LanguageCode: "en-GB", Kind: KindManual},
			},
			wantLang: "en-GB",
			wantKind: KindManual,
		},
		{
			name: "first when no preference matches",
			tracks: []Track{
				{LanguageCode: "fr", Kind: KindASR},
				{LanguageCode: "de", Kind: KindASR},
			},
			wantLang: "fr",
			wantKind: KindASR,
		},
		{
			name: "potoken tracks skipped",
			tracks: []Track{
				{LanguageCode: "ko", Kind: KindManual, BaseURL: "https://x/api/timedtext?v=a&exp=xpe"},
				{LanguageCode: "en", Kind: KindASR},
			},
			wantLang: "en",
			wantKind: KindASR,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PickTrack(tt.tracks, DefaultPreference)
			require.True(t, ok)
			assert.Equal(t, tt.wantLang, got.LanguageCode)
			assert.Equal(t, tt.wantKind, got.Kind)
		})
	}
}

func TestPickTrackEmpty(t *testing.T) {
	_, ok := PickTrack(nil, DefaultPreference)
	assert.False(t, ok)
}

func TestPickLanguage(t *testing.T) {
	lang, ok := PickLanguage([]string{"fr", "en-US", "ko"}, DefaultPreference)
	require.True(t, ok)
	assert.Equal(t, "ko", lang)

	lang, _ = PickLanguage([]string{"fr", "en-US"}, DefaultPreference)
	assert.Equal(t, "en-US", lang)

	lang, _ = PickLanguage([]string{"fr", "de"}, DefaultPreference)
	assert.Equal(t, "de", lang)

	_, ok = PickLanguage(nil, DefaultPreference)
	assert.False(t, ok)
}

func TestSortEntries(t *testing.T) {
	in := []Entry{{Ext: "ttml"}, {Ext: "srv1"}, {Ext: "weird"}, {Ext: "json3"}, {Ext: "VTT"}, {Ext: "xml"}}
	got := SortEntries(in)
	var exts []string
	for _, e := range got {
		exts = append(exts, e.Ext)
	}
	assert.Equal(t, []string{"VTT", "json3", "srv1", "ttml", "xml", "weird"}, exts)
	assert.Equal(t, "ttml", in[0].Ext, "input must not be reordered")
}

func TestNewCandidate(t *testing.T) {
	c := NewCandidate(Track{LanguageCode: "ko"})
	assert.Equal(t, []Format{FormatVTT, FormatJSON3, FormatSRV3, FormatTTML, FormatNone}, c.Formats)
}
