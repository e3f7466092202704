package captions

import (
	"sort"
	"strings"
)

// TrackKind distinguishes uploaded captions from speech-recognized ones.
type TrackKind string

const (
	KindManual TrackKind = "manual"
	KindASR    TrackKind = "asr"
)

// Track is one caption track advertised for a video.
type Track struct {
	LanguageCode string
	Kind         TrackKind
	Name         string
	// BaseURL is set when the listing carried a direct payload URL.
	BaseURL string
}

// Candidate is a chosen track with the formats to try, in order.
type Candidate struct {
	Track   Track
	Formats []Format
}

// DirectFormats is the fmt order tried against the caption source. The
// trailing FormatNone requests the source's default encoding.
var DirectFormats = []Format{FormatVTT, FormatJSON3, FormatSRV3, FormatTTML, FormatNone}

// extractorPriority ranks extractor subtitle entries by extension.
var extractorPriority = map[Format]int{
	FormatVTT:   0,
	FormatJSON3: 1,
	FormatSRV3:  2,
	FormatSRV2:  3,
	FormatSRV1:  4,
	FormatTTML:  5,
	FormatXML:   6,
}

// Preference holds the ordered language prefixes used for selection.
type Preference struct {
	Primary   string
	Secondary string
}

// DefaultPreference favors Korean, then English.
var DefaultPreference = Preference{Primary: "ko", Secondary: "en"}

// NewCandidate pairs a track with DirectFormats.
func NewCandidate(t Track) Candidate {
	return Candidate{Track: t, Formats: append([]Format(nil), DirectFormats...)}
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// PickTrack selects the track to fetch. Kind is decided first: any manual
// track outranks every automatic one. Within the winning kind the language
// order is primary prefix, secondary prefix, then the first listed.
func PickTrack(tracks []Track, pref Preference) (Track, bool) {
	usable := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return Track{}, false
	}

	group := make([]Track, 0, len(usable))
	for _, t := range usable {
		if t.Kind != KindASR {
			group = append(group, t)
		}
	}
	if len(group) == 0 {
		group = usable
	}

	for _, prefix := range pref.prefixes() {
		for _, t := range group {
			if hasLangPrefix(t.LanguageCode, prefix) {
				return t, true
			}
		}
	}
	return group[0], true
}

// PickLanguage chooses among the language keys of an extractor subtitle map
// using the same prefix order as PickTrack. Keys are sorted first so the
// fallback is deterministic.
func PickLanguage(langs []string, pref Preference) (string, bool) {
	if len(langs) == 0 {
		return "", false
	}
	sorted := append([]string(nil), langs...)
	sort.Strings(sorted)
	for _, prefix := range pref.prefixes() {
		for _, l := range sorted {
			if hasLangPrefix(l, prefix) {
				return l, true
			}
		}
	}
	return sorted[0], true
}

// Entry is one downloadable subtitle rendition offered by the extractor.
type Entry struct {
	Ext string `json:"ext"`
	URL string `json:"url"`
}

// SortEntries orders entries by extractor format priority; unknown
// extensions keep their relative order at the end.
func SortEntries(entries []Entry) []Entry {
	out := append([]Entry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i].Ext) < rank(out[j].Ext)
	})
	return out
}

func rank(ext string) int {
	if r, ok := extractorPriority[Format(strings.ToLower(ext))]; ok {
		return r
	}
	return len(extractorPriority)
}

func (p Preference) prefixes() []string {
	var out []string
	for _, l := range []string{p.Primary, p.Secondary} {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func hasLangPrefix(code, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(code), prefix)
}
