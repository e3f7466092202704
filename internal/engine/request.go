package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Request shape limits.
const (
	DefaultMaxChars     = 1200
	MinMaxChars         = 300
	MaxMaxChars         = 10000
	DefaultSummaryLines = 3
	MinSummaryLines     = 1
	MaxSummaryLines     = 5
)

var (
	videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{6,32}$`)
	userIDRe  = regexp.MustCompile(`^[A-Za-z0-9._:-]{3,128}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("videoid", func(fl validator.FieldLevel) bool {
		return videoIDRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("userid", func(fl validator.FieldLevel) bool {
		return userIDRe.MatchString(fl.Field().String())
	})
	return v
}

// TranscriptRequest is the primary operation's input. Optional fields are
// pointers so that "absent" and "zero" stay distinguishable until Normalize.
type TranscriptRequest struct {
	VideoID      string `json:"video_id" jsonschema:"YouTube video ID: 6-32 letters, digits, '_' or '-' (e.g. dQw4w9WgXcQ)"`
	MaxChars     *int   `json:"max_chars,omitempty" jsonschema:"Maximum transcript characters (300-10000, default 1200)"`
	Summarize    *bool  `json:"summarize,omitempty" jsonschema:"Generate a short summary (default true)"`
	SummaryLines *int   `json:"summary_lines,omitempty" jsonschema:"Summary line count (1-5, default 3)"`
}

// Normalized is a validated request with every option resolved.
type Normalized struct {
	VideoID      string `validate:"required,videoid"`
	MaxChars     int    `validate:"min=300,max=10000"`
	Summarize    bool
	SummaryLines int `validate:"min=1,max=5"`
}

// Normalize trims and clamps the request and validates the video id.
func (r TranscriptRequest) Normalize() (Normalized, error) {
	n := Normalized{
		VideoID:      strings.TrimSpace(r.VideoID),
		MaxChars:     ClampMaxChars(r.MaxChars),
		Summarize:    true,
		SummaryLines: ClampSummaryLines(r.SummaryLines),
	}
	if r.Summarize != nil {
		n.Summarize = *r.Summarize
	}
	if n.VideoID == "" {
		return Normalized{}, Errorf(KindValidation, "video_id is required", nil)
	}
	if err := validate.Struct(n); err != nil {
		return Normalized{}, Errorf(KindValidation, "video_id is invalid", err)
	}
	return n, nil
}

// CacheKey derives the stable 32-char key for this request shape.
func (n Normalized) CacheKey() string {
	return CacheKey(n.VideoID, n.MaxChars, n.Summarize, n.SummaryLines)
}

// CacheKey hashes the request 4-tuple. Summary lines are clamped first so
// equivalent requests share an entry.
func CacheKey(videoID string, maxChars int, summarize bool, summaryLines int) string {
	lines := ClampSummaryLines(&summaryLines)
	flag := 0
	if summarize {
		flag = 1
	}
	signature := fmt.Sprintf("video:%s|chars:%d|summarize:%d|lines:%d", videoID, maxChars, flag, lines)
	sum := sha256.Sum256([]byte(signature))
	return hex.EncodeToString(sum[:])[:32]
}

// ClampMaxChars applies the default and bounds for max_chars.
func ClampMaxChars(v *int) int {
	if v == nil {
		return DefaultMaxChars
	}
	return min(MaxMaxChars, max(MinMaxChars, *v))
}

// ClampSummaryLines applies the default and bounds for summary_lines.
// Zero counts as unset.
func ClampSummaryLines(v *int) int {
	if v == nil || *v == 0 {
		return DefaultSummaryLines
	}
	return min(MaxSummaryLines, max(MinSummaryLines, *v))
}

// ValidUserID reports whether id is an acceptable principal identifier.
func ValidUserID(id string) bool {
	return validate.Var(id, "userid") == nil
}

// SanitizeUserID trims and validates a user id.
func SanitizeUserID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", Errorf(KindValidation, "user_id is required", nil)
	}
	if !ValidUserID(id) {
		return "", Errorf(KindValidation, "user_id is invalid", nil)
	}
	return id, nil
}
