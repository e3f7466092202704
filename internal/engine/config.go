package engine

import (
	"net/http"
	"time"
)

// Config holds all service configuration, injected from main.
type Config struct {
	AppEnv  string
	APIPort string
	MCPPort string

	// Transcript pipeline.
	CacheTTL             time.Duration
	CacheDir             string
	CacheSweepSchedule   string
	DatabaseURL          string
	FailClosedWithoutDB  bool
	MaxConcurrency       int
	QueueTimeout         time.Duration
	TranscriptRateLimit  int
	TranscriptRateWindow time.Duration
	WriteRateLimit       int
	WriteRateWindow      time.Duration
	RateLimitMaxBuckets  int
	TrustProxyHeaders    bool
	AllowedOrigins       []string

	// Caption source.
	PrimaryLanguage       string
	SecondaryLanguage     string
	CaptionRequestsPerSec float64
	CaptionBrowserTLS     bool   // fetch captions through the stealth browser client
	CaptionPlayerListing  bool   // fall back to the Innertube player for track listings
	WebshareAPIKey        string // optional proxy pool for the browser client

	// Media extractor (yt-dlp).
	YTDLPBinary             string
	YTDLPCookiesPath        string
	YTDLPCookiesFromBrowser string
	YTDLPPlayerClients      []string
	YTDLPTimeout            time.Duration
	UserAgent               string

	// Speech-to-text and summaries.
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	SpeechModel       string
	SummaryModel      string
	SummaryAPIBase    string
	SummaryInputChars int
	SummaryMaxTokens  int
	SummaryLanguage   string

	// Token verification.
	RequireAuth       bool
	ClientIDs         []string
	JWKSURL           string
	JWKSTimeout       time.Duration
	JWKSCacheTTL      time.Duration
	TokenAlgorithms   []string
	ClockSkew         time.Duration
	AuthCacheMaxItems int

	HTTPClient *http.Client
}

// IsProduction reports whether APP_ENV names a production deployment.
func IsProduction(appEnv string) bool {
	switch appEnv {
	case "prod", "production":
		return true
	}
	return false
}
