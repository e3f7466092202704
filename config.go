package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go_transcript/internal/auth"
	"github.com/anatolykoptev/go_transcript/internal/cache"
	"github.com/anatolykoptev/go_transcript/internal/captions"
	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/ratelimit"
	"github.com/anatolykoptev/go_transcript/internal/summary"
)

func loadConfig() engine.Config {
	appEnv := strings.ToLower(strings.TrimSpace(env.Str("APP_ENV", "development")))
	c := engine.Config{
		AppEnv:  appEnv,
		APIPort: env.Str("API_PORT", "8000"),
		MCPPort: env.Str("MCP_PORT", "8892"),

		CacheTTL:             seconds("TRANSCRIPT_CACHE_TTL", 86400),
		CacheDir:             env.Str("CACHE_DIR", "cache"),
		CacheSweepSchedule:   env.Str("CACHE_SWEEP_SCHEDULE", cache.DefaultSweepSchedule),
		DatabaseURL:          env.Str("DATABASE_URL", ""),
		FailClosedWithoutDB:  flag("FAIL_CLOSED_WITHOUT_DB", engine.IsProduction(appEnv)),
		MaxConcurrency:       env.Int("TRANSCRIPT_MAX_CONCURRENCY", 2),
		QueueTimeout:         seconds("TRANSCRIPT_QUEUE_TIMEOUT", 20),
		TranscriptRateLimit:  env.Int("TRANSCRIPT_RATE_LIMIT_PER_WINDOW", 45),
		TranscriptRateWindow: seconds("TRANSCRIPT_RATE_LIMIT_WINDOW_SECONDS", 60),
		WriteRateLimit:       env.Int("WRITE_RATE_LIMIT_PER_WINDOW", 60),
		WriteRateWindow:      seconds("WRITE_RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMaxBuckets:  env.Int("RATE_LIMIT_MAX_BUCKETS", ratelimit.DefaultMaxBuckets),
		TrustProxyHeaders:    flag("TRUST_PROXY_HEADERS", false),
		AllowedOrigins:       env.List("CORS_ALLOWED_ORIGINS", "http://localhost:5201,http://127.0.0.1:5201"),

		PrimaryLanguage:       env.Str("CAPTION_PRIMARY_LANGUAGE", captions.DefaultPreference.Primary),
		SecondaryLanguage:     env.Str("CAPTION_SECONDARY_LANGUAGE", captions.DefaultPreference.Secondary),
		CaptionRequestsPerSec: env.Float("CAPTION_REQUESTS_PER_SEC", 2),
		CaptionBrowserTLS:     flag("CAPTION_BROWSER_TLS", false),
		CaptionPlayerListing:  flag("CAPTION_PLAYER_LISTING", true),
		WebshareAPIKey:        env.Str("WEBSHARE_API_KEY", ""),

		YTDLPBinary:             env.Str("YTDLP_BINARY", "yt-dlp"),
		YTDLPCookiesPath:        env.Str("YTDLP_COOKIES_PATH", ""),
		YTDLPCookiesFromBrowser: env.Str("YTDLP_COOKIES_FROM_BROWSER", ""),
		YTDLPPlayerClients:      env.List("YTDLP_PLAYER_CLIENTS", "android,web,ios,tv,web_embedded"),
		YTDLPTimeout:            env.Duration("YTDLP_TIMEOUT", 3*time.Minute),
		UserAgent:               env.Str("YTDLP_USER_AGENT", engine.UserAgentChrome),

		OpenAIAPIKey:      env.Str("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     env.Str("OPENAI_BASE_URL", ""),
		SpeechModel:       env.Str("OPENAI_SPEECH_MODEL", ""),
		SummaryModel:      env.Str("OPENAI_SUMMARY_MODEL", summary.DefaultModel),
		SummaryAPIBase:    env.Str("OPENAI_SUMMARY_API_BASE", summary.DefaultAPIBase),
		SummaryInputChars: env.Int("OPENAI_SUMMARY_INPUT_CHARS", summary.DefaultInputChars),
		SummaryMaxTokens:  env.Int("OPENAI_SUMMARY_MAX_TOKENS", summary.DefaultMaxTokens),
		SummaryLanguage:   env.Str("SUMMARY_LANGUAGE", summary.DefaultLanguage),

		RequireAuth:       flag("BACKEND_REQUIRE_AUTH", true),
		ClientIDs:         clientIDs(),
		JWKSURL:           env.Str("GOOGLE_JWKS_URL", auth.DefaultJWKSURL),
		JWKSTimeout:       seconds("GOOGLE_JWKS_TIMEOUT_SECONDS", 5),
		JWKSCacheTTL:      max(seconds("GOOGLE_JWKS_CACHE_TTL_SECONDS", 3600), auth.MinKeyTTL),
		TokenAlgorithms:   env.List("GOOGLE_ID_TOKEN_ALGORITHMS", "RS256"),
		ClockSkew:         seconds("AUTH_CLOCK_SKEW_SECONDS", 120),
		AuthCacheMaxItems: env.Int("AUTH_CACHE_MAX_ITEMS", auth.DefaultTokenCacheSize),

		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
	return c
}

func seconds(key string, def int) time.Duration {
	return time.Duration(env.Int(key, def)) * time.Second
}

// flag reads a boolean; 1/true/yes/on are true, anything else set is false.
func flag(key string, def bool) bool {
	raw := strings.TrimSpace(env.Str(key, ""))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func clientIDs() []string {
	raw := env.List("GOOGLE_CLIENT_IDS", "")
	raw = append(raw, env.Str("GOOGLE_WEB_CLIENT_ID", ""), env.Str("GOOGLE_IOS_CLIENT_ID", ""))
	var ids []string
	for _, id := range raw {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
