package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-mcpserver"
	"github.com/anatolykoptev/go_transcript/internal/admission"
	"github.com/anatolykoptev/go_transcript/internal/api"
	"github.com/anatolykoptev/go_transcript/internal/auth"
	"github.com/anatolykoptev/go_transcript/internal/cache"
	"github.com/anatolykoptev/go_transcript/internal/captions"
	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/ratelimit"
	"github.com/anatolykoptev/go_transcript/internal/resolver"
	"github.com/anatolykoptev/go_transcript/internal/sources"
	"github.com/anatolykoptev/go_transcript/internal/summary"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
	"github.com/anatolykoptev/go_transcript/internal/transcriptserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

// app holds the components built once at startup.
type app struct {
	cfg         engine.Config
	tiers       *cache.Tiered
	closeStore  func()
	transcripts *transcript.Service
	verifier    *auth.Verifier
	writePolicy *ratelimit.Policy
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API and the MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			a, err := buildApp(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer a.closeStore()
			return a.serve()
		},
	}
}

func buildApp(ctx context.Context, cfg engine.Config, rateLimited bool) (*app, error) {
	if cfg.RequireAuth && len(cfg.ClientIDs) == 0 {
		return nil, errors.New("BACKEND_REQUIRE_AUTH is set but no GOOGLE_CLIENT_IDS / GOOGLE_WEB_CLIENT_ID / GOOGLE_IOS_CLIENT_ID is configured")
	}

	tiers, closeStore, err := openCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gate := admission.New(cfg.MaxConcurrency)
	engine.RegisterGauge("admission_in_use", func() int64 { return int64(gate.InUse()) })
	engine.RegisterGauge("admission_capacity", func() int64 { return int64(gate.Capacity()) })

	var policy *ratelimit.Policy
	if rateLimited {
		policy = ratelimit.NewPolicy("transcript", cfg.TranscriptRateLimit, cfg.TranscriptRateWindow, cfg.RateLimitMaxBuckets)
		engine.RegisterGauge("ratelimit_transcript_buckets", func() int64 { return int64(policy.Limiter().Len()) })
	}
	writePolicy := ratelimit.NewPolicy("write", cfg.WriteRateLimit, cfg.WriteRateWindow, cfg.RateLimitMaxBuckets)
	engine.RegisterGauge("ratelimit_write_buckets", func() int64 { return int64(writePolicy.Limiter().Len()) })

	var sum *summary.Summarizer
	if cfg.OpenAIAPIKey != "" {
		sum = summary.New(
			summary.NewLLM(cfg.SummaryAPIBase, cfg.OpenAIAPIKey, cfg.SummaryModel, cfg.SummaryMaxTokens, nil),
			cfg.SummaryInputChars, cfg.SummaryLanguage,
		)
	}

	a := &app{
		cfg:        cfg,
		tiers:      tiers,
		closeStore: closeStore,
		transcripts: transcript.New(transcript.Options{
			Resolver:     buildResolver(cfg),
			Cache:        tiers,
			Gate:         gate,
			QueueTimeout: cfg.QueueTimeout,
			Policy:       policy,
			Summarizer:   sum,
		}),
		verifier: auth.New(
			auth.NewKeyCache(cfg.JWKSURL, cfg.JWKSTimeout, cfg.JWKSCacheTTL, nil),
			auth.Config{
				Required:        cfg.RequireAuth,
				ClientIDs:       cfg.ClientIDs,
				Algorithms:      cfg.TokenAlgorithms,
				ClockSkew:       cfg.ClockSkew,
				MaxCachedTokens: cfg.AuthCacheMaxItems,
			},
		),
		writePolicy: writePolicy,
	}
	return a, nil
}

// openCache composes the durable store and the file fallback. A fail-closed
// deployment refuses to start without a reachable durable store.
func openCache(ctx context.Context, cfg engine.Config) (*cache.Tiered, func(), error) {
	closeStore := func() {}
	if cfg.FailClosedWithoutDB && cfg.DatabaseURL == "" {
		return nil, nil, errors.New("FAIL_CLOSED_WITHOUT_DB is set but DATABASE_URL is empty")
	}

	durable, err := cache.Open(ctx, cfg.DatabaseURL, cfg.CacheTTL)
	switch {
	case err != nil && cfg.FailClosedWithoutDB:
		return nil, nil, fmt.Errorf("FAIL_CLOSED_WITHOUT_DB is set but the database is unreachable: %w", err)
	case err != nil:
		slog.Warn("durable cache unavailable, using file cache", slog.Any("error", err))
	case durable != nil:
		slog.Info("durable cache connected", slog.String("backend", durable.Name()))
		if c, ok := durable.(interface{ Close() error }); ok {
			closeStore = func() { _ = c.Close() }
		}
	}

	fallback, err := cache.NewFileStore(cfg.CacheDir)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return cache.NewTiered(durable, fallback, cfg.CacheTTL, cfg.FailClosedWithoutDB), closeStore, nil
}

func buildResolver(cfg engine.Config) *resolver.Resolver {
	var fetcher sources.Fetcher = sources.NewHTTPFetcher(cfg.HTTPClient, cfg.CaptionRequestsPerSec, cfg.UserAgent)
	if cfg.CaptionBrowserTLS {
		bc, err := engine.NewBrowserClient(15, cfg.WebshareAPIKey)
		if err != nil {
			slog.Warn("stealth browser client init failed, using plain HTTP", slog.Any("error", err))
		} else {
			fetcher = sources.NewBrowserFetcher(bc)
			slog.Info("stealth browser client initialized")
		}
	}

	timedText := sources.NewTimedText("", fetcher)
	if cfg.CaptionPlayerListing {
		timedText.Player = sources.NewPlayer("", cfg.HTTPClient)
	}

	rc := resolver.Config{
		Captions: timedText,
		Extractor: sources.NewYTDLP(sources.ExtractorConfig{
			Binary:        cfg.YTDLPBinary,
			CookiesPath:   cfg.YTDLPCookiesPath,
			PlayerClients: cfg.YTDLPPlayerClients,
			UserAgent:     cfg.UserAgent,
			Timeout:       cfg.YTDLPTimeout,
		}),
		Fetcher:        fetcher,
		Preference:     captions.Preference{Primary: cfg.PrimaryLanguage, Secondary: cfg.SecondaryLanguage},
		BrowserProfile: cfg.YTDLPCookiesFromBrowser,
	}
	if cfg.OpenAIAPIKey != "" {
		rc.Speech = sources.NewWhisper(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.SpeechModel)
	}
	return resolver.New(rc)
}

func (a *app) serve() error {
	if a.cfg.CacheSweepSchedule != "" {
		ctab, err := cache.ScheduleSweep(a.tiers, a.cfg.CacheSweepSchedule)
		if err != nil {
			return err
		}
		defer ctab.Shutdown()
	}

	apiServer := &http.Server{
		Addr: ":" + a.cfg.APIPort,
		Handler: api.New(api.Deps{
			Transcripts:       a.transcripts,
			Verifier:          a.verifier,
			WritePolicy:       a.writePolicy,
			Health:            a.tiers,
			TrustProxyHeaders: a.cfg.TrustProxyHeaders,
			AllowedOrigins:    a.cfg.AllowedOrigins,
			Version:           version,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Minute,
	}
	go func() {
		slog.Info("api listening", slog.String("port", a.cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api server failed", slog.Any("error", err))
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = apiServer.Shutdown(ctx)
	}()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_transcript",
		Version: version,
	}, nil)
	transcriptserver.RegisterTools(server, a.transcripts)

	slog.Info("starting go_transcript",
		slog.String("mcp_port", a.cfg.MCPPort),
		slog.String("cache", a.tiers.DurableName()),
		slog.Bool("fail_closed", a.tiers.FailClosed()),
	)
	return mcpserver.Run(server, mcpserver.Config{
		Name:         "go_transcript",
		Version:      version,
		Port:         a.cfg.MCPPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	})
}
