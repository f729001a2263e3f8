// go_digest — YouTube video digest service.
//
// Extracts subtitle tracks via the InnerTube player API, normalizes them to
// plain text, and summarizes with a cloud or local LLM. Exposes a synchronous
// HTTP summarize endpoint, an async video pipeline (Redis queue + worker +
// Postgres/SQLite store), and MCP tools (summarize_video, video_status).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"

	"github.com/anatolykoptev/go_digest/internal/digestserver"
	"github.com/anatolykoptev/go_digest/internal/engine"
	"github.com/anatolykoptev/go_digest/internal/httpapi"
	"github.com/anatolykoptev/go_digest/internal/queue"
	"github.com/anatolykoptev/go_digest/internal/store"
	"github.com/anatolykoptev/go_digest/internal/worker"
)

var (
	version  = "dev"
	httpPort = env.Str("HTTP_PORT", "8890")
	mcpPort  = env.Str("MCP_PORT", "8891")
)

func main() {
	initEngine()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting go_digest",
		slog.String("http_port", httpPort),
		slog.String("mcp_port", mcpPort),
	)

	rdb := connectRedis(ctx)
	st := openStore(ctx)
	defer func() {
		if st != nil {
			st.Close()
		}
	}()

	var q *queue.Queue
	var workersDone chan struct{}
	if rdb != nil && st != nil {
		q = queue.New(rdb, env.Str("QUEUE_NAME", queue.DefaultName))

		proc := worker.New(st, q, worker.WithWorkers(env.Int("WORKERS", 2)))
		workersDone = make(chan struct{})
		go func() {
			proc.Run(ctx)
			close(workersDone)
		}()
		slog.Info("workers started", slog.Int("count", env.Int("WORKERS", 2)))
	} else {
		slog.Warn("async pipeline disabled", slog.Bool("redis", rdb != nil), slog.Bool("store", st != nil))
	}

	var api *httpapi.Server
	if q != nil {
		api = httpapi.NewServer(st, q)
	} else {
		api = httpapi.NewServer(st, nil)
	}
	httpSrv := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      api,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second,
	}
	go func() {
		slog.Info("http api listening", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", slog.Any("error", err))
		}
	}()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_digest",
		Version: version,
	}, nil)
	digestserver.RegisterTools(server, st)
	slog.Info("tools registered", slog.Int("count", 2))

	go func() {
		if err := mcpserver.Run(server, mcpserver.Config{
			Name:         "go_digest",
			Version:      version,
			Port:         mcpPort,
			WriteTimeout: 600 * time.Second,
			Metrics:      engine.FormatMetrics,
		}); err != nil {
			slog.Error("mcp server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", slog.Any("error", err))
	}

	// In-flight jobs run to completion; redis and the store close only after
	// the workers have drained.
	if workersDone != nil {
		<-workersDone
	}
	if rdb != nil {
		rdb.Close()
	}
}

func initEngine() {
	c := engine.Config{
		LLMAPIKey:          env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks: env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:         env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:           env.Str("LLM_MODEL", "gemini-2.5-flash"),
		LLMTemperature:     env.Float("LLM_TEMPERATURE", 0.2),
		LLMMaxTokens:       env.Int("LLM_MAX_TOKENS", 900),

		PreferredLanguages: env.List("PREFERRED_LANGUAGES", "ko,en"),
		MaxTranscriptChars: env.Int("MAX_TRANSCRIPT_CHARS", 200000),
		ChunkMaxChars:      env.Int("CHUNK_MAX_CHARS", 8000),
		MaxChunks:          env.Int("MAX_CHUNKS", 12),

		Development: env.Str("APP_ENV", "production") == "development",

		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	var opts []stealth.ClientOption
	opts = append(opts, stealth.WithTimeout(15))

	if apiKey := env.Str("WEBSHARE_API_KEY", ""); apiKey != "" {
		pool, err := proxypool.NewWebshare(apiKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}

	bc, err := stealth.NewClient(opts...)
	if err != nil {
		slog.Error("stealth client init failed", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
		slog.Info("stealth browser client initialized")
	}

	c.LLMClient = llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
		llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
		llm.WithMaxTokens(c.LLMMaxTokens),
		llm.WithTemperature(c.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	)

	engine.Init(c)
}

// connectRedis dials the cache/queue backend. The service degrades to
// synchronous-only mode without it.
func connectRedis(ctx context.Context) *redis.Client {
	redisURL := env.Str("REDIS_URL", "")
	var rdb *redis.Client
	if redisURL != "" {
		var err error
		rdb, err = queue.Connect(ctx, redisURL)
		if err != nil {
			slog.Warn("redis unavailable, running without queue and L2 cache", slog.Any("error", err))
			rdb = nil
		}
	}

	engine.InitCache(rdb,
		env.Duration("CACHE_TTL", 15*time.Minute),
		env.Int("CACHE_MAX_ENTRIES", 1000),
		env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
	)
	return rdb
}

// openStore picks Postgres when DATABASE_URL is set, otherwise a local
// sqlite file. SQLITE_PATH="" with no DATABASE_URL disables persistence.
func openStore(ctx context.Context) store.Store {
	if dbURL := env.Str("DATABASE_URL", ""); dbURL != "" {
		st, err := store.ConnectPostgres(ctx, dbURL)
		if err != nil {
			slog.Error("postgres init failed", slog.Any("error", err))
			os.Exit(1)
		}
		return st
	}

	path := env.Str("SQLITE_PATH", "go_digest.db")
	if path == "" {
		slog.Warn("no database configured, video persistence disabled")
		return nil
	}
	st, err := store.OpenSQLite(path)
	if err != nil {
		slog.Error("sqlite init failed", slog.Any("error", err))
		os.Exit(1)
	}
	return st
}
