package main

import (
	"context"
	"fmt"

	"github.com/jonathan/talent-match/internal/cache"
	"github.com/jonathan/talent-match/internal/calls"
	"github.com/jonathan/talent-match/internal/config"
	"github.com/jonathan/talent-match/internal/db"
	"github.com/jonathan/talent-match/internal/llm"
	"github.com/jonathan/talent-match/internal/logger"
	"github.com/jonathan/talent-match/internal/matching"
	"github.com/jonathan/talent-match/internal/resume"
	"go.uber.org/zap"
)

// l1Entries bounds the in-process cache.
const l1Entries = 10_000

// app holds the collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *db.DB
	cache    *cache.Tiered
	model    llm.Client
	analyzer *matching.Analyzer
	ranker   *matching.Ranker

	closers []func()
}

// loadConfig reads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newBaseApp connects the logger and database.
func newBaseApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	a := &app{cfg: cfg, logger: log}
	a.closers = append(a.closers, func() { _ = log.Sync() })

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = database
	a.closers = append(a.closers, database.Close)
	return a, nil
}

// newMatchingApp additionally builds the cache, model client, analyzer and ranker.
func newMatchingApp(ctx context.Context) (*app, error) {
	a, err := newBaseApp(ctx)
	if err != nil {
		return nil, err
	}
	cfg := a.cfg

	var l2 cache.Cache
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedis(ctx, cfg.RedisURL, a.logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		l2 = rdb
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	} else {
		a.logger.Info("REDIS_URL not set, using in-process cache only")
	}
	a.cache = cache.NewTiered(cache.NewMemory(l1Entries), l2, cfg.Matching.JobCacheTTL)
	a.closers = append(a.closers, func() {
		hits, misses := a.cache.Stats()
		a.logger.Info("cache stats", zap.Int64("hits", hits), zap.Int64("misses", misses))
	})

	llmCfg := llm.NewConfig(cfg.LLM.AnalysisModel, cfg.LLM.EmbeddingModel)
	client, err := llm.NewClient(ctx, llmCfg, cfg.LLM.APIKey)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.model = llm.NewThrottled(client, cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)

	resolver, err := resume.NewSignedURLResolver(cfg.Resume.BaseURL, cfg.Resume.SigningSecret, cfg.Resume.URLExpiry)
	if err != nil {
		a.Close()
		return nil, err
	}
	fetcher := resume.NewFetcher(cfg.Resume.FetchTimeout, cfg.Resume.MaxBytes)

	m := cfg.Matching
	a.analyzer = matching.NewAnalyzer(a.db, resolver, fetcher, a.model, m.StalePendingAfter, a.logger.Named("analyzer"))
	a.ranker = matching.NewRanker(a.db, a.db, a.analyzer, a.db, a.cache, matching.RankerOptions{
		PoolCeiling:       m.CandidatePoolCeiling,
		MinBatch:          m.MinBatch,
		Concurrency:       m.Concurrency,
		AnalysisTimeout:   m.AnalysisTimeout,
		StalePendingAfter: m.StalePendingAfter,
		JobCacheTTL:       m.JobCacheTTL,
		EmbeddingCacheTTL: m.EmbeddingCacheTTL,
	}, a.logger.Named("ranker"))
	return a, nil
}

// newScheduler builds the call scheduler around the voice platform client.
func (a *app) newScheduler() (*calls.Scheduler, error) {
	v := a.cfg.Voice
	dialer, err := calls.NewVoiceClient(v.BaseURL, v.APIKey, v.Timeout)
	if err != nil {
		return nil, err
	}
	s := a.cfg.Scheduler
	return calls.NewScheduler(a.db, dialer, calls.Options{
		TickInterval: s.TickInterval,
		MaxInFlight:  s.MaxInFlight,
		OrphanAfter:  s.OrphanAfter,
	}, a.logger.Named("scheduler")), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
