package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/workforce-pulse/insights-cli/internal/compat"
	"github.com/workforce-pulse/insights-cli/internal/pipeline"
	"github.com/workforce-pulse/insights-cli/internal/questionmap"
	"github.com/workforce-pulse/insights-cli/internal/repository"
	"github.com/workforce-pulse/insights-cli/internal/threadcache"
	"github.com/workforce-pulse/insights-cli/pkg/anthropic"
)

// Env bundles the wired pipeline dependencies for a command invocation.
type Env struct {
	KV       threadcache.KV
	Cache    *threadcache.Manager
	Registry *compat.Registry
	Topics   *questionmap.Index
	Repo     *repository.FileSystemRepository
	Pipeline *pipeline.Pipeline
}

// initPipeline builds the full dependency graph from the loaded config.
func initPipeline(ctx context.Context) (*Env, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key not configured (INSIGHTS_ANTHROPIC_KEY)")
	}

	kv, err := openKV(ctx)
	if err != nil {
		return nil, err
	}

	registry := compat.NewRegistry(cfg.Data.CompatibilityMap)
	topics := questionmap.NewIndex(cfg.Data.TopicMap)
	repo := repository.NewFileSystem(cfg.Data.Dir, topics)
	cache := threadcache.NewManager(kv)
	llm := anthropic.NewClient(cfg.Anthropic.Key)
	starters := pipeline.NewStarterStore(cfg.Data.StartersDir)

	return &Env{
		KV:       kv,
		Cache:    cache,
		Registry: registry,
		Topics:   topics,
		Repo:     repo,
		Pipeline: pipeline.New(cfg, repo, registry, topics, cache, llm, starters),
	}, nil
}

// openKV opens the thread cache backend named by the config.
func openKV(ctx context.Context) (threadcache.KV, error) {
	switch cfg.Cache.Driver {
	case "memory":
		return threadcache.NewMemory(), nil
	case "sqlite":
		kv, err := threadcache.NewSQLite(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case "postgres":
		kv, err := threadcache.NewPostgres(ctx, cfg.Cache.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return kv, nil
	default:
		return nil, eris.New(fmt.Sprintf("unknown cache driver %q", cfg.Cache.Driver))
	}
}

// Close releases the environment's resources.
func (e *Env) Close() {
	if err := e.KV.Close(); err != nil {
		zap.L().Warn("closing cache backend", zap.Error(err))
	}
}
