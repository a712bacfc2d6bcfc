package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tinytelemetry/ponwatch/internal/alarms"
	"github.com/tinytelemetry/ponwatch/internal/dashboard"
	"github.com/tinytelemetry/ponwatch/internal/duckdb"
	"github.com/tinytelemetry/ponwatch/internal/source"
	"go.uber.org/zap"
)

// pipeline is the fetch, merge and store chain shared by serve and report.
type pipeline struct {
	store    *duckdb.Store
	registry *prometheus.Registry
	state    *dashboard.State

	closers []func() error
}

func newPipeline(ctx context.Context, cfg appConfig, logger *zap.Logger) (*pipeline, error) {
	p := &pipeline{}

	store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	p.store = store
	p.closers = append(p.closers, store.Close)

	fetchConf := source.Config{Timeout: cfg.FetchTimeout, CacheTTL: cfg.CacheTTL}
	if cfg.RedisAddr != "" {
		cache, err := source.NewRedisCache(ctx, source.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			// The feeds are still reachable without the cache.
			logger.Warn("redis cache unavailable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			fetchConf.Cache = cache
			p.closers = append(p.closers, cache.Close)
		}
	}
	fetcher := source.NewFetcher(logger.Named("source"), fetchConf)

	faults, err := alarms.LoadFaultNames(cfg.FaultNamesPath)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to load fault names: %w", err)
	}

	merger := alarms.NewMerger(fetcher, store, alarms.Config{
		HuaweiURL:   cfg.HuaweiURL,
		ZTEURL:      cfg.ZTEURL,
		ClientsPath: cfg.ClientsPath,
		FaultNames:  faults,
	}, logger.Named("alarms"))

	p.registry = prometheus.NewRegistry()
	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := dashboard.NewMetrics(p.registry)

	p.state = dashboard.NewState(merger, store, metrics, logger.Named("dashboard"), dashboard.Config{
		MaxAge: cfg.RefreshInterval,
	})
	return p, nil
}

// Close releases the store and cache in reverse order of creation.
func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		_ = p.closers[i]()
	}
	p.closers = nil
}
