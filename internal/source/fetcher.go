// Package source downloads the published alarm spreadsheets and turns them
// into tables. Fetch failures never propagate: a failed source contributes an
// empty table and a log line.
package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tinytelemetry/ponwatch/internal/table"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Config holds tunable parameters for the fetcher.
type Config struct {
	Timeout  time.Duration
	Cache    Cache
	CacheTTL time.Duration
}

// Fetcher retrieves CSV exports over HTTP.
type Fetcher struct {
	client   *resty.Client
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewFetcher creates a fetcher. Requests are never retried.
func NewFetcher(logger *zap.Logger, conf ...Config) *Fetcher {
	timeout := defaultTimeout
	var cfg Config
	if len(conf) > 0 {
		cfg = conf[0]
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "text/csv")

	return &Fetcher{
		client:   client,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		logger:   logger,
	}
}

// Fetch downloads url and parses it as CSV. Any transport, status or parse
// failure is logged and yields an empty table.
func (f *Fetcher) Fetch(ctx context.Context, url string) *table.Table {
	body, err := f.body(ctx, url)
	if err != nil {
		f.logger.Warn("csv download failed", zap.String("url", url), zap.Error(err))
		return table.New()
	}

	t, err := ParseCSV(bytes.NewReader(body))
	if err != nil {
		f.logger.Warn("csv parse failed", zap.String("url", url), zap.Error(err))
		return table.New()
	}

	f.logger.Debug("csv fetched",
		zap.String("url", url),
		zap.Int("rows", t.Len()),
		zap.Int("columns", len(t.Columns)),
	)
	return t
}

func (f *Fetcher) body(ctx context.Context, url string) ([]byte, error) {
	key := cacheKey(url)
	if f.cache != nil {
		cached, ok, err := f.cache.Get(ctx, key)
		if err != nil {
			f.logger.Warn("csv cache read failed", zap.String("url", url), zap.Error(err))
		} else if ok {
			f.logger.Debug("csv cache hit", zap.String("url", url))
			return cached, nil
		}
	}

	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status %s", resp.Status())
	}
	body := resp.Body()

	if f.cache != nil && f.cacheTTL > 0 {
		if err := f.cache.Set(ctx, key, body, f.cacheTTL); err != nil {
			f.logger.Warn("csv cache write failed", zap.String("url", url), zap.Error(err))
		}
	}
	return body, nil
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "ponwatch:csv:" + hex.EncodeToString(sum[:])
}
