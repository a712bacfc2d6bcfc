// Package dashboard owns the current merged alarm snapshot: when it is
// refreshed, who may read it and where it is mirrored for SQL queries.
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinytelemetry/ponwatch/internal/alarms"
	"github.com/tinytelemetry/ponwatch/internal/model"
	"github.com/tinytelemetry/ponwatch/internal/report"
	"github.com/tinytelemetry/ponwatch/internal/table"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Merger produces a merged alarm view.
type Merger interface {
	Merge(ctx context.Context) (*alarms.Result, error)
}

// Snapshot is one published refresh. It is never mutated after publication.
type Snapshot struct {
	ID            string
	FetchedAt     time.Time
	Alarms        *table.Table
	HuaweiRows    int
	ZTERows       int
	ClientsLoaded bool
	ClientMatches int
}

// Record summarizes the snapshot for storage and the API.
func (s *Snapshot) Record() model.RefreshRecord {
	return model.RefreshRecord{
		ID:            s.ID,
		FetchedAt:     s.FetchedAt,
		HuaweiRows:    s.HuaweiRows,
		ZTERows:       s.ZTERows,
		ClientMatches: s.ClientMatches,
	}
}

// Config holds tunable parameters for the dashboard state.
type Config struct {
	MaxAge time.Duration
	Now    func() time.Time
}

// State holds the latest snapshot.
type State struct {
	merger  Merger
	store   model.AlarmWriter
	metrics *Metrics
	logger  *zap.Logger
	maxAge  time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	current *Snapshot
	group   singleflight.Group
}

// NewState creates the dashboard state. store and metrics may be nil.
func NewState(merger Merger, store model.AlarmWriter, metrics *Metrics, logger *zap.Logger, conf ...Config) *State {
	s := &State{
		merger:  merger,
		store:   store,
		metrics: metrics,
		logger:  logger,
		maxAge:  model.DefaultRefreshInterval,
		now:     time.Now,
	}
	if len(conf) > 0 {
		if conf[0].MaxAge > 0 {
			s.maxAge = conf[0].MaxAge
		}
		if conf[0].Now != nil {
			s.now = conf[0].Now
		}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Current returns the published snapshot, or nil before the first refresh.
func (s *State) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Stale reports whether there is no snapshot or it is older than the max age.
func (s *State) Stale() bool {
	cur := s.Current()
	return cur == nil || s.now().Sub(cur.FetchedAt) >= s.maxAge
}

// EnsureFresh returns the current snapshot, refreshing first when it is stale.
// A failed refresh falls back to the previous snapshot when there is one.
func (s *State) EnsureFresh(ctx context.Context) (*Snapshot, error) {
	if !s.Stale() {
		return s.Current(), nil
	}
	snap, err := s.Refresh(ctx)
	if err != nil {
		if cur := s.Current(); cur != nil {
			s.logger.Warn("refresh failed, serving previous snapshot",
				zap.String("refresh_id", cur.ID),
				zap.Error(err),
			)
			return cur, nil
		}
		return nil, err
	}
	return snap, nil
}

// Refresh fetches and merges both feeds and publishes the result. Concurrent
// calls share one refresh.
func (s *State) Refresh(ctx context.Context) (*Snapshot, error) {
	ch := s.group.DoChan("refresh", func() (interface{}, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *State) refresh(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	res, err := s.merger.Merge(ctx)
	if err != nil {
		s.metrics.failed()
		s.logger.Error("alarm refresh failed", zap.Error(err))
		return nil, err
	}

	snap := &Snapshot{
		ID:            uuid.NewString(),
		FetchedAt:     s.now(),
		Alarms:        res.Alarms,
		HuaweiRows:    res.HuaweiRows,
		ZTERows:       res.ZTERows,
		ClientsLoaded: res.ClientsLoaded,
		ClientMatches: res.ClientMatches,
	}

	if s.store != nil {
		if err := s.store.ReplaceAlarms(ctx, snap.Record(), snap.Alarms); err != nil {
			s.logger.Warn("storing alarms for queries failed", zap.String("refresh_id", snap.ID), zap.Error(err))
		}
	}

	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()

	s.metrics.observe(snap, time.Since(start).Seconds())
	s.logger.Info("alarm refresh complete",
		zap.String("refresh_id", snap.ID),
		zap.Int("huawei_rows", snap.HuaweiRows),
		zap.Int("zte_rows", snap.ZTERows),
		zap.Int("client_matches", snap.ClientMatches),
		zap.Duration("took", time.Since(start)),
	)
	return snap, nil
}

// View returns a fresh snapshot and its rows narrowed by f.
func (s *State) View(ctx context.Context, f report.Filter) (*Snapshot, *table.Table, error) {
	snap, err := s.EnsureFresh(ctx)
	if err != nil {
		return nil, nil, err
	}
	rows, dated := f.Apply(snap.Alarms)
	if !dated && !snap.Alarms.Empty() {
		s.logger.Warn("HoraPeru column missing, date filter skipped", zap.String("refresh_id", snap.ID))
	}
	return snap, rows, nil
}
