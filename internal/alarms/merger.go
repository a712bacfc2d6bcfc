// Package alarms combines the vendor alarm feeds into the merged alarm view:
// gestor tagging, the DEV_2 composite key, alarm names and the client join.
package alarms

import (
	"context"

	"github.com/tinytelemetry/ponwatch/internal/model"
	"github.com/tinytelemetry/ponwatch/internal/normalize"
	"github.com/tinytelemetry/ponwatch/internal/table"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const diagnosticSample = 5

// Fetcher downloads one CSV source. Implementations degrade to an empty table
// instead of failing.
type Fetcher interface {
	Fetch(ctx context.Context, url string) *table.Table
}

// Config names the sources the merger reads.
type Config struct {
	HuaweiURL   string
	ZTEURL      string
	ClientsPath string
	FaultNames  FaultNames
}

// Result is the merged alarm view plus per-source counts.
type Result struct {
	Alarms        *table.Table
	HuaweiRows    int
	ZTERows       int
	ClientsLoaded bool
	ClientMatches int
}

// Merger runs the fetch, combine and join pipeline.
type Merger struct {
	fetcher Fetcher
	clients model.ClientLoader
	cfg     Config
	logger  *zap.Logger
}

// NewMerger creates a merger. clients may be nil to skip the client join.
func NewMerger(fetcher Fetcher, clients model.ClientLoader, cfg Config, logger *zap.Logger) *Merger {
	if cfg.FaultNames == nil {
		cfg.FaultNames = DefaultFaultNames()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{
		fetcher: fetcher,
		clients: clients,
		cfg:     cfg,
		logger:  logger,
	}
}

// Merge fetches both vendor feeds concurrently and builds the merged view.
// A failed feed contributes no rows; only context cancellation is an error.
func (m *Merger) Merge(ctx context.Context) (*Result, error) {
	var huawei, zte *table.Table

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		huawei = m.fetcher.Fetch(gctx, m.cfg.HuaweiURL)
		return nil
	})
	g.Go(func() error {
		zte = m.fetcher.Fetch(gctx, m.cfg.ZTEURL)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	TagGestor(huawei, model.GestorHuawei)
	TagGestor(zte, model.GestorZTE)

	merged := table.Concat(huawei, zte)
	res := &Result{
		Alarms:     merged,
		HuaweiRows: huawei.Len(),
		ZTERows:    zte.Len(),
	}
	if merged.Empty() {
		m.logger.Warn("no alarms fetched from either source")
		return res, nil
	}

	if err := DeriveKey(merged); err != nil {
		m.logger.Warn("DEV_2 not derived", zap.Error(err))
	}
	DeriveAlarmNames(merged, m.cfg.FaultNames)

	idx := m.loadClients(ctx)
	if idx != nil {
		res.ClientsLoaded = true
		matches, err := JoinClients(merged, idx)
		if err != nil {
			m.logger.Warn("client join skipped", zap.Error(err))
		}
		res.ClientMatches = matches
	}

	m.logDiagnostics(res, idx)
	return res, nil
}

func (m *Merger) loadClients(ctx context.Context) *model.ClientIndex {
	if m.clients == nil || m.cfg.ClientsPath == "" {
		m.logger.Warn("client snapshot not configured")
		return nil
	}
	idx, err := m.clients.LoadClients(ctx, m.cfg.ClientsPath)
	if err != nil {
		m.logger.Warn("could not load client snapshot", zap.String("path", m.cfg.ClientsPath), zap.Error(err))
		return nil
	}
	if idx.Len() == 0 {
		m.logger.Warn("client snapshot is empty", zap.String("path", m.cfg.ClientsPath))
		return nil
	}
	return idx
}

func (m *Merger) logDiagnostics(res *Result, idx *model.ClientIndex) {
	var sample []string
	for _, r := range res.Alarms.Rows {
		if len(sample) == diagnosticSample {
			break
		}
		if k, ok := r.Get(model.ColDEV2); ok {
			sample = append(sample, k)
		}
	}
	m.logger.Debug("alarm key sample", zap.Strings("dev_2", sample))

	if idx == nil {
		return
	}
	m.logger.Debug("client key sample", zap.Strings("dev_2", idx.SampleKeys(diagnosticSample)))
	m.logger.Info("client matches",
		zap.Int("matches", res.ClientMatches),
		zap.Int("rows", res.Alarms.Len()),
	)
}

// TagGestor sets the Gestor column on every row of a non-empty table.
func TagGestor(t *table.Table, gestor string) {
	if t.Empty() {
		return
	}
	t.SetAll(model.ColGestor, gestor)
}

// DeriveKey adds DEV_2 when all of DEV, FN, SN and PN are columns. The check
// is per table, not per row; null parts become empty segments.
func DeriveKey(t *table.Table) error {
	if err := t.Validate(model.KeyColumns...); err != nil {
		return err
	}
	t.AddColumn(model.ColDEV2)
	for _, r := range t.Rows {
		r[model.ColDEV2] = normalize.CompositeKey(
			r.Value(model.ColDEV),
			r.Value(model.ColFN),
			r.Value(model.ColSN),
			r.Value(model.ColPN),
		)
	}
	return nil
}

// DeriveAlarmNames adds NAME_ALARM from FaultID when the source did not
// already provide a NAME_ALARM column.
func DeriveAlarmNames(t *table.Table, names FaultNames) {
	if t.HasColumn(model.ColNameAlarm) || !t.HasColumn(model.ColFaultID) {
		return
	}
	t.AddColumn(model.ColNameAlarm)
	for _, r := range t.Rows {
		code, ok := r.Get(model.ColFaultID)
		if !ok {
			r[model.ColNameAlarm] = ""
			continue
		}
		r[model.ColNameAlarm] = names.Name(code)
	}
}

// JoinClients left-joins the client labels onto t by DEV_2 as Cliente_puerto
// and returns the number of matched rows. Row count never changes.
func JoinClients(t *table.Table, idx *model.ClientIndex) (int, error) {
	if err := t.Validate(model.ColDEV2); err != nil {
		return 0, err
	}
	t.AddColumn(model.ColClientePuerto)
	matches := 0
	for _, r := range t.Rows {
		key, ok := r.Get(model.ColDEV2)
		if !ok {
			continue
		}
		if label, found := idx.Lookup(key); found {
			r[model.ColClientePuerto] = label
			matches++
		}
	}
	return matches, nil
}
