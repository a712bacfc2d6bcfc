// Package archive keeps a rolling local history of pivot report workbooks and
// optionally copies each one to S3.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultInterval = time.Hour
	defaultKeepLast = 48

	filePrefix = "ponwatch-"
	fileExt    = ".xlsx"
)

// Manager runs periodic exports and optional remote uploads.
type Manager struct {
	exporter Exporter
	cfg      Config
	uploader Uploader
	logger   *zap.Logger
	now      func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewManager starts the archive loop. It returns nil when archiving is disabled.
func NewManager(exporter Exporter, cfg Config, logger *zap.Logger) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if exporter == nil {
		return nil, fmt.Errorf("archive: nil exporter")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if strings.TrimSpace(cfg.LocalDir) == "" {
		return nil, fmt.Errorf("archive: archive-dir is required when archiving is enabled")
	}
	if cfg.KeepLast <= 0 {
		cfg.KeepLast = defaultKeepLast
	}
	if err := os.MkdirAll(cfg.LocalDir, 0755); err != nil {
		return nil, fmt.Errorf("archive: create archive-dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var uploader Uploader
	if strings.TrimSpace(cfg.BucketURL) != "" {
		s3u, err := NewS3Uploader(S3Config{
			BucketURL:    cfg.BucketURL,
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			SessionToken: cfg.S3SessionToken,
			UseSSL:       cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("archive: init s3 uploader: %w", err)
		}
		uploader = s3u
	}

	m := newManager(exporter, cfg, uploader, logger)
	m.wg.Add(1)
	go m.loop()
	return m, nil
}

func newManager(exporter Exporter, cfg Config, uploader Uploader, logger *zap.Logger) *Manager {
	m := &Manager{
		exporter: exporter,
		cfg:      cfg,
		uploader: uploader,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

func (m *Manager) loop() {
	defer m.wg.Done()

	if _, err := m.RunOnce(m.ctx); err != nil {
		m.logger.Warn("startup report archive failed", zap.Error(err))
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.RunOnce(m.ctx); err != nil {
				m.logger.Warn("periodic report archive failed", zap.Error(err))
			}
		case <-m.done:
			return
		}
	}
}

// RunOnce exports one workbook, uploads it when configured and prunes old
// local copies. It returns the path written.
func (m *Manager) RunOnce(ctx context.Context) (string, error) {
	fileName := filePrefix + m.now().UTC().Format("20060102-150405") + fileExt
	localPath := filepath.Join(m.cfg.LocalDir, fileName)

	if err := m.exporter.ExportPivot(ctx, localPath); err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	m.logger.Info("archived pivot report", zap.String("path", localPath))

	if m.uploader != nil {
		if err := m.uploader.UploadFile(ctx, localPath); err != nil {
			return localPath, fmt.Errorf("upload: %w", err)
		}
		m.logger.Info("uploaded pivot report", zap.String("file", fileName))
	}

	if err := pruneLocalReports(m.cfg.LocalDir, m.cfg.KeepLast); err != nil {
		return localPath, fmt.Errorf("prune local reports: %w", err)
	}
	return localPath, nil
}

// Stop terminates the archive loop and cancels an in-flight export or upload.
func (m *Manager) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		m.cancel()
		close(m.done)
		m.wg.Wait()
	})
}

func pruneLocalReports(localDir string, keepLast int) error {
	if keepLast <= 0 {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(localDir, filePrefix+"*"+fileExt))
	if err != nil {
		return err
	}
	if len(matches) <= keepLast {
		return nil
	}

	// The timestamp in the name sorts chronologically.
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))

	for _, oldPath := range matches[keepLast:] {
		if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
