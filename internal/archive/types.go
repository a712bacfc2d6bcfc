package archive

import (
	"context"
	"time"
)

// Config controls periodic pivot report archiving.
type Config struct {
	Enabled   bool
	Interval  time.Duration
	LocalDir  string
	KeepLast  int
	BucketURL string

	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3SessionToken string
	S3UseSSL       bool
}

// Exporter writes the current pivot report as a workbook at dstPath.
type Exporter interface {
	ExportPivot(ctx context.Context, dstPath string) error
}

// Uploader uploads one archived report.
type Uploader interface {
	UploadFile(ctx context.Context, localPath string) error
}
