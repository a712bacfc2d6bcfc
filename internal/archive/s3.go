package archive

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"strings"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultS3Region = "us-east-1"
)

// S3Config holds S3 uploader parameters.
type S3Config struct {
	BucketURL    string
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	SessionToken string
	UseSSL       bool
}

// S3Uploader copies workbooks to a bucket with `aws s3 cp`.
type S3Uploader struct {
	bucket   string
	prefix   string
	region   string
	endpoint string
	env      []string
}

// NewS3Uploader validates cfg. BucketURL is s3://bucket with an optional
// key prefix path; the aws binary must be on PATH.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	bucket, prefix, err := parseS3BucketURL(cfg.BucketURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("archive: s3 access key and secret key are required")
	}
	if _, err := exec.LookPath("aws"); err != nil {
		return nil, errors.New("archive: aws cli not found in PATH")
	}

	u := &S3Uploader{
		bucket:   bucket,
		prefix:   prefix,
		region:   cmp.Or(strings.TrimSpace(cfg.Region), defaultS3Region),
		endpoint: normalizeEndpoint(cfg.Endpoint, cfg.UseSSL),
	}
	u.env = []string{
		"AWS_ACCESS_KEY_ID=" + cfg.AccessKey,
		"AWS_SECRET_ACCESS_KEY=" + cfg.SecretKey,
		"AWS_DEFAULT_REGION=" + u.region,
	}
	if token := strings.TrimSpace(cfg.SessionToken); token != "" {
		u.env = append(u.env, "AWS_SESSION_TOKEN="+token)
	}
	return u, nil
}

// Destination is the object URL a report file is copied to.
func (u *S3Uploader) Destination(localPath string) string {
	return (&url.URL{
		Scheme: "s3",
		Host:   u.bucket,
		Path:   "/" + path.Join(u.prefix, path.Base(localPath)),
	}).String()
}

// UploadFile copies one workbook. The CLI's output is returned on failure.
func (u *S3Uploader) UploadFile(ctx context.Context, localPath string) error {
	cmd := exec.CommandContext(ctx, "aws", u.args(localPath)...)
	cmd.Env = append(os.Environ(), u.env...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("archive: upload %s: %w: %s", path.Base(localPath), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (u *S3Uploader) args(localPath string) []string {
	args := []string{
		"s3", "cp", localPath, u.Destination(localPath),
		"--region", u.region,
		"--content-type", xlsxContentType,
		"--only-show-errors",
	}
	if u.endpoint != "" {
		args = append(args, "--endpoint-url", u.endpoint)
	}
	return args
}

// normalizeEndpoint adds a scheme to a bare host:port endpoint.
func normalizeEndpoint(endpoint string, useSSL bool) string {
	endpoint = strings.TrimSpace(endpoint)
	switch {
	case endpoint == "":
		return ""
	case strings.Contains(endpoint, "://"):
		return endpoint
	case useSSL:
		return "https://" + endpoint
	default:
		return "http://" + endpoint
	}
}

func parseS3BucketURL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	switch {
	case err != nil:
		return "", "", fmt.Errorf("archive: archive-bucket-url: %w", err)
	case u.Scheme != "s3":
		return "", "", fmt.Errorf("archive: archive-bucket-url must use the s3:// scheme, got %q", raw)
	case u.Host == "":
		return "", "", fmt.Errorf("archive: archive-bucket-url %q is missing bucket name", raw)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}
