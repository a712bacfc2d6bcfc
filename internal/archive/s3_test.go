package archive

import (
	"strings"
	"testing"
)

func TestParseS3BucketURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		wantErr   bool
		wantBkt   string
		wantPre   string
		errSubstr string
	}{
		{name: "bucket only", raw: "s3://noc-reports", wantBkt: "noc-reports"},
		{name: "bucket with prefix", raw: "s3://noc-reports/ponwatch/pivots/", wantBkt: "noc-reports", wantPre: "ponwatch/pivots"},
		{name: "invalid scheme", raw: "https://noc-reports/ponwatch", wantErr: true, errSubstr: "s3:// scheme"},
		{name: "missing bucket", raw: "s3:///ponwatch", wantErr: true, errSubstr: "missing bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gotBkt, gotPre, err := parseS3BucketURL(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errSubstr) {
					t.Fatalf("err = %q, want substring %q", err.Error(), tt.errSubstr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseS3BucketURL error: %v", err)
			}
			if gotBkt != tt.wantBkt || gotPre != tt.wantPre {
				t.Fatalf("got (%q, %q), want (%q, %q)", gotBkt, gotPre, tt.wantBkt, tt.wantPre)
			}
		})
	}
}

func TestS3UploaderArgs(t *testing.T) {
	t.Parallel()

	u := &S3Uploader{
		bucket:   "noc-reports",
		prefix:   "ponwatch",
		region:   "sa-east-1",
		endpoint: normalizeEndpoint("minio.local:9000", false),
	}
	args := strings.Join(u.args("/var/lib/ponwatch/ponwatch-20250305-100000.xlsx"), " ")

	for _, want := range []string{
		"s3 cp /var/lib/ponwatch/ponwatch-20250305-100000.xlsx s3://noc-reports/ponwatch/ponwatch-20250305-100000.xlsx",
		"--region sa-east-1",
		"--endpoint-url http://minio.local:9000",
		"--content-type " + xlsxContentType,
	} {
		if !strings.Contains(args, want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}
}

func TestS3UploaderDestination_NoPrefix(t *testing.T) {
	t.Parallel()

	u := &S3Uploader{bucket: "noc-reports"}
	if got, want := u.Destination("/tmp/ponwatch-20250305-100000.xlsx"), "s3://noc-reports/ponwatch-20250305-100000.xlsx"; got != want {
		t.Fatalf("Destination = %q, want %q", got, want)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{"", true, ""},
		{"minio.local:9000", false, "http://minio.local:9000"},
		{"s3.sa-east-1.amazonaws.com", true, "https://s3.sa-east-1.amazonaws.com"},
		{"http://minio.local:9000", true, "http://minio.local:9000"},
	}
	for _, tt := range tests {
		if got := normalizeEndpoint(tt.endpoint, tt.useSSL); got != tt.want {
			t.Fatalf("normalizeEndpoint(%q, %v) = %q, want %q", tt.endpoint, tt.useSSL, got, tt.want)
		}
	}
}

func TestNewS3Uploader_MissingCredentials(t *testing.T) {
	t.Parallel()

	_, err := NewS3Uploader(S3Config{BucketURL: "s3://noc-reports/ponwatch", Endpoint: "s3.amazonaws.com", UseSSL: true})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
