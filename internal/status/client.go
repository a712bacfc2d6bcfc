// Package status queries the tunnel-hosted network-management API for the live
// state of an ONT. Failures are returned to the caller and never retried.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultTimeout = 15 * time.Second

var (
	// ErrNotConfigured is returned when no status API base URL is set.
	ErrNotConfigured = errors.New("status API not configured")
	// ErrUnknownGestor is returned for a vendor without a status endpoint.
	ErrUnknownGestor = errors.New("unknown gestor")
	// ErrUnavailable wraps transport failures.
	ErrUnavailable = errors.New("status API unavailable")
	// ErrInvalidResponse is returned when the body is not a JSON object.
	ErrInvalidResponse = errors.New("status API returned a non-JSON response")
)

// Fields each endpoint must return.
var (
	SerialFields = []string{"serial", "dev", "fn", "sn", "pn", "gestor"}
	HuaweiFields = []string{"run_state", "rx_power", "tx_power", "last_down_cause"}
	ZTEFields    = []string{"phase_state", "rx_power", "tx_power", "offline_reason"}
)

type endpoint struct {
	path   string
	fields []string
}

var portEndpoints = map[string]endpoint{
	"huawei": {path: "/huawei/ont", fields: HuaweiFields},
	"zte":    {path: "/zte/onu", fields: ZTEFields},
}

// HTTPError is a non-200 answer from the status API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("status API returned HTTP %d: %s", e.StatusCode, e.Body)
}

// MissingFieldsError lists expected fields absent from a response.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "status API response missing fields: " + strings.Join(e.Fields, ", ")
}

// Port addresses one PON port on an OLT.
type Port struct {
	DEV string
	FN  string
	SN  string
	PN  string
}

// Result is the decoded JSON object returned by the status API.
type Result map[string]any

// Client talks to the status API.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient creates a client for baseURL. An empty baseURL yields a client
// whose calls fail with ErrNotConfigured.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var rc *resty.Client
	if baseURL != "" {
		rc = resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetRetryCount(0).
			SetHeader("Accept", "application/json")
	}
	return &Client{http: rc, logger: logger}
}

// Configured reports whether a base URL was set.
func (c *Client) Configured() bool {
	return c.http != nil
}

// Serial looks up which port a serial number is registered on.
func (c *Client) Serial(ctx context.Context, serial string) (Result, error) {
	if strings.TrimSpace(serial) == "" {
		return nil, errors.New("serial is required")
	}
	return c.get(ctx, "/serial/{serial}", map[string]string{"serial": serial}, nil, SerialFields)
}

// PortStatus returns the live state of the ONT on p for the given gestor
// (huawei or zte, case-insensitive).
func (c *Client) PortStatus(ctx context.Context, gestor string, p Port) (Result, error) {
	ep, ok := portEndpoints[strings.ToLower(gestor)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGestor, gestor)
	}
	query := map[string]string{"dev": p.DEV, "fn": p.FN, "sn": p.SN, "pn": p.PN}
	for k, v := range query {
		if v == "" {
			return nil, fmt.Errorf("%s is required", k)
		}
	}
	return c.get(ctx, ep.path, nil, query, ep.fields)
}

func (c *Client) get(ctx context.Context, path string, pathParams, query map[string]string, fields []string) (Result, error) {
	if c.http == nil {
		return nil, ErrNotConfigured
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(pathParams).
		SetQueryParams(query).
		Get(path)
	if err != nil {
		c.logger.Warn("status API call failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() != 200 {
		c.logger.Warn("status API error",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, &HTTPError{StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 200)}
	}

	var result Result
	if err := json.Unmarshal(resp.Body(), &result); err != nil || result == nil {
		return nil, ErrInvalidResponse
	}

	var missing []string
	for _, f := range fields {
		if _, ok := result[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingFieldsError{Fields: missing}
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
