// Package restapi implements the connector interface over a read-only
// HTTP API. The query text is an endpoint path; params become the query
// string.
package restapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	liveagent "github.com/ternlabs/liveagent"
	"github.com/ternlabs/liveagent/connector"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// Config for the REST API connector.
type Config struct {
	BaseURL string
	Headers map[string]string

	// HealthPath is probed by Health. Defaults to "/health".
	HealthPath string

	// DataPath is a gjson path selecting the row collection in the
	// response document. Empty selects the whole document.
	DataPath string

	// TimestampPath is a gjson path to the store-reported data
	// timestamp (RFC 3339).
	TimestampPath string

	// RedactFields are gjson paths deleted from the payload before it
	// is surfaced.
	RedactFields []string

	MaxRows       int
	QueryTimeout  time.Duration
	MaxConcurrent int64
}

// Connector is an HTTP API data source.
type Connector struct {
	cfg    Config
	base   *url.URL
	client *http.Client
}

// New creates an unconnected REST API connector.
func New(cfg Config) *Connector {
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/health"
	}
	return &Connector{cfg: cfg}
}

// Connect validates the base URL and builds the HTTP client.
func (c *Connector) Connect(ctx context.Context) error {
	base, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("%w: invalid base url %q", liveagent.ErrConnection, c.cfg.BaseURL)
	}
	c.base = base
	c.client = &http.Client{}
	return nil
}

// Query performs a GET against path and normalizes the JSON response
// into rows.
func (c *Connector) Query(ctx context.Context, path string, params map[string]any) (*liveagent.QueryResult, error) {
	if c.client == nil {
		return nil, fmt.Errorf("%w: not connected", liveagent.ErrConnection)
	}

	body, err := c.get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	for _, field := range c.cfg.RedactFields {
		body, _ = sjson.DeleteBytes(body, field)
	}

	doc := gjson.ParseBytes(body)
	data := doc
	if c.cfg.DataPath != "" {
		data = doc.Get(c.cfg.DataPath)
	}

	result := &liveagent.QueryResult{
		Rows: toRows(data),
	}
	result.Count = len(result.Rows)

	if c.cfg.TimestampPath != "" {
		if ts, err := time.Parse(time.RFC3339, doc.Get(c.cfg.TimestampPath).String()); err == nil {
			result.DataTimestamp = ts
		}
	}
	return result, nil
}

func (c *Connector) get(ctx context.Context, path string, params map[string]any) ([]byte, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path

	if len(params) > 0 {
		q := u.Query()
		for name, value := range params {
			q.Set(name, fmt.Sprint(value))
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for name, value := range c.cfg.Headers {
		req.Header.Set(name, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", liveagent.ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("http %d from %s", resp.StatusCode, path)
	}
	return body, nil
}

// toRows normalizes a JSON value into row maps: an array of objects
// maps one row per element, a single object is one row, and scalars are
// wrapped under "value".
func toRows(data gjson.Result) []map[string]any {
	if !data.Exists() {
		return nil
	}

	if data.IsArray() {
		var rows []map[string]any
		data.ForEach(func(_, item gjson.Result) bool {
			rows = append(rows, toRow(item))
			return true
		})
		return rows
	}
	return []map[string]any{toRow(data)}
}

func toRow(item gjson.Result) map[string]any {
	if item.IsObject() {
		row := make(map[string]any)
		item.ForEach(func(key, value gjson.Result) bool {
			row[key.String()] = value.Value()
			return true
		})
		return row
	}
	return map[string]any{"value": item.Value()}
}

// Health probes the configured health endpoint.
func (c *Connector) Health(ctx context.Context) liveagent.HealthState {
	if c.client == nil || c.base == nil {
		return liveagent.HealthUnreachable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+c.cfg.HealthPath, nil)
	if err != nil {
		return liveagent.HealthUnreachable
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return liveagent.HealthUnreachable
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return liveagent.HealthDegraded
	}
	return liveagent.HealthHealthy
}

// Close drops the HTTP client.
func (c *Connector) Close() error {
	if c.client != nil {
		c.client.CloseIdleConnections()
		c.client = nil
	}
	return nil
}

// Limits reports the configured execution bounds. REST sources are
// always read-only: the connector only issues GETs.
func (c *Connector) Limits() connector.Limits {
	return connector.Limits{
		Kind:          connector.KindHTTP,
		ReadOnly:      true,
		MaxRows:       c.cfg.MaxRows,
		QueryTimeout:  c.cfg.QueryTimeout,
		MaxConcurrent: c.cfg.MaxConcurrent,
	}
}
