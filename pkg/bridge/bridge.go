// Package bridge implements the client for the remote search service that
// fronts stores too large to ship locally. The bridge speaks a small JSON
// protocol authenticated by a shared secret header. All failures degrade to
// an empty result: the bridge is one optional participant among several and
// must never abort a federated search.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dindinbro/discreen/pkg/classify"
	"github.com/dindinbro/discreen/pkg/core"
	"github.com/dindinbro/discreen/pkg/lineparse"
	"github.com/dindinbro/discreen/pkg/log"
)

var logger = log.ForService("bridge")

const (
	secretHeader   = "X-Bridge-Secret"
	healthTimeout  = 5 * time.Second
	defaultTimeout = 2 * time.Minute
)

// Client talks to one bridge instance.
type Client struct {
	url    string
	secret string
	http   *http.Client
	parser *lineparse.Parser
}

// NewClient builds a bridge client. A zero timeout selects the default of
// two minutes.
func NewClient(url, secret string, timeout time.Duration, parser *lineparse.Parser) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:    strings.TrimRight(url, "/"),
		secret: secret,
		http:   &http.Client{Timeout: timeout},
		parser: parser,
	}
}

// HealthInfo is the bridge's self-reported state.
type HealthInfo struct {
	Status    string   `json:"status"`
	Databases int      `json:"databases"`
	Names     []string `json:"names"`
}

// Health probes the bridge with a short deadline, independent of the search
// timeout. An unreachable bridge is reported as an error, not a panic state:
// the orchestrator simply leaves the participant out.
func (c *Client) Health(ctx context.Context) (*HealthInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("building health request: %w", err)
	}
	req.Header.Set(secretHeader, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bridge health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge health: status %d", resp.StatusCode)
	}

	var info HealthInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding health response: %w", err)
	}
	return &info, nil
}

type searchRequest struct {
	Criteria []core.Criterion `json:"criteria"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

type searchResponse struct {
	Results []map[string]any `json:"results"`
	Total   *int             `json:"total"`
	Partial bool             `json:"partial"`
}

// Search runs the query on the bridge. Transport errors, non-2xx statuses
// and malformed payloads all collapse to an empty result with a known total
// of zero; the cause is logged at this layer and goes no further.
func (c *Client) Search(ctx context.Context, criteria []core.Criterion, limit, offset int) *core.Result {
	body, err := json.Marshal(searchRequest{Criteria: criteria, Limit: limit, Offset: offset})
	if err != nil {
		logger.Errorf("encoding search request: %v", err)
		return emptyResult()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/search", bytes.NewReader(body))
	if err != nil {
		logger.Errorf("building search request: %v", err)
		return emptyResult()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretHeader, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warnf("bridge search failed: %v", err)
		return emptyResult()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		logger.Warnf("bridge search: status %d", resp.StatusCode)
		return emptyResult()
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		logger.Warnf("bridge search: malformed response: %v", err)
		return emptyResult()
	}

	result := &core.Result{
		Records: c.normalizeRows(payload.Results),
		Total:   payload.Total,
		Partial: payload.Partial,
	}
	return result
}

// rawMarkers are row keys whose presence means the row is an unparsed line
// rather than an already-normalized record.
var rawMarkers = []string{"line", "content", "data"}

// normalizeRows routes each result row through the parser when it carries a
// raw line, or converts it field-by-field when it is already normalized.
func (c *Client) normalizeRows(rows []map[string]any) []*core.Record {
	var records []*core.Record
	for _, row := range rows {
		if rec, ok := c.normalizeRow(row); ok {
			records = append(records, rec)
		}
	}
	return records
}

func (c *Client) normalizeRow(row map[string]any) (*core.Record, bool) {
	source := stringValue(row["source"])
	if s := stringValue(row["_source"]); s != "" {
		source = s
	}

	for _, marker := range rawMarkers {
		if line := stringValue(row[marker]); line != "" {
			return c.parser.Parse(line, source)
		}
	}

	rec := core.NewRecord(source)
	for key, value := range row {
		switch key {
		case "source", "_source", "rownum", "_raw":
			continue
		}
		v := stringValue(value)
		if v == "" {
			continue
		}
		rec.Set(classify.MapHeaderKey(key), v)
	}
	if raw := stringValue(row["_raw"]); raw != "" {
		rec.SetRaw(raw)
	}
	if rec.Len() == 0 {
		return nil, false
	}
	return rec, true
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", t), "0"), ".")
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

func emptyResult() *core.Result {
	return &core.Result{Total: core.KnownTotal(0)}
}
