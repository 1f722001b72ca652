package api

import "github.com/dindinbro/discreen/pkg/core"

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	Criteria []core.Criterion `json:"criteria"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// SearchResponse carries one merged result set.
type SearchResponse struct {
	QueryID string         `json:"query_id"`
	Records []*core.Record `json:"records"`
	Count   int            `json:"count"`
	Total   *int           `json:"total"`
	Partial bool           `json:"partial"`
	TookMS  int64          `json:"took_ms"`
}

// SourcesResponse lists the registry's view of local sources.
type SourcesResponse struct {
	Active  []string          `json:"active"`
	Skipped map[string]string `json:"skipped,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Sources int    `json:"sources"`
	Bridge  bool   `json:"bridge"`
	Version string `json:"version"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
