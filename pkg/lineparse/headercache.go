package lineparse

import (
	"regexp"
	"strings"
	"sync"

	"github.com/dindinbro/discreen/pkg/classify"
)

var headerTokenRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// HeaderCache remembers, per source label, the canonical header list inferred
// from that source's first rows. It lets the parser split pipe-delimited
// lines positionally when they come from a tabular export instead of free
// text. The cache is best-effort: absence never blocks parsing.
type HeaderCache struct {
	mu      sync.RWMutex
	headers map[string][]string
}

// NewHeaderCache returns an empty cache.
func NewHeaderCache() *HeaderCache {
	return &HeaderCache{headers: make(map[string][]string)}
}

// Headers returns the cached canonical header list for a source.
func (c *HeaderCache) Headers(source string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.headers[source]
	return h, ok
}

// Learn stores a header list for a source, mapping each name to its
// canonical form. The first learned list wins.
func (c *HeaderCache) Learn(source string, headers []string) {
	if source == "" || len(headers) == 0 {
		return
	}
	canonical := make([]string, len(headers))
	for i, h := range headers {
		canonical[i] = classify.MapHeaderKey(h)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.headers[source]; exists {
		return
	}
	c.headers[source] = canonical
}

// LearnFromLine inspects a raw line and, when it looks like a pipe-delimited
// header row, records it for the source. Returns true when the line was
// consumed as a header.
func (c *HeaderCache) LearnFromLine(source, line string) bool {
	if !strings.Contains(line, "|") {
		return false
	}
	parts := strings.Split(line, "|")
	if !looksLikeHeaderRow(parts) {
		return false
	}
	c.Learn(source, trimAll(parts))
	return true
}

// looksLikeHeaderRow reports whether every non-empty token is a plain
// lowercase identifier, the signature of a column-name row.
func looksLikeHeaderRow(parts []string) bool {
	seen := 0
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !headerTokenRe.MatchString(p) {
			return false
		}
		seen++
	}
	return seen >= 2
}

func trimAll(parts []string) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}
