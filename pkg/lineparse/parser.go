// Package lineparse turns arbitrary unstructured text lines into normalized
// records. Parsing tries an ordered list of strategies, first success wins:
// brace-delimited object literals, header-guided positional splits, then a
// generic delimiter split with token classification.
package lineparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dindinbro/discreen/pkg/classify"
	"github.com/dindinbro/discreen/pkg/core"
)

// Parser converts raw lines into records. It is safe for concurrent use.
type Parser struct {
	headers *HeaderCache
}

// NewParser returns a parser backed by the given header cache. A nil cache
// disables the header-guided strategy.
func NewParser(headers *HeaderCache) *Parser {
	return &Parser{headers: headers}
}

// Headers exposes the parser's header cache so searchers can feed it the
// first rows of each source.
func (p *Parser) Headers() *HeaderCache { return p.headers }

// Parse turns one raw line into a record. It never fails hard: the second
// return value is false only when the line yields literally zero fields,
// which callers treat as "no useful record" and drop.
func (p *Parser) Parse(line, source string) (*core.Record, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, false
	}

	if rec, ok := p.parseObjectLiteral(trimmed, source); ok {
		return rec, true
	}
	if rec, ok, consumed := p.parseWithHeaders(trimmed, source); consumed {
		return rec, ok
	}
	// A pipe-delimited header row seen before any data populates the cache
	// for this source and yields no record itself.
	if p.headers != nil && p.headers.LearnFromLine(source, trimmed) {
		return nil, false
	}
	return p.parseDelimited(trimmed, source)
}

var (
	objectPairRe = regexp.MustCompile(`"?([A-Za-z_][A-Za-z0-9_-]*)"?\s*:\s*(?:"((?:[^"\\]|\\.)*)"|(-?\d+(?:\.\d+)?))`)
	isoDateRe    = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})([T ].*)?$`)
)

// parseObjectLiteral recovers key/value pairs from lines that look like a
// JSON-ish object literal. It is deliberately regex-based: many dump lines
// are truncated or mangled JSON that no strict decoder accepts.
func (p *Parser) parseObjectLiteral(line, source string) (*core.Record, bool) {
	if !strings.HasPrefix(line, "{") && !strings.HasPrefix(line, "[{") {
		return nil, false
	}

	rec := core.NewRecord(source)
	for _, m := range objectPairRe.FindAllStringSubmatch(line, -1) {
		key := classify.MapHeaderKey(m[1])
		value := m[2]
		if value == "" {
			value = m[3]
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if key == "cplt_adresse" {
			rec.Append(core.FieldAdresse, value)
			continue
		}
		rec.Set(key, convertISODate(value))
	}
	if rec.Len() == 0 {
		return nil, false
	}
	rec.SetRaw(line)
	return rec, true
}

// parseWithHeaders splits a pipe-delimited line positionally against the
// cached header list of its source. The third return value reports whether
// the strategy claimed the line at all.
func (p *Parser) parseWithHeaders(line, source string) (*core.Record, bool, bool) {
	if p.headers == nil || !strings.Contains(line, "|") {
		return nil, false, false
	}
	headers, ok := p.headers.Headers(source)
	if !ok {
		return nil, false, false
	}

	parts := strings.Split(line, "|")
	// A row made only of lowercase identifiers is the header row itself,
	// not data.
	if looksLikeHeaderRow(parts) {
		return nil, false, true
	}

	rec := core.NewRecord(source)
	for i, part := range parts {
		if i >= len(headers) {
			break
		}
		value := strings.TrimSpace(part)
		if value == "" || headers[i] == "" {
			continue
		}
		rec.Set(headers[i], convertISODate(value))
	}
	if rec.Len() == 0 {
		return nil, false, true
	}
	rec.SetRaw(line)
	return rec, true, true
}

// parseDelimited is the fallback strategy: detect the dominant delimiter,
// classify each part, then distribute the unclassified leftovers.
func (p *Parser) parseDelimited(line, source string) (*core.Record, bool) {
	parts := splitDominant(line)
	if len(parts) == 0 {
		return nil, false
	}

	rec := core.NewRecord(source)
	rec.SetRaw(line)

	if len(parts) == 1 {
		rec.Set(core.FieldDonnee, parts[0])
		return rec, true
	}

	assigned := make([]bool, len(parts))
	for i, part := range parts {
		kind, ok := classify.Classify(part)
		if !ok {
			continue
		}
		field := string(kind)
		if rec.Has(field) {
			continue
		}
		rec.Set(field, convertISODate(part))
		assigned[i] = true
	}

	var leftovers []string
	for i, part := range parts {
		if !assigned[i] {
			leftovers = append(leftovers, part)
		}
	}
	assignLeftovers(rec, leftovers)

	if rec.Len() == 0 {
		return nil, false
	}
	return rec, true
}

// assignLeftovers distributes tokens the classifier could not type. The
// order encodes how credential dumps are usually laid out: identifier first,
// then secret, then location and name data.
func assignLeftovers(rec *core.Record, leftovers []string) {
	if len(leftovers) > 0 {
		if !rec.Has(core.FieldEmail) || len(leftovers) >= 2 {
			rec.Set(core.FieldIdentifiant, leftovers[0])
			leftovers = leftovers[1:]
		}
	}

	if len(leftovers) > 0 {
		next := leftovers[0]
		if classify.IsHash(next) && !rec.Has(core.FieldHash) {
			rec.Set(core.FieldHash, next)
			leftovers = leftovers[1:]
		} else if !rec.Has(core.FieldPassword) {
			rec.Set(core.FieldPassword, next)
			leftovers = leftovers[1:]
		}
	}

	extra := 0
	for _, token := range leftovers {
		switch {
		case rec.Has(core.FieldCodePostal) && !rec.Has(core.FieldVille) && isWordLike(token):
			rec.Set(core.FieldVille, token)
		case !rec.Has(core.FieldNom):
			rec.Set(core.FieldNom, token)
		case !rec.Has(core.FieldPrenom):
			rec.Set(core.FieldPrenom, token)
		default:
			extra++
			rec.Set("champ_"+strconv.Itoa(extra), token)
		}
	}
}

// splitDominant detects the dominant delimiter among ':', ';' and '|' and
// splits the line on it. URLs are special-cased so "://" never causes a
// false colon split.
func splitDominant(line string) []string {
	sep := dominantSeparator(line)

	var parts []string
	if sep == ":" && urlAnyRe.MatchString(line) {
		parts = splitColonsPreservingURLs(line)
	} else {
		parts = strings.Split(line, sep)
	}

	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var urlPrefixRe = regexp.MustCompile(`^(?i)(https?://[^\s:]+)`)
var urlAnyRe = regexp.MustCompile(`(?i)https?://[^\s;|,]+`)

func dominantSeparator(line string) string {
	counted := line
	if urlAnyRe.MatchString(line) {
		// Strip URLs before counting so their scheme colons don't vote.
		counted = urlAnyRe.ReplaceAllString(line, "")
	}

	semicolons := strings.Count(counted, ";")
	colons := strings.Count(counted, ":")
	pipes := strings.Count(counted, "|")

	switch {
	case semicolons > 0 && semicolons >= colons && semicolons >= pipes:
		return ";"
	case pipes > 0 && pipes >= colons:
		return "|"
	default:
		return ":"
	}
}

// splitColonsPreservingURLs splits on ':' while keeping http(s) URLs whole.
func splitColonsPreservingURLs(line string) []string {
	var parts []string
	remaining := line
	for len(remaining) > 0 {
		if m := urlPrefixRe.FindString(remaining); m != "" {
			parts = append(parts, m)
			remaining = remaining[len(m):]
			remaining = strings.TrimPrefix(remaining, ":")
			continue
		}
		idx := strings.Index(remaining, ":")
		if idx == -1 {
			parts = append(parts, remaining)
			break
		}
		parts = append(parts, remaining[:idx])
		remaining = remaining[idx+1:]
	}
	return parts
}

// convertISODate rewrites YYYY-MM-DD values to DD/MM/YYYY, the display
// format the corpus uses everywhere else. Other values pass through.
func convertISODate(value string) string {
	m := isoDateRe.FindStringSubmatch(value)
	if m == nil {
		return value
	}
	return m[3] + "/" + m[2] + "/" + m[1]
}

var wordLikeRe = regexp.MustCompile(`^\p{L}[\p{L}\s'-]*$`)

func isWordLike(s string) bool {
	return wordLikeRe.MatchString(s)
}
