// Package relevance applies cross-criterion AND filtering and field-aware
// relevance scoring to normalized records. It is a library entry point:
// besides the orchestrator, outside callers use it to normalize results from
// independently-queried search endpoints before merging.
package relevance

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/dindinbro/discreen/pkg/core"
)

// foldTransformer strips diacritics so "Dupont" matches "Dupônt"; the
// corpus is French-heavy and accent spelling is inconsistent across dumps.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lower-cases a string and removes diacritics.
func fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// FilterByCriteria enforces AND semantics across criteria. With zero or one
// criterion the input is returned unchanged: there is nothing to cross-check.
//
// With more, a record survives only if every criterion value is found,
// case-insensitively, in one of three places, checked in order:
//
//  1. a field whose canonical name is in the criterion type's allow-list;
//  2. the record's original raw line;
//  3. any field value at all.
//
// The third tier is a deliberate last resort: heuristically parsed data is
// sometimes misclassified, and dropping such records would under-match.
func FilterByCriteria(records []*core.Record, criteria []core.Criterion) []*core.Record {
	if len(criteria) <= 1 {
		return records
	}

	kept := make([]*core.Record, 0, len(records))
	for _, rec := range records {
		if matchesAll(rec, criteria) {
			kept = append(kept, rec)
		}
	}
	return kept
}

func matchesAll(rec *core.Record, criteria []core.Criterion) bool {
	for _, criterion := range criteria {
		value := fold(criterion.TrimmedValue())
		if value == "" {
			continue
		}
		if !matchesOne(rec, criterion.Type, value) {
			return false
		}
	}
	return true
}

// matchesOne applies the three-tier check for a single criterion. The folded
// criterion value is passed in pre-computed.
func matchesOne(rec *core.Record, ctype core.CriterionType, foldedValue string) bool {
	allowed := ctype.AllowedFields()
	for _, field := range allowed {
		if v, ok := rec.Get(field); ok && strings.Contains(fold(v), foldedValue) {
			return true
		}
	}

	if raw := rec.Raw(); raw != "" && strings.Contains(fold(raw), foldedValue) {
		return true
	}

	for _, key := range rec.Keys() {
		v, _ := rec.Get(key)
		if strings.Contains(fold(v), foldedValue) {
			return true
		}
	}
	return false
}

// Scoring weights. An exact match on an allow-listed field beats a substring
// match on it, which beats a match anywhere else.
const (
	scoreExactAllowed     = 100
	scoreSubstringAllowed = 50
	scoreOtherField       = 5
)

// Score computes the relevance of a record for the given criteria.
func Score(rec *core.Record, criteria []core.Criterion) int {
	total := 0
	for _, criterion := range criteria {
		value := fold(criterion.TrimmedValue())
		if value == "" {
			continue
		}

		allowed := criterion.Type.AllowedFields()
		allowedSet := make(map[string]bool, len(allowed))
		for _, f := range allowed {
			allowedSet[f] = true
		}

		matchedAllowed := false
		for _, field := range allowed {
			v, ok := rec.Get(field)
			if !ok {
				continue
			}
			folded := fold(v)
			if folded == value {
				total += scoreExactAllowed
				matchedAllowed = true
				break
			}
			if strings.Contains(folded, value) {
				total += scoreSubstringAllowed
				matchedAllowed = true
				break
			}
		}
		if matchedAllowed {
			continue
		}

		for _, key := range rec.Keys() {
			if allowedSet[key] {
				continue
			}
			v, _ := rec.Get(key)
			if strings.Contains(fold(v), value) {
				total += scoreOtherField
				break
			}
		}
	}
	return total
}

// SortByRelevance stable-sorts records by descending score. Equal scores
// keep their incoming order, which preserves each source's native ranking.
func SortByRelevance(records []*core.Record, criteria []core.Criterion) {
	scores := make(map[*core.Record]int, len(records))
	for _, rec := range records {
		scores[rec] = Score(rec, criteria)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return scores[records[i]] > scores[records[j]]
	})
}

// DropEmpty removes records whose visible fields are all empty.
func DropEmpty(records []*core.Record) []*core.Record {
	kept := records[:0]
	for _, rec := range records {
		if !rec.Empty() {
			kept = append(kept, rec)
		}
	}
	return kept
}
