package relevance

import (
	"testing"

	"github.com/dindinbro/discreen/pkg/core"
)

func record(source string, pairs ...string) *core.Record {
	rec := core.NewRecord(source)
	for i := 0; i+1 < len(pairs); i += 2 {
		rec.Set(pairs[i], pairs[i+1])
	}
	return rec
}

func TestFilterSingleCriterionPassesThrough(t *testing.T) {
	records := []*core.Record{
		record("a", "email", "x@y.com"),
		record("b", "nom", "unrelated"),
	}
	criteria := []core.Criterion{{Type: core.TypeEmail, Value: "x@y.com"}}

	got := FilterByCriteria(records, criteria)
	if len(got) != 2 {
		t.Fatalf("single criterion must not filter, got %d of 2", len(got))
	}
}

func TestFilterANDSemantics(t *testing.T) {
	onlyLast := record("a", "nom", "Dupont")
	onlyFirst := record("b", "prenom", "Jean")
	both := record("c", "nom", "Dupont", "prenom", "Jean")

	criteria := []core.Criterion{
		{Type: core.TypeLastName, Value: "Dupont"},
		{Type: core.TypeFirstName, Value: "Jean"},
	}

	got := FilterByCriteria([]*core.Record{onlyLast, onlyFirst, both}, criteria)
	if len(got) != 1 || got[0] != both {
		t.Fatalf("expected only the record matching all criteria, got %d", len(got))
	}
}

func TestFilterRawLineFallback(t *testing.T) {
	rec := record("a", "nom", "Dupont")
	rec.SetRaw("Dupont:Jean:jean@example.com")

	criteria := []core.Criterion{
		{Type: core.TypeLastName, Value: "Dupont"},
		{Type: core.TypeFirstName, Value: "Jean"},
	}

	got := FilterByCriteria([]*core.Record{rec}, criteria)
	if len(got) != 1 {
		t.Fatal("raw-line fallback should keep the record")
	}
}

func TestFilterAnyFieldFallback(t *testing.T) {
	// "Jean" landed in a non-allow-listed field and there is no raw line.
	rec := record("a", "nom", "Dupont", "champ_1", "Jean")

	criteria := []core.Criterion{
		{Type: core.TypeLastName, Value: "Dupont"},
		{Type: core.TypeFirstName, Value: "Jean"},
	}

	got := FilterByCriteria([]*core.Record{rec}, criteria)
	if len(got) != 1 {
		t.Fatal("any-field fallback should keep the record")
	}
}

func TestFilterIsAccentAndCaseInsensitive(t *testing.T) {
	rec := record("a", "nom", "DUPÔNT", "prenom", "jéan")

	criteria := []core.Criterion{
		{Type: core.TypeLastName, Value: "dupont"},
		{Type: core.TypeFirstName, Value: "JEAN"},
	}

	got := FilterByCriteria([]*core.Record{rec}, criteria)
	if len(got) != 1 {
		t.Fatal("matching must ignore case and diacritics")
	}
}

func TestScoreTiers(t *testing.T) {
	criteria := []core.Criterion{{Type: core.TypeLastName, Value: "Dupont"}}

	exact := record("a", "nom", "Dupont")
	substring := record("b", "nom", "Dupont-Martin")
	elsewhere := record("c", "champ_1", "Dupont")
	none := record("d", "nom", "Bernard")

	if got := Score(exact, criteria); got != 100 {
		t.Errorf("exact allowed match = %d, want 100", got)
	}
	if got := Score(substring, criteria); got != 50 {
		t.Errorf("substring allowed match = %d, want 50", got)
	}
	if got := Score(elsewhere, criteria); got != 5 {
		t.Errorf("other-field match = %d, want 5", got)
	}
	if got := Score(none, criteria); got != 0 {
		t.Errorf("no match = %d, want 0", got)
	}
}

func TestScoreAddsPerCriterion(t *testing.T) {
	criteria := []core.Criterion{
		{Type: core.TypeLastName, Value: "Dupont"},
		{Type: core.TypeEmail, Value: "a@b.com"},
	}
	rec := record("a", "nom", "Dupont", "email", "a@b.com")

	if got := Score(rec, criteria); got != 200 {
		t.Fatalf("two exact matches = %d, want 200", got)
	}
}

func TestSortByRelevanceIsStableDescending(t *testing.T) {
	criteria := []core.Criterion{{Type: core.TypeLastName, Value: "Dupont"}}

	weak1 := record("w1", "champ_1", "Dupont")
	weak2 := record("w2", "champ_1", "Dupont")
	strong := record("s", "nom", "Dupont")

	records := []*core.Record{weak1, weak2, strong}
	SortByRelevance(records, criteria)

	if records[0] != strong {
		t.Fatal("strongest match must sort first")
	}
	if records[1] != weak1 || records[2] != weak2 {
		t.Fatal("equal scores must keep incoming order")
	}
}

func TestDropEmpty(t *testing.T) {
	full := record("a", "email", "x@y.com")
	empty := record("b", "email", "  ")

	got := DropEmpty([]*core.Record{full, empty})
	if len(got) != 1 || got[0] != full {
		t.Fatalf("expected only the non-empty record, got %d", len(got))
	}
}
