package lineparse

import (
	"testing"

	"github.com/dindinbro/discreen/pkg/core"
)

func newTestParser() *Parser {
	return NewParser(NewHeaderCache())
}

func mustField(t *testing.T, rec *core.Record, key, want string) {
	t.Helper()
	got, ok := rec.Get(key)
	if !ok {
		t.Fatalf("field %q missing, have %v", key, rec.Keys())
	}
	if got != want {
		t.Fatalf("field %q = %q, want %q", key, got, want)
	}
}

func TestParseObjectLiteral(t *testing.T) {
	p := newTestParser()

	rec, ok := p.Parse(`{"email":"x@y.com","phone":"0601020304"}`, "dump1")
	if !ok {
		t.Fatal("expected a record")
	}
	mustField(t, rec, "email", "x@y.com")
	mustField(t, rec, "telephone", "0601020304")
	if rec.Source() != "dump1" {
		t.Fatalf("source = %q, want dump1", rec.Source())
	}
}

func TestParseObjectLiteralISODate(t *testing.T) {
	p := newTestParser()

	rec, ok := p.Parse(`{"dob":"1990-05-12","email":"a@b.com"}`, "src")
	if !ok {
		t.Fatal("expected a record")
	}
	mustField(t, rec, "date_naissance", "12/05/1990")
}

func TestParseObjectLiteralAddressComplement(t *testing.T) {
	p := newTestParser()

	rec, ok := p.Parse(`{"adresse":"12 rue Haute","cplt_adresse":"Bat B"}`, "src")
	if !ok {
		t.Fatal("expected a record")
	}
	mustField(t, rec, "adresse", "12 rue Haute Bat B")
}

func TestParseWithCachedHeaders(t *testing.T) {
	p := newTestParser()

	if consumed := p.Headers().LearnFromLine("export1", "id|email|nom"); !consumed {
		t.Fatal("header row should be learned")
	}

	rec, ok := p.Parse("1|a@b.com|Dupont", "export1")
	if !ok {
		t.Fatal("expected a record")
	}
	mustField(t, rec, "identifiant", "1")
	mustField(t, rec, "email", "a@b.com")
	mustField(t, rec, "nom", "Dupont")
}

func TestParseLearnsHeadersLazily(t *testing.T) {
	p := newTestParser()

	// First row of a tabular export: learned as headers, no record.
	if rec, ok := p.Parse("id|email|nom", "export2"); ok {
		t.Fatalf("header row produced a record: %v", rec.Keys())
	}

	rec, ok := p.Parse("1|a@b.com|Dupont", "export2")
	if !ok {
		t.Fatal("expected a record")
	}
	mustField(t, rec, "identifiant", "1")
	mustField(t, rec, "email", "a@b.com")
	mustField(t, rec, "nom", "Dupont")
}

func TestParseHeaderRowIsDiscarded(t *testing.T) {
	p := newTestParser()
	p.Headers().Learn("export1", []string{"id", "email", "nom"})

	if rec, ok := p.Parse("id|email|nom", "export1"); ok {
		t.Fatalf("header row produced a record: %v", rec.Keys())
	}
}

func TestParseDelimitedColon(t *testing.T) {
	p := newTestParser()

	rec, ok := p.Parse("jean@example.com:hunter2", "combo")
	if !ok {
		t.Fatal("expected a record")
	}
	mustField(t, rec, "email", "jean@example.com")
	mustField(t, rec, "password", "hunter2")
	if rec.Raw() == "" {
		t.Fatal("raw line should be preserved")
	}
}

func TestParseDelimitedSemicolon(t *testing.T) {
	p := newTestParser()

	rec, ok := p.Parse("Dupont;Jean;jean@example.com;75001;Paris", "fichier")
	if !ok {
		t.Fatal("expected a record")
	}
	mustField(t, rec, "email", "jean@example.com")
	mustField(t, rec, "code_postal", "75001")
	mustField(t, rec, "identifiant", "Dupont")
	mustField(t, rec, "ville", "Paris")
}

func TestParseHashLeftover(t *testing.T) {
	p := newTestParser()

	rec, ok := p.Parse("someuser:5f4dcc3b5aa765d61d8327deb882cf99:extra", "dump")
	if !ok {
		t.Fatal("expected a record")
	}
	// The hash classifies directly; leftovers are user then extra.
	mustField(t, rec, "hash", "5f4dcc3b5aa765d61d8327deb882cf99")
	mustField(t, rec, "identifiant", "someuser")
}

func TestParseURLPreserved(t *testing.T) {
	p := newTestParser()

	rec, ok := p.Parse("https://site.example.com/login:bob:secret123", "stealer")
	if !ok {
		t.Fatal("expected a record")
	}
	mustField(t, rec, "url", "https://site.example.com/login")
	mustField(t, rec, "identifiant", "bob")
	mustField(t, rec, "password", "secret123")
}

func TestParseSinglePart(t *testing.T) {
	p := newTestParser()

	rec, ok := p.Parse("lonelytoken", "src")
	if !ok {
		t.Fatal("expected a record")
	}
	mustField(t, rec, core.FieldDonnee, "lonelytoken")
}

func TestParseEmptyLine(t *testing.T) {
	p := newTestParser()
	if _, ok := p.Parse("   ", "src"); ok {
		t.Fatal("blank line should yield no record")
	}
}

func TestParseOverflowFields(t *testing.T) {
	p := newTestParser()

	rec, ok := p.Parse("a;b;c;d;e;f", "src")
	if !ok {
		t.Fatal("expected a record")
	}
	// identifiant, password, nom, prenom, then numbered leftovers.
	mustField(t, rec, "identifiant", "a")
	mustField(t, rec, "password", "b")
	mustField(t, rec, "nom", "c")
	mustField(t, rec, "prenom", "d")
	mustField(t, rec, "champ_1", "e")
	mustField(t, rec, "champ_2", "f")
}

func TestHeaderCacheFirstWins(t *testing.T) {
	c := NewHeaderCache()
	c.Learn("s", []string{"id", "email"})
	c.Learn("s", []string{"nom", "prenom"})

	headers, ok := c.Headers("s")
	if !ok || len(headers) != 2 || headers[0] != "identifiant" || headers[1] != "email" {
		t.Fatalf("headers = %v (ok=%v), want first learned list, canonicalized", headers, ok)
	}
}

func TestLearnFromLineRejectsData(t *testing.T) {
	c := NewHeaderCache()
	if c.LearnFromLine("s", "1|a@b.com|Dupont") {
		t.Fatal("data row must not be learned as headers")
	}
	if c.LearnFromLine("s", "no pipes here") {
		t.Fatal("line without pipes must not be learned")
	}
}
