package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/dindinbro/discreen/pkg/core"
	"github.com/dindinbro/discreen/pkg/lineparse"
)

func testParser() *lineparse.Parser {
	return lineparse.NewParser(lineparse.NewHeaderCache())
}

// createFTSStore writes an FTS5 store shaped like the ingestion pipeline's
// output: one virtual table over (source, line, rownum).
func createFTSStore(t *testing.T, dir, name string, lines []string) {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(dir, name+".db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(`CREATE VIRTUAL TABLE docs USING fts5(source, line, rownum)`); err != nil {
		t.Fatalf("create fts table: %v", err)
	}
	for i, line := range lines {
		if _, err := db.Exec(`INSERT INTO docs (source, line, rownum) VALUES (?, ?, ?)`, name, line, i+1); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
}

// createPlainStore writes an ordinary table keyed by canonical-ish headers.
func createPlainStore(t *testing.T, dir, name string, rows [][2]string) {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(dir, name+".db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(`CREATE TABLE users (email TEXT, nom TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	for _, row := range rows {
		if _, err := db.Exec(`INSERT INTO users (email, nom) VALUES (?, ?)`, row[0], row[1]); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
}

func TestDiscoverFTSStore(t *testing.T) {
	dir := t.TempDir()
	createFTSStore(t, dir, "combo", []string{
		"jean@example.com:hunter2",
		"other@example.com:qwerty",
	})

	r := NewRegistry(dir, testParser())
	if err := r.Discover(); err != nil {
		t.Fatalf("discover: %v", err)
	}
	defer func() { _ = r.Close() }()

	if r.Count() != 1 {
		t.Fatalf("count = %d, want 1", r.Count())
	}

	criteria := []core.Criterion{{Type: core.TypeEmail, Value: "jean@example.com"}}
	res := r.SearchAll(context.Background(), criteria, 10, 0)
	if len(res.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(res.Records))
	}
	rec := res.Records[0]
	if v, _ := rec.Get("email"); v != "jean@example.com" {
		t.Fatalf("email = %q", v)
	}
	if v, _ := rec.Get("password"); v != "hunter2" {
		t.Fatalf("password = %q", v)
	}
	if rec.Source() != "combo" {
		t.Fatalf("source = %q", rec.Source())
	}
	if res.Total != nil {
		t.Fatal("FTS totals must be unknown")
	}
}

func TestDiscoverPlainStore(t *testing.T) {
	dir := t.TempDir()
	createPlainStore(t, dir, "clients", [][2]string{
		{"jean@example.com", "Dupont"},
		{"paul@example.com", "Martin"},
	})

	r := NewRegistry(dir, testParser())
	if err := r.Discover(); err != nil {
		t.Fatalf("discover: %v", err)
	}
	defer func() { _ = r.Close() }()

	criteria := []core.Criterion{{Type: core.TypeEmail, Value: "jean@example.com"}}
	res := r.SearchAll(context.Background(), criteria, 10, 0)
	if len(res.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(res.Records))
	}
	if v, _ := res.Records[0].Get("nom"); v != "Dupont" {
		t.Fatalf("nom = %q", v)
	}
	if res.Total == nil || *res.Total != 1 {
		t.Fatalf("plain stores must report a known total, got %v", res.Total)
	}
}

func TestDiscoverSurvivesGarbageFile(t *testing.T) {
	dir := t.TempDir()
	createFTSStore(t, dir, "good", []string{"jean@example.com:hunter2"})

	if err := os.WriteFile(filepath.Join(dir, "garbage.db"), []byte("this is not a database at all"), 0644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	r := NewRegistry(dir, testParser())
	if err := r.Discover(); err != nil {
		t.Fatalf("discover must not fail on a bad file: %v", err)
	}
	defer func() { _ = r.Close() }()

	if r.Count() != 1 {
		t.Fatalf("count = %d, want only the good store", r.Count())
	}
	if _, excluded := r.Skipped()["garbage"]; !excluded {
		t.Fatal("garbage store should be listed as skipped")
	}
}

func TestDiscoverDenylist(t *testing.T) {
	dir := t.TempDir()
	createFTSStore(t, dir, "meta", []string{"jean@example.com:x"})

	r := NewRegistry(dir, testParser())
	if err := r.Discover(); err != nil {
		t.Fatalf("discover: %v", err)
	}
	defer func() { _ = r.Close() }()

	if r.Count() != 0 {
		t.Fatalf("denylisted file registered, count = %d", r.Count())
	}
}

func TestRegisterSourceHotAdd(t *testing.T) {
	dir := t.TempDir()

	r := NewRegistry(dir, testParser())
	if err := r.Discover(); err != nil {
		t.Fatalf("discover: %v", err)
	}
	defer func() { _ = r.Close() }()

	if r.Count() != 0 {
		t.Fatalf("count = %d, want 0", r.Count())
	}

	createFTSStore(t, dir, "fresh", []string{"a@b.com:pw"})
	if err := r.RegisterSource("fresh.db"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if r.Count() != 1 {
		t.Fatalf("count = %d after hot add, want 1", r.Count())
	}

	// Re-registering the same name is a no-op.
	if err := r.RegisterSource("fresh.db"); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if r.Count() != 1 {
		t.Fatalf("count = %d after duplicate register", r.Count())
	}
}

func TestRemoveSource(t *testing.T) {
	dir := t.TempDir()
	createFTSStore(t, dir, "s1", []string{"a@b.com:pw"})

	r := NewRegistry(dir, testParser())
	if err := r.Discover(); err != nil {
		t.Fatalf("discover: %v", err)
	}
	defer func() { _ = r.Close() }()

	r.Remove("s1")
	if r.Count() != 0 {
		t.Fatalf("count = %d after remove", r.Count())
	}
	// Removing again is harmless.
	r.Remove("s1")
}

func TestSearchAllCancelledKeepsSources(t *testing.T) {
	dir := t.TempDir()
	createFTSStore(t, dir, "combo", []string{"jean@example.com:hunter2"})

	r := NewRegistry(dir, testParser())
	if err := r.Discover(); err != nil {
		t.Fatalf("discover: %v", err)
	}
	defer func() { _ = r.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	criteria := []core.Criterion{{Type: core.TypeEmail, Value: "jean@example.com"}}
	res := r.SearchAll(ctx, criteria, 10, 0)
	if len(res.Records) != 0 {
		t.Fatalf("cancelled search returned %d records", len(res.Records))
	}
	if !res.Partial {
		t.Fatal("cancelled search must be marked partial")
	}
	if r.Count() != 1 {
		t.Fatal("cancellation must not remove a healthy source")
	}
}

func TestFTSQueryQuoting(t *testing.T) {
	got := ftsQuery([]string{"a@b.com", `say "hi"`})
	want := `"a@b.com" "say ""hi"""`
	if got != want {
		t.Fatalf("ftsQuery = %q, want %q", got, want)
	}
}

func TestParseFTSColumns(t *testing.T) {
	cols := parseFTSColumns(`source, line, rownum, tokenize='unicode61'`)
	if len(cols) != 3 || cols[0] != "source" || cols[1] != "line" || cols[2] != "rownum" {
		t.Fatalf("cols = %v", cols)
	}
}

func TestDiagnoseHealthyStore(t *testing.T) {
	dir := t.TempDir()
	createFTSStore(t, dir, "ok", []string{"a@b.com:pw"})

	report, err := Diagnose("ok", filepath.Join(dir, "ok.db"), false)
	if err != nil {
		t.Fatalf("diagnose: %v", err)
	}
	if !report.Healthy() {
		t.Fatalf("healthy store reported broken: %+v", report)
	}
	if report.Mode != ModeFTS {
		t.Fatalf("mode = %d, want FTS", report.Mode)
	}
}
