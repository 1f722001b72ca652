// Package storage discovers local SQLite store files, detects their schema
// and runs multi-criterion searches against them. Stores are read-only from
// this package's perspective; their layout is discovered, never assumed,
// because different files were produced by different ingestion pipelines.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/dindinbro/discreen/pkg/classify"
	"github.com/dindinbro/discreen/pkg/core"
	"github.com/dindinbro/discreen/pkg/lineparse"
	"github.com/dindinbro/discreen/pkg/relevance"
)

// TableMode distinguishes how a store's main table is queried.
type TableMode int

const (
	// ModeFTS means the main table is an FTS5 virtual table queried with MATCH.
	ModeFTS TableMode = iota
	// ModePlain means an ordinary table queried with LIKE conditions.
	ModePlain
)

// Source is one opened local store: a database handle plus the detected
// shape of its main table.
type Source struct {
	Name    string
	Path    string
	Mode    TableMode
	Table   string
	Columns []string

	db *sql.DB
}

var fts5ColsRe = regexp.MustCompile(`(?is)fts5\s*\(([^)]+)\)`)

// openSource opens a store file and detects its main table. It does not
// verify the table is queryable; the registry does that separately so it can
// drive the recovery sequence.
func openSource(name, path string) (*Source, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 30000",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = memory",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	src := &Source{Name: name, Path: path, db: db}
	if err := src.detectMainTable(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return src, nil
}

// detectMainTable finds the first user table that is not FTS5 shadow storage
// and extracts its column list, either from the fts5(...) declaration or from
// PRAGMA table_info.
func (s *Source) detectMainTable() error {
	row := s.db.QueryRow(`
		SELECT name, COALESCE(sql, '') FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE '%_data'
		  AND name NOT LIKE '%_idx'
		  AND name NOT LIKE '%_content'
		  AND name NOT LIKE '%_docsize'
		  AND name NOT LIKE '%_config'
		  AND name NOT LIKE 'sqlite_%'
		LIMIT 1`)

	var name, createSQL string
	if err := row.Scan(&name, &createSQL); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("store %s: no usable table", s.Name)
		}
		return fmt.Errorf("store %s: reading sqlite_master: %w", s.Name, err)
	}

	s.Table = name
	if m := fts5ColsRe.FindStringSubmatch(createSQL); m != nil {
		s.Mode = ModeFTS
		s.Columns = parseFTSColumns(m[1])
		if len(s.Columns) > 0 {
			return nil
		}
	}
	s.Mode = ModePlain
	cols, err := s.tableColumns(name)
	if err != nil {
		return err
	}
	s.Columns = cols
	return nil
}

// parseFTSColumns splits the argument list of an fts5(...) declaration into
// column names, dropping options such as tokenize=... and content=....
func parseFTSColumns(args string) []string {
	var cols []string
	for _, part := range strings.Split(args, ",") {
		part = strings.TrimSpace(part)
		if part == "" || strings.Contains(part, "=") {
			continue
		}
		part = strings.Trim(part, `"'`+"`")
		cols = append(cols, part)
	}
	return cols
}

func (s *Source) tableColumns(table string) ([]string, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("store %s: table_info: %w", s.Name, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []string
	for rows.Next() {
		var cid int
		var colName, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("store %s: scanning table_info: %w", s.Name, err)
		}
		cols = append(cols, colName)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("store %s: table %s has no columns", s.Name, table)
	}
	return cols, rows.Err()
}

// verify runs a cheap probe appropriate for the table mode. FTS corruption
// typically only surfaces on MATCH, so plain SELECT is not enough there.
func (s *Source) verify() error {
	if s.Mode == ModeFTS {
		rows, err := s.db.Query(
			fmt.Sprintf("SELECT rowid FROM %s WHERE %s MATCH ? LIMIT 1", quoteIdent(s.Table), quoteIdent(s.Table)),
			`"probe"`)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
		}
		return rows.Err()
	}
	rows, err := s.db.Query(fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", quoteIdent(s.Table)))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
	}
	return rows.Err()
}

// rebuildIndex asks FTS5 to rebuild the index from its content table.
func (s *Source) rebuildIndex() error {
	if s.Mode != ModeFTS {
		return fmt.Errorf("store %s: not an FTS table", s.Name)
	}
	_, err := s.db.Exec(fmt.Sprintf("INSERT INTO %s(%s) VALUES('rebuild')", quoteIdent(s.Table), quoteIdent(s.Table)))
	return err
}

// fallbackToContent retargets the source at the FTS shadow content table,
// querying it as a plain table. Used when an index rebuild did not help.
func (s *Source) fallbackToContent() error {
	content := s.Table + "_content"
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", content).Scan(&count)
	if err != nil {
		return fmt.Errorf("store %s: checking content table: %w", s.Name, err)
	}
	if count == 0 {
		return fmt.Errorf("store %s: no content table to fall back to", s.Name)
	}
	cols, err := s.tableColumns(content)
	if err != nil {
		return err
	}
	s.Mode = ModePlain
	s.Table = content
	s.Columns = cols
	return nil
}

// Search runs one multi-criterion query against this source. A window of
// max(limit*5, 100) rows is fetched, parsed, cross-filtered and only then
// truncated to limit, so heuristic misparses inside the window don't starve
// the result.
func (s *Source) Search(ctx context.Context, criteria []core.Criterion, limit, offset int, parser *lineparse.Parser) (*core.Result, error) {
	values := core.CriteriaValues(criteria)
	if len(values) == 0 || limit <= 0 {
		return core.EmptyResult(), nil
	}

	window := limit * 5
	if window < 100 {
		window = 100
	}

	var result *core.Result
	var err error
	if s.Mode == ModeFTS {
		result, err = s.searchFTS(ctx, values, window, offset, parser)
	} else {
		result, err = s.searchPlain(ctx, values, window, offset, parser)
	}
	if err != nil {
		return nil, err
	}

	result.Records = relevance.FilterByCriteria(result.Records, criteria)
	result.Records = relevance.DropEmpty(result.Records)
	if len(result.Records) > limit {
		result.Records = result.Records[:limit]
	}
	return result, nil
}

// searchFTS ANDs each criterion value as a quoted phrase and fetches a window
// in rank order. Total is unknown: the window does not reflect the true count.
func (s *Source) searchFTS(ctx context.Context, values []string, window, offset int, parser *lineparse.Parser) (*core.Result, error) {
	query := ftsQuery(values)
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM %s WHERE %s MATCH ? ORDER BY rank LIMIT ? OFFSET ?",
			quoteIdent(s.Table), quoteIdent(s.Table)),
		query, window, offset)
	if err != nil {
		return nil, fmt.Errorf("store %s: FTS query: %w", s.Name, err)
	}
	defer func() { _ = rows.Close() }()

	records, err := s.collectRows(rows, parser)
	if err != nil {
		return nil, err
	}
	return &core.Result{Records: records}, nil
}

// searchPlain builds an AND of per-criterion OR'd LIKE conditions over every
// column. Plain tables can afford an exact COUNT for the same predicate.
func (s *Source) searchPlain(ctx context.Context, values []string, window, offset int, parser *lineparse.Parser) (*core.Result, error) {
	where, args := likeConditions(s.Columns, values)

	var total int
	countErr := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", quoteIdent(s.Table), where), args...).Scan(&total)

	queryArgs := append(append([]any{}, args...), window, offset)
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT ? OFFSET ?", quoteIdent(s.Table), where), queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("store %s: LIKE query: %w", s.Name, err)
	}
	defer func() { _ = rows.Close() }()

	records, err := s.collectRows(rows, parser)
	if err != nil {
		return nil, err
	}

	result := &core.Result{Records: records}
	if countErr == nil {
		result.Total = core.KnownTotal(total)
	}
	return result, nil
}

// collectRows converts every row into a record. Columns are scanned as
// nullable text regardless of declared type.
func (s *Source) collectRows(rows *sql.Rows, parser *lineparse.Parser) ([]*core.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("store %s: reading columns: %w", s.Name, err)
	}

	var records []*core.Record
	vals := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("store %s: scanning row: %w", s.Name, err)
		}
		if rec, ok := s.rowToRecord(cols, vals, parser); ok {
			records = append(records, rec)
		}
	}
	return records, rows.Err()
}

// lineColumns are column names whose value is a raw unparsed line rather
// than a single field, checked in order of preference.
var lineColumns = []string{"line", "content", "data"}

// contentColAliases maps FTS5 shadow content-table column names back to the
// names the index declared.
var contentColAliases = map[string]string{
	"c0": "source",
	"c1": "line",
	"c2": "rownum",
}

// rowToRecord turns one scanned row into a record. Rows carrying a raw line
// column go through the line parser; otherwise each column becomes a field
// under its canonical header name.
func (s *Source) rowToRecord(cols []string, vals []sql.NullString, parser *lineparse.Parser) (*core.Record, bool) {
	label := s.Name
	var line string
	byName := make(map[string]string, len(cols))
	for i, col := range cols {
		if !vals[i].Valid || vals[i].String == "" {
			continue
		}
		name := strings.ToLower(col)
		if alias, ok := contentColAliases[name]; ok {
			name = alias
		}
		byName[name] = vals[i].String
	}

	if v, ok := byName["source"]; ok {
		label = v
	}
	for _, name := range lineColumns {
		if v, ok := byName[name]; ok {
			line = v
			break
		}
	}

	if line != "" {
		return parser.Parse(line, label)
	}

	rec := core.NewRecord(label)
	var rawParts []string
	for _, col := range cols {
		name := strings.ToLower(col)
		if alias, ok := contentColAliases[name]; ok {
			name = alias
		}
		v, ok := byName[name]
		if !ok || name == "source" || name == "rownum" || name == "id" {
			continue
		}
		rec.Set(classify.MapHeaderKey(name), v)
		rawParts = append(rawParts, v)
	}
	if rec.Len() == 0 {
		return nil, false
	}
	rec.SetRaw(strings.Join(rawParts, " "))
	return rec, true
}

// Close releases the database handle.
func (s *Source) Close() error {
	return s.db.Close()
}

// ftsQuery ANDs criterion values as quoted phrases. Embedded quotes are
// doubled per FTS5 string syntax.
func ftsQuery(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// likeConditions builds an AND of per-value ORs over all columns.
func likeConditions(columns, values []string) (string, []any) {
	var conds []string
	var args []any
	for _, v := range values {
		ors := make([]string, len(columns))
		for i, col := range columns {
			ors[i] = fmt.Sprintf("%s LIKE ?", quoteIdent(col))
			args = append(args, "%"+v+"%")
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	return strings.Join(conds, " AND "), args
}

// quoteIdent quotes an identifier discovered from sqlite_master so odd table
// or column names cannot break the statement.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
