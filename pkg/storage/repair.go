package storage

import (
	"database/sql"
	"fmt"
)

// DiagnosticReport summarizes the health probes run against one store file.
type DiagnosticReport struct {
	Name      string
	Table     string
	Mode      TableMode
	Integrity string
	LikeProbe error
	FTSProbe  error
	Rebuilt   bool
}

// Healthy reports whether every probe passed.
func (d *DiagnosticReport) Healthy() bool {
	return d.Integrity == "ok" && d.LikeProbe == nil && d.FTSProbe == nil
}

// Diagnose opens a store file directly and runs integrity and query probes
// against it. With repair set, a failing FTS index is rebuilt in place and
// re-probed. The file is opened independently of any registry.
func Diagnose(name, path string, repair bool) (*DiagnosticReport, error) {
	src, err := openSource(name, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	report := &DiagnosticReport{Name: name, Table: src.Table, Mode: src.Mode}

	if err := src.db.QueryRow("PRAGMA integrity_check(1)").Scan(&report.Integrity); err != nil {
		report.Integrity = err.Error()
	}

	report.LikeProbe = probeLike(src)
	if src.Mode == ModeFTS {
		report.FTSProbe = src.verify()
		if report.FTSProbe != nil && repair {
			if err := src.rebuildIndex(); err != nil {
				return report, fmt.Errorf("rebuilding index for %s: %w", name, err)
			}
			report.Rebuilt = true
			report.FTSProbe = src.verify()
		}
	}

	return report, nil
}

// probeLike runs a LIKE query over the first column, which exercises plain
// row access without touching the FTS index.
func probeLike(src *Source) error {
	if len(src.Columns) == 0 {
		return fmt.Errorf("no columns detected")
	}
	rows, err := src.db.Query(
		fmt.Sprintf("SELECT 1 FROM %s WHERE %s LIKE ? LIMIT 1",
			quoteIdent(src.Table), quoteIdent(src.Columns[0])), "%probe%")
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var one sql.NullInt64
		if err := rows.Scan(&one); err != nil {
			return err
		}
	}
	return rows.Err()
}
