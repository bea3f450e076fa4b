package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/equity-explorer/internal/model"
)

// SQLite reads tract tables from a local SQLite extract. Geometry is not
// carried in SQLite extracts.
type SQLite struct {
	db     *sql.DB
	layout Layout
}

// NewSQLite opens the database at dsn read-mostly.
func NewSQLite(dsn string, layout Layout) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA query_only=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLite{db: db, layout: layout}, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Counties lists the county names for a state.
func (s *SQLite) Counties(ctx context.Context, state string) ([]string, error) {
	q := fmt.Sprintf(`SELECT DISTINCT county_name FROM %s WHERE state_name = ? ORDER BY county_name`,
		quoteIdent(s.layout.Counties))
	rows, err := s.db.QueryContext(ctx, q, state)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query counties")
	}
	defer rows.Close()

	var counties []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan counties")
		}
		counties = append(counties, c)
	}
	return counties, eris.Wrap(rows.Err(), "sqlite: iterate counties")
}

// Tracts fetches the latest year of every table in the group and merges them.
func (s *SQLite) Tracts(ctx context.Context, q Query) (model.Table, error) {
	tables, err := s.layout.Tables(q.Group)
	if err != nil {
		return model.Table{}, err
	}
	q, err = Resolve(ctx, s, q)
	if err != nil {
		return model.Table{}, err
	}

	args := make([]any, 0, len(q.Counties)+1)
	args = append(args, q.State)
	for _, c := range q.Counties {
		args = append(args, c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(q.Counties)), ",")

	b := newBuilder()
	for _, table := range tables {
		stmt := fmt.Sprintf(`SELECT * FROM (
	SELECT *, ROW_NUMBER() OVER (PARTITION BY census_tract ORDER BY year DESC) AS rn
	FROM %s WHERE state_name = ? AND county_name IN (%s)
) WHERE rn = 1`, quoteIdent(table), placeholders)

		cols, values, err := s.fetch(ctx, stmt, args...)
		if err != nil {
			return model.Table{}, eris.Wrapf(err, "sqlite: query %s", table)
		}
		if err := b.addTable(table, cols, values); err != nil {
			return model.Table{}, err
		}
	}

	if len(b.tracts) == 0 {
		return model.Table{}, eris.Wrapf(ErrDataUnavailable, "sqlite: %s %v", q.State, q.Counties)
	}
	return b.table(), nil
}

func (s *SQLite) fetch(ctx context.Context, stmt string, args ...any) ([]string, [][]any, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, vals)
	}
	return cols, out, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
