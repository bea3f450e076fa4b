package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/equity-explorer/internal/db"
	"github.com/sells-group/equity-explorer/internal/model"
)

// Postgres reads tract tables from a PostGIS database.
type Postgres struct {
	pool   db.Pool
	layout Layout
	close  func()
}

// NewPostgres wraps pool. closeFn, if non-nil, runs on Close.
func NewPostgres(pool db.Pool, layout Layout, closeFn func()) *Postgres {
	return &Postgres{pool: pool, layout: layout, close: closeFn}
}

func (p *Postgres) ident(table string) string {
	if p.layout.Schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{p.layout.Schema, table}.Sanitize()
}

// Counties lists the county names for a state.
func (p *Postgres) Counties(ctx context.Context, state string) ([]string, error) {
	sql := fmt.Sprintf(`SELECT DISTINCT county_name FROM %s WHERE state_name = $1 ORDER BY county_name`,
		p.ident(p.layout.Counties))
	rows, err := p.pool.Query(ctx, sql, state)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query counties")
	}
	counties, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan counties")
	}
	return counties, nil
}

// Tracts fetches the latest year of every table in the group and merges them.
func (p *Postgres) Tracts(ctx context.Context, q Query) (model.Table, error) {
	tables, err := p.layout.Tables(q.Group)
	if err != nil {
		return model.Table{}, err
	}
	q, err = Resolve(ctx, p, q)
	if err != nil {
		return model.Table{}, err
	}

	log := zap.L().With(zap.String("component", "source.postgres"), zap.String("group", string(q.Group)))
	b := newBuilder()
	for _, table := range tables {
		sql := fmt.Sprintf(`SELECT DISTINCT ON (census_tract) * FROM %s
WHERE state_name = $1 AND county_name = ANY($2)
ORDER BY census_tract, year DESC`, p.ident(table))

		cols, values, err := p.fetch(ctx, sql, q.State, q.Counties)
		if err != nil {
			return model.Table{}, eris.Wrapf(err, "postgres: query %s", table)
		}
		if err := b.addTable(table, cols, values); err != nil {
			return model.Table{}, err
		}
		log.Debug("postgres: fetched table", zap.String("table", table), zap.Int("rows", len(values)))
	}

	if len(b.tracts) == 0 {
		return model.Table{}, eris.Wrapf(ErrDataUnavailable, "postgres: %s %v", q.State, q.Counties)
	}

	if p.layout.Geometry != "" {
		geoms, err := p.geometry(ctx, b.ids())
		if err != nil {
			return model.Table{}, err
		}
		b.setGeometry(geoms)
	}
	return b.table(), nil
}

func (p *Postgres) fetch(ctx context.Context, sql string, args ...any) ([]string, [][]any, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		out = append(out, vals)
	}
	return cols, out, rows.Err()
}

func (p *Postgres) geometry(ctx context.Context, ids []string) (map[string][]byte, error) {
	sql := fmt.Sprintf(`SELECT census_tract, ST_AsEWKB(geom) FROM %s WHERE census_tract = ANY($1)`,
		p.ident(p.layout.Geometry))
	rows, err := p.pool.Query(ctx, sql, ids)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query geometry")
	}
	defer rows.Close()

	geoms := make(map[string][]byte, len(ids))
	for rows.Next() {
		var id string
		var g []byte
		if err := rows.Scan(&id, &g); err != nil {
			return nil, eris.Wrap(err, "postgres: scan geometry")
		}
		geoms[id] = g
	}
	return geoms, eris.Wrap(rows.Err(), "postgres: iterate geometry")
}

// Close releases the pool when the source owns it.
func (p *Postgres) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}
