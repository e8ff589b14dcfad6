// Package postgres implements lake.Lake on PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"dataprof/internal/lake"
)

// Lake implements lake.Lake for Postgres.
//
// Postgres has transactional DDL, so SwapTable performs DROP + ALTER RENAME
// inside a single transaction and readers never observe the intermediate
// state.
type Lake struct {
	pool *pgxpool.Pool
}

func init() {
	lake.Register("postgres", New)
}

func New(ctx context.Context, cfg lake.Config) (lake.Lake, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Lake{pool: pool}, nil
}

func (l *Lake) Close() { l.pool.Close() }

func (l *Lake) EnsureTable(ctx context.Context, spec lake.TableSpec) error {
	ddl, err := buildCreateTableSQL(spec)
	if err != nil {
		return err
	}
	if _, err := l.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

func (l *Lake) DropTable(ctx context.Context, table string) error {
	_, err := l.pool.Exec(ctx, "DROP TABLE IF EXISTS "+sqlIdent(table))
	return err
}

func (l *Lake) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table,
	).Scan(&exists)
	return exists, err
}

func (l *Lake) SwapTable(ctx context.Context, staging, target string) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+sqlIdent(target)); err != nil {
		return fmt.Errorf("drop %s: %w", target, err)
	}
	if _, err := tx.Exec(ctx,
		"ALTER TABLE "+sqlIdent(staging)+" RENAME TO "+sqlIdent(target)); err != nil {
		return fmt.Errorf("rename %s to %s: %w", staging, target, err)
	}
	return tx.Commit(ctx)
}

func (l *Lake) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	arg := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", arg)
			arg++
		}
		b.WriteString(")")
		args = append(args, row...)
	}

	cmd, err := l.pool.Exec(ctx, b.String(), args...)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (l *Lake) RowCount(ctx context.Context, table string) (int64, error) {
	var n int64
	err := l.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+sqlIdent(table)).Scan(&n)
	return n, err
}

func (l *Lake) ColumnValuesAt(ctx context.Context, table, column string, rowSeqs []int64) ([]string, error) {
	q := fmt.Sprintf(
		"SELECT %s::text FROM %s WHERE %s = ANY($1) ORDER BY %s",
		sqlIdent(column), sqlIdent(table), sqlIdent(lake.RowSeqColumn), sqlIdent(lake.RowSeqColumn),
	)

	rows, err := l.pool.Query(ctx, q, rowSeqs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0, len(rowSeqs))
	for rows.Next() {
		var v *string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v == nil {
			out = append(out, "")
		} else {
			out = append(out, *v)
		}
	}
	return out, rows.Err()
}

func (l *Lake) ScanRows(ctx context.Context, table string, columns []string, fn func(rowSeq int64, values []string) error) error {
	colList := make([]string, 0, len(columns)+1)
	colList = append(colList, sqlIdent(lake.RowSeqColumn))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c)+"::text")
	}

	q := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY %s",
		strings.Join(colList, ", "), sqlIdent(table), sqlIdent(lake.RowSeqColumn),
	)
	rows, err := l.pool.Query(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()

	// IMPORTANT: pgx requires that Scan destinations are pointers; a nil
	// *string marks a NULL value and is reported to fn as "".
	vals := make([]*string, len(columns))
	dest := make([]any, 0, len(columns)+1)
	var seq int64
	dest = append(dest, &seq)
	for i := range vals {
		dest = append(dest, &vals[i])
	}

	out := make([]string, len(columns))
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		for i := range vals {
			if vals[i] == nil {
				out[i] = ""
			} else {
				out[i] = *vals[i]
			}
		}
		if err := fn(seq, out); err != nil {
			return err
		}
	}
	return rows.Err()
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func buildCreateTableSQL(t lake.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}

	parts := make([]string, 0, len(t.Columns)+1)
	parts = append(parts, sqlIdent(lake.RowSeqColumn)+" BIGINT PRIMARY KEY")

	for _, c := range t.Columns {
		col := fmt.Sprintf("%s %s", sqlIdent(c.Name), nativeType(c.Type))
		if !c.Nullable {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", sqlIdent(t.Name), strings.Join(parts, ",\n  ")), nil
}

func nativeType(logical string) string {
	switch logical {
	case lake.TypeInteger:
		return "BIGINT"
	case lake.TypeFloat:
		return "DOUBLE PRECISION"
	case lake.TypeBoolean:
		return "BOOLEAN"
	case lake.TypeDate:
		return "DATE"
	case lake.TypeTime:
		return "TIME"
	case lake.TypeDateTime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

var _ lake.Lake = (*Lake)(nil)
