// Package mysql implements lake.Lake on MySQL / MariaDB.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"dataprof/internal/lake"
)

// Lake implements lake.Lake for MySQL.
//
// MySQL lacks transactional DDL, but RENAME TABLE accepts multiple pairs and
// applies them atomically; SwapTable leans on that instead of a transaction.
type Lake struct {
	db *sql.DB
}

func init() {
	lake.Register("mysql", New)
}

func New(ctx context.Context, cfg lake.Config) (lake.Lake, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Lake{db: db}, nil
}

func (l *Lake) Close() { _ = l.db.Close() }

func (l *Lake) EnsureTable(ctx context.Context, spec lake.TableSpec) error {
	ddl, err := buildCreateTableSQL(spec)
	if err != nil {
		return err
	}
	if _, err := l.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

func (l *Lake) DropTable(ctx context.Context, table string) error {
	_, err := l.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(table))
	return err
}

func (l *Lake) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`, table,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SwapTable replaces target with staging. When target exists, the multi-pair
// RENAME TABLE moves target out of the way and staging into place in one
// atomic step; the displaced table is dropped afterwards.
func (l *Lake) SwapTable(ctx context.Context, staging, target string) error {
	exists, err := l.TableExists(ctx, target)
	if err != nil {
		return err
	}

	if !exists {
		_, err := l.db.ExecContext(ctx,
			"RENAME TABLE "+sqlIdent(staging)+" TO "+sqlIdent(target))
		return err
	}

	displaced := target + "__old"
	if err := l.DropTable(ctx, displaced); err != nil {
		return err
	}
	q := fmt.Sprintf(
		"RENAME TABLE %s TO %s, %s TO %s",
		sqlIdent(target), sqlIdent(displaced), sqlIdent(staging), sqlIdent(target),
	)
	if _, err := l.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("rename %s to %s: %w", staging, target, err)
	}
	return l.DropTable(ctx, displaced)
}

func (l *Lake) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, row...)
	}

	res, err := l.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (l *Lake) RowCount(ctx context.Context, table string) (int64, error) {
	var n int64
	err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+sqlIdent(table)).Scan(&n)
	return n, err
}

const seqChunk = 500

func (l *Lake) ColumnValuesAt(ctx context.Context, table, column string, rowSeqs []int64) ([]string, error) {
	out := make([]string, 0, len(rowSeqs))

	for start := 0; start < len(rowSeqs); start += seqChunk {
		end := start + seqChunk
		if end > len(rowSeqs) {
			end = len(rowSeqs)
		}
		chunk := rowSeqs[start:end]

		ph := strings.TrimRight(strings.Repeat("?,", len(chunk)), ",")
		q := fmt.Sprintf(
			"SELECT %s FROM %s WHERE %s IN (%s) ORDER BY %s",
			sqlIdent(column), sqlIdent(table), sqlIdent(lake.RowSeqColumn), ph, sqlIdent(lake.RowSeqColumn),
		)
		args := make([]any, len(chunk))
		for i, s := range chunk {
			args[i] = s
		}

		rows, err := l.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var v sql.NullString
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, v.String)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return out, nil
}

func (l *Lake) ScanRows(ctx context.Context, table string, columns []string, fn func(rowSeq int64, values []string) error) error {
	colList := make([]string, 0, len(columns)+1)
	colList = append(colList, sqlIdent(lake.RowSeqColumn))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}

	q := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY %s",
		strings.Join(colList, ", "), sqlIdent(table), sqlIdent(lake.RowSeqColumn),
	)
	rows, err := l.db.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()

	vals := make([]sql.NullString, len(columns))
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
			out[i] = vals[i].String
		}
		if err := fn(seq, out); err != nil {
			return err
		}
	}
	return rows.Err()
}

func sqlIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

func buildCreateTableSQL(t lake.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}

	parts := make([]string, 0, len(t.Columns)+1)
	parts = append(parts, sqlIdent(lake.RowSeqColumn)+" BIGINT NOT NULL PRIMARY KEY")

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
		return "DOUBLE"
	case lake.TypeBoolean:
		return "TINYINT(1)"
	case lake.TypeDate:
		return "DATE"
	case lake.TypeTime:
		return "TIME"
	case lake.TypeDateTime:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

var _ lake.Lake = (*Lake)(nil)
