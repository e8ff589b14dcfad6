// Package mssql implements lake.Lake on Microsoft SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"dataprof/internal/lake"
)

// Lake implements lake.Lake for SQL Server.
//
// Notes:
//   - SQL Server caps a statement at 2100 parameters, so batched inserts and
//     IN lists are chunked well below that.
//   - sp_rename participates in transactions, so SwapTable runs DROP +
//     sp_rename inside one transaction.
type Lake struct {
	db *sql.DB
}

func init() {
	lake.Register("mssql", New)
}

func New(ctx context.Context, cfg lake.Config) (lake.Lake, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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
	q := fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s", escLiteral(table), sqlIdent(table))
	_, err := l.db.ExecContext(ctx, q)
	return err
}

func (l *Lake) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = @p1`, table,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *Lake) SwapTable(ctx context.Context, staging, target string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	drop := fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s", escLiteral(target), sqlIdent(target))
	if _, err := tx.ExecContext(ctx, drop); err != nil {
		return fmt.Errorf("drop %s: %w", target, err)
	}
	if _, err := tx.ExecContext(ctx, "EXEC sp_rename @p1, @p2", staging, target); err != nil {
		return fmt.Errorf("rename %s to %s: %w", staging, target, err)
	}
	return tx.Commit()
}

// insertChunk keeps each INSERT under the 2100-parameter statement limit.
const insertChunk = 200

func (l *Lake) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	// Keep rowsPerStmt * len(columns) under the parameter cap.
	rowsPerStmt := insertChunk
	if len(columns) > 0 {
		if max := 2000 / len(columns); max < rowsPerStmt {
			rowsPerStmt = max
		}
	}
	if rowsPerStmt < 1 {
		rowsPerStmt = 1
	}

	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}

	var total int64
	for start := 0; start < len(rows); start += rowsPerStmt {
		end := start + rowsPerStmt
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		var b strings.Builder
		b.WriteString("INSERT INTO ")
		b.WriteString(sqlIdent(table))
		b.WriteString(" (")
		b.WriteString(strings.Join(colList, ", "))
		b.WriteString(") VALUES ")

		args := make([]any, 0, len(batch)*len(columns))
		arg := 1
		for i, row := range batch {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(")
			for j := range columns {
				if j > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "@p%d", arg)
				arg++
			}
			b.WriteString(")")
			args = append(args, row...)
		}

		res, err := l.db.ExecContext(ctx, b.String(), args...)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (l *Lake) RowCount(ctx context.Context, table string) (int64, error) {
	var n int64
	err := l.db.QueryRowContext(ctx, "SELECT COUNT_BIG(*) FROM "+sqlIdent(table)).Scan(&n)
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

		phs := make([]string, len(chunk))
		args := make([]any, len(chunk))
		for i, s := range chunk {
			phs[i] = fmt.Sprintf("@p%d", i+1)
			args[i] = s
		}
		q := fmt.Sprintf(
			"SELECT %s FROM %s WHERE %s IN (%s) ORDER BY %s",
			sqlIdent(column), sqlIdent(table), sqlIdent(lake.RowSeqColumn),
			strings.Join(phs, ", "), sqlIdent(lake.RowSeqColumn),
		)

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
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

func escLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
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

	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (\n  %s\n)",
		escLiteral(t.Name), sqlIdent(t.Name), strings.Join(parts, ",\n  "),
	), nil
}

func nativeType(logical string) string {
	switch logical {
	case lake.TypeInteger:
		return "BIGINT"
	case lake.TypeFloat:
		return "FLOAT"
	case lake.TypeBoolean:
		return "BIT"
	case lake.TypeDate:
		return "DATE"
	case lake.TypeTime:
		return "TIME"
	case lake.TypeDateTime:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

var _ lake.Lake = (*Lake)(nil)
