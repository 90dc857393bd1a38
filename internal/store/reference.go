package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/farmcost/internal/refdata"
)

// List returns every row of the kind ordered by composite key. Rows carry
// the kind's JSON field names plus the key column when it is separate.
func (s *SQLStore) List(ctx context.Context, kind *refdata.Kind) ([]refdata.Row, error) {
	op := "list " + kind.Name
	cols := kind.Columns()
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(cols, ", "), kind.Table, kind.KeyColumn)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	out := []refdata.Row{}
	for rows.Next() {
		row, err := scanRow(rows, kind)
		if err != nil {
			return nil, wrapErr(op, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return out, nil
}

// Add inserts a new row. A row with the same composite key is a conflict.
func (s *SQLStore) Add(ctx context.Context, kind *refdata.Kind, row refdata.Row) error {
	op := "add " + kind.Name
	key, err := kind.Key(row)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query, vals := s.insertQuery(kind, row, key, kind.Fields)
	if _, err := s.db.ExecContext(ctx, query, vals...); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// Upsert inserts the row when its composite key is absent and otherwise
// overwrites the natural and attribute fields of the existing row. The key
// itself never changes. It reports whether a row was created.
func (s *SQLStore) Upsert(ctx context.Context, kind *refdata.Kind, row refdata.Row) (bool, error) {
	op := "upsert " + kind.Name
	key, err := kind.Key(row)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, wrapErr(op, err)
	}
	defer tx.Rollback()

	exists, err := s.keyExists(ctx, tx, kind, key)
	if err != nil {
		return false, wrapErr(op, err)
	}

	query, vals := s.insertQuery(kind, row, key, kind.Fields)
	var sets []string
	for _, f := range kind.Fields {
		if f.Column == kind.KeyColumn {
			continue
		}
		sets = append(sets, f.Column+" = excluded."+f.Column)
	}
	query += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", kind.KeyColumn, strings.Join(sets, ", "))

	if _, err := tx.ExecContext(ctx, query, vals...); err != nil {
		return false, wrapErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return false, wrapErr(op, err)
	}
	return !exists, nil
}

// DeleteByKey removes the row with the given composite key.
func (s *SQLStore) DeleteByKey(ctx context.Context, kind *refdata.Kind, key string) error {
	op := "delete " + kind.Name
	a := s.dialect.args()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", kind.Table, kind.KeyColumn, a.Arg(key))

	res, err := s.db.ExecContext(ctx, query, a.Values()...)
	if err != nil {
		return wrapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(op, err)
	}
	if n == 0 {
		return notFound(op)
	}
	return nil
}

// DeleteByField removes every row whose legacy delete field equals value,
// e.g. an item name across all years and origins. Matching nothing is not
// an error.
func (s *SQLStore) DeleteByField(ctx context.Context, kind *refdata.Kind, value any) (int64, error) {
	op := "bulk delete " + kind.Name
	a := s.dialect.args()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", kind.Table, kind.DeleteColumn, a.Arg(value))

	res, err := s.db.ExecContext(ctx, query, a.Values()...)
	if err != nil {
		return 0, wrapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr(op, err)
	}
	return n, nil
}

// insertQuery renders an INSERT of the given fields plus the separate key
// column, if any.
func (s *SQLStore) insertQuery(kind *refdata.Kind, row refdata.Row, key string, fields []refdata.Field) (string, []any) {
	a := s.dialect.args()
	cols := make([]string, 0, len(fields)+1)
	marks := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		cols = append(cols, f.Column)
		marks = append(marks, a.Arg(row[f.Name]))
	}
	if kind.HasKeyColumn() {
		cols = append(cols, kind.KeyColumn)
		marks = append(marks, a.Arg(key))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		kind.Table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	return query, a.Values()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) keyExists(ctx context.Context, q querier, kind *refdata.Kind, key string) (bool, error) {
	a := s.dialect.args()
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = %s", kind.Table, kind.KeyColumn, a.Arg(key))
	var one int
	err := q.QueryRowContext(ctx, query, a.Values()...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// scanRow reads one row selected with kind.Columns().
func scanRow(rows *sql.Rows, kind *refdata.Kind) (refdata.Row, error) {
	dest := make([]any, 0, len(kind.Fields)+1)
	for _, f := range kind.Fields {
		dest = append(dest, scanTarget(f.Type))
	}
	var key sql.NullString
	if kind.HasKeyColumn() {
		dest = append(dest, &key)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	row := make(refdata.Row, len(dest))
	for i, f := range kind.Fields {
		row[f.Name] = scannedValue(dest[i])
	}
	if kind.HasKeyColumn() {
		row[kind.KeyColumn] = scannedValue(&key)
	}
	return row, nil
}

func scanTarget(t refdata.FieldType) any {
	switch t {
	case refdata.Integer:
		return new(sql.NullInt64)
	case refdata.Numeric:
		return new(sql.NullFloat64)
	default:
		return new(sql.NullString)
	}
}

func scannedValue(v any) any {
	switch x := v.(type) {
	case *sql.NullString:
		if x.Valid {
			return x.String
		}
	case *sql.NullInt64:
		if x.Valid {
			return x.Int64
		}
	case *sql.NullFloat64:
		if x.Valid {
			return x.Float64
		}
	}
	return nil
}
