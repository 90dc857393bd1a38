package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/farmcost/internal/refdata"
	"github.com/hyperengineering/farmcost/internal/types"
	"github.com/oklog/ulid/v2"
)

// Ingest seeds reference rows of the kind from the distinct values of its
// source columns. Only absent keys are inserted, with key fields alone, so
// running it again changes nothing. Tuples with a missing key part are
// skipped. The whole run is one transaction and is recorded in ingest_runs.
func (s *SQLStore) Ingest(ctx context.Context, kind *refdata.Kind) (*types.IngestResult, error) {
	op := "ingest " + kind.Name
	result := &types.IngestResult{
		Kind:      kind.Name,
		RunID:     ulid.Make().String(),
		StartedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer tx.Rollback()

	keyFields := kind.KeyFields()
	for _, src := range kind.Sources {
		tuples, err := distinctTuples(ctx, tx, src, keyFields)
		if err != nil {
			return nil, wrapErr(op, fmt.Errorf("scan %s: %w", src.Table, err))
		}

		for _, row := range tuples {
			result.Scanned++
			key, err := kind.Key(row)
			if errors.Is(err, refdata.ErrIncompleteKey) {
				result.Skipped++
				continue
			}
			if err != nil {
				return nil, wrapErr(op, err)
			}

			query, vals := s.insertQuery(kind, row, key, keyFields)
			query += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", kind.KeyColumn)
			res, err := tx.ExecContext(ctx, query, vals...)
			if err != nil {
				return nil, wrapErr(op, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return nil, wrapErr(op, err)
			}
			result.Inserted += int(n)
		}
	}

	result.FinishedAt = time.Now().UTC()
	if err := s.recordIngestRun(ctx, tx, result); err != nil {
		return nil, wrapErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapErr(op, err)
	}
	return result, nil
}

// IngestAll ingests every kind in catalog order and stops at the first
// failure, returning the results completed so far.
func (s *SQLStore) IngestAll(ctx context.Context) ([]types.IngestResult, error) {
	var results []types.IngestResult
	for _, kind := range refdata.All() {
		r, err := s.Ingest(ctx, kind)
		if err != nil {
			return results, err
		}
		results = append(results, *r)
	}
	return results, nil
}

// ListIngestRuns returns the most recent runs, newest first. An empty kind
// lists runs of every kind.
func (s *SQLStore) ListIngestRuns(ctx context.Context, kind string, limit int) ([]types.IngestResult, error) {
	op := "list ingest runs"
	a := s.dialect.args()
	query := "SELECT id, kind, scanned, inserted, skipped, started_at, finished_at FROM ingest_runs"
	if kind != "" {
		query += " WHERE kind = " + a.Arg(kind)
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT " + a.Arg(limit)

	rows, err := s.db.QueryContext(ctx, query, a.Values()...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	out := []types.IngestResult{}
	for rows.Next() {
		var r types.IngestResult
		var started, finished string
		if err := rows.Scan(&r.RunID, &r.Kind, &r.Scanned, &r.Inserted, &r.Skipped, &started, &finished); err != nil {
			return nil, wrapErr(op, err)
		}
		if t, err := time.Parse(timeFormat, started); err == nil {
			r.StartedAt = t
		}
		if t, err := time.Parse(timeFormat, finished); err == nil {
			r.FinishedAt = t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return out, nil
}

// distinctTuples reads the distinct values of a source's columns as rows
// keyed by the kind's natural key field names. The result set is drained
// before returning so the transaction's connection is free for inserts.
func distinctTuples(ctx context.Context, tx *sql.Tx, src refdata.Source, keyFields []refdata.Field) ([]refdata.Row, error) {
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s", strings.Join(src.Columns, ", "), src.Table)
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []refdata.Row
	for rows.Next() {
		dest := make([]any, len(keyFields))
		for i, f := range keyFields {
			dest[i] = scanTarget(f.Type)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(refdata.Row, len(keyFields))
		for i, f := range keyFields {
			row[f.Name] = scannedValue(dest[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQLStore) recordIngestRun(ctx context.Context, tx *sql.Tx, r *types.IngestResult) error {
	a := s.dialect.args()
	query := fmt.Sprintf(
		"INSERT INTO ingest_runs (id, kind, scanned, inserted, skipped, started_at, finished_at) VALUES (%s, %s, %s, %s, %s, %s, %s)",
		a.Arg(r.RunID), a.Arg(r.Kind), a.Arg(r.Scanned), a.Arg(r.Inserted), a.Arg(r.Skipped),
		a.Arg(r.StartedAt.Format(timeFormat)), a.Arg(r.FinishedAt.Format(timeFormat)),
	)
	if _, err := tx.ExecContext(ctx, query, a.Values()...); err != nil {
		return fmt.Errorf("record ingest run: %w", err)
	}
	return nil
}
