package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/farmcost/internal/refdata"
	"github.com/hyperengineering/farmcost/internal/types"
)

// Report counts missing values per column of every reference table. A value
// is missing when NULL, or when zero in a column where zero means missing.
// The worst table is the first one, in catalog order, with the highest
// total; it is nil when nothing is missing.
func (s *SQLStore) Report(ctx context.Context, opts ReportOptions) (*types.QualityReport, error) {
	report := &types.QualityReport{
		Tables:      make(map[string]types.TableQuality),
		GeneratedAt: time.Now().UTC(),
	}

	for _, kind := range refdata.All() {
		tq, err := s.tableQuality(ctx, kind, opts)
		if err != nil {
			return nil, wrapErr("report "+kind.Table, err)
		}
		report.Tables[kind.Table] = tq
		report.Order = append(report.Order, kind.Table)
		report.TotalMissing += tq.TotalMissing
		if tq.TotalMissing > report.MaxMissingCount {
			table := kind.Table
			report.MaxMissingCount = tq.TotalMissing
			report.WorstTable = &table
		}
	}
	return report, nil
}

func (s *SQLStore) tableQuality(ctx context.Context, kind *refdata.Kind, opts ReportOptions) (types.TableQuality, error) {
	cols := kind.Columns()
	exprs := make([]string, len(cols))
	for i, col := range cols {
		cond := col + " IS NULL"
		if zeroIsMissing(kind, col, opts) {
			cond = "(" + col + " IS NULL OR " + col + " = 0)"
		}
		exprs[i] = fmt.Sprintf("COALESCE(SUM(CASE WHEN %s THEN 1 ELSE 0 END), 0)", cond)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), kind.Table)

	counts := make([]int64, len(cols))
	dest := make([]any, len(cols))
	for i := range counts {
		dest[i] = &counts[i]
	}
	if err := s.db.QueryRowContext(ctx, query).Scan(dest...); err != nil {
		return types.TableQuality{}, err
	}

	tq := types.TableQuality{Columns: make(map[string]int64, len(cols))}
	for i, col := range cols {
		tq.Columns[col] = counts[i]
		tq.TotalMissing += counts[i]
	}
	return tq, nil
}

func zeroIsMissing(kind *refdata.Kind, column string, opts ReportOptions) bool {
	for _, f := range kind.Fields {
		if f.Column != column {
			continue
		}
		return f.ZeroIsMissing || (opts.NumericZeroIsMissing && f.Type.IsNumber())
	}
	return false
}
