package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hyperengineering/farmcost/internal/refdata"
)

func fertilizerCostRow(price float64) refdata.Row {
	return refdata.Row{
		"survey_origin":              "KE",
		"survey_year":                int64(2020),
		"fertilizer_item_name":       "Urea",
		"fertilizer_item_price_lc":   price,
		"fertilizer_item_price_unit": "50kg bag",
	}
}

func TestAdd_ThenList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kind := mustKind(t, "fertilizer_cost")

	if err := s.Add(ctx, kind, fertilizerCostRow(3500)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	rows, err := s.List(ctx, kind)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("List() returned %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row["survey_year_origin_fertilizer_item_name"] != "2020_KE_Urea" {
		t.Errorf("key = %v, want 2020_KE_Urea", row["survey_year_origin_fertilizer_item_name"])
	}
	if row["survey_year"] != int64(2020) {
		t.Errorf("survey_year = %#v, want int64(2020)", row["survey_year"])
	}
	if row["fertilizer_item_price_lc"] != float64(3500) {
		t.Errorf("price = %#v, want 3500", row["fertilizer_item_price_lc"])
	}
}

func TestAdd_DuplicateIsConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kind := mustKind(t, "fertilizer_cost")

	if err := s.Add(ctx, kind, fertilizerCostRow(3500)); err != nil {
		t.Fatalf("first Add() error = %v", err)
	}

	err := s.Add(ctx, kind, fertilizerCostRow(4000))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("second Add() error = %v, want ErrConflict", err)
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Kind != KindConflict {
		t.Errorf("error = %#v, want *StorageError with KindConflict", err)
	}
}

func TestAdd_ConcurrentDuplicatesYieldOneRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kind := mustKind(t, "fertilizer_cost")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Add(ctx, kind, fertilizerCostRow(float64(i+1)))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, ErrConflict):
			t.Errorf("Add() error = %v, want nil or ErrConflict", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful adds = %d, want 1", ok)
	}
	if n := countRows(t, s, kind.Table); n != 1 {
		t.Errorf("row count = %d, want 1", n)
	}
}

func TestAdd_IncompleteKeyNeverReachesStore(t *testing.T) {
	s := newTestStore(t)
	kind := mustKind(t, "fertilizer_cost")
	row := fertilizerCostRow(1)
	delete(row, "survey_origin")

	err := s.Add(context.Background(), kind, row)
	if !errors.Is(err, refdata.ErrIncompleteKey) {
		t.Errorf("Add() error = %v, want ErrIncompleteKey", err)
	}
	if n := countRows(t, s, kind.Table); n != 0 {
		t.Errorf("row count = %d, want 0", n)
	}
}

func TestUpsert_CreatesThenUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kind := mustKind(t, "fertilizer_cost")

	// Given: an upsert of a new key
	created, err := s.Upsert(ctx, kind, fertilizerCostRow(3500))
	if err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	if !created {
		t.Error("first Upsert() created = false, want true")
	}

	// When: the same key is upserted with new attributes
	updated := fertilizerCostRow(4200)
	updated["fertilizer_item_price_unit"] = "kg"
	created, err = s.Upsert(ctx, kind, updated)
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if created {
		t.Error("second Upsert() created = true, want false")
	}

	// Then: exactly one row with the new attributes and the original key
	rows, err := s.List(ctx, kind)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("List() returned %d rows, want 1", len(rows))
	}
	if rows[0]["fertilizer_item_price_lc"] != float64(4200) {
		t.Errorf("price = %v, want 4200", rows[0]["fertilizer_item_price_lc"])
	}
	if rows[0]["fertilizer_item_price_unit"] != "kg" {
		t.Errorf("unit = %v, want kg", rows[0]["fertilizer_item_price_unit"])
	}
	if rows[0][kind.KeyColumn] != "2020_KE_Urea" {
		t.Errorf("key = %v, want 2020_KE_Urea", rows[0][kind.KeyColumn])
	}
}

func TestUpsert_FillsIngestedRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kind := mustKind(t, "fertilizer")

	insertSurvey(t, s, map[string]any{"synthetic_fertilizer_last_year_1_name": "Urea"})
	if _, err := s.Ingest(ctx, kind); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	created, err := s.Upsert(ctx, kind, refdata.Row{"fertilizer_name": "Urea", "n_content": 46.0, "f_type": "synthetic"})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if created {
		t.Error("Upsert() created = true, want false")
	}

	rows, _ := s.List(ctx, kind)
	if len(rows) != 1 || rows[0]["n_content"] != 46.0 || rows[0]["f_type"] != "synthetic" {
		t.Errorf("rows = %v, want Urea enriched", rows)
	}
	if _, ok := rows[0][kind.KeyColumn]; ok {
		t.Errorf("single-field kind should not expose a separate key column: %v", rows[0])
	}
}

func TestDeleteByKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kind := mustKind(t, "fertilizer_cost")

	if err := s.Add(ctx, kind, fertilizerCostRow(1)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := s.DeleteByKey(ctx, kind, "2020_KE_Urea"); err != nil {
		t.Fatalf("DeleteByKey() error = %v", err)
	}
	if n := countRows(t, s, kind.Table); n != 0 {
		t.Errorf("row count = %d, want 0", n)
	}

	err := s.DeleteByKey(ctx, kind, "2020_KE_Urea")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteByKey(absent) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteByField_RemovesAcrossYearsAndOrigins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kind := mustKind(t, "fertilizer_cost")

	for _, r := range []refdata.Row{
		fertilizerCostRow(1),
		{"survey_origin": "UG", "survey_year": int64(2021), "fertilizer_item_name": "Urea", "fertilizer_item_price_lc": 2.0, "fertilizer_item_price_unit": "kg"},
		{"survey_origin": "UG", "survey_year": int64(2021), "fertilizer_item_name": "DAP", "fertilizer_item_price_lc": 2.0, "fertilizer_item_price_unit": "kg"},
	} {
		if err := s.Add(ctx, kind, r); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	n, err := s.DeleteByField(ctx, kind, "Urea")
	if err != nil {
		t.Fatalf("DeleteByField() error = %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	n, err = s.DeleteByField(ctx, kind, "Urea")
	if err != nil {
		t.Fatalf("DeleteByField(absent) error = %v", err)
	}
	if n != 0 {
		t.Errorf("deleted = %d, want 0", n)
	}
	if c := countRows(t, s, kind.Table); c != 1 {
		t.Errorf("remaining rows = %d, want 1", c)
	}
}

func TestList_EmptyTableReturnsEmptySlice(t *testing.T) {
	s := newTestStore(t)
	rows, err := s.List(context.Background(), mustKind(t, "survey_master_data"))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("List() = %#v, want empty non-nil slice", rows)
	}
}

func TestList_EveryKindRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, kind := range refdata.All() {
		row := refdata.Row{}
		for _, f := range kind.Fields {
			switch f.Type {
			case refdata.Integer:
				row[f.Name] = int64(2020)
			case refdata.Numeric:
				row[f.Name] = 1.5
			default:
				row[f.Name] = "v_" + f.Name
			}
		}
		if err := s.Add(ctx, kind, row); err != nil {
			t.Fatalf("Add(%s) error = %v", kind.Name, err)
		}
		rows, err := s.List(ctx, kind)
		if err != nil {
			t.Fatalf("List(%s) error = %v", kind.Name, err)
		}
		if len(rows) != 1 {
			t.Fatalf("List(%s) returned %d rows", kind.Name, len(rows))
		}
		for name, want := range row {
			if rows[0][name] != want {
				t.Errorf("%s.%s = %#v, want %#v", kind.Name, name, rows[0][name], want)
			}
		}
	}
}
