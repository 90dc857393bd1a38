package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestIngestResponse_FlattensResult(t *testing.T) {
	resp := IngestResponse{
		Status: "success",
		IngestResult: IngestResult{
			Kind:     "fertilizer_cost",
			RunID:    "01HZX0000000000000000000000",
			Scanned:  3,
			Inserted: 2,
			Skipped:  1,
		},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"status", "kind", "run_id", "scanned", "inserted", "skipped"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing top-level key %q in %s", key, data)
		}
	}
}

func TestIngestResult_Existing(t *testing.T) {
	r := IngestResult{Scanned: 10, Inserted: 4, Skipped: 2}
	if got := r.Existing(); got != 4 {
		t.Errorf("Existing() = %d, want 4", got)
	}
}

func TestQualityReport_NilMapsMarshalAsObjects(t *testing.T) {
	data, err := json.Marshal(QualityReport{})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	raw := string(data)
	if !strings.Contains(raw, `"tables":{}`) {
		t.Errorf("nil Tables should marshal as {}, got: %s", raw)
	}
	if !strings.Contains(raw, `"worst_table":null`) {
		t.Errorf("nil WorstTable should marshal as null, got: %s", raw)
	}

	data, err = json.Marshal(TableQuality{})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"columns":{}`) {
		t.Errorf("nil Columns should marshal as {}, got: %s", data)
	}
}

func TestQualityReport_Summary(t *testing.T) {
	worst := "appLaborCostData"
	r := QualityReport{WorstTable: &worst, MaxMissingCount: 7, TotalMissing: 12}

	got := r.Summary()
	if got.TotalMissingData != 12 || got.MaxMissingCount != 7 {
		t.Errorf("Summary() = %+v", got)
	}
	if got.TableWithMostMissingData == nil || *got.TableWithMostMissingData != worst {
		t.Errorf("TableWithMostMissingData = %v, want %q", got.TableWithMostMissingData, worst)
	}

	data, _ := json.Marshal(got)
	for _, key := range []string{`"total_missing_data":12`, `"table_with_most_missing_data":"appLaborCostData"`, `"max_missing_count":7`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("RealTimeInfo JSON %s missing %s", data, key)
		}
	}
}

func TestIngestAllResponse_NilResultsMarshalAsArray(t *testing.T) {
	data, err := json.Marshal(IngestAllResponse{Status: "success"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"results":[]`) {
		t.Errorf("nil Results should marshal as [], got: %s", data)
	}
}

func TestUser_OmitsPasswordHash(t *testing.T) {
	u := User{Username: "admin", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	data, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"username":"admin","created_at":"2024-01-02T03:04:05Z"}`
	if string(data) != want {
		t.Errorf("Marshal(User) = %s, want %s", data, want)
	}
}
