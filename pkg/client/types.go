package client

import (
	"fmt"
	"strings"
	"time"
)

// Reference kinds served by the API, by singular route name.
const (
	KindFertilizer          = "fertilizer"
	KindAgrochemical        = "agrochemical"
	KindFertilizerCost      = "fertilizer_cost"
	KindAgrochemicalCost    = "agrochemical_cost"
	KindLaborCost           = "labor_cost"
	KindSeedlingCost        = "seedling_cost"
	KindOriginEconomicsData = "origin_economics_data"
	KindSurveyMasterData    = "survey_master_data"
	KindUnitConversionData  = "unit_conversion_data"
)

// plural returns the collection route stem of a kind. Kinds named after
// "data" are their own plural.
func plural(kind string) string {
	if strings.HasSuffix(kind, "_data") {
		return kind
	}
	return kind + "s"
}

// Row is one reference row keyed by JSON field name.
type Row map[string]any

// FieldError is a validation failure on one request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Errors     []FieldError
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("farmcost: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("farmcost: HTTP %d: %s", e.StatusCode, e.Message)
}

// IngestResult summarizes one ingest run.
type IngestResult struct {
	Kind       string    `json:"kind"`
	RunID      string    `json:"run_id"`
	Scanned    int       `json:"scanned"`
	Inserted   int       `json:"inserted"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// TableQuality holds the missing-value counts of one reference table.
type TableQuality struct {
	Columns      map[string]int64 `json:"columns"`
	TotalMissing int64            `json:"total_missing"`
}

// RealTimeInfo is the data-quality summary.
type RealTimeInfo struct {
	TotalMissingData         int64   `json:"total_missing_data"`
	TableWithMostMissingData *string `json:"table_with_most_missing_data"`
	MaxMissingCount          int64   `json:"max_missing_count"`
}

// User is an account as listed by the server.
type User struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Health is the server health report.
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}
