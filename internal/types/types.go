package types

import (
	"encoding/json"
	"time"

	"github.com/hyperengineering/farmcost/internal/validation"
)

// IngestResult summarizes one ingest run of a reference kind.
type IngestResult struct {
	Kind       string    `json:"kind"`
	RunID      string    `json:"run_id"`
	Scanned    int       `json:"scanned"`
	Inserted   int       `json:"inserted"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Existing is the number of scanned tuples whose key was already present.
func (r IngestResult) Existing() int {
	return r.Scanned - r.Skipped - r.Inserted
}

// TableQuality holds the missing-value counts of one reference table.
type TableQuality struct {
	Columns      map[string]int64 `json:"columns"`
	TotalMissing int64            `json:"total_missing"`
}

// QualityReport is the data-quality report over every reference table.
type QualityReport struct {
	Tables map[string]TableQuality `json:"tables"`
	// Order lists the tables in catalog order.
	Order           []string  `json:"-"`
	WorstTable      *string   `json:"worst_table"`
	MaxMissingCount int64     `json:"max_missing_count"`
	TotalMissing    int64     `json:"total_missing"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// RealTimeInfo is the single worst-table summary of a quality report.
type RealTimeInfo struct {
	TotalMissingData         int64   `json:"total_missing_data"`
	TableWithMostMissingData *string `json:"table_with_most_missing_data"`
	MaxMissingCount          int64   `json:"max_missing_count"`
}

// Summary condenses the report into its real-time form.
func (r QualityReport) Summary() RealTimeInfo {
	return RealTimeInfo{
		TotalMissingData:         r.TotalMissing,
		TableWithMostMissingData: r.WorstTable,
		MaxMissingCount:          r.MaxMissingCount,
	}
}

// MarshalJSON ensures nil maps in TableQuality marshal as {} not null.
func (t TableQuality) MarshalJSON() ([]byte, error) {
	if t.Columns == nil {
		t.Columns = map[string]int64{}
	}
	type Alias TableQuality
	return json.Marshal(Alias(t))
}

// MarshalJSON ensures nil maps in QualityReport marshal as {} not null.
func (r QualityReport) MarshalJSON() ([]byte, error) {
	if r.Tables == nil {
		r.Tables = map[string]TableQuality{}
	}
	type Alias QualityReport
	return json.Marshal(Alias(r))
}

// User is a stored account without its password hash.
type User struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Credentials is the body of login and user creation requests.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// DeleteUserRequest is the body of DELETE /users.
type DeleteUserRequest struct {
	Username string `json:"username"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// SuccessResponse is the plain success envelope.
type SuccessResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the failure envelope of every endpoint.
type ErrorResponse struct {
	Status  string                       `json:"status"`
	Message string                       `json:"message"`
	Errors  []validation.ValidationError `json:"errors,omitempty"`
}

// UpsertResponse reports whether an update created the row.
type UpsertResponse struct {
	Status  string `json:"status"`
	Created bool   `json:"created"`
}

// DeleteResponse reports how many rows a delete removed.
type DeleteResponse struct {
	Status  string `json:"status"`
	Deleted int64  `json:"deleted"`
}

// IngestResponse wraps an ingest result in the success envelope.
type IngestResponse struct {
	Status string `json:"status"`
	IngestResult
}

// IngestAllResponse carries one result per kind, in ingest order.
type IngestAllResponse struct {
	Status  string         `json:"status"`
	Results []IngestResult `json:"results"`
}

// MarshalJSON ensures nil slices in IngestAllResponse marshal as [] not null.
func (r IngestAllResponse) MarshalJSON() ([]byte, error) {
	if r.Results == nil {
		r.Results = []IngestResult{}
	}
	type Alias IngestAllResponse
	return json.Marshal(Alias(r))
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}
