package model

import "time"

// Export job statuses.
const (
	ExportCompleted = "completed"
	ExportFailed    = "failed"
)

// ExportJob records a CSV/Parquet export of filtered events.
type ExportJob struct {
	ID          string    `json:"id" db:"id"`
	OrgID       string    `json:"org_id" db:"org_id"`
	RequestedBy string    `json:"requested_by" db:"requested_by"`
	FilterJSON  string    `json:"filter" db:"filter_json"`
	CSVPath     string    `json:"csv_path" db:"csv_path"`
	ParquetPath string    `json:"parquet_path" db:"parquet_path"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
