package domain

import "time"

// File formats the ingestion facade understands.
const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatParquet = "parquet"
	FormatExcel   = "xlsx"
)

// ColumnInfo describes one column of a loaded table.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableHandle describes a table created by a file load. The handle is owned
// by the engine session that created it; uniqueness of names is last-write-wins.
type TableHandle struct {
	Name     string       `json:"name"`
	Columns  []ColumnInfo `json:"columns"`
	RowCount int64        `json:"row_count"`
}

// QueryResult is the ordered column list plus row-major value matrix returned
// by a query execution. Results are ephemeral and recomputed on every run.
type QueryResult struct {
	Columns  []string        `json:"columns"`
	Rows     [][]interface{} `json:"rows"`
	RowCount int             `json:"row_count"`
}

// QueryHistoryEntry records one executed statement for a user.
type QueryHistoryEntry struct {
	ID         int64
	UserID     int64
	SQL        string
	Mode       string
	Status     string
	Error      string
	DurationMs int64
	RowCount   int64
	CreatedAt  time.Time
}

// QueryHistoryFilter narrows a history listing.
type QueryHistoryFilter struct {
	UserID *int64
	Status *string
	Since  *time.Time
}
