// Package engine wraps the embedded DuckDB instance behind a session with an
// explicit lifecycle: uninitialized → initializing → ready | error.
package engine

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"dataforge/internal/domain"
)

// Session states.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Session owns one in-process DuckDB instance for the lifetime of the server.
// There is no recovery path from the error state short of a process restart;
// callers in remote execution mode are unaffected by a failed session.
type Session struct {
	dsn    string
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	db      *sql.DB
	initErr error
}

// NewSession creates an uninitialized session. dsn is the DuckDB datasource
// ("" for in-memory).
func NewSession(dsn string, logger *slog.Logger) *Session {
	return &Session{dsn: dsn, logger: logger}
}

// Initialize provisions the engine and verifies a connection. It is
// idempotent: concurrent and repeated calls observe the first outcome.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady:
		return nil
	case StateError:
		return s.initErr
	case StateInitializing:
		// Initialization holds the lock, so another caller can only observe
		// this state if init panicked; treat it as failed.
		return domain.ErrUnavailable("engine initialization did not complete")
	}

	s.state = StateInitializing

	db, err := sql.Open("duckdb", s.dsn)
	if err == nil {
		err = db.PingContext(ctx)
	}
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		s.state = StateError
		s.initErr = fmt.Errorf("initialize engine: %w", err)
		s.logger.Error("engine initialization failed", "error", err)
		return s.initErr
	}

	s.db = db
	s.state = StateReady
	s.logger.Info("embedded engine ready")
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close shuts the engine down. The session is not reusable afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.state = StateUninitialized
		return err
	}
	return nil
}

// ready returns the handle or an UnavailableError when the session is not ready.
func (s *Session) ready() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return nil, domain.ErrUnavailable("embedded engine is %s", s.state)
	}
	return s.db, nil
}

// ExecuteQuery runs arbitrary SQL and returns the full result. Engine error
// messages pass through untouched; there is no retry or timeout beyond ctx.
func (s *Session) ExecuteQuery(ctx context.Context, sqlQuery string) (*domain.QueryResult, error) {
	if strings.TrimSpace(sqlQuery) == "" {
		return nil, domain.ErrValidation("sql query is required")
	}
	db, err := s.ready()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return scanRows(rows)
}

// LoadFile registers a staged file with the engine and creates (or silently
// replaces) the named table from its contents. Last write wins.
func (s *Session) LoadFile(ctx context.Context, path, tableName, format string) (*domain.TableHandle, error) {
	db, err := s.ready()
	if err != nil {
		return nil, err
	}

	readFn, err := readFunction(format)
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM %s(%s)`,
		quoteIdent(tableName), readFn, quoteLiteral(path))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return nil, fmt.Errorf("load %s into %s: %w", format, tableName, err)
	}

	return s.DescribeTable(ctx, tableName)
}

// ListTables returns handles for all tables in the main schema.
func (s *Session) ListTables(ctx context.Context) ([]domain.TableHandle, error) {
	db, err := s.ready()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'main' AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	handles := make([]domain.TableHandle, 0, len(names))
	for _, name := range names {
		h, err := s.DescribeTable(ctx, name)
		if err != nil {
			return nil, err
		}
		handles = append(handles, *h)
	}
	return handles, nil
}

// DescribeTable returns the column list and row count for one table.
func (s *Session) DescribeTable(ctx context.Context, tableName string) (*domain.TableHandle, error) {
	db, err := s.ready()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_schema = 'main' AND table_name = ? ORDER BY ordinal_position`,
		tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var cols []domain.ColumnInfo
	for rows.Next() {
		var c domain.ColumnInfo
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, domain.ErrNotFound("table %q not found", tableName)
	}

	var count int64
	countStmt := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(tableName))
	if err := db.QueryRowContext(ctx, countStmt).Scan(&count); err != nil {
		return nil, err
	}

	return &domain.TableHandle{Name: tableName, Columns: cols, RowCount: count}, nil
}

// DropTable removes a table. Dropping a missing table is not an error,
// matching the last-write-wins ownership model.
func (s *Session) DropTable(ctx context.Context, tableName string) error {
	db, err := s.ready()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(tableName)))
	return err
}

// ExportCSV streams the table's contents as CSV (header row included) to w.
func (s *Session) ExportCSV(ctx context.Context, tableName string, w io.Writer) error {
	db, err := s.ready()
	if err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s`, quoteIdent(tableName)))
	if err != nil {
		return err
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}

	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	record := make([]string, len(cols))

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		for i, v := range values {
			record[i] = formatCSVValue(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// ExportCSVToFile writes the table's contents as CSV to path, creating the
// file or truncating an existing one.
func (s *Session) ExportCSVToFile(ctx context.Context, tableName, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := s.ExportCSV(ctx, tableName, f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}

// scanRows drains rows into a column list plus row-major matrix.
func scanRows(rows *sql.Rows) (*domain.QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &domain.QueryResult{Columns: cols, Rows: [][]interface{}{}}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

func formatCSVValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// readFunction maps a format to the engine's table-producing read function.
func readFunction(format string) (string, error) {
	switch format {
	case domain.FormatCSV:
		return "read_csv_auto", nil
	case domain.FormatJSON:
		return "read_json_auto", nil
	case domain.FormatParquet:
		return "read_parquet", nil
	case domain.FormatExcel:
		return "read_xlsx", nil
	}
	return "", domain.ErrValidation("unsupported format %q", format)
}

// quoteIdent double-quotes an identifier, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral single-quotes a string literal, escaping embedded quotes.
func quoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}
