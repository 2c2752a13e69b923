// Package store persists uploaded datasets in a file-backed SQLite database
// and answers read-only queries over them. Every upload gets its own table
// named after the uploading user, the session and the upload time; a
// same-second re-upload replaces its table. A metadata table tracks uploads
// per (user, session) with latest-wins ordering.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DevHack1010/NemHemAI/internal/dataset"
)

// queryRowCap bounds how many result rows a query returns to callers.
const queryRowCap = 50

// previewRowCap bounds the rows rendered for in-sandbox query previews.
const previewRowCap = 20

// ErrNoUpload is returned when a session has no recorded upload.
var ErrNoUpload = errors.New("no upload recorded for this session")

// ValidationError rejects a statement before it reaches the database.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ValidateQuery accepts only statements that begin with the SELECT keyword,
// case-insensitively and ignoring leading whitespace.
func ValidateQuery(q string) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(q)), "select") {
		return &ValidationError{Reason: "Only SELECT queries are allowed for safety."}
	}
	return nil
}

// Upload is one recorded CSV upload.
type Upload struct {
	ID         int64
	UserID     string
	SessionID  string
	Filename   string
	TableName  string
	UploadedAt time.Time
}

// Store wraps the shared SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates the database file (and its directory) if needed and prepares
// the upload metadata table.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS uploads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		table_name TEXT NOT NULL,
		uploaded_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating uploads table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// TableName builds the per-upload table name, unique per (user, session,
// upload time). Identifier-hostile characters are replaced.
func TableName(userID, sessionID string, at time.Time) string {
	return fmt.Sprintf("data_%s_%s_%d", sanitizeIdent(userID), sanitizeIdent(sessionID), at.Unix())
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// SaveDataset materializes a dataset as a table, replacing any table of the
// same name: REAL columns for numeric data, TEXT otherwise, rows inserted in
// one transaction.
func (s *Store) SaveDataset(ctx context.Context, table string, ds *dataset.Dataset) error {
	if len(ds.Columns) == 0 {
		return fmt.Errorf("dataset has no columns")
	}
	defs := make([]string, len(ds.Columns))
	for i := range ds.Columns {
		typ := "TEXT"
		if ds.Columns[i].Kind == dataset.KindNumeric {
			typ = "REAL"
		}
		defs[i] = quoteIdent(ds.Columns[i].Name) + " " + typ
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Same-second re-uploads produce the same table name; replace.
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("dropping stale table %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)",
		quoteIdent(table), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ds.Columns)), ", ")
	insert, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)",
		quoteIdent(table), placeholders))
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer insert.Close()

	args := make([]any, len(ds.Columns))
	for r := 0; r < ds.Rows(); r++ {
		for c := range ds.Columns {
			col := &ds.Columns[c]
			v := col.Values[r]
			if v == "" {
				args[c] = nil
				continue
			}
			if col.Kind == dataset.KindNumeric {
				args[c] = col.Floats[r]
			} else {
				args[c] = v
			}
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting row %d: %w", r, err)
		}
	}
	return tx.Commit()
}

// RecordUpload stores upload metadata for session lookup.
func (s *Store) RecordUpload(ctx context.Context, up Upload) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (user_id, session_id, filename, table_name, uploaded_at) VALUES (?, ?, ?, ?, ?)`,
		up.UserID, up.SessionID, up.Filename, up.TableName, up.UploadedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording upload: %w", err)
	}
	return nil
}

// LatestUpload returns the most recent upload for (user, session), or
// ErrNoUpload. Insertion order decides recency; the stored RFC3339Nano text
// trims trailing zeros and does not sort lexicographically.
func (s *Store) LatestUpload(ctx context.Context, userID, sessionID string) (*Upload, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, session_id, filename, table_name, uploaded_at
		 FROM uploads WHERE user_id = ? AND session_id = ?
		 ORDER BY id DESC LIMIT 1`,
		userID, sessionID)
	var up Upload
	var at string
	if err := row.Scan(&up.ID, &up.UserID, &up.SessionID, &up.Filename, &up.TableName, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoUpload
		}
		return nil, fmt.Errorf("looking up latest upload: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, fmt.Errorf("parsing upload timestamp %q: %w", at, err)
	}
	up.UploadedAt = t
	return &up, nil
}

// QueryResult is the wire shape of a successful query: the total row count,
// column order, and at most the first 50 rows as ordered field mappings.
type QueryResult struct {
	RowCount int           `json:"row_count"`
	Columns  []string      `json:"columns"`
	Data     []dataset.Row `json:"data"`
}

// Query validates and runs a read-only statement. All rows are counted but
// only the first 50 are returned.
func (s *Store) Query(ctx context.Context, q string) (*QueryResult, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("SQL execution error: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}
	res := &QueryResult{Columns: cols}
	scan := make([]any, len(cols))
	for i := range scan {
		scan[i] = new(any)
	}
	for rows.Next() {
		res.RowCount++
		if len(res.Data) >= queryRowCap {
			continue
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(dataset.Row, len(cols))
		for i, c := range cols {
			row[i] = dataset.Field{Name: c, Value: normalizeValue(*scan[i].(*any))}
		}
		res.Data = append(res.Data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result rows: %w", err)
	}
	return res, nil
}

// Preview runs a read-only statement and renders up to 20 rows as aligned
// text, for code executed in the sandbox.
func (s *Store) Preview(ctx context.Context, q string) (string, error) {
	res, err := s.Query(ctx, q)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, c := range res.Columns {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString(c)
	}
	b.WriteByte('\n')
	n := len(res.Data)
	if n > previewRowCap {
		n = previewRowCap
	}
	for _, row := range res.Data[:n] {
		for i, f := range row {
			if i > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(formatValue(f.Value))
		}
		b.WriteByte('\n')
	}
	if res.RowCount > n {
		fmt.Fprintf(&b, "(%d of %d rows shown)\n", n, res.RowCount)
	}
	return b.String(), nil
}

// ListTables returns the per-upload data tables, metadata excluded.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name != 'uploads'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ColumnInfo describes one column of a stored table.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// ErrNoTable is returned when a described table does not exist.
var ErrNoTable = errors.New("table not found")

// DescribeTable returns the column layout of a stored table.
func (s *Store) DescribeTable(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("describing table %s: %w", table, err)
	}
	defer rows.Close()
	var out []ColumnInfo
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column info: %w", err)
		}
		out = append(out, ColumnInfo{Name: name, Type: typ, Nullable: notNull == 0})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoTable
	}
	return out, nil
}

// normalizeValue maps driver scan values to JSON-friendly ones.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return v
	}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}
