// Package db provides the embedded SQLite record store used by filesync.
//
// The store holds the application-side copy of every record: one row per
// record in the records table, plus one row per metadata key in
// record_meta. It runs in WAL mode so a watch daemon and one-off CLI
// commands can use the same database file concurrently.
//
// Architecture:
//   - Database file: configurable, default .filesync/content.db
//   - WAL mode: concurrent readers during writes
//   - Schema: records, record_meta tables
//   - Extra record attributes are stored as a JSON object column
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/clarive/filesync/internal/content/schema"
)

// ErrNotFound is returned by GetRecord and UpdateRecord when no record has
// the given id.
var ErrNotFound = schema.ErrNotFound

// Statuses and types excluded from dumps.
const (
	StatusTrash  = "trash"
	TypeRevision = "revision"
)

// DB wraps the SQLite connection with record store operations.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the specified path.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	store, err := db.Open(".filesync/content.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn: conn,
		path: path,
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.conn.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run %q: %w", p, err)
		}
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the tables if they don't exist. Safe to call
// multiple times.
func (db *DB) InitSchema(ctx context.Context) error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'publish',
		date TEXT NOT NULL,
		modified TEXT NOT NULL,
		fields TEXT NOT NULL DEFAULT '{}',  -- JSON object
		body TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS record_meta (
		record_id INTEGER NOT NULL,
		meta_key TEXT NOT NULL,
		meta_value TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (record_id, meta_key),
		FOREIGN KEY (record_id) REFERENCES records(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_records_type ON records(type);
	CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
	CREATE INDEX IF NOT EXISTS idx_records_date ON records(date);
	`

	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

const recordColumns = `id, type, title, status, date, modified, fields, body`

// ListRecords returns live records (not trashed, not revisions) ordered by
// date, newest first. Rows whose fields cannot be decoded are left out and
// reported as *schema.CorruptRecordError values joined into the error,
// alongside the records that were read.
func (db *DB) ListRecords(ctx context.Context, filter schema.Filter) ([]*schema.Record, error) {
	conditions := []string{"status != ?", "type != ?"}
	args := []any{StatusTrash, TypeRevision}

	if filter.ID != nil {
		conditions = append(conditions, "id = ?")
		args = append(args, *filter.ID)
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}

	query := `SELECT ` + recordColumns + ` FROM records
	WHERE ` + strings.Join(conditions, " AND ") + `
	ORDER BY date DESC, id DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var (
		records []*schema.Record
		corrupt []error
	)
	for rows.Next() {
		r, err := scanRecord(rows)
		var corruptErr *schema.CorruptRecordError
		if errors.As(err, &corruptErr) {
			corrupt = append(corrupt, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, errors.Join(corrupt...)
}

// GetRecord returns a single record by id, regardless of its status.
// Returns ErrNotFound if no such record exists.
func (db *DB) GetRecord(ctx context.Context, id int64) (*schema.Record, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetMetadata returns metadata keyed by record id. A nil id returns the
// metadata of every record.
func (db *DB) GetMetadata(ctx context.Context, id *int64) (map[int64]map[string]string, error) {
	query := `SELECT record_id, meta_key, meta_value FROM record_meta`
	var args []any
	if id != nil {
		query += ` WHERE record_id = ?`
		args = append(args, *id)
	}
	query += ` ORDER BY LOWER(meta_key)`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[int64]map[string]string)
	for rows.Next() {
		var (
			recordID   int64
			key, value string
		)
		if err := rows.Scan(&recordID, &key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		if meta[recordID] == nil {
			meta[recordID] = make(map[string]string)
		}
		meta[recordID][key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metadata: %w", err)
	}
	return meta, nil
}

// InsertRecord stores a new record and returns its assigned id.
// Any id already set on r is ignored.
func (db *DB) InsertRecord(ctx context.Context, r *schema.Record) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, fmt.Errorf("invalid record: %w", err)
	}
	fieldsJSON, err := marshalFields(r.Fields)
	if err != nil {
		return 0, err
	}

	res, err := db.conn.ExecContext(ctx, `
	INSERT INTO records (type, title, status, date, modified, fields, body)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Type,
		r.Title,
		r.Status,
		formatTime(r.Date),
		formatTime(r.Modified),
		fieldsJSON,
		r.Body,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record %q: %w", r.Title, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	return id, nil
}

// UpdateRecord overwrites an existing record in place.
// Returns ErrNotFound if the record does not exist.
func (db *DB) UpdateRecord(ctx context.Context, r *schema.Record) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	fieldsJSON, err := marshalFields(r.Fields)
	if err != nil {
		return err
	}

	res, err := db.conn.ExecContext(ctx, `
	UPDATE records SET
		type = ?,
		title = ?,
		status = ?,
		date = ?,
		modified = ?,
		fields = ?,
		body = ?
	WHERE id = ?`,
		r.Type,
		r.Title,
		r.Status,
		formatTime(r.Date),
		formatTime(r.Modified),
		fieldsJSON,
		r.Body,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update record %d: %w", r.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update record %d: %w", r.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("record %d: %w", r.ID, ErrNotFound)
	}
	return nil
}

// SetMetadata inserts or replaces a single metadata value.
func (db *DB) SetMetadata(ctx context.Context, id int64, key, value string) error {
	_, err := db.conn.ExecContext(ctx, `
	INSERT INTO record_meta (record_id, meta_key, meta_value)
	VALUES (?, ?, ?)
	ON CONFLICT(record_id, meta_key) DO UPDATE SET
		meta_value = excluded.meta_value`,
		id, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set metadata %q on record %d: %w", key, id, err)
	}
	return nil
}

// GetRecordCount returns the total number of records, trashed included.
func (db *DB) GetRecordCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get record count: %w", err)
	}
	return count, nil
}

// CountByType returns the number of live records per type.
func (db *DB) CountByType(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM records WHERE status != ? AND type != ? GROUP BY type`,
		StatusTrash, TypeRevision)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[typ] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counts: %w", err)
	}
	return counts, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*schema.Record, error) {
	var (
		r              schema.Record
		date, modified string
		fieldsJSON     string
	)
	err := s.Scan(&r.ID, &r.Type, &r.Title, &r.Status, &date, &modified, &fieldsJSON, &r.Body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	r.Date = parseTime(date)
	r.Modified = parseTime(modified)

	r.Fields = map[string]any{}
	if fieldsJSON != "" {
		dec := json.NewDecoder(strings.NewReader(fieldsJSON))
		dec.UseNumber()
		if err := dec.Decode(&r.Fields); err != nil {
			return nil, &schema.CorruptRecordError{ID: r.ID, Err: fmt.Errorf("failed to unmarshal fields: %w", err)}
		}
		for k, v := range r.Fields {
			r.Fields[k] = fromJSONNumber(v)
		}
	}
	r.Metadata = map[string]string{}
	return &r, nil
}

func marshalFields(fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal fields: %w", err)
	}
	return string(data), nil
}

// fromJSONNumber keeps integers integral so they dump as 3, not 3.0.
func fromJSONNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return int(i)
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(schema.TimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(schema.TimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
