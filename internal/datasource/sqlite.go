package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/wintree/pkg/debug"
	"github.com/vanderheijden86/wintree/pkg/model"
)

const itemsSchema = `
CREATE TABLE IF NOT EXISTS items (
	id         TEXT PRIMARY KEY,
	parent_id  TEXT,
	title      TEXT NOT NULL DEFAULT '',
	priority   INTEGER,
	status     TEXT,
	created_at TEXT,
	updated_at TEXT,
	labels     TEXT,
	attributes TEXT
)`

const selectItems = `
	SELECT id, parent_id, title, priority, status, created_at, updated_at, labels, attributes
	FROM items
	ORDER BY rowid
	LIMIT ? OFFSET ?`

// SQLiteSource reads items page by page from a SQLite database. Pages
// follow insertion order, so offsets stay stable while the file is
// unchanged.
type SQLiteSource struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// OpenSQLite opens a SQLite database for reading
func OpenSQLite(path string) (*SQLiteSource, error) {
	// Open in read-only mode with a busy timeout so a concurrent writer
	// does not fail reads outright
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set pragmas for read performance
	pragmas := []string{
		"PRAGMA cache_size = -64000",  // 64MB cache
		"PRAGMA mmap_size = 268435456", // 256MB mmap
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			debug.Log("datasource: %s: %v", pragma, err)
		}
	}

	return &SQLiteSource{db: db, path: path}, nil
}

// Kind implements Source.
func (s *SQLiteSource) Kind() Kind { return KindSQLite }

// Path returns the database path.
func (s *SQLiteSource) Path() string { return s.path }

// Close closes the database connection
func (s *SQLiteSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Count returns the number of items in the database
func (s *SQLiteSource) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, ErrClosed
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return count, nil
}

// Fetch returns up to limit items starting at offset.
func (s *SQLiteSource) Fetch(ctx context.Context, offset, limit int) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, &FetchError{Offset: offset, Limit: limit, Cause: ErrClosed}
	}
	if offset < 0 || limit < 0 {
		return nil, &FetchError{Offset: offset, Limit: limit, Cause: fmt.Errorf("negative range")}
	}
	if limit == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, selectItems, limit, offset)
	if err != nil {
		return nil, &FetchError{Offset: offset, Limit: limit, Cause: err}
	}
	defer rows.Close()

	items := make([]model.Item, 0, limit)
	for rows.Next() {
		var item model.Item
		var parentID, status, createdAt, updatedAt, labelsJSON, attrsJSON sql.NullString
		var priority sql.NullInt64

		err := rows.Scan(
			&item.ID, &parentID, &item.Title, &priority, &status,
			&createdAt, &updatedAt, &labelsJSON, &attrsJSON,
		)
		if err != nil {
			return nil, &FetchError{Offset: offset, Limit: limit, Cause: err}
		}

		// Map nullable fields
		if parentID.Valid {
			item.ParentID = parentID.String
		}
		if priority.Valid {
			item.Priority = model.IntPtr(int(priority.Int64))
		}
		if status.Valid {
			item.Status = normalizeStatus(model.Status(status.String))
		}
		if createdAt.Valid {
			item.CreatedAt = parseTime(createdAt.String)
		}
		if updatedAt.Valid {
			item.UpdatedAt = parseTime(updatedAt.String)
		}
		if labelsJSON.Valid {
			item.Labels = parseJSONStringArray(labelsJSON.String)
		}
		if attrsJSON.Valid && attrsJSON.String != "" {
			if err := json.Unmarshal([]byte(attrsJSON.String), &item.Attributes); err != nil {
				debug.Log("datasource: item %s: bad attributes: %v", item.ID, err)
			}
		}

		// Rows are kept even when invalid so that page offsets line up
		// with rowid order; the tree tolerates self-parents and unknown
		// statuses.
		if err := item.Validate(); err != nil {
			debug.Log("datasource: item %s: %v", item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &FetchError{Offset: offset, Limit: limit, Cause: err}
	}
	return items, nil
}

// LastModified returns the most recent updated_at in the database.
func (s *SQLiteSource) LastModified(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return time.Time{}, ErrClosed
	}
	var updatedAt sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(updated_at) FROM items").Scan(&updatedAt); err != nil {
		return time.Time{}, err
	}
	if !updatedAt.Valid {
		return time.Time{}, nil
	}
	return parseTime(updatedAt.String), nil
}

// WriteSQLite creates (or replaces rows in) a SQLite database at path
// holding items in the given order.
func WriteSQLite(ctx context.Context, path string, items []model.Item) error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, itemsSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO items
			(id, parent_id, title, priority, status, created_at, updated_at, labels, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		var priority sql.NullInt64
		if item.Priority != nil {
			priority = sql.NullInt64{Int64: int64(*item.Priority), Valid: true}
		}
		labels, err := json.Marshal(item.Labels)
		if err != nil {
			return fmt.Errorf("encoding labels for %s: %w", item.ID, err)
		}
		var attrs sql.NullString
		if len(item.Attributes) > 0 {
			b, err := json.Marshal(item.Attributes)
			if err != nil {
				return fmt.Errorf("encoding attributes for %s: %w", item.ID, err)
			}
			attrs = sql.NullString{String: string(b), Valid: true}
		}
		_, err = stmt.ExecContext(ctx,
			item.ID, nullString(item.ParentID), item.Title, priority, nullString(string(item.Status)),
			formatTime(item.CreatedAt), formatTime(item.UpdatedAt), string(labels), attrs,
		)
		if err != nil {
			return fmt.Errorf("inserting %s: %w", item.ID, err)
		}
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

// parseTime accepts RFC3339 and the "YYYY-MM-DD HH:MM:SS" form sqlite's
// datetime() produces. Unparseable values become the zero time.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseJSONStringArray parses a JSON array of strings
func parseJSONStringArray(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" || s == "[]" {
		return nil
	}

	var result []string
	if err := json.Unmarshal([]byte(s), &result); err != nil {
		// Fallback to simple parser for malformed JSON
		result = nil
		s = strings.TrimPrefix(s, "[")
		s = strings.TrimSuffix(s, "]")
		if s == "" {
			return nil
		}
		for _, item := range strings.Split(s, ",") {
			item = strings.TrimSpace(item)
			item = strings.Trim(item, `"`)
			if item != "" {
				result = append(result, item)
			}
		}
	}
	return result
}
