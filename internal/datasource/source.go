// Package datasource provides item sources for the window engine: a JSONL
// file read in one pass and a SQLite database read page by page. Both
// satisfy Source, so the host can drive incremental loading the same way.
package datasource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/wintree/pkg/model"
)

// Kind identifies the type of data source
type Kind string

const (
	// KindJSONL is a JSON-lines file, one item per line
	KindJSONL Kind = "jsonl"
	// KindSQLite is a SQLite database with an items table
	KindSQLite Kind = "sqlite"
)

var (
	// ErrUnsupportedSource is returned when a path is neither JSONL nor SQLite.
	ErrUnsupportedSource = errors.New("unsupported source")
	// ErrClosed is returned by operations on a closed source.
	ErrClosed = errors.New("source closed")
)

// FetchError records a failed page fetch.
type FetchError struct {
	Offset int
	Limit  int
	Cause  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch items [%d,+%d): %v", e.Offset, e.Limit, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Source serves items by position. Positions are stable for the life of
// the source; Fetch past the end returns an empty slice.
type Source interface {
	Kind() Kind
	Count(ctx context.Context) (int, error)
	Fetch(ctx context.Context, offset, limit int) ([]model.Item, error)
	Close() error
}

var sqliteMagic = []byte("SQLite format 3\x00")

// Detect determines the source kind from the file extension, falling
// back to sniffing the SQLite header.
func Detect(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json":
		return KindJSONL, nil
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening source: %w", err)
	}
	defer f.Close()

	head := make([]byte, len(sqliteMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading source header: %w", err)
	}
	head = head[:n]
	switch {
	case bytes.Equal(head, sqliteMagic):
		return KindSQLite, nil
	case len(bytes.TrimSpace(stripBOM(head))) > 0 && bytes.TrimSpace(stripBOM(head))[0] == '{':
		return KindJSONL, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnsupportedSource)
}

// Open detects the kind of path and opens the matching source.
func Open(path string, opts ParseOptions) (Source, error) {
	kind, err := Detect(path)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindSQLite:
		return OpenSQLite(path)
	default:
		return OpenJSONL(path, opts), nil
	}
}
