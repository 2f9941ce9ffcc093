package datasource

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/wintree/pkg/debug"
	"github.com/vanderheijden86/wintree/pkg/model"
)

// DefaultMaxBufferSize is the default buffer size for the reader (10MB).
const DefaultMaxBufferSize = 1024 * 1024 * 10

// ParseOptions configures the behavior of ParseItems.
type ParseOptions struct {
	// WarningHandler is called with warning messages (e.g., malformed JSON).
	// If nil, warnings go to the debug log.
	WarningHandler func(string)

	// BufferSize sets the maximum line size (in bytes) to read at once.
	// Lines longer than this are skipped with a warning.
	// If 0, uses DefaultMaxBufferSize (10MB).
	BufferSize int
}

// ParseItems parses JSONL content from a reader into items. Malformed and
// invalid lines are skipped with a warning; only read errors fail.
func ParseItems(r io.Reader, opts ParseOptions) ([]model.Item, error) {
	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}
	reader := bufio.NewReaderSize(r, maxCapacity)

	warn := opts.WarningHandler
	if warn == nil {
		warn = func(msg string) { debug.Log("datasource: %s", msg) }
	}

	var items []model.Item
	lineNum := 0
	for {
		lineNum++
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading items stream at line %d: %w", lineNum, err)
		}

		if isPrefix {
			warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err == io.EOF {
					break
				}
				if err != nil {
					return nil, fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
			}
			continue
		}

		if lineNum == 1 {
			line = stripBOM(line)
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var item model.Item
		if err := json.Unmarshal(line, &item); err != nil {
			warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
			continue
		}
		item.Status = normalizeStatus(item.Status)
		if err := item.Validate(); err != nil {
			warn(fmt.Sprintf("skipping invalid item on line %d: %v", lineNum, err))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// LoadItemsFromFile reads every item from a JSONL file.
func LoadItemsFromFile(path string, opts ParseOptions) ([]model.Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open items file: %w", err)
	}
	defer file.Close()
	return ParseItems(file, opts)
}

// JSONLSource serves a JSONL file. The file is parsed on first use and
// again on Reload; pages are slices of the parsed items.
type JSONLSource struct {
	path string
	opts ParseOptions

	mu     sync.Mutex
	items  []model.Item
	loaded bool
	closed bool
}

// OpenJSONL creates a source for path. Nothing is read until first use.
func OpenJSONL(path string, opts ParseOptions) *JSONLSource {
	return &JSONLSource{path: path, opts: opts}
}

// Kind implements Source.
func (s *JSONLSource) Kind() Kind { return KindJSONL }

// Path returns the file path.
func (s *JSONLSource) Path() string { return s.path }

// Count implements Source.
func (s *JSONLSource) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	return len(s.items), nil
}

// Fetch implements Source.
func (s *JSONLSource) Fetch(ctx context.Context, offset, limit int) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, &FetchError{Offset: offset, Limit: limit, Cause: err}
	}
	if offset < 0 || limit < 0 {
		return nil, &FetchError{Offset: offset, Limit: limit, Cause: fmt.Errorf("negative range")}
	}
	if offset >= len(s.items) {
		return nil, nil
	}
	end := min(offset+limit, len(s.items))
	out := make([]model.Item, end-offset)
	copy(out, s.items[offset:end])
	return out, nil
}

// Reload re-reads the file and returns the new item count.
func (s *JSONLSource) Reload(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.loaded = false
	if err := s.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	return len(s.items), nil
}

// All returns every item, loading the file if needed.
func (s *JSONLSource) All(ctx context.Context) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.items, nil
}

// Close implements Source.
func (s *JSONLSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.items = nil
	return nil
}

func (s *JSONLSource) ensureLoaded(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if s.loaded {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	items, err := LoadItemsFromFile(s.path, s.opts)
	if err != nil {
		return err
	}
	s.items, s.loaded = items, true
	return nil
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}

func normalizeStatus(status model.Status) model.Status {
	trimmed := strings.TrimSpace(string(status))
	if trimmed == "" {
		return status
	}
	return model.Status(strings.ToLower(trimmed))
}
