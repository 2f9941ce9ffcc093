package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vanderheijden86/wintree/pkg/model"
)

// AssertRowCount verifies the expected number of rows.
func AssertRowCount(t testing.TB, rows []model.Row, expected int) {
	t.Helper()
	if len(rows) != expected {
		t.Errorf("expected %d rows, got %d", expected, len(rows))
	}
}

// AssertRowIDs verifies the exact row order.
func AssertRowIDs(t testing.TB, rows []model.Row, expected ...string) {
	t.Helper()
	got := RowIDs(rows)
	if len(got) != len(expected) {
		t.Errorf("expected rows %v, got %v", expected, got)
		return
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("expected rows %v, got %v", expected, got)
			return
		}
	}
}

// AssertNoDuplicateRows verifies every row ID appears once.
func AssertNoDuplicateRows(t testing.TB, rows []model.Row) {
	t.Helper()
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		if seen[r.ID] {
			t.Errorf("duplicate row ID: %s", r.ID)
		}
		seen[r.ID] = true
	}
}

// CheckPreOrder returns an empty string when rows are a valid pre-order
// flattening: every row at level n>0 sits under the nearest preceding row
// at level n-1, that row is its parent, and that parent is expanded.
// Otherwise it returns a description of the first violation.
func CheckPreOrder(rows []model.Row) string {
	// stack[l] is the most recent row at level l
	var stack []model.Row
	for _, r := range rows {
		if r.Level < 0 || r.Level > len(stack) {
			return "row " + r.ID + " skips a level"
		}
		stack = stack[:r.Level]
		if r.Level > 0 {
			parent := stack[r.Level-1]
			if r.Item != nil && r.Item.ParentID != parent.ID {
				return "row " + r.ID + " is not under its parent"
			}
			if !parent.Expanded {
				return "row " + r.ID + " is emitted under collapsed " + parent.ID
			}
		}
		stack = append(stack, r)
	}
	return ""
}

// AssertPreOrder fails the test when CheckPreOrder reports a violation.
func AssertPreOrder(t testing.TB, rows []model.Row) {
	t.Helper()
	if msg := CheckPreOrder(rows); msg != "" {
		t.Errorf("pre-order violated: %s (rows %v)", msg, RowIDs(rows))
	}
}

// RowIDs extracts IDs from rows.
func RowIDs(rows []model.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

// WriteItemsFile writes items as JSONL to a file in a temp directory and
// returns the path.
func WriteItemsFile(t testing.TB, name string, items []model.Item) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(ToJSONL(items)), 0o644); err != nil {
		t.Fatalf("failed to write items file: %v", err)
	}
	return path
}
