package model

import (
	"fmt"
	"strings"
	"time"
)

// Item is a unit of content that can be placed in the row tree.
// Items are treated as immutable snapshots for the duration of one
// flatten pass; callers hand the engine fresh values on every change.
type Item struct {
	ID         string            `json:"id"`
	ParentID   string            `json:"parent_id,omitempty"`
	Title      string            `json:"title"`
	Priority   *int              `json:"priority,omitempty"`
	Status     Status            `json:"status,omitempty"`
	CreatedAt  time.Time         `json:"created_at,omitzero"`
	UpdatedAt  time.Time         `json:"updated_at,omitzero"`
	Labels     []string          `json:"labels,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Clone creates a deep copy of the item
func (i Item) Clone() Item {
	clone := i

	if i.Priority != nil {
		v := *i.Priority
		clone.Priority = &v
	}
	if i.Labels != nil {
		clone.Labels = make([]string, len(i.Labels))
		copy(clone.Labels, i.Labels)
	}
	if i.Attributes != nil {
		clone.Attributes = make(map[string]string, len(i.Attributes))
		for k, v := range i.Attributes {
			clone.Attributes[k] = v
		}
	}

	return clone
}

// Validate checks if the item data is logically valid
func (i *Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item ID cannot be empty")
	}
	if i.ParentID == i.ID {
		return fmt.Errorf("item %s cannot be its own parent", i.ID)
	}
	if !i.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", i.Status)
	}
	if !i.UpdatedAt.IsZero() && !i.CreatedAt.IsZero() && i.UpdatedAt.Before(i.CreatedAt) {
		return fmt.Errorf("updated_at (%v) cannot be before created_at (%v)", i.UpdatedAt, i.CreatedAt)
	}
	return nil
}

// Label returns the display label used for the final tie-break.
// Items without a title fall back to their ID.
func (i *Item) Label() string {
	if i.Title != "" {
		return i.Title
	}
	return i.ID
}

// IntPtr is a convenience for building items with a priority.
func IntPtr(v int) *int {
	return &v
}

// Status represents the workflow state of an item
type Status string

const (
	StatusNone       Status = ""
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusClosed     Status = "closed"
)

// IsValid returns true if the status is a recognized value.
// An empty status is allowed: items are not required to carry one.
func (s Status) IsValid() bool {
	switch s {
	case StatusNone, StatusOpen, StatusInProgress, StatusBlocked, StatusClosed:
		return true
	}
	return false
}

// Order returns a numeric order for statuses.
// Lower numbers sort first: open → in_progress → blocked → closed
func (s Status) Order() int {
	switch s {
	case StatusOpen:
		return 0
	case StatusInProgress:
		return 1
	case StatusBlocked:
		return 2
	case StatusClosed:
		return 3
	default:
		return 4
	}
}

// FieldKey names a sortable item field.
type FieldKey string

const (
	FieldPriority FieldKey = "priority"
	FieldCreated  FieldKey = "created"
	FieldUpdated  FieldKey = "updated"
	FieldTitle    FieldKey = "title"
	FieldStatus   FieldKey = "status"
	FieldID       FieldKey = "id"
	FieldLabels   FieldKey = "labels" // label count
)

// AttrPrefix marks a field key that reads Item.Attributes.
const AttrPrefix = "attr:"

// AttrField returns the field key for a free-form attribute.
func AttrField(name string) FieldKey {
	return FieldKey(AttrPrefix + name)
}

// IsKnown returns true if the key resolves to a field the sort engine can read.
func (k FieldKey) IsKnown() bool {
	switch k {
	case FieldPriority, FieldCreated, FieldUpdated, FieldTitle, FieldStatus, FieldID, FieldLabels:
		return true
	}
	return strings.HasPrefix(string(k), AttrPrefix) && len(k) > len(AttrPrefix)
}

// Attribute returns the attribute name for attr: keys.
func (k FieldKey) Attribute() (string, bool) {
	if !strings.HasPrefix(string(k), AttrPrefix) || len(k) == len(AttrPrefix) {
		return "", false
	}
	return string(k)[len(AttrPrefix):], true
}

// DefaultDirection returns the natural default sort direction for this field.
func (k FieldKey) DefaultDirection() SortDirection {
	switch k {
	case FieldTitle, FieldStatus, FieldID:
		return Ascending // A-Z, open before closed
	default:
		return Descending // highest/newest first
	}
}

// SortDirection represents ascending or descending sort order.
type SortDirection int

const (
	Ascending  SortDirection = iota // ▲ ascending
	Descending                      // ▼ descending
)

// String returns a human-readable label for the sort direction.
func (d SortDirection) String() string {
	if d == Ascending {
		return "asc"
	}
	return "desc"
}

// Indicator returns the arrow indicator for the sort direction.
func (d SortDirection) Indicator() string {
	if d == Ascending {
		return "▲"
	}
	return "▼"
}

// Toggle returns the opposite direction.
func (d SortDirection) Toggle() SortDirection {
	if d == Ascending {
		return Descending
	}
	return Ascending
}

// SortCriterion is one key of a multi-key ordering.
type SortCriterion struct {
	Field     FieldKey      `json:"field" yaml:"field"`
	Direction SortDirection `json:"direction" yaml:"direction"`
}

// String renders the criterion as "field:dir".
func (c SortCriterion) String() string {
	return string(c.Field) + ":" + c.Direction.String()
}

// Row is the render-ready projection of one tree node.
type Row struct {
	ID          string
	Level       int
	Expanded    bool
	HasChildren bool
	Item        *Item
}

// ScrollDirection is the sign of the last scroll movement.
type ScrollDirection int

const (
	ScrollNone ScrollDirection = iota
	ScrollForward
	ScrollBackward
)

// String returns a human-readable label for the direction.
func (d ScrollDirection) String() string {
	switch d {
	case ScrollForward:
		return "forward"
	case ScrollBackward:
		return "backward"
	default:
		return "none"
	}
}
