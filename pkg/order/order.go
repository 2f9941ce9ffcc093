// Package order implements the multi-key item ordering used for every
// sibling group of the row tree.
//
// Criteria are applied in order; later criteria break ties of earlier
// ones. Items missing a field always sink below items that have it,
// whichever direction is requested. When every criterion ties, a final
// tie-break on the display label (case-folded, then exact) and then the
// item ID makes the result a pure function of the item contents.
package order

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/vanderheijden86/wintree/pkg/model"
)

// DefaultCriteria is applied when a caller passes no criteria:
// highest priority first, then most recently updated.
var DefaultCriteria = []model.SortCriterion{
	{Field: model.FieldPriority, Direction: model.Descending},
	{Field: model.FieldUpdated, Direction: model.Descending},
}

// Sort returns a new slice holding items in criteria order.
// The input slice is not modified.
func Sort(items []*model.Item, criteria []model.SortCriterion) []*model.Item {
	out := make([]*model.Item, len(items))
	copy(out, items)
	SortInPlace(out, criteria)
	return out
}

// SortInPlace orders items in place.
func SortInPlace(items []*model.Item, criteria []model.SortCriterion) {
	if len(items) <= 1 {
		return
	}
	criteria = effective(criteria)
	slices.SortStableFunc(items, func(a, b *model.Item) int {
		return compare(a, b, criteria)
	})
}

// Compare returns -1, 0 or +1 as a sorts before, equal to, or after b.
// Zero is only returned for items with identical label and ID.
func Compare(a, b *model.Item, criteria []model.SortCriterion) int {
	return compare(a, b, effective(criteria))
}

func effective(criteria []model.SortCriterion) []model.SortCriterion {
	if len(criteria) == 0 {
		return DefaultCriteria
	}
	return criteria
}

func compare(a, b *model.Item, criteria []model.SortCriterion) int {
	// nil items sink to the end
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		default:
			return -1
		}
	}

	for _, c := range criteria {
		if r := compareField(a, b, c); r != 0 {
			return r
		}
	}
	return tieBreak(a, b)
}

// compareField compares one criterion. Missing values sink regardless of
// direction; unrecognized keys compare equal.
func compareField(a, b *model.Item, c model.SortCriterion) int {
	var r int
	var aok, bok bool

	switch c.Field {
	case model.FieldPriority:
		aok, bok = a.Priority != nil, b.Priority != nil
		if aok && bok {
			r = cmp.Compare(*a.Priority, *b.Priority)
		}
	case model.FieldCreated:
		aok, bok = !a.CreatedAt.IsZero(), !b.CreatedAt.IsZero()
		if aok && bok {
			r = a.CreatedAt.Compare(b.CreatedAt)
		}
	case model.FieldUpdated:
		aok, bok = !a.UpdatedAt.IsZero(), !b.UpdatedAt.IsZero()
		if aok && bok {
			r = a.UpdatedAt.Compare(b.UpdatedAt)
		}
	case model.FieldTitle:
		aok, bok = a.Title != "", b.Title != ""
		if aok && bok {
			r = compareText(a.Title, b.Title)
		}
	case model.FieldStatus:
		aok, bok = a.Status != model.StatusNone, b.Status != model.StatusNone
		if aok && bok {
			r = cmp.Compare(a.Status.Order(), b.Status.Order())
		}
	case model.FieldID:
		aok, bok = true, true
		r = strings.Compare(a.ID, b.ID)
	case model.FieldLabels:
		aok, bok = true, true
		r = cmp.Compare(len(a.Labels), len(b.Labels))
	default:
		name, ok := c.Field.Attribute()
		if !ok {
			return 0
		}
		var av, bv string
		av, aok = a.Attributes[name]
		bv, bok = b.Attributes[name]
		if aok && bok {
			r = compareAttr(av, bv)
		}
	}

	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return 1
	case !bok:
		return -1
	}
	if c.Direction == model.Descending {
		return -r
	}
	return r
}

// tieBreak is the final deterministic comparison: label case-folded,
// then exact label, then ID.
func tieBreak(a, b *model.Item) int {
	if r := compareText(a.Label(), b.Label()); r != 0 {
		return r
	}
	return strings.Compare(a.ID, b.ID)
}

func compareText(a, b string) int {
	if r := strings.Compare(strings.ToLower(a), strings.ToLower(b)); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

// compareAttr orders numeric values before text. Numbers compare by
// value, text compares like titles.
func compareAttr(a, b string) int {
	af, aerr := strconv.ParseFloat(a, 64)
	bf, berr := strconv.ParseFloat(b, 64)
	switch {
	case aerr == nil && berr == nil:
		if r := cmp.Compare(af, bf); r != 0 {
			return r
		}
		return strings.Compare(a, b)
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	}
	return compareText(a, b)
}

// ParseCriteria parses a comma-separated criteria list such as
// "priority:desc,title". A missing direction uses the field's default.
func ParseCriteria(spec string) ([]model.SortCriterion, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var out []model.SortCriterion
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, dir, hasDir := strings.Cut(part, ":")
		// attr:<name>[:dir] keeps its own colon
		if field+":" == model.AttrPrefix {
			name, d, ok := strings.Cut(dir, ":")
			field, dir, hasDir = model.AttrPrefix+name, d, ok
		}
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("empty sort field in %q", spec)
		}
		key := model.FieldKey(strings.ToLower(field))
		if strings.HasPrefix(field, model.AttrPrefix) {
			key = model.FieldKey(field)
		}
		c := model.SortCriterion{Field: key, Direction: key.DefaultDirection()}
		if hasDir {
			switch strings.ToLower(strings.TrimSpace(dir)) {
			case "asc", "ascending", "up":
				c.Direction = model.Ascending
			case "desc", "descending", "down":
				c.Direction = model.Descending
			default:
				return nil, fmt.Errorf("invalid sort direction %q for field %s", dir, field)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// FormatCriteria is the inverse of ParseCriteria.
func FormatCriteria(criteria []model.SortCriterion) string {
	parts := make([]string, len(criteria))
	for i, c := range criteria {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}
