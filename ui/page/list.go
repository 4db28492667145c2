package page

import (
	"cmp"
	"slices"
	"strings"
)

// DefaultPageSize is the number of rows per list page.
const DefaultPageSize = 25

// SortDir is a sort direction.
type SortDir string

const (
	Asc  SortDir = "asc"
	Desc SortDir = "desc"
)

// Sort is the active sort column.
type Sort struct {
	Field string
	Dir   SortDir
}

// Toggle returns the sort after a click on field's header: the same field
// flips direction, a different field starts at desc.
func (s Sort) Toggle(field string) Sort {
	if s.Field == field {
		if s.Dir == Desc {
			return Sort{Field: field, Dir: Asc}
		}
		return Sort{Field: field, Dir: Desc}
	}
	return Sort{Field: field, Dir: Desc}
}

// ExpandedSet holds the IDs of rows showing inline detail.
type ExpandedSet map[string]struct{}

// Toggle flips membership of id and reports whether it is now expanded.
func (e ExpandedSet) Toggle(id string) bool {
	if _, ok := e[id]; ok {
		delete(e, id)
		return false
	}
	e[id] = struct{}{}
	return true
}

// Has reports whether id is expanded.
func (e ExpandedSet) Has(id string) bool {
	_, ok := e[id]
	return ok
}

// Len returns the number of expanded rows.
func (e ExpandedSet) Len() int { return len(e) }

// IDs returns the expanded IDs in sorted order.
func (e ExpandedSet) IDs() []string {
	ids := make([]string, 0, len(e))
	for id := range e {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ViewSelection is the transient, user-chosen view of a list.
type ViewSelection struct {
	Filter   string
	Status   string
	Tab      string
	Sort     Sort
	Page     int
	PageSize int
	Expanded ExpandedSet
}

// NewViewSelection returns a selection on the first page.
func NewViewSelection(pageSize int, sort Sort) ViewSelection {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return ViewSelection{
		Sort:     sort,
		PageSize: pageSize,
		Expanded: make(ExpandedSet),
	}
}

// SetFilter trims f, stores it and returns to the first page. It reports
// whether the filter changed.
func (v *ViewSelection) SetFilter(f string) bool {
	f = strings.TrimSpace(f)
	if f == v.Filter {
		return false
	}
	v.Filter = f
	v.Page = 0
	return true
}

// SetSort applies a header click on field. Fields outside allowed are
// ignored.
func (v *ViewSelection) SetSort(field string, allowed []string) bool {
	if !slices.Contains(allowed, field) {
		return false
	}
	v.Sort = v.Sort.Toggle(field)
	v.Page = 0
	return true
}

// SetPage moves to page n, clamped to [0, pages).
func (v *ViewSelection) SetPage(n, pages int) {
	if pages < 1 {
		pages = 1
	}
	v.Page = max(0, min(n, pages-1))
}

// ListSpec tells VisibleRows how to filter and order items.
type ListSpec[T any] struct {
	// Match reports whether item matches the lower-cased filter.
	Match func(item T, filter string) bool
	// Compare orders items by field in ascending order.
	Compare func(a, b T, field string) int
}

// Window is one page of a filtered, sorted list.
type Window[T any] struct {
	Rows     []T
	Total    int // items before filtering
	Matched  int // items satisfying the filter
	Page     int
	Pages    int
	PageSize int
	From     int // 1-based index of the first row, 0 when empty
	To       int
}

func (w Window[T]) HasPrev() bool { return w.Page > 0 }
func (w Window[T]) HasNext() bool { return w.Page < w.Pages-1 }

// VisibleRows recomputes the visible window from scratch: filter, stable
// sort, then slice [page*size, (page+1)*size). items is not modified.
func VisibleRows[T any](items []T, v ViewSelection, spec ListSpec[T]) Window[T] {
	size := v.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	filter := strings.ToLower(strings.TrimSpace(v.Filter))
	matched := make([]T, 0, len(items))
	for _, item := range items {
		if filter == "" || spec.Match == nil || spec.Match(item, filter) {
			matched = append(matched, item)
		}
	}

	if v.Sort.Field != "" && spec.Compare != nil {
		slices.SortStableFunc(matched, func(a, b T) int {
			c := spec.Compare(a, b, v.Sort.Field)
			if v.Sort.Dir == Desc {
				return -c
			}
			return c
		})
	}

	pages := max(1, (len(matched)+size-1)/size)
	pg := max(0, v.Page)
	start := min(pg*size, len(matched))
	end := min(start+size, len(matched))

	w := Window[T]{
		Rows:     matched[start:end],
		Total:    len(items),
		Matched:  len(matched),
		Page:     pg,
		Pages:    pages,
		PageSize: size,
	}
	if end > start {
		w.From = start + 1
		w.To = end
	}
	return w
}

// ContainsFold reports whether any of fields contains the lower-cased
// filter, ignoring case.
func ContainsFold(filter string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), filter) {
			return true
		}
	}
	return false
}

// CompareFold compares strings ignoring case.
func CompareFold(a, b string) int {
	return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
}
