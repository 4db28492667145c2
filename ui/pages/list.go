package pages

import (
	"context"
	"embed"
	"strconv"

	"github.com/bitware/aifactory-console/ui/page"
)

//go:embed templates/*.html
var templateFS embed.FS

var tmpl = page.ParseTemplates(templateFS, "templates/*.html")

func render(name string, data any) string {
	return page.Execute(tmpl, name, data)
}

// status is the part of every view describing the fetch outcome.
type status struct {
	Page    string
	Loading bool
	Error   string
	Loaded  bool
}

func statusOf[T any](name string, st *page.State[T]) status {
	return status{Page: name, Loading: st.IsLoading, Error: st.Error, Loaded: st.Loaded}
}

// listBinding wires the shared tabular actions onto a page holding a
// slice: search, sort, page and toggleRow.
type listBinding[T any] struct {
	store    *page.Store[[]T]
	spec     page.ListSpec[T]
	sortable []string

	// keep pre-filters items before the text filter, e.g. by status.
	keep func(item T, v page.ViewSelection) bool

	// refresh re-renders the list region after a view change.
	refresh func()

	// row re-renders one row after an expand toggle. When nil the list
	// region is refreshed instead.
	row func(id string)
}

// window computes the visible rows under the store's read lock.
func (l listBinding[T]) window(st *page.State[[]T]) page.Window[T] {
	return page.VisibleRows(l.prefilter(st.Data, st.View), st.View, l.spec)
}

func (l listBinding[T]) prefilter(items []T, v page.ViewSelection) []T {
	if l.keep == nil {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if l.keep(it, v) {
			out = append(out, it)
		}
	}
	return out
}

// all returns every matching item in view order, ignoring pagination.
func (l listBinding[T]) all(st *page.State[[]T]) []T {
	v := st.View
	v.Page = 0
	v.PageSize = max(1, len(st.Data))
	return page.VisibleRows(l.prefilter(st.Data, v), v, l.spec).Rows
}

func bindList[T any](b *page.Base, l listBinding[T]) {
	b.Handle("search", func(_ context.Context, a page.Action) error {
		var changed bool
		l.store.Write(func(st *page.State[[]T]) {
			changed = st.View.SetFilter(a.Value)
		})
		if changed {
			l.refresh()
		}
		return nil
	})

	b.Handle("sort", func(_ context.Context, a page.Action) error {
		var changed bool
		l.store.Write(func(st *page.State[[]T]) {
			changed = st.View.SetSort(a.Value, l.sortable)
		})
		if changed {
			l.refresh()
		}
		return nil
	})

	b.Handle("page", func(_ context.Context, a page.Action) error {
		var bad bool
		l.store.Write(func(st *page.State[[]T]) {
			pages := l.window(st).Pages
			switch a.Value {
			case "prev":
				st.View.SetPage(st.View.Page-1, pages)
			case "next":
				st.View.SetPage(st.View.Page+1, pages)
			default:
				n, err := strconv.Atoi(a.Value)
				if err != nil {
					bad = true
					return
				}
				st.View.SetPage(n-1, pages)
			}
		})
		if bad {
			return page.Invalid("page", "Invalid page number")
		}
		l.refresh()
		return nil
	})

	b.Handle("toggleRow", func(_ context.Context, a page.Action) error {
		if a.ID == "" {
			return page.Invalid("id", "Missing row id")
		}
		l.store.Write(func(st *page.State[[]T]) {
			st.View.Expanded.Toggle(a.ID)
		})
		if l.row != nil {
			l.row(a.ID)
		} else {
			l.refresh()
		}
		return nil
	})
}
