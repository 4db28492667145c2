package pages

import (
	"cmp"
	"strings"

	"github.com/bitware/aifactory-console/ui/page"
)

// header is the title bar of a page.
type header struct {
	Title   string
	Actions []headerAction
}

type headerAction struct {
	Label  string
	Action string
	Value  string
	Style  string
}

func cmpFloat(a, b float64) int { return cmp.Compare(a, b) }

func equalFold(a, b string) bool { return strings.EqualFold(a, b) }

// snapshot copies v so templates can read it after the store lock is
// released.
func snapshot(v page.ViewSelection) page.ViewSelection {
	exp := make(page.ExpandedSet, len(v.Expanded))
	for id := range v.Expanded {
		exp[id] = struct{}{}
	}
	v.Expanded = exp
	return v
}
