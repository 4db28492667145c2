package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_StaleUnregister(t *testing.T) {
	reg := NewRegistry()
	old := newItemsPage(Options{}, staticItems())
	cur := newItemsPage(Options{}, staticItems())

	reg.Register("itemsPage", old)
	reg.Register("itemsPage", cur)

	assert.False(t, reg.Unregister("itemsPage", old), "stale instance must not clear newer entry")
	got, ok := reg.Lookup("itemsPage")
	assert.True(t, ok)
	assert.Same(t, cur, got)

	assert.True(t, reg.Unregister("itemsPage", cur))
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_Names(t *testing.T) {
	reg := NewRegistry()
	reg.Register("usersPage", newItemsPage(Options{}, staticItems()))
	reg.Register("clientsPage", newItemsPage(Options{}, staticItems()))
	assert.Equal(t, []string{"clientsPage", "usersPage"}, reg.Names())
}
