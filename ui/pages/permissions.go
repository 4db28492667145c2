package pages

import (
	"context"
	"slices"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/ui/page"
)

// NamePermissions is the registry name of the permissions page.
const NamePermissions = "permissions"

// PermissionsDisplay shows the signed-in user and what their role may do.
type PermissionsDisplay struct {
	*page.Base
	deps  Deps
	store *page.Store[*api.PermissionSet]
}

// NewPermissionsDisplay creates the page in its loading state.
func NewPermissionsDisplay(d Deps) *PermissionsDisplay {
	p := &PermissionsDisplay{
		deps:  d,
		store: page.NewStore[*api.PermissionSet](page.NewViewSelection(d.PageSize, page.Sort{})),
	}
	p.Base = page.NewBase(d.options(NamePermissions, "My Permissions"), p, p.load)
	return p
}

func (p *PermissionsDisplay) load(ctx context.Context) {
	page.Fetch(ctx, p.Base, "permissions", false, p.deps.API.MyPermissions, func(s *api.PermissionSet, err error) {
		p.store.Settle(s, err)
		p.Update()
	})
}

// Allowed reports whether the loaded permissions grant action on
// resource. A "*" action grants everything on the resource.
func (p *PermissionsDisplay) Allowed(resource, action string) bool {
	set := p.store.Snapshot().Data
	if set == nil {
		return false
	}
	for _, perm := range set.Permissions {
		if perm.Resource == resource || perm.Resource == "*" {
			if slices.Contains(perm.Actions, action) || slices.Contains(perm.Actions, "*") {
				return true
			}
		}
	}
	return false
}

// Render returns the page markup for the current state.
func (p *PermissionsDisplay) Render() string {
	var v struct {
		State      status
		Header     header
		User       api.User
		KAMContext api.KAMContext
		Set        *api.PermissionSet
	}
	p.store.Read(func(st *page.State[*api.PermissionSet]) {
		v.State = statusOf(NamePermissions, st)
		v.Set = st.Data
	})
	v.Header = header{Title: "My Permissions"}
	v.User = p.deps.Session.User
	v.KAMContext = p.deps.Session.KAMContext
	return render("permissions", v)
}
