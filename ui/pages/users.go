package pages

import (
	"context"
	"fmt"
	"net/mail"
	"slices"
	"strings"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/ui/page"
)

// NameUsers is the registry name of the users page.
const NameUsers = "users"

// MinPasswordLength is the shortest password accepted for new users.
const MinPasswordLength = 8

// Roles are the roles a console user can hold.
var Roles = []string{api.RoleAdmin, api.RoleSupport, api.RoleClient}

// User statuses toggled from the users page.
const (
	UserActive    = "active"
	UserSuspended = "suspended"
)

var userSortFields = []string{"email", "full_name", "role", "status", "created_at", "last_login"}

var userList = page.ListSpec[api.User]{
	Match: func(u api.User, f string) bool {
		return page.ContainsFold(f, u.Email, u.FullName, u.Role, u.Status, u.ClientID)
	},
	Compare: func(a, b api.User, field string) int {
		switch field {
		case "email":
			return page.CompareFold(a.Email, b.Email)
		case "full_name":
			return page.CompareFold(a.FullName, b.FullName)
		case "role":
			return page.CompareFold(a.Role, b.Role)
		case "status":
			return page.CompareFold(a.Status, b.Status)
		case "created_at":
			return a.CreatedAt.Compare(b.CreatedAt)
		case "last_login":
			switch {
			case a.LastLogin == nil && b.LastLogin == nil:
				return 0
			case a.LastLogin == nil:
				return -1
			case b.LastLogin == nil:
				return 1
			}
			return a.LastLogin.Compare(*b.LastLogin)
		}
		return 0
	},
}

// UsersPage lists console users, creates new ones and suspends or
// reactivates accounts.
type UsersPage struct {
	*page.Base
	deps  Deps
	store *page.Store[[]api.User]
	list  listBinding[api.User]
}

// NewUsersPage creates the page in its loading state.
func NewUsersPage(d Deps) *UsersPage {
	p := &UsersPage{
		deps:  d,
		store: page.NewStore[[]api.User](page.NewViewSelection(d.PageSize, page.Sort{Field: "email", Dir: page.Asc})),
	}
	p.Base = page.NewBase(d.options(NameUsers, "Users"), p, p.load)
	p.list = listBinding[api.User]{
		store:    p.store,
		spec:     userList,
		sortable: userSortFields,
		keep: func(u api.User, v page.ViewSelection) bool {
			return v.Status == "" || u.Role == v.Status
		},
		refresh: p.updateContent,
	}
	bindList(p.Base, p.list)
	p.Handle("filterRole", p.filterRole)
	p.Handle("showCreate", p.showCreate)
	p.Handle("hideCreate", p.hideCreate)
	p.Handle("createUser", p.createUser)
	p.Handle("toggleStatus", p.toggleStatus)
	return p
}

func (p *UsersPage) load(ctx context.Context) {
	page.Fetch(ctx, p.Base, "users", false, p.deps.API.ListUsers, func(us []api.User, err error) {
		p.store.Settle(us, err)
		p.Update()
	})
}

func (p *UsersPage) filterRole(_ context.Context, a page.Action) error {
	if a.Value != "" && !slices.Contains(Roles, a.Value) {
		return page.Invalid("role", fmt.Sprintf("Unknown role %q", a.Value))
	}
	var changed bool
	p.store.Write(func(st *page.State[[]api.User]) {
		if st.View.Status != a.Value {
			st.View.Status = a.Value
			st.View.Page = 0
			changed = true
		}
	})
	if changed {
		p.updateContent()
	}
	return nil
}

func (p *UsersPage) showCreate(context.Context, page.Action) error {
	if err := p.deps.writable(); err != nil {
		return err
	}
	p.store.Write(func(st *page.State[[]api.User]) { st.View.Tab = "create" })
	p.Update()
	return nil
}

func (p *UsersPage) hideCreate(context.Context, page.Action) error {
	p.store.Write(func(st *page.State[[]api.User]) { st.View.Tab = "" })
	p.Update()
	return nil
}

// NewUserFromForm validates the user creation form.
func NewUserFromForm(a page.Action) (api.NewUser, error) {
	u := api.NewUser{
		Email:    strings.TrimSpace(a.Field("email")),
		FullName: a.Field("full_name"),
		Role:     a.Field("role"),
		ClientID: a.Field("client_id"),
		Password: a.Form["password"],
	}
	if u.Email == "" {
		return u, page.Invalid("email", "Email is required")
	}
	if addr, err := mail.ParseAddress(u.Email); err != nil || addr.Address != u.Email {
		return u, page.Invalid("email", "Email is not valid")
	}
	if !slices.Contains(Roles, u.Role) {
		return u, page.Invalid("role", "Choose a role")
	}
	if len(u.Password) < MinPasswordLength {
		return u, page.Invalid("password", fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if u.Role == api.RoleClient {
		if u.ClientID == "" {
			return u, page.Invalid("client_id", "Client users need a client id")
		}
	} else {
		u.ClientID = ""
	}
	return u, nil
}

func (p *UsersPage) createUser(ctx context.Context, a page.Action) error {
	if err := p.deps.writable(); err != nil {
		return err
	}
	nu, err := NewUserFromForm(a)
	if err != nil {
		return err
	}
	ran := page.Fetch(ctx, p.Base, "create", false,
		func(ctx context.Context) (*api.User, error) {
			return p.deps.API.CreateUser(ctx, nu)
		},
		func(_ *api.User, err error) {
			if err != nil {
				p.Toast(page.ToastError, page.Message(err))
				return
			}
			p.store.Write(func(st *page.State[[]api.User]) { st.View.Tab = "" })
			p.Toast(page.ToastSuccess, fmt.Sprintf("User %s created", nu.Email))
			p.Reload()
		})
	if !ran {
		return page.Invalid("", "A user is already being created")
	}
	return nil
}

func (p *UsersPage) toggleStatus(ctx context.Context, a page.Action) error {
	if err := p.deps.writable(); err != nil {
		return err
	}
	if a.ID == "" {
		return page.Invalid("id", "Missing user id")
	}
	if a.ID == p.deps.Session.User.ID {
		return page.Invalid("id", "You cannot suspend your own account")
	}
	var (
		u     api.User
		found bool
	)
	p.store.Read(func(st *page.State[[]api.User]) {
		if i := slices.IndexFunc(st.Data, func(u api.User) bool { return u.ID == a.ID }); i >= 0 {
			u, found = st.Data[i], true
		}
	})
	if !found {
		return page.Invalid("id", "User not found")
	}
	next := UserSuspended
	if u.Status != UserActive {
		next = UserActive
	}
	if err := p.deps.API.SetUserStatus(ctx, u.ID, next); err != nil {
		return err
	}
	p.store.Write(func(st *page.State[[]api.User]) {
		if i := slices.IndexFunc(st.Data, func(x api.User) bool { return x.ID == u.ID }); i >= 0 {
			st.Data[i].Status = next
		}
	})
	p.Toast(page.ToastSuccess, fmt.Sprintf("%s is now %s", u.Email, next))
	p.updateContent()
	return nil
}

type usersView struct {
	State    status
	Header   header
	View     page.ViewSelection
	Window   page.Window[api.User]
	Roles    []string
	Creating bool
	Self     string
	ReadOnly bool
}

func (p *UsersPage) view() usersView {
	v := usersView{Roles: Roles, Self: p.deps.Session.User.ID, ReadOnly: p.deps.ReadOnly}
	p.store.Read(func(st *page.State[[]api.User]) {
		v.State = statusOf(NameUsers, st)
		v.View = snapshot(st.View)
		v.Window = p.list.window(st)
		v.Creating = st.View.Tab == "create"
	})
	v.Header = header{Title: "Users", Actions: []headerAction{
		{Label: "New user", Action: "showCreate", Style: "btn-primary"},
	}}
	return v
}

// Render returns the page markup for the current state.
func (p *UsersPage) Render() string {
	return render("users", p.view())
}

func (p *UsersPage) updateContent() {
	p.UpdateRegion("users-content", func() string {
		return render("users-content", p.view())
	})
}
