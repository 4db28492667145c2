// Package pages holds the console's concrete pages. Each page embeds
// *page.Base for its lifecycle and renders from html/template files
// compiled into the binary.
//
// Pages never construct each other: moving elsewhere goes through the
// Navigator the shell provides.
package pages

import (
	"context"
	"errors"
	"time"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/session"
	"github.com/bitware/aifactory-console/ui/page"
)

// ErrNoNavigator is returned by navigation actions on a page built
// without a Navigator.
var ErrNoNavigator = errors.New("pages: no navigator")

// Navigator moves the browser to another console route.
type Navigator interface {
	Navigate(ctx context.Context, path string) error
}

// Deps are the collaborators every page receives on construction.
type Deps struct {
	// API is the backend client, already bound to the session token.
	API *api.Client

	// Session is the logged-in user.
	Session session.Info

	Registry  *page.Registry
	Navigator Navigator

	Clock page.Clock
	// Now stamps exports. Defaults to time.Now.
	Now func() time.Time

	Logger   page.Logger
	Observer page.Observer

	// RefreshInterval is the auto-refresh period. Zero disables it.
	RefreshInterval time.Duration

	// PageSize is the number of rows per list page.
	PageSize int

	// ReadOnly rejects every action that writes to the backend.
	ReadOnly bool
}

func (d Deps) options(name, title string) page.Options {
	return page.Options{
		Name:            name,
		Title:           title,
		Registry:        d.Registry,
		RefreshInterval: d.RefreshInterval,
		Clock:           d.Clock,
		Logger:          d.Logger,
		Observer:        d.Observer,
	}
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) navigate(ctx context.Context, path string) error {
	if d.Navigator == nil {
		return ErrNoNavigator
	}
	return d.Navigator.Navigate(ctx, path)
}

// writable rejects writes in read-only mode.
func (d Deps) writable() error {
	if d.ReadOnly {
		return page.Invalid("", "The console is in read-only mode")
	}
	return nil
}

// logError logs optional fetch failures that must not break a page.
func logError(l page.Logger, msg string, err error, args ...any) {
	if err != nil && l != nil {
		l.Warn(msg, append(args, "error", err)...)
	}
}
