package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"slices"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/ui/page"
	"github.com/bitware/aifactory-console/ui/pages"
	"github.com/bitware/aifactory-console/ui/shell"
)

// handlePage renders the layout with a server-side snapshot of the route.
// The browser runtime then opens /ws and takes over the same route.
func (rt *router) handlePage(w http.ResponseWriter, r *http.Request) {
	info, _ := sessionFrom(r.Context())
	path := pagePath(r.URL.Path)
	if path == "/" {
		http.Redirect(w, r, rt.config.BasePath+shell.HomePath(info.User.Role), http.StatusFound)
		return
	}

	// The snapshot shell lives only for this request.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	rec := page.NewRecorder()
	sh := shell.New(ctx, shell.Config{
		Deps:      rt.deps(info, false),
		Container: rec,
		Routes:    rt.config.Routes,
		Logger:    rt.logger,
	})
	defer sh.Close()

	data := LayoutData{
		CurrentPath: path,
		User:        info.User,
		Nav:         sh.Nav(path),
	}

	status := http.StatusOK
	if err := sh.Navigate(ctx, path); err != nil {
		switch {
		case errors.Is(err, shell.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, shell.ErrForbidden):
			status = http.StatusForbidden
		default:
			status = http.StatusInternalServerError
			rt.logger.Error("snapshot mount failed", "path", path, "error", err)
		}
		data.Title = http.StatusText(status)
		data.Error = navigationMessage(err)
	} else {
		cur, _ := sh.Current()
		data.Title = cur.Title()
		data.Live = true
		// Page markup is produced by html/template and already escaped.
		data.Content = template.HTML(rec.HTML())
	}

	if err := rt.renderer.layout(w, status, data); err != nil {
		rt.logger.Error("render layout failed", "path", path, "error", err)
	}
}

// handleExportClients serves the clients CSV outside a live connection.
// The optional q and status parameters narrow the export the same way
// the clients page filters do.
func (rt *router) handleExportClients(w http.ResponseWriter, r *http.Request) {
	info, _ := sessionFrom(r.Context())
	if !slices.Contains([]string{api.RoleAdmin, api.RoleSupport}, info.User.Role) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	clients, err := rt.config.API.WithSession(info.Token).GetClients(r.Context())
	if err != nil {
		rt.logger.Warn("export clients failed", "error", err)
		http.Error(w, page.Message(err), http.StatusBadGateway)
		return
	}

	q := r.URL.Query()
	clients = pages.FilterClients(clients, q.Get("q"), q.Get("status"))

	name := fmt.Sprintf("clients-%s.csv", rt.now().Format("2006-01-02"))
	w.Header().Set("Content-Type", page.CSVContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(pages.ClientsCSV(clients))
}

// handleHealth reports liveness.
func (rt *router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
