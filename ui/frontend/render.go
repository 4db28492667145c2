package frontend

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/ui/page"
	"github.com/bitware/aifactory-console/ui/shell"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// renderer executes the layout and login templates.
type renderer struct {
	tmpl   *template.Template
	config *Config
}

func newRenderer(cfg *Config) *renderer {
	return &renderer{
		tmpl:   page.ParseTemplates(templatesFS, "templates/*.html"),
		config: cfg,
	}
}

// LayoutData is the data of the AIFactoryLayout template.
type LayoutData struct {
	Title       string
	BasePath    string
	CurrentPath string
	User        api.User
	Nav         []shell.NavItem
	ReadOnly    bool

	// Content is the server-rendered snapshot of the mounted page.
	Content template.HTML

	// Live enables the WebSocket runtime for CurrentPath.
	Live bool

	// Error replaces Content when the route could not be mounted.
	Error string
}

// LoginData is the data of the login template.
type LoginData struct {
	BasePath string
	Email    string
	Error    string
}

func (r *renderer) layout(w http.ResponseWriter, status int, data LayoutData) error {
	data.BasePath = r.config.BasePath
	data.ReadOnly = r.config.ReadOnly
	return r.execute(w, status, "layout", data)
}

func (r *renderer) login(w http.ResponseWriter, status int, data LoginData) error {
	data.BasePath = r.config.BasePath
	return r.execute(w, status, "login", data)
}

func (r *renderer) execute(w http.ResponseWriter, status int, name string, data any) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := r.tmpl.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("execute %s: %w", name, err)
	}
	return nil
}
