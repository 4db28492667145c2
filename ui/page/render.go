package page

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tidwall/gjson"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	md       = goldmark.New(goldmark.WithExtensions(extension.GFM))
	sanitize = bluemonday.UGCPolicy()
)

// ParseTemplates parses the files matching patterns with the shared
// template functions. It panics on error, templates are compiled in.
func ParseTemplates(fsys fs.FS, patterns ...string) *template.Template {
	return template.Must(template.New("").Funcs(Funcs()).ParseFS(fsys, patterns...))
}

// Execute renders the named template. A template error renders an inline
// error panel instead of failing the page.
func Execute(t *template.Template, name string, data any) string {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return `<div class="render-error">` + template.HTMLEscapeString(err.Error()) + `</div>`
	}
	return buf.String()
}

// Funcs returns the template functions shared by every page.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"formatTime":     formatTime,
		"formatDate":     formatDate,
		"formatTimeAgo":  formatTimeAgo,
		"formatCurrency": formatCurrency,
		"formatPercent":  formatPercent,
		"formatDuration": formatDuration,
		"truncate":       truncate,
		"statusClass":    statusClass,
		"json":           PrettyJSON,
		"markdown":       Markdown,
		"add":            add,
		"sub":            sub,
		"seq":            seq,
		"dict":           dict,
		"default":        defaultVal,
		"contains":       strings.Contains,
		"title":          titleCase,
		"percentOf":      percentOf,
		"float":          toFloat,
	}
}

// Markdown renders trusted-format, untrusted-content markdown to
// sanitized HTML.
func Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(sanitize.SanitizeBytes(buf.Bytes()))
}

// PrettyJSON indents v for display. Strings and byte slices holding JSON
// are re-indented; anything that does not parse is returned as is.
func PrettyJSON(v any) string {
	var raw string
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		raw = val
	case []byte:
		raw = string(val)
	case json.RawMessage:
		raw = string(val)
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
	if !gjson.Valid(raw) {
		return raw
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return raw
	}
	return buf.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

func formatCurrency(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func percentOf(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}

func toFloat(n int) float64 { return float64(n) }

func truncate(n int, s string) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func titleCase(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// statusClass maps a backend status string to a badge class.
func statusClass(status string) string {
	switch strings.ToLower(status) {
	case "active", "completed", "success", "healthy", "approved", "done":
		return "badge badge-success"
	case "pending", "queued", "draft", "paused", "waiting":
		return "badge badge-warning"
	case "running", "processing", "in_progress", "executing":
		return "badge badge-info"
	case "failed", "error", "suspended", "unhealthy", "cancelled", "rejected":
		return "badge badge-danger"
	default:
		return "badge badge-neutral"
	}
}

func add(a, b int) int { return a + b }
func sub(a, b int) int { return a - b }

func seq(start, end int) []int {
	if start > end {
		return nil
	}
	result := make([]int, end-start+1)
	for i := range result {
		result[i] = start + i
	}
	return result
}

// dict builds a map from key-value pairs.
// Usage: {{template "foo" (dict "key1" val1 "key2" val2)}}
func dict(values ...any) map[string]any {
	if len(values)%2 != 0 {
		return nil
	}
	m := make(map[string]any, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		m[key] = values[i+1]
	}
	return m
}

func defaultVal(def, val any) any {
	if val == nil {
		return def
	}
	switch v := val.(type) {
	case string:
		if v == "" {
			return def
		}
	case int:
		if v == 0 {
			return def
		}
	}
	return val
}
