package page

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
)

func TestMarkdown_Sanitizes(t *testing.T) {
	out := string(Markdown("**bold** <script>alert(1)</script>"))
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.NotContains(t, out, "<script>")
}

func TestPrettyJSON(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", PrettyJSON(`{"a":1}`))
	assert.Equal(t, "{not json", PrettyJSON("{not json"), "malformed output falls back to raw")
	assert.Equal(t, "{\n  \"b\": true\n}", PrettyJSON(map[string]bool{"b": true}))
	assert.Equal(t, "", PrettyJSON(nil))
}

func TestExecute_EscapesAndReportsErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"t.html": {Data: []byte(`{{define "greet"}}<p>{{.}}</p>{{end}}{{define "broken"}}{{.Missing.Field}}{{end}}`)},
	}
	tmpl := ParseTemplates(fsys, "t.html")

	assert.Equal(t, "<p>&lt;img src=x&gt;</p>", Execute(tmpl, "greet", "<img src=x>"))
	assert.Contains(t, Execute(tmpl, "broken", 42), `class="render-error"`)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "badge badge-success", statusClass("Active"))
	assert.Equal(t, "badge badge-danger", statusClass("failed"))
	assert.Equal(t, "badge badge-neutral", statusClass("mystery"))
}
