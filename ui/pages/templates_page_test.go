package pages

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/ui/page"
)

const templatesBody = `{"templates":[
	{"name":"course-builder","display_name":"Course Builder","category":"education","description":"Builds **courses**.<script>alert(1)</script>","estimated_cost_usd":4.5,"is_active":true},
	{"name":"quiz-maker","display_name":"Quiz Maker","category":"education","estimated_cost_usd":1,"is_active":false}]}`

func TestTemplateManager_MarkdownIsSanitized(t *testing.T) {
	f := newFixture(t)
	f.backend.On(http.MethodGet, "/templates", http.StatusOK, templatesBody)

	p := NewTemplateManager(f.deps)
	f.mount(t, p)
	dispatch(t, p, page.Action{Name: "toggleRow", ID: "course-builder"})

	region, ok := f.rec.Region("templates-content")
	require.True(t, ok)
	assert.Contains(t, region, "<strong>courses</strong>")
	assert.NotContains(t, region, "<script>")
}

func TestTemplateFromForm(t *testing.T) {
	form := func(kv ...string) page.Action {
		a := page.Action{Form: map[string]string{}}
		for i := 0; i+1 < len(kv); i += 2 {
			a.Form[kv[i]] = kv[i+1]
		}
		return a
	}

	_, err := templateFromForm(form("name", "Bad Name", "display_name", "x"), true, api.Template{})
	assert.EqualError(t, err, "name: Name must be lower case letters, digits, dashes or underscores")

	_, err = templateFromForm(form("name", "ok"), true, api.Template{})
	assert.EqualError(t, err, "display_name: Display name is required")

	_, err = templateFromForm(form("name", "ok", "display_name", "Ok", "estimated_cost_usd", "-1"), true, api.Template{})
	assert.EqualError(t, err, "estimated_cost_usd: Estimated cost must be a non-negative number")

	got, err := templateFromForm(form("name", "ignored", "display_name", "Renamed", "stages", "outline, ,review", "is_active", "1"), false, api.Template{Name: "course-builder"})
	require.NoError(t, err)
	assert.Equal(t, "course-builder", got.Name)
	assert.Equal(t, []string{"outline", "review"}, got.Stages)
	assert.True(t, got.IsActive)
}

func TestTemplateManager_CreateAndEdit(t *testing.T) {
	f := newFixture(t)
	f.backend.On(http.MethodGet, "/templates", http.StatusOK, templatesBody)
	f.backend.On(http.MethodPost, "/templates", http.StatusOK, `{"template":{"name":"essay-grader"}}`)
	f.backend.On(http.MethodPut, "/templates/quiz-maker", http.StatusOK, `{"template":{"name":"quiz-maker"}}`)

	p := NewTemplateManager(f.deps)
	f.mount(t, p)

	dispatch(t, p, page.Action{Name: "saveTemplate"})
	assert.Equal(t, "No template is being edited", lastToast(t, f.rec).Message)

	dispatch(t, p, page.Action{Name: "new"})
	assert.Contains(t, f.rec.HTML(), `data-action="saveTemplate"`)

	dispatch(t, p, page.Action{Name: "saveTemplate", Form: map[string]string{"name": "quiz-maker", "display_name": "Dup"}})
	assert.Equal(t, `Template "quiz-maker" already exists`, lastToast(t, f.rec).Message)

	dispatch(t, p, page.Action{Name: "saveTemplate", Form: map[string]string{"name": "essay-grader", "display_name": "Essay Grader", "is_active": "1"}})
	assert.Equal(t, `Template "essay-grader" saved`, lastToast(t, f.rec).Message)
	assert.NotContains(t, f.rec.HTML(), `data-action="saveTemplate"`)

	var created api.Template
	require.NoError(t, json.Unmarshal(f.backend.LastBody(http.MethodPost, "/templates"), &created))
	assert.Equal(t, "Essay Grader", created.DisplayName)

	dispatch(t, p, page.Action{Name: "edit", ID: "quiz-maker"})
	assert.Contains(t, f.rec.HTML(), "Edit quiz-maker")
	dispatch(t, p, page.Action{Name: "saveTemplate", Form: map[string]string{"display_name": "Quiz Maker 2"}})
	assert.Equal(t, 1, f.backend.Calls(http.MethodPut, "/templates/quiz-maker"))

	dispatch(t, p, page.Action{Name: "edit", ID: "missing"})
	assert.Equal(t, "Template not found", lastToast(t, f.rec).Message)
}

func TestTemplateManager_ToggleActive(t *testing.T) {
	f := newFixture(t)
	f.backend.On(http.MethodGet, "/templates", http.StatusOK, templatesBody)
	f.backend.On(http.MethodPut, "/templates/quiz-maker", http.StatusOK, `{}`)

	p := NewTemplateManager(f.deps)
	f.mount(t, p)
	dispatch(t, p, page.Action{Name: "toggleActive", ID: "quiz-maker"})

	assert.Equal(t, `Template "quiz-maker" activated`, lastToast(t, f.rec).Message)
	var sent api.Template
	require.NoError(t, json.Unmarshal(f.backend.LastBody(http.MethodPut, "/templates/quiz-maker"), &sent))
	assert.True(t, sent.IsActive)
}

func TestTemplateManager_DeleteConfirm(t *testing.T) {
	f := newFixture(t)
	f.backend.On(http.MethodGet, "/templates", http.StatusOK, templatesBody)
	f.backend.On(http.MethodDelete, "/templates/course-builder", http.StatusOK, `{"success":true}`)

	p := NewTemplateManager(f.deps)
	f.mount(t, p)

	dispatch(t, p, page.Action{Name: "deleteTemplate", ID: "course-builder"})
	assert.Zero(t, f.backend.Calls(http.MethodDelete, "/templates/course-builder"))
	modals := f.rec.Modals()
	require.Len(t, modals, 1)
	assert.Contains(t, string(modals[0].Body), "Course Builder")
	confirm := modals[0].Actions[1]
	assert.Equal(t, "confirmDelete", confirm.Action)
	assert.Equal(t, NameTemplates, confirm.Page)

	dispatch(t, p, page.Action{Name: confirm.Action, ID: confirm.ID})
	assert.Equal(t, 1, f.backend.Calls(http.MethodDelete, "/templates/course-builder"))
	assert.Equal(t, `Template "course-builder" deleted`, lastToast(t, f.rec).Message)
}

func TestTemplateManager_Sync(t *testing.T) {
	f := newFixture(t)
	f.backend.On(http.MethodGet, "/templates", http.StatusOK, templatesBody)
	f.backend.On(http.MethodPost, "/templates/sync", http.StatusOK, `{"success":true,"synced":7}`)

	p := NewTemplateManager(f.deps)
	f.mount(t, p)
	dispatch(t, p, page.Action{Name: "syncTemplates"})

	assert.Equal(t, "Synced 7 templates", lastToast(t, f.rec).Message)
	assert.Equal(t, 2, f.backend.Calls(http.MethodGet, "/templates"))
}
