package ui

import (
	"bytes"
	"context"
	"testing"

	"github.com/a-h/templ"
	"github.com/atvirokodosprendimai/inventory/internal/actions"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestChildrenTableEscapesNames(t *testing.T) {
	out := render(t, ChildrenTable([]domain.BusinessObject{
		{ID: "r1", ClassName: "Router", Name: `<script>alert("x")</script>`},
	}))
	assert.Contains(t, out, `id="children"`)
	assert.Contains(t, out, `href="/objects/r1"`)
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")

	empty := render(t, ChildrenTable(nil))
	assert.Contains(t, empty, "No children")
}

func TestActionResultFlashKind(t *testing.T) {
	out := render(t, ActionResult(actions.Response{Status: actions.StatusWarning, Message: "nothing changed"}))
	assert.Contains(t, out, `class="flash flash-warning"`)
	assert.Contains(t, out, "nothing changed")

	out = render(t, ActionResult(actions.Response{Status: actions.StatusSuccess, Message: "done"}))
	assert.Contains(t, out, "flash-info")
}

func TestActionDialogPrefillsSignals(t *testing.T) {
	a := actions.Action{
		ID:   "rename",
		Name: "Rename",
		Parameters: []actions.ParameterSpec{
			{Name: "id", Label: "Object", Kind: actions.KindString, Required: true},
			{Name: "attributes", Label: "Attributes", Kind: actions.KindAttributes},
		},
	}
	out := render(t, ActionDialog(a, map[string]string{"id": `o"1`}))
	assert.Contains(t, out, "@post(&#39;/dialogs/rename&#39;)")
	assert.Contains(t, out, "textarea")
	assert.NotContains(t, out, `o"1`)
}
