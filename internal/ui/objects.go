package ui

import (
	"context"
	"fmt"
	"sort"

	"github.com/a-h/templ"
	"github.com/atvirokodosprendimai/inventory/internal/actions"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
)

// ObjectView is everything the object page shows.
type ObjectView struct {
	Object   domain.BusinessObject
	Parents  []domain.BusinessObjectLight
	Children []domain.BusinessObject
	Special  map[string][]domain.BusinessObjectLight
	Files    []domain.FileObject
	Actions  []actions.Action
}

func objectLink(h *html, o domain.BusinessObjectLight) {
	h.raw(`<a`)
	h.attr("href", "/objects/"+o.ID)
	h.raw(`>`)
	h.text(o.Name)
	h.raw(`</a> <small>`)
	h.text(o.ClassName)
	h.raw(`</small>`)
}

// ChildrenTable is the grid of children, also returned on its own after changes.
func ChildrenTable(children []domain.BusinessObject) templ.Component {
	return component(func(_ context.Context, h *html) {
		h.raw(`<table id="children"><thead><tr><th>Name</th><th>Class</th></tr></thead><tbody>`)
		for _, c := range children {
			h.raw(`<tr><td>`)
			objectLink(h, c.Light())
			h.raw(`</td><td>`)
			h.text(c.ClassName)
			h.raw(`</td></tr>`)
		}
		if len(children) == 0 {
			h.raw(`<tr><td colspan="2">No children</td></tr>`)
		}
		h.raw(`</tbody></table>`)
	})
}

func ObjectPage(v ObjectView) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<nav class="breadcrumbs">`)
		for i := len(v.Parents) - 1; i >= 0; i-- {
			if v.Parents[i].IsDummyRoot() {
				h.raw(`<a href="/">Root</a> / `)
				continue
			}
			objectLink(h, v.Parents[i])
			h.raw(` / `)
		}
		h.raw(`</nav><h1>`)
		h.text(v.Object.Name)
		h.raw(` <small>`)
		h.text(v.Object.ClassName)
		h.raw(`</small></h1>`)

		h.raw(`<table class="attributes"><tbody>`)
		keys := make([]string, 0, len(v.Object.Attributes))
		for k := range v.Object.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.raw(`<tr><th>`)
			h.text(k)
			h.raw(`</th><td>`)
			h.text(v.Object.Attributes[k])
			h.raw(`</td></tr>`)
		}
		h.raw(`</tbody></table>`)

		h.raw(`<section class="actions">`)
		for _, a := range v.Actions {
			h.raw(`<a class="action"`)
			h.attr("href", fmt.Sprintf("/dialogs/%s?class=%s&id=%s", a.ID, v.Object.ClassName, v.Object.ID))
			h.attr("title", a.Description)
			h.raw(`>`)
			h.text(a.Name)
			h.raw(`</a> `)
		}
		h.raw(`<a class="action"`)
		h.attr("href", "/wizards/relationships?objectId="+v.Object.ID)
		h.raw(`>Manage relationships</a> <a class="action"`)
		h.attr("href", "/mirrors/"+v.Object.ID)
		h.raw(`>Port mirroring</a></section>`)

		h.raw(`<h2>Children</h2>`)
		h.component(ctx, ChildrenTable(v.Children))

		h.raw(`<h2>Relationships</h2><ul id="relationships">`)
		names := make([]string, 0, len(v.Special))
		for name := range v.Special {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			h.raw(`<li>`)
			h.text(name)
			h.raw(`: `)
			for _, o := range v.Special[name] {
				objectLink(h, o)
				h.raw(` `)
			}
			h.raw(`</li>`)
		}
		h.raw(`</ul><h2>Files</h2><ul id="files">`)
		for _, f := range v.Files {
			h.raw(`<li><a`)
			h.attr("href", fmt.Sprintf("/api/objects/%s/files/%s", v.Object.ID, f.ID))
			h.raw(`>`)
			h.text(f.Name)
			h.raw(`</a> `)
			h.text(f.Tags)
			h.raw(`</li>`)
		}
		h.raw(`</ul>`)
	})
}

// RootPage lists the top level objects.
func RootPage(children []domain.BusinessObject, classes []domain.ClassMetadata) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<h1>Inventory</h1><p><a`)
		h.attr("href", fmt.Sprintf("/dialogs/%s?parentId=%s", actions.ActionNewBusinessObject, domain.DummyRootID))
		h.raw(`>New object</a> <a href="/wizards/physical-connection">New physical connection</a> <a href="/activity">Activity</a></p>`)
		h.component(ctx, ChildrenTable(children))
		h.raw(`<p class="classes">`)
		h.text(fmt.Sprintf("%d classes defined", len(classes)))
		h.raw(`</p>`)
	})
}

func ActivityTable(entries []domain.ActivityLogEntry) templ.Component {
	return component(func(_ context.Context, h *html) {
		h.raw(`<table id="activity"><thead><tr><th>When</th><th>Type</th><th>Object</th><th>Property</th><th>Old</th><th>New</th><th>Notes</th></tr></thead><tbody>`)
		for _, e := range entries {
			h.raw(`<tr>`)
			for _, cell := range []string{e.CreatedAt.Format("2006-01-02 15:04:05"), e.Type, e.ObjectID, e.AffectedProperty, e.OldValue, e.NewValue, e.Notes} {
				h.raw(`<td>`)
				h.text(cell)
				h.raw(`</td>`)
			}
			h.raw(`</tr>`)
		}
		h.raw(`</tbody></table>`)
	})
}
