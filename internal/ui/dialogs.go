package ui

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/a-h/templ"
	"github.com/atvirokodosprendimai/inventory/internal/actions"
	"github.com/atvirokodosprendimai/inventory/internal/application"
	"github.com/atvirokodosprendimai/inventory/internal/wizard"
)

func signals(h *html, values map[string]any) {
	data, err := json.Marshal(values)
	if err != nil {
		h.err = err
		return
	}
	h.attr("data-signals", string(data))
}

// ActionDialog renders a form for the action parameters. prefill seeds the signals, usually
// with the object the dialog was opened from.
func ActionDialog(a actions.Action, prefill map[string]string) templ.Component {
	return component(func(_ context.Context, h *html) {
		initial := map[string]any{}
		for _, p := range a.Parameters {
			switch p.Kind {
			case actions.KindBool:
				initial[p.Name] = prefill[p.Name] == "true"
			case actions.KindString, actions.KindAttributes:
				initial[p.Name] = prefill[p.Name]
			}
		}

		multipart := false
		for _, p := range a.Parameters {
			if p.Kind == actions.KindFile {
				multipart = true
			}
		}

		h.raw(`<section id="dialog" class="dialog"><h2>`)
		h.text(a.Name)
		h.raw(`</h2><p>`)
		h.text(a.Description)
		h.raw(`</p>`)
		if multipart {
			h.raw(`<form method="post" enctype="multipart/form-data"`)
			h.attr("action", "/dialogs/"+a.ID)
			h.raw(`>`)
		} else {
			h.raw(`<form`)
			signals(h, initial)
			h.raw(` onsubmit="return false">`)
		}
		for _, p := range a.Parameters {
			if p.Kind == actions.KindList {
				continue
			}
			h.raw(`<label>`)
			h.text(p.Label)
			if p.Required {
				h.raw(` *`)
			}
			h.raw(` `)
			switch {
			case p.Kind == actions.KindFile:
				h.raw(`<input type="file"`)
				h.attr("name", p.Name)
				h.raw(`>`)
			case multipart:
				h.raw(`<input type="text"`)
				h.attr("name", p.Name)
				h.attr("value", prefill[p.Name])
				h.raw(`>`)
			case p.Kind == actions.KindBool:
				h.raw(`<input type="checkbox"`)
				h.attr("data-bind", p.Name)
				h.raw(`>`)
			case p.Kind == actions.KindAttributes:
				h.raw(`<textarea placeholder="key=value, one per line"`)
				h.attr("data-bind", p.Name)
				h.raw(`></textarea>`)
			default:
				h.raw(`<input type="text"`)
				h.attr("data-bind", p.Name)
				h.raw(`>`)
			}
			h.raw(`</label>`)
		}
		if multipart {
			h.raw(`<button type="submit">Run</button>`)
		} else {
			h.raw(`<button type="button"`)
			h.attr("data-on-click", fmt.Sprintf("@post('/dialogs/%s')", a.ID))
			h.raw(`>Run</button>`)
		}
		h.raw(`</form></section>`)
	})
}

// ActionResult reports a finished run; warnings and errors use their own flash style.
func ActionResult(resp actions.Response) templ.Component {
	kind := "info"
	switch resp.Status {
	case actions.StatusWarning:
		kind = "warning"
	case actions.StatusError:
		kind = "error"
	}
	return Flash(resp.Message, kind)
}

// WizardStep renders the current step of a wizard session.
func WizardStep(v wizard.View) templ.Component {
	return component(func(_ context.Context, h *html) {
		initial := map[string]any{"sessionId": v.SessionID}
		for _, f := range v.Fields {
			initial[f.Name] = f.Value
		}
		h.raw(`<section id="wizard"`)
		signals(h, initial)
		h.raw(`><h2>`)
		h.text(v.Title)
		h.raw(`</h2><h3>`)
		h.text(fmt.Sprintf("%d/%d %s", v.Step+1, v.Steps, v.StepTitle))
		h.raw(`</h3>`)
		if v.Message != "" {
			h.raw(`<p class="flash-error">`)
			h.text(v.Message)
			h.raw(`</p>`)
		}
		for _, f := range v.Fields {
			h.raw(`<label>`)
			h.text(f.Label)
			h.raw(` `)
			if f.Choices != nil {
				h.raw(`<select`)
				h.attr("data-bind", f.Name)
				h.raw(`><option value=""></option>`)
				for _, c := range f.Choices {
					h.raw(`<option`)
					h.attr("value", c.Value)
					if c.Value == f.Value {
						h.raw(` selected`)
					}
					h.raw(`>`)
					h.text(c.Label)
					h.raw(`</option>`)
				}
				h.raw(`</select>`)
			} else {
				h.raw(`<input type="text"`)
				h.attr("data-bind", f.Name)
				h.raw(`>`)
			}
			h.raw(`</label>`)
		}
		base := "/wizards/" + v.Wizard
		if v.Step > 0 {
			h.raw(`<button type="button"`)
			h.attr("data-on-click", fmt.Sprintf("@post('%s/back')", base))
			h.raw(`>Back</button>`)
		}
		next, label := "next", "Next"
		if v.Last {
			next, label = "finish", "Finish"
		}
		h.raw(`<button type="button"`)
		h.attr("data-on-click", fmt.Sprintf("@post('%s/%s')", base, next))
		h.raw(`>`)
		h.text(label)
		h.raw(`</button></section>`)
	})
}

// MirrorGrid shows the mirrors of every port in a device plus the pending suggestions.
func MirrorGrid(deviceClass, deviceID string, ports []application.PortMirrors, single application.MirrorSuggestion, multiple application.MultipleMirrorSuggestion) templ.Component {
	return component(func(_ context.Context, h *html) {
		h.raw(`<section id="mirrors"`)
		signals(h, map[string]any{"class": deviceClass, "id": deviceID})
		h.raw(`><table><thead><tr><th>Port</th><th>Mirror</th><th>Multiple mirrors</th></tr></thead><tbody>`)
		for _, p := range ports {
			h.raw(`<tr><td>`)
			h.text(p.Port.Name)
			h.raw(`</td><td>`)
			for _, m := range p.Mirrors {
				h.text(m.Name)
			}
			h.raw(`</td><td>`)
			for i, m := range p.MultipleMirrors {
				if i > 0 {
					h.raw(`, `)
				}
				h.text(m.Name)
			}
			h.raw(`</td></tr>`)
		}
		h.raw(`</tbody></table><h3>Free port mirrors</h3>`)
		if single.Info != "" {
			h.raw(`<p>`)
			h.text(single.Info)
			h.raw(`</p>`)
		} else {
			h.raw(`<ul>`)
			for _, pair := range single.Pairs {
				h.raw(`<li>`)
				h.text(pair.Source.Name + " ↔ " + pair.Target.Name)
				h.raw(`</li>`)
			}
			h.raw(`</ul><button type="button"`)
			h.attr("data-on-click", fmt.Sprintf("@post('/dialogs/%s')", actions.ActionMirrorFreePorts))
			h.raw(`>Mirror all</button>`)
		}
		h.raw(`<h3>Free port multiple mirrors</h3>`)
		if multiple.Info != "" {
			h.raw(`<p>`)
			h.text(multiple.Info)
			h.raw(`</p>`)
		} else {
			h.raw(`<ul>`)
			for _, g := range multiple.Groups {
				h.raw(`<li>`)
				h.text(g.Source.Name)
				h.raw(` → `)
				for i, t := range g.Targets {
					if i > 0 {
						h.raw(`, `)
					}
					h.text(t.Name)
				}
				h.raw(`</li>`)
			}
			h.raw(`</ul><button type="button"`)
			h.attr("data-on-click", fmt.Sprintf("@post('/dialogs/%s')", actions.ActionMirrorFreePortsMultiple))
			h.raw(`>Mirror all</button>`)
		}
		h.raw(`</section>`)
	})
}

// WizardDone replaces the wizard once it has finished.
func WizardDone(res wizard.Result) templ.Component {
	return component(func(_ context.Context, h *html) {
		h.raw(`<section id="wizard"><p>`)
		h.text(res.Message)
		h.raw(`</p><a href="/">Back to the inventory</a></section>`)
	})
}
