package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/atvirokodosprendimai/inventory/internal/actions"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/atvirokodosprendimai/inventory/internal/ui"
	"github.com/atvirokodosprendimai/inventory/internal/wizard"
	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"
)

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	children, err := h.Business.GetChildren(r.Context(), "", domain.DummyRootID, 0)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	h.renderPage(w, r, "Inventory", ui.RootPage(children, h.Meta.ListClasses("", false, 1000)))
}

func (h *Handler) handleObjectPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	obj, err := h.object(ctx, r, "id")
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	view := ui.ObjectView{Object: obj, Actions: h.Actions.List(currentIdentity(r))}
	if view.Parents, err = h.Business.GetParents(ctx, obj.ClassName, obj.ID); err == nil {
		if view.Children, err = h.Business.GetChildren(ctx, obj.ClassName, obj.ID, 0); err == nil {
			if view.Special, err = h.Business.GetSpecialAttributes(ctx, obj.ClassName, obj.ID); err == nil {
				view.Files, err = h.Business.GetFilesForObject(ctx, obj.ClassName, obj.ID)
			}
		}
	}
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	h.renderPage(w, r, obj.Name, ui.ObjectPage(view))
}

func (h *Handler) handleActivityPage(w http.ResponseWriter, r *http.Request) {
	entries, err := h.App.ListActivity(r.Context(), domain.ActivityQuery{ObjectID: r.URL.Query().Get("object"), Limit: 200})
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	h.renderPage(w, r, "Activity", ui.ActivityTable(entries))
}

// dialogPrefill maps the object a dialog was opened from onto the action parameters.
func dialogPrefill(a actions.Action, query map[string][]string) map[string]string {
	names := map[string]bool{}
	for _, p := range a.Parameters {
		names[p.Name] = true
	}
	get := func(k string) string {
		if v := query[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	out := map[string]string{}
	for k := range query {
		if names[k] {
			out[k] = get(k)
		}
	}
	switch {
	case names["parentId"]:
		delete(out, "class")
		delete(out, "id")
		if get("id") != "" {
			out["parentClassName"] = get("class")
			out["parentId"] = get("id")
		}
	case names["objectId"]:
		out["objectClass"] = get("class")
		out["objectId"] = get("id")
	}
	return out
}

func (h *Handler) handleDialog(w http.ResponseWriter, r *http.Request) {
	a, ok := h.Actions.Get(chi.URLParam(r, "actionID"))
	if !ok {
		http.Error(w, "unknown action", http.StatusNotFound)
		return
	}
	h.renderPage(w, r, a.Name, ui.ActionDialog(a, dialogPrefill(a, r.URL.Query())))
}

// parseAttributes reads "key=value" lines as typed into an attributes box.
func parseAttributes(raw string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == ';' }) {
		kv := strings.SplitN(strings.TrimSpace(line), "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(kv[1])
	}
	return out
}

func (h *Handler) handleDialogSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, ok := h.Actions.Get(chi.URLParam(r, "actionID"))
	if !ok {
		h.renderFlash(ctx, w, http.StatusNotFound, "unknown action")
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.submitUpload(w, r, a)
		return
	}

	params := actions.Parameters{}
	if err := datastar.ReadSignals(r, &params); err != nil {
		h.renderFlash(ctx, w, http.StatusBadRequest, "invalid signals")
		return
	}
	for _, p := range a.Parameters {
		if raw, ok := params[p.Name].(string); ok && p.Kind == actions.KindAttributes {
			params[p.Name] = parseAttributes(raw)
		}
	}

	resp, err := h.Actions.Execute(ctx, currentIdentity(r), a.ID, params)
	if err != nil {
		h.renderFlash(ctx, w, statusFor(err), err.Error())
		return
	}
	fragments := []templ.Component{ui.ActionResult(resp)}
	if a.ID == actions.ActionMirrorFreePorts || a.ID == actions.ActionMirrorFreePortsMultiple {
		class, _ := params["class"].(string)
		id, _ := params["id"].(string)
		fragments = append(fragments, h.mirrorGrid(ctx, class, id))
	}
	renderHTMLFragments(ctx, w, http.StatusOK, fragments...)
}

func (h *Handler) submitUpload(w http.ResponseWriter, r *http.Request, a actions.Action) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "invalid upload", http.StatusBadRequest)
		return
	}
	obj, err := h.Business.GetObject(r.Context(), r.FormValue("objectClass"), r.FormValue("objectId"))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	params, err := uploadParams(r, obj)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if _, err := h.Actions.Execute(r.Context(), currentIdentity(r), a.ID, params); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	http.Redirect(w, r, "/objects/"+obj.ID, http.StatusSeeOther)
}

func (h *Handler) handleWizardPage(w http.ResponseWriter, r *http.Request) {
	seed := wizard.State{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			seed[k] = v[0]
		}
	}
	view, err := h.Wizards.Start(r.Context(), currentIdentity(r), chi.URLParam(r, "wizard"), seed)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	h.renderPage(w, r, view.Title, ui.WizardStep(view))
}

// wizardSignals splits posted signals into the session id and the step input.
func wizardSignals(r *http.Request) (string, wizard.State, error) {
	raw := map[string]any{}
	if err := datastar.ReadSignals(r, &raw); err != nil {
		return "", nil, err
	}
	input := wizard.State{}
	for k, v := range raw {
		if k == "sessionId" || v == nil {
			continue
		}
		input[k] = fmt.Sprint(v)
	}
	id, _ := raw["sessionId"].(string)
	return id, input, nil
}

func (h *Handler) renderWizard(ctx context.Context, w http.ResponseWriter, view wizard.View, err error) {
	if err != nil && view.SessionID == "" {
		h.renderFlash(ctx, w, statusFor(err), err.Error())
		return
	}
	renderHTMLFragments(ctx, w, http.StatusOK, ui.WizardStep(view))
}

func (h *Handler) handleWizardNext(w http.ResponseWriter, r *http.Request) {
	sessionID, input, err := wizardSignals(r)
	if err != nil {
		h.renderFlash(r.Context(), w, http.StatusBadRequest, "invalid signals")
		return
	}
	view, err := h.Wizards.Next(r.Context(), currentIdentity(r), sessionID, input)
	h.renderWizard(r.Context(), w, view, err)
}

func (h *Handler) handleWizardBack(w http.ResponseWriter, r *http.Request) {
	sessionID, _, err := wizardSignals(r)
	if err != nil {
		h.renderFlash(r.Context(), w, http.StatusBadRequest, "invalid signals")
		return
	}
	view, err := h.Wizards.Back(r.Context(), currentIdentity(r), sessionID)
	h.renderWizard(r.Context(), w, view, err)
}

func (h *Handler) handleWizardFinish(w http.ResponseWriter, r *http.Request) {
	sessionID, input, err := wizardSignals(r)
	if err != nil {
		h.renderFlash(r.Context(), w, http.StatusBadRequest, "invalid signals")
		return
	}
	res, err := h.Wizards.Finish(r.Context(), currentIdentity(r), sessionID, input)
	if err != nil {
		h.renderFlash(r.Context(), w, statusFor(err), err.Error())
		return
	}
	renderHTMLFragments(r.Context(), w, http.StatusOK, ui.Flash(res.Message, "info"), ui.WizardDone(res))
}

func (h *Handler) mirrorGrid(ctx context.Context, class, id string) templ.Component {
	ports, err := h.Mirrors.ListMirrors(ctx, class, id)
	if err != nil {
		return ui.Flash(err.Error(), "error")
	}
	single, err := h.Mirrors.SuggestFreePortMirrors(ctx, class, id)
	if err != nil {
		return ui.Flash(err.Error(), "error")
	}
	multiple, err := h.Mirrors.SuggestFreePortMultipleMirrors(ctx, class, id)
	if err != nil {
		return ui.Flash(err.Error(), "error")
	}
	return ui.MirrorGrid(class, id, ports, single, multiple)
}

func (h *Handler) handleMirrorsPage(w http.ResponseWriter, r *http.Request) {
	obj, err := h.object(r.Context(), r, "deviceID")
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	h.renderPage(w, r, "Port mirroring "+obj.Name, h.mirrorGrid(r.Context(), obj.ClassName, obj.ID))
}
