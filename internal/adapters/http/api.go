package http

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/atvirokodosprendimai/inventory/internal/actions"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/atvirokodosprendimai/inventory/internal/wizard"
	"github.com/go-chi/chi/v5"
)

const maxUploadMemory = 32 << 20

// execute runs an action for the current user and writes its response.
func (h *Handler) execute(w http.ResponseWriter, r *http.Request, actionID string, params actions.Parameters) {
	resp, err := h.Actions.Execute(r.Context(), currentIdentity(r), actionID, params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// object loads the object in the {id} URL parameter whatever its class.
func (h *Handler) object(ctx context.Context, r *http.Request, param string) (domain.BusinessObject, error) {
	return h.Business.GetObject(ctx, "", chi.URLParam(r, param))
}

func (h *Handler) handleAPIListClasses(w http.ResponseWriter, r *http.Request) {
	items := h.Meta.ListClasses(r.URL.Query().Get("q"), queryBool(r, "abstract"), queryInt(r, "limit", 500))
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIGetClass(w http.ResponseWriter, r *http.Request) {
	class, err := h.Meta.GetClass(chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, class)
}

func (h *Handler) handleAPIPossibleChildren(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if queryBool(r, "special") {
		writeJSON(w, http.StatusOK, h.Meta.GetPossibleSpecialChildren(name))
		return
	}
	writeJSON(w, http.StatusOK, h.Meta.GetPossibleChildren(name))
}

func (h *Handler) handleAPISearchObjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.Business.SearchObjects(r.Context(), q.Get("class"), q.Get("q"), queryInt(r, "limit", 100))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIGetObject(w http.ResponseWriter, r *http.Request) {
	obj, err := h.object(r.Context(), r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (h *Handler) handleAPICreateObject(w http.ResponseWriter, r *http.Request) {
	params := actions.Parameters{}
	if err := readJSON(r, &params); err != nil {
		h.writeError(w, err)
		return
	}
	actionID := actions.ActionNewBusinessObject
	if special, _ := params["special"].(bool); special {
		actionID = actions.ActionNewSpecialBusinessObject
	}
	h.execute(w, r, actionID, params)
}

func (h *Handler) handleAPIUpdateObject(w http.ResponseWriter, r *http.Request) {
	obj, err := h.object(r.Context(), r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var body struct {
		Attributes map[string]string `json:"attributes"`
	}
	if err := readJSON(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	h.execute(w, r, actions.ActionUpdateBusinessObject, actions.Parameters{
		"class": obj.ClassName, "id": obj.ID, "attributes": body.Attributes,
	})
}

func (h *Handler) handleAPIDeleteObject(w http.ResponseWriter, r *http.Request) {
	obj, err := h.object(r.Context(), r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.execute(w, r, actions.ActionDeleteBusinessObject, actions.Parameters{
		"class": obj.ClassName, "id": obj.ID, "releaseRelationships": queryBool(r, "release"),
	})
}

func (h *Handler) handleAPIChildren(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	list := h.Business.GetChildren
	if queryBool(r, "special") {
		list = h.Business.GetSpecialChildren
	}
	items, err := list(r.Context(), "", id, queryInt(r, "limit", 0))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIParents(w http.ResponseWriter, r *http.Request) {
	items, err := h.Business.GetParents(r.Context(), "", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type targetRequest struct {
	TargetClass string `json:"targetClass"`
	TargetID    string `json:"targetId"`
	Recursive   bool   `json:"recursive"`
}

func (h *Handler) moveOrCopy(w http.ResponseWriter, r *http.Request, actionID string) {
	obj, err := h.object(r.Context(), r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var body targetRequest
	if err := readJSON(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	h.execute(w, r, actionID, actions.Parameters{
		"targetClass": body.TargetClass,
		"targetId":    body.TargetID,
		"class":       obj.ClassName,
		"id":          obj.ID,
		"recursive":   body.Recursive,
	})
}

func (h *Handler) handleAPIMoveObject(w http.ResponseWriter, r *http.Request) {
	h.moveOrCopy(w, r, actions.ActionMoveBusinessObject)
}

func (h *Handler) handleAPICopyObject(w http.ResponseWriter, r *http.Request) {
	h.moveOrCopy(w, r, actions.ActionCopyBusinessObject)
}

func (h *Handler) handleAPIRelationships(w http.ResponseWriter, r *http.Request) {
	items, err := h.Business.GetSpecialAttributes(r.Context(), "", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type relateRequest struct {
	OtherID      string `json:"otherObjectId"`
	Relationship string `json:"relationshipName"`
	Unique       bool   `json:"unique"`
}

func (h *Handler) handleAPIRelate(w http.ResponseWriter, r *http.Request) {
	obj, err := h.object(r.Context(), r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var body relateRequest
	if err := readJSON(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	other, err := h.Business.GetObject(r.Context(), "", body.OtherID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.execute(w, r, actions.ActionNewSpecialRelationship, actions.Parameters{
		"objectClass":      obj.ClassName,
		"objectId":         obj.ID,
		"targetClass":      other.ClassName,
		"otherObjectId":    other.ID,
		"relationshipName": body.Relationship,
		"unique":           body.Unique,
	})
}

func (h *Handler) handleAPIRelease(w http.ResponseWriter, r *http.Request) {
	obj, err := h.object(r.Context(), r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	name := chi.URLParam(r, "name")
	actionID := actions.ActionReleaseSpecialRelationship
	if queryBool(r, "from") {
		actionID = actions.ActionReleaseFrom
	}
	h.execute(w, r, actionID, actions.Parameters{
		"objectClass":      obj.ClassName,
		"objectId":         obj.ID,
		"relationshipName": name,
		"otherObjectId":    r.URL.Query().Get("other"),
	})
}

func (h *Handler) handleAPIListFiles(w http.ResponseWriter, r *http.Request) {
	items, err := h.Business.GetFilesForObject(r.Context(), "", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// uploadParams reads a multipart upload into attach-file parameters.
func uploadParams(r *http.Request, obj domain.BusinessObject) (actions.Parameters, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, domain.InvalidArgumentf("invalid upload: %v", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, domain.InvalidArgumentf("missing parameter file")
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(r.FormValue("fileName"))
	if name == "" {
		name = header.Filename
	}
	return actions.Parameters{
		"objectClass": obj.ClassName,
		"objectId":    obj.ID,
		"fileName":    name,
		"file":        content,
		"tags":        r.FormValue("tags"),
		"contentType": header.Header.Get("Content-Type"),
	}, nil
}

func (h *Handler) handleAPIAttachFile(w http.ResponseWriter, r *http.Request) {
	obj, err := h.object(r.Context(), r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	params, err := uploadParams(r, obj)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.execute(w, r, actions.ActionAttachFile, params)
}

func (h *Handler) handleAPIDownloadFile(w http.ResponseWriter, r *http.Request) {
	file, content, err := h.Business.GetFile(r.Context(), "", chi.URLParam(r, "id"), chi.URLParam(r, "fileID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(file.Name, `"`, "")+`"`)
	_, _ = w.Write(content)
}

func (h *Handler) handleAPIDetachFile(w http.ResponseWriter, r *http.Request) {
	obj, err := h.object(r.Context(), r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.execute(w, r, actions.ActionDetachFile, actions.Parameters{
		"objectClass": obj.ClassName, "objectId": obj.ID, "fileObjectId": chi.URLParam(r, "fileID"),
	})
}

func (h *Handler) handleAPIConnect(w http.ResponseWriter, r *http.Request) {
	params := actions.Parameters{}
	if err := readJSON(r, &params); err != nil {
		h.writeError(w, err)
		return
	}
	h.execute(w, r, actions.ActionNewPhysicalConnection, params)
}

func (h *Handler) handleAPIDisconnect(w http.ResponseWriter, r *http.Request) {
	obj, err := h.object(r.Context(), r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.execute(w, r, actions.ActionDeletePhysicalConnection, actions.Parameters{"class": obj.ClassName, "id": obj.ID})
}

func (h *Handler) handleAPIEditEndpoints(w http.ResponseWriter, r *http.Request) {
	obj, err := h.object(r.Context(), r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	params := actions.Parameters{}
	if err := readJSON(r, &params); err != nil {
		h.writeError(w, err)
		return
	}
	params["class"] = obj.ClassName
	params["id"] = obj.ID
	h.execute(w, r, actions.ActionEditConnectionEndpoints, params)
}

func (h *Handler) handleAPIEndpoints(w http.ResponseWriter, r *http.Request) {
	a, b, err := h.Physical.Endpoints(r.Context(), "", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"endpoint_a": a, "endpoint_b": b})
}

func (h *Handler) handleAPIPhysicalPath(w http.ResponseWriter, r *http.Request) {
	path, err := h.Physical.GetPhysicalPath(r.Context(), "", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, path)
}

func (h *Handler) handleAPIPhysicalTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.Physical.GetPhysicalTree(r.Context(), "", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *Handler) handleAPIPortSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Physical.PortSummary(r.Context(), "", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleAPIListMirrors(w http.ResponseWriter, r *http.Request) {
	items, err := h.Mirrors.ListMirrors(r.Context(), "", chi.URLParam(r, "deviceID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPISuggestMirrors(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	var (
		suggestion any
		err        error
	)
	if queryBool(r, "multiple") {
		suggestion, err = h.Mirrors.SuggestFreePortMultipleMirrors(r.Context(), "", deviceID)
	} else {
		suggestion, err = h.Mirrors.SuggestFreePortMirrors(r.Context(), "", deviceID)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

func (h *Handler) handleAPIApplyMirrors(w http.ResponseWriter, r *http.Request) {
	obj, err := h.object(r.Context(), r, "deviceID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	params := actions.Parameters{}
	if err := readJSON(r, &params); err != nil {
		h.writeError(w, err)
		return
	}
	actionID := actions.ActionMirrorFreePorts
	if multiple, _ := params["multiple"].(bool); multiple {
		actionID = actions.ActionMirrorFreePortsMultiple
	}
	params["class"] = obj.ClassName
	params["id"] = obj.ID
	h.execute(w, r, actionID, params)
}

func (h *Handler) handleAPIListActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Actions.List(currentIdentity(r)))
}

func (h *Handler) handleAPIExecuteAction(w http.ResponseWriter, r *http.Request) {
	params := actions.Parameters{}
	if err := readJSON(r, &params); err != nil {
		h.writeError(w, err)
		return
	}
	h.execute(w, r, chi.URLParam(r, "actionID"), params)
}

func (h *Handler) handleAPIListWizards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Wizards.Wizards())
}

func (h *Handler) handleAPIStartWizard(w http.ResponseWriter, r *http.Request) {
	seed := wizard.State{}
	if err := readJSON(r, &seed); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.Wizards.Start(r.Context(), currentIdentity(r), chi.URLParam(r, "wizard"), seed)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleAPIGetWizard(w http.ResponseWriter, r *http.Request) {
	view, err := h.Wizards.Get(r.Context(), currentIdentity(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleAPIWizardNext(w http.ResponseWriter, r *http.Request) {
	input := wizard.State{}
	if err := readJSON(r, &input); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.Wizards.Next(r.Context(), currentIdentity(r), chi.URLParam(r, "sessionID"), input)
	if err != nil {
		if view.SessionID != "" {
			writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "view": view})
			return
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleAPIWizardBack(w http.ResponseWriter, r *http.Request) {
	view, err := h.Wizards.Back(r.Context(), currentIdentity(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleAPIWizardFinish(w http.ResponseWriter, r *http.Request) {
	input := wizard.State{}
	if err := readJSON(r, &input); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.Wizards.Finish(r.Context(), currentIdentity(r), chi.URLParam(r, "sessionID"), input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleAPIWizardCancel(w http.ResponseWriter, r *http.Request) {
	h.Wizards.Cancel(currentIdentity(r), chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAPIActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.App.ListActivity(r.Context(), domain.ActivityQuery{
		ObjectID: q.Get("object"),
		Type:     q.Get("type"),
		Limit:    queryInt(r, "limit", 100),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
