package actions

import (
	"context"
	"fmt"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
)

const (
	ActionNewBusinessObject             = "new-business-object"
	ActionNewBusinessObjectFromTemplate = "new-business-object-from-template"
	ActionNewSpecialBusinessObject      = "new-special-business-object"
	ActionUpdateBusinessObject          = "update-business-object"
	ActionDeleteBusinessObject          = "delete-business-object"
	ActionMoveBusinessObject            = "move-business-object"
	ActionCopyBusinessObject            = "copy-business-object"
)

type newObjectParams struct {
	Class       string            `json:"class" validate:"required"`
	ParentClass string            `json:"parentClassName"`
	ParentID    string            `json:"parentId"`
	Name        string            `json:"name"`
	Attributes  map[string]string `json:"attributes"`
	TemplateID  string            `json:"templateId"`
}

func (p newObjectParams) values() map[string]string {
	values := make(map[string]string, len(p.Attributes)+1)
	for k, v := range p.Attributes {
		values[k] = v
	}
	if p.Name != "" {
		values[domain.AttributeName] = p.Name
	}
	return values
}

type fromTemplateParams struct {
	Class       string `json:"class" validate:"required"`
	ParentClass string `json:"parentClassName"`
	ParentID    string `json:"parentId"`
	TemplateID  string `json:"templateId" validate:"required"`
}

type objectParams struct {
	Class string `json:"class" validate:"required"`
	ID    string `json:"id" validate:"required"`
}

type updateParams struct {
	Class      string            `json:"class" validate:"required"`
	ID         string            `json:"id" validate:"required"`
	Attributes map[string]string `json:"attributes" validate:"required,min=1"`
}

type deleteParams struct {
	Class                string `json:"class" validate:"required"`
	ID                   string `json:"id" validate:"required"`
	ReleaseRelationships bool   `json:"releaseRelationships"`
}

type moveParams struct {
	TargetClass string `json:"targetClass"`
	TargetID    string `json:"targetId" validate:"required"`
	Class       string `json:"class" validate:"required"`
	ID          string `json:"id" validate:"required"`
}

type copyParams struct {
	TargetClass string `json:"targetClass"`
	TargetID    string `json:"targetId" validate:"required"`
	Class       string `json:"class" validate:"required"`
	ID          string `json:"id" validate:"required"`
	Recursive   bool   `json:"recursive"`
}

var newObjectSpecs = []ParameterSpec{
	str("class", "Class", true),
	str("parentClassName", "Parent class", false),
	str("parentId", "Parent", false),
	str("name", "Name", false),
	{Name: "attributes", Label: "Attributes", Kind: KindAttributes},
	str("templateId", "Template", false),
}

func objectActions(s Services) []Action {
	create := func(special bool) Callback {
		return func(ctx context.Context, call Call) (Response, error) {
			var p newObjectParams
			if err := decode(call.Params, &p); err != nil {
				return Response{}, err
			}
			create := s.Business.CreateObject
			if special {
				create = s.Business.CreateSpecialObject
			}
			obj, err := create(ctx, p.Class, p.ParentClass, p.ParentID, p.values(), p.TemplateID)
			if err != nil {
				return Response{}, err
			}
			s.App.LogObjectActivity(ctx, call.actor(), obj.ClassName, obj.ID, domain.ActivityCreateObject, "", "", "", objectNotes(obj))
			return Response{Message: fmt.Sprintf("%s created", obj.Name), Payload: obj}, nil
		}
	}

	return []Action{
		{
			ID:          ActionNewBusinessObject,
			Name:        "New object",
			Description: "Creates an object under a parent",
			Permission:  domain.PermissionInventoryWrite,
			Parameters:  newObjectSpecs,
			Callback:    create(false),
		},
		{
			ID:          ActionNewSpecialBusinessObject,
			Name:        "New special object",
			Description: "Creates an object as a special child of a parent",
			Permission:  domain.PermissionInventoryWrite,
			Parameters:  newObjectSpecs,
			Callback:    create(true),
		},
		{
			ID:          ActionNewBusinessObjectFromTemplate,
			Name:        "New object from template",
			Description: "Creates an object and its children from a template",
			Permission:  domain.PermissionInventoryWrite,
			Parameters: []ParameterSpec{
				str("class", "Class", true),
				str("parentClassName", "Parent class", false),
				str("parentId", "Parent", false),
				str("templateId", "Template", true),
			},
			Callback: func(ctx context.Context, call Call) (Response, error) {
				var p fromTemplateParams
				if err := decode(call.Params, &p); err != nil {
					return Response{}, err
				}
				obj, err := s.Business.CreateObjectFromTemplate(ctx, p.Class, p.ParentClass, p.ParentID, p.TemplateID)
				if err != nil {
					return Response{}, err
				}
				s.App.LogObjectActivity(ctx, call.actor(), obj.ClassName, obj.ID, domain.ActivityCreateObject, "", "", "", objectNotes(obj))
				return Response{Message: fmt.Sprintf("%s created from template", obj.Name), Payload: obj}, nil
			},
		},
		{
			ID:          ActionUpdateBusinessObject,
			Name:        "Update object",
			Description: "Changes the name or attributes of an object",
			Permission:  domain.PermissionInventoryWrite,
			Parameters: []ParameterSpec{
				str("class", "Class", true),
				str("id", "Object", true),
				{Name: "attributes", Label: "Attributes", Kind: KindAttributes, Required: true},
			},
			Callback: func(ctx context.Context, call Call) (Response, error) {
				var p updateParams
				if err := decode(call.Params, &p); err != nil {
					return Response{}, err
				}
				obj, changes, err := s.Business.UpdateObject(ctx, p.Class, p.ID, p.Attributes)
				if err != nil {
					return Response{}, err
				}
				if len(changes) == 0 {
					return Response{Status: StatusWarning, Message: "nothing changed", Payload: obj}, nil
				}
				for _, c := range changes {
					s.App.LogObjectActivity(ctx, call.actor(), obj.ClassName, obj.ID, domain.ActivityUpdateObject, c.Name, c.OldValue, c.NewValue, "")
				}
				return Response{Message: fmt.Sprintf("%d attribute(s) of %s updated", len(changes), obj.Name), Payload: obj}, nil
			},
		},
		{
			ID:          ActionDeleteBusinessObject,
			Name:        "Delete object",
			Description: "Deletes an object and everything it contains",
			Permission:  domain.PermissionInventoryWrite,
			Parameters: []ParameterSpec{
				str("class", "Class", true),
				str("id", "Object", true),
				flag("releaseRelationships", "Release relationships"),
			},
			Callback: func(ctx context.Context, call Call) (Response, error) {
				var p deleteParams
				if err := decode(call.Params, &p); err != nil {
					return Response{}, err
				}
				obj, err := s.Business.DeleteObject(ctx, p.Class, p.ID, p.ReleaseRelationships)
				if err != nil {
					return Response{}, err
				}
				s.App.LogObjectActivity(ctx, call.actor(), obj.ClassName, obj.ID, domain.ActivityDeleteObject, "", "", "", objectNotes(obj))
				return Response{Message: fmt.Sprintf("%s deleted", obj.Name), Payload: obj}, nil
			},
		},
		{
			ID:          ActionMoveBusinessObject,
			Name:        "Move object",
			Description: "Moves an object to another parent",
			Permission:  domain.PermissionInventoryWrite,
			Parameters: []ParameterSpec{
				str("targetClass", "Target class", false),
				str("targetId", "Target", true),
				str("class", "Class", true),
				str("id", "Object", true),
			},
			Callback: func(ctx context.Context, call Call) (Response, error) {
				var p moveParams
				if err := decode(call.Params, &p); err != nil {
					return Response{}, err
				}
				obj, err := s.Business.GetObject(ctx, p.Class, p.ID)
				if err != nil {
					return Response{}, err
				}
				move := s.Business.MoveObjects
				if obj.Special {
					move = s.Business.MoveSpecialObjects
				}
				moved, err := move(ctx, p.TargetClass, p.TargetID, map[string]string{obj.ID: obj.ClassName})
				if err != nil {
					return Response{}, err
				}
				for _, m := range moved {
					s.App.LogObjectActivity(ctx, call.actor(), m.Object.ClassName, m.Object.ID, domain.ActivityMoveObject,
						"parent", m.OldParentID, m.Object.ParentID, objectNotes(m.Object))
				}
				return Response{Message: fmt.Sprintf("%s moved", obj.Name), Payload: moved}, nil
			},
		},
		{
			ID:          ActionCopyBusinessObject,
			Name:        "Copy object",
			Description: "Copies an object, optionally with its children, under another parent",
			Permission:  domain.PermissionInventoryWrite,
			Parameters: []ParameterSpec{
				str("targetClass", "Target class", false),
				str("targetId", "Target", true),
				str("class", "Class", true),
				str("id", "Object", true),
				flag("recursive", "Copy children"),
			},
			Callback: func(ctx context.Context, call Call) (Response, error) {
				var p copyParams
				if err := decode(call.Params, &p); err != nil {
					return Response{}, err
				}
				obj, err := s.Business.CopyObject(ctx, p.TargetClass, p.TargetID, p.Class, p.ID, p.Recursive)
				if err != nil {
					return Response{}, err
				}
				s.App.LogObjectActivity(ctx, call.actor(), obj.ClassName, obj.ID, domain.ActivityCreateObject, "", "", "",
					fmt.Sprintf("copy of %s", p.ID))
				return Response{Message: fmt.Sprintf("%s copied", obj.Name), Payload: obj}, nil
			},
		},
	}
}
