package actions

import (
	"context"
	"fmt"
	"slices"

	"github.com/atvirokodosprendimai/inventory/internal/application"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
)

const (
	ActionNewSpecialRelationship     = "new-special-relationship"
	ActionReleaseSpecialRelationship = "release-special-relationship"
	ActionReleaseFrom                = "release-from"
	ActionAttachFile                 = "attach-file"
	ActionDetachFile                 = "detach-file"
)

// Physical relationships are only managed through the connection and mirror actions.
func reserved(name string) error {
	if application.IsPhysicalRelationship(name) {
		return domain.NotPermittedf("relationship %s is managed by the physical connection and mirror actions", name)
	}
	return nil
}

type relateParams struct {
	ObjectClass  string `json:"objectClass" validate:"required"`
	ObjectID     string `json:"objectId" validate:"required"`
	TargetClass  string `json:"targetClass" validate:"required"`
	OtherID      string `json:"otherObjectId" validate:"required"`
	Relationship string `json:"relationshipName" validate:"required"`
	Unique       bool   `json:"unique"`
}

type releaseParams struct {
	ObjectClass  string `json:"objectClass" validate:"required"`
	ObjectID     string `json:"objectId" validate:"required"`
	OtherID      string `json:"otherObjectId"`
	Relationship string `json:"relationshipName" validate:"required"`
}

type attachParams struct {
	ObjectClass string `json:"objectClass" validate:"required"`
	ObjectID    string `json:"objectId" validate:"required"`
	FileName    string `json:"fileName" validate:"required"`
	File        []byte `json:"file" validate:"required"`
	Tags        string `json:"tags"`
	ContentType string `json:"contentType"`
}

type detachParams struct {
	ObjectClass string `json:"objectClass" validate:"required"`
	ObjectID    string `json:"objectId" validate:"required"`
	FileID      string `json:"fileObjectId" validate:"required"`
}

func relationshipActions(s Services) []Action {
	release := func(check func(string) error) Callback {
		return func(ctx context.Context, call Call) (Response, error) {
			var p releaseParams
			if err := decode(call.Params, &p); err != nil {
				return Response{}, err
			}
			if err := check(p.Relationship); err != nil {
				return Response{}, err
			}
			n, err := s.Business.ReleaseSpecialRelationship(ctx, p.ObjectClass, p.ObjectID, p.OtherID, p.Relationship)
			if err != nil {
				return Response{}, err
			}
			if n == 0 {
				return Response{Status: StatusWarning, Message: fmt.Sprintf("no %s relationships to release", p.Relationship)}, nil
			}
			s.App.LogObjectActivity(ctx, call.actor(), p.ObjectClass, p.ObjectID, domain.ActivityReleaseRelationship,
				p.Relationship, p.OtherID, "", "")
			return Response{Message: fmt.Sprintf("%d %s relationship(s) released", n, p.Relationship), Payload: n}, nil
		}
	}

	return []Action{
		{
			ID:          ActionNewSpecialRelationship,
			Name:        "Relate objects",
			Description: "Creates a named relationship between two objects",
			Permission:  domain.PermissionInventoryWrite,
			Parameters: []ParameterSpec{
				str("objectClass", "Class", true),
				str("objectId", "Object", true),
				str("targetClass", "Target class", true),
				str("otherObjectId", "Target", true),
				str("relationshipName", "Relationship", true),
				flag("unique", "Unique"),
			},
			Callback: func(ctx context.Context, call Call) (Response, error) {
				var p relateParams
				if err := decode(call.Params, &p); err != nil {
					return Response{}, err
				}
				if err := reserved(p.Relationship); err != nil {
					return Response{}, err
				}
				rel, err := s.Business.CreateSpecialRelationship(ctx, p.ObjectClass, p.ObjectID, p.TargetClass, p.OtherID, p.Relationship, p.Unique)
				if err != nil {
					return Response{}, err
				}
				s.App.LogObjectActivity(ctx, call.actor(), rel.SourceClass, rel.SourceID, domain.ActivityCreateRelationship,
					rel.Name, "", rel.TargetID, "")
				return Response{Message: fmt.Sprintf("%s relationship created", rel.Name), Payload: rel}, nil
			},
		},
		{
			ID:          ActionReleaseSpecialRelationship,
			Name:        "Release relationship",
			Description: "Removes a named relationship from an object",
			Permission:  domain.PermissionInventoryWrite,
			Parameters: []ParameterSpec{
				str("objectClass", "Class", true),
				str("objectId", "Object", true),
				str("relationshipName", "Relationship", true),
				str("otherObjectId", "Target", false),
			},
			Callback: release(reserved),
		},
		{
			ID:          ActionReleaseFrom,
			Name:        "Release from",
			Description: "Releases an object from a service, contract, contact or project",
			Permission:  domain.PermissionInventoryWrite,
			Parameters: []ParameterSpec{
				str("objectClass", "Class", true),
				str("objectId", "Object", true),
				str("relationshipName", "Relationship", true),
				str("otherObjectId", "Target", false),
			},
			Callback: release(func(name string) error {
				if !slices.Contains(application.ReleasableRelationships, name) {
					return domain.InvalidArgumentf("relationship %s can not be released here", name)
				}
				return nil
			}),
		},
	}
}

func fileActions(s Services) []Action {
	return []Action{
		{
			ID:          ActionAttachFile,
			Name:        "Attach file",
			Description: "Attaches a file to an object",
			Permission:  domain.PermissionInventoryWrite,
			Parameters: []ParameterSpec{
				str("objectClass", "Class", true),
				str("objectId", "Object", true),
				str("fileName", "File name", true),
				{Name: "file", Label: "File", Kind: KindFile, Required: true},
				str("tags", "Tags", false),
				str("contentType", "Content type", false),
			},
			Callback: func(ctx context.Context, call Call) (Response, error) {
				var p attachParams
				if err := decode(call.Params, &p); err != nil {
					return Response{}, err
				}
				file, err := s.Business.AttachFile(ctx, p.ObjectClass, p.ObjectID, p.FileName, p.Tags, p.ContentType, p.File)
				if err != nil {
					return Response{}, err
				}
				s.App.LogObjectActivity(ctx, call.actor(), file.ObjectClass, file.ObjectID, domain.ActivityAttachFile,
					"", "", file.ID, file.Name)
				return Response{Message: fmt.Sprintf("%s attached", file.Name), Payload: file}, nil
			},
		},
		{
			ID:          ActionDetachFile,
			Name:        "Detach file",
			Description: "Removes an attached file",
			Permission:  domain.PermissionInventoryWrite,
			Parameters: []ParameterSpec{
				str("objectClass", "Class", true),
				str("objectId", "Object", true),
				str("fileObjectId", "File", true),
			},
			Callback: func(ctx context.Context, call Call) (Response, error) {
				var p detachParams
				if err := decode(call.Params, &p); err != nil {
					return Response{}, err
				}
				file, err := s.Business.DetachFile(ctx, p.ObjectClass, p.ObjectID, p.FileID)
				if err != nil {
					return Response{}, err
				}
				s.App.LogObjectActivity(ctx, call.actor(), file.ObjectClass, file.ObjectID, domain.ActivityDetachFile,
					"", file.ID, "", file.Name)
				return Response{Message: fmt.Sprintf("%s detached", file.Name), Payload: file}, nil
			},
		},
	}
}
