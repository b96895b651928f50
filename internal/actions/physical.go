package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/inventory/internal/application"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
)

const (
	ActionNewPhysicalConnection    = "new-physical-connection"
	ActionDeletePhysicalConnection = "delete-physical-connection"
	ActionEditConnectionEndpoints  = "edit-connection-endpoints"
	ActionNewMirror                = "new-mirror"
	ActionReleaseMirror            = "release-mirror"
	ActionMirrorFreePorts          = "mirror-free-ports"
	ActionMirrorFreePortsMultiple  = "mirror-free-ports-multiple"
)

type connectionParams struct {
	EndpointAClass  string `json:"endpointAClass" validate:"required"`
	EndpointAID     string `json:"endpointAId" validate:"required"`
	EndpointBClass  string `json:"endpointBClass" validate:"required"`
	EndpointBID     string `json:"endpointBId" validate:"required"`
	Name            string `json:"name"`
	ConnectionClass string `json:"connectionClass" validate:"required"`
	TemplateID      string `json:"templateId"`
}

type endpointsParams struct {
	Class          string `json:"class" validate:"required"`
	ID             string `json:"id" validate:"required"`
	EndpointAClass string `json:"endpointAClass"`
	EndpointAID    string `json:"endpointAId"`
	EndpointBClass string `json:"endpointBClass"`
	EndpointBID    string `json:"endpointBId"`
}

type mirrorParams struct {
	ObjectClass string `json:"objectClass" validate:"required"`
	ObjectID    string `json:"objectId" validate:"required"`
	TargetClass string `json:"targetClass"`
	OtherID     string `json:"otherObjectId"`
	Multiple    bool   `json:"multiple"`
}

type freePortsParams struct {
	Class  string                       `json:"class" validate:"required"`
	ID     string                       `json:"id" validate:"required"`
	Pairs  []application.MirrorPair     `json:"pairs"`
	Groups []application.MultipleMirror `json:"groups"`
}

func physicalActions(s Services) []Action {
	return []Action{
		{
			ID:          ActionNewPhysicalConnection,
			Name:        "New physical connection",
			Description: "Connects two ports with a link, or two locations with a container",
			Permission:  domain.PermissionInventoryWrite,
			Parameters: []ParameterSpec{
				str("endpointAClass", "Endpoint A class", true),
				str("endpointAId", "Endpoint A", true),
				str("endpointBClass", "Endpoint B class", true),
				str("endpointBId", "Endpoint B", true),
				str("name", "Name", true),
				str("connectionClass", "Connection class", true),
				str("templateId", "Template", false),
			},
			Callback: func(ctx context.Context, call Call) (Response, error) {
				var p connectionParams
				if err := decode(call.Params, &p); err != nil {
					return Response{}, err
				}
				conn, err := s.Physical.CreatePhysicalConnection(ctx, application.PhysicalConnectionRequest{
					EndpointAClass:  p.EndpointAClass,
					EndpointAID:     p.EndpointAID,
					EndpointBClass:  p.EndpointBClass,
					EndpointBID:     p.EndpointBID,
					Name:            p.Name,
					ConnectionClass: p.ConnectionClass,
					TemplateID:      p.TemplateID,
				}, call.actor())
				if err != nil {
					return Response{}, err
				}
				return Response{Message: fmt.Sprintf("%s created", conn.Name), Payload: conn}, nil
			},
		},
		{
			ID:          ActionDeletePhysicalConnection,
			Name:        "Delete physical connection",
			Description: "Deletes a link or container and releases its endpoints",
			Permission:  domain.PermissionInventoryWrite,
			Parameters: []ParameterSpec{
				str("class", "Class", true),
				str("id", "Connection", true),
			},
			Callback: func(ctx context.Context, call Call) (Response, error) {
				var p objectParams
				if err := decode(call.Params, &p); err != nil {
					return Response{}, err
				}
				conn, err := s.Physical.DeletePhysicalConnection(ctx, p.Class, p.ID, call.actor())
				if err != nil {
					return Response{}, err
				}
				return Response{Message: fmt.Sprintf("%s deleted", conn.Name), Payload: conn}, nil
			},
		},
		{
			ID:          ActionEditConnectionEndpoints,
			Name:        "Edit connection endpoints",
			Description: "Reconnects one or both sides of a connection",
			Permission:  domain.PermissionInventoryWrite,
			Parameters: []ParameterSpec{
				str("class", "Class", true),
				str("id", "Connection", true),
				str("endpointAClass", "Endpoint A class", false),
				str("endpointAId", "Endpoint A", false),
				str("endpointBClass", "Endpoint B class", false),
				str("endpointBId", "Endpoint B", false),
			},
			Callback: func(ctx context.Context, call Call) (Response, error) {
				var p endpointsParams
				if err := decode(call.Params, &p); err != nil {
					return Response{}, err
				}
				if p.EndpointAID == "" && p.EndpointBID == "" {
					return Response{}, domain.InvalidArgumentf("at least one endpoint is required")
				}
				conn, skipped, err := s.Physical.EditConnectionEndpoints(ctx, p.Class, p.ID,
					domain.BusinessObjectLight{ClassName: p.EndpointAClass, ID: p.EndpointAID},
					domain.BusinessObjectLight{ClassName: p.EndpointBClass, ID: p.EndpointBID})
				if err != nil {
					return Response{}, err
				}
				s.App.LogObjectActivity(ctx, call.actor(), conn.ClassName, conn.ID, domain.ActivityUpdateObject,
					"endpoints", "", fmt.Sprintf("%s|%s", p.EndpointAID, p.EndpointBID), objectNotes(conn))
				if len(skipped) > 0 {
					return Response{
						Status:  StatusWarning,
						Message: fmt.Sprintf("endpoints of %s updated; %s", conn.Name, strings.Join(skipped, "; ")),
						Payload: conn,
					}, nil
				}
				return Response{Message: fmt.Sprintf("endpoints of %s updated", conn.Name), Payload: conn}, nil
			},
		},
	}
}

func mirrorActions(s Services) []Action {
	device := []ParameterSpec{
		str("class", "Device class", true),
		str("id", "Device", true),
	}

	return []Action{
		{
			ID:          ActionNewMirror,
			Name:        "Mirror port",
			Description: "Mirrors a port to another port",
			Permission:  domain.PermissionInventoryWrite,
			Parameters: []ParameterSpec{
				str("objectClass", "Port class", true),
				str("objectId", "Port", true),
				str("targetClass", "Mirror class", true),
				str("otherObjectId", "Mirror", true),
				flag("multiple", "Multiple mirror"),
			},
			Callback: func(ctx context.Context, call Call) (Response, error) {
				var p mirrorParams
				if err := decode(call.Params, &p); err != nil {
					return Response{}, err
				}
				if p.OtherID == "" {
					return Response{}, domain.InvalidArgumentf("missing parameter otherObjectId")
				}
				rel, err := s.Mirrors.CreateMirror(ctx, p.ObjectClass, p.ObjectID, p.TargetClass, p.OtherID, p.Multiple, call.actor())
				if err != nil {
					return Response{}, err
				}
				return Response{Message: fmt.Sprintf("%s created", rel.Name), Payload: rel}, nil
			},
		},
		{
			ID:          ActionReleaseMirror,
			Name:        "Release mirror",
			Description: "Releases one mirror of a port, or all of them when no peer is given",
			Permission:  domain.PermissionInventoryWrite,
			Parameters: []ParameterSpec{
				str("objectClass", "Port class", true),
				str("objectId", "Port", true),
				str("otherObjectId", "Mirror", false),
				flag("multiple", "Multiple mirror"),
			},
			Callback: func(ctx context.Context, call Call) (Response, error) {
				var p mirrorParams
				if err := decode(call.Params, &p); err != nil {
					return Response{}, err
				}
				var (
					n   int64
					err error
				)
				if p.OtherID == "" {
					n, err = s.Mirrors.ReleaseAllMirrors(ctx, p.ObjectClass, p.ObjectID, call.actor())
				} else {
					n, err = s.Mirrors.ReleaseMirror(ctx, p.ObjectClass, p.ObjectID, p.OtherID, p.Multiple, call.actor())
				}
				if err != nil {
					return Response{}, err
				}
				if n == 0 {
					return Response{Status: StatusWarning, Message: "the port has no mirrors", Payload: n}, nil
				}
				return Response{Message: fmt.Sprintf("%d mirror(s) released", n), Payload: n}, nil
			},
		},
		{
			ID:          ActionMirrorFreePorts,
			Name:        "Mirror free ports",
			Description: "Mirrors the free in/out and front/back ports of a device",
			Permission:  domain.PermissionInventoryWrite,
			Parameters:  append(device, ParameterSpec{Name: "pairs", Label: "Pairs", Kind: KindList}),
			Callback: func(ctx context.Context, call Call) (Response, error) {
				var p freePortsParams
				if err := decode(call.Params, &p); err != nil {
					return Response{}, err
				}
				pairs := p.Pairs
				if len(pairs) == 0 {
					suggestion, err := s.Mirrors.SuggestFreePortMirrors(ctx, p.Class, p.ID)
					if err != nil {
						return Response{}, err
					}
					if len(suggestion.Pairs) == 0 {
						return Response{Status: StatusWarning, Message: suggestion.Info}, nil
					}
					pairs = suggestion.Pairs
				}
				outcomes, err := s.Mirrors.MirrorFreePorts(ctx, p.Class, p.ID, pairs, call.actor())
				if err != nil {
					return Response{}, err
				}
				return outcomeResponse(outcomes), nil
			},
		},
		{
			ID:          ActionMirrorFreePortsMultiple,
			Name:        "Mirror free ports (multiple)",
			Description: "Mirrors every free in/front port of a device to all out/back ports of its family",
			Permission:  domain.PermissionInventoryWrite,
			Parameters:  append(device, ParameterSpec{Name: "groups", Label: "Groups", Kind: KindList}),
			Callback: func(ctx context.Context, call Call) (Response, error) {
				var p freePortsParams
				if err := decode(call.Params, &p); err != nil {
					return Response{}, err
				}
				groups := p.Groups
				if len(groups) == 0 {
					suggestion, err := s.Mirrors.SuggestFreePortMultipleMirrors(ctx, p.Class, p.ID)
					if err != nil {
						return Response{}, err
					}
					if len(suggestion.Groups) == 0 {
						return Response{Status: StatusWarning, Message: defaultInfo(suggestion.Info)}, nil
					}
					groups = suggestion.Groups
				}
				outcomes, err := s.Mirrors.MirrorFreePortsMultiple(ctx, p.Class, p.ID, groups, call.actor())
				if err != nil {
					return Response{}, err
				}
				return outcomeResponse(outcomes), nil
			},
		},
	}
}

func defaultInfo(info string) string {
	if info == "" {
		return "no free ports follow the in/out or front/back naming"
	}
	return info
}

func outcomeResponse(outcomes []application.MirrorOutcome) Response {
	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
		}
	}
	created := len(outcomes) - failed
	if failed > 0 {
		return Response{
			Status:  StatusWarning,
			Message: fmt.Sprintf("%d of %d mirrors created", created, len(outcomes)),
			Payload: outcomes,
		}
	}
	return Response{Message: fmt.Sprintf("%d mirrors created", created), Payload: outcomes}
}
