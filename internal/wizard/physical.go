package wizard

import (
	"context"
	"slices"

	"github.com/atvirokodosprendimai/inventory/internal/actions"
	"github.com/atvirokodosprendimai/inventory/internal/application"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
)

const (
	PhysicalConnectionWizard = "physical-connection"

	ConnectionTypeLink      = "link"
	ConnectionTypeContainer = "container"
)

// Executor runs registered actions; the action registry satisfies it.
type Executor interface {
	Execute(ctx context.Context, identity domain.Identity, actionID string, params actions.Parameters) (actions.Response, error)
}

var connectionRoots = map[string]string{
	ConnectionTypeLink:      domain.ClassGenericPhysicalLink,
	ConnectionTypeContainer: domain.ClassGenericPhysicalContainer,
}

// NewPhysicalConnection builds the two step wizard that connects two ports with a link or two
// locations with a container.
func NewPhysicalConnection(meta *application.MetadataService, business *application.BusinessService, app *application.ApplicationService, exec Executor) Definition {
	classChoices := func(_ context.Context, state State) ([]Choice, error) {
		root, ok := connectionRoots[state["connectionType"]]
		if !ok {
			return []Choice{}, nil
		}
		var out []Choice
		for _, name := range meta.SubclassNames(root, false, true) {
			out = append(out, Choice{Value: name, Label: name})
		}
		return out, nil
	}
	templateChoices := func(ctx context.Context, state State) ([]Choice, error) {
		if state["connectionClass"] == "" {
			return []Choice{}, nil
		}
		templates, err := app.GetTemplatesForClass(ctx, state["connectionClass"])
		if err != nil {
			return nil, err
		}
		out := make([]Choice, 0, len(templates))
		for _, t := range templates {
			out = append(out, Choice{Value: t.ID, Label: t.Name})
		}
		return out, nil
	}

	general := Step{
		Name:  "general",
		Title: "General information",
		Fields: []Field{
			{Name: "name", Label: "Name", Required: true},
			{Name: "connectionType", Label: "Connection type", Required: true, Choices: func(context.Context, State) ([]Choice, error) {
				return []Choice{
					{Value: ConnectionTypeLink, Label: "Connect using a link"},
					{Value: ConnectionTypeContainer, Label: "Connect using a container"},
				}, nil
			}},
			{Name: "connectionClass", Label: "Connection class", Required: true, Choices: classChoices},
			{Name: "templateId", Label: "Template", Choices: templateChoices},
		},
		Validate: func(ctx context.Context, state State) error {
			root, ok := connectionRoots[state["connectionType"]]
			if !ok {
				return domain.InvalidArgumentf("connection type must be %s or %s", ConnectionTypeLink, ConnectionTypeContainer)
			}
			class := state["connectionClass"]
			if !slices.Contains(meta.SubclassNames(root, false, true), class) {
				return domain.InvalidArgumentf("%s is not a %s class", class, state["connectionType"])
			}
			if state["templateId"] == "" {
				return nil
			}
			choices, err := templateChoices(ctx, state)
			if err != nil {
				return err
			}
			for _, c := range choices {
				if c.Value == state["templateId"] {
					return nil
				}
			}
			return domain.InvalidArgumentf("template %s does not belong to %s", state["templateId"], class)
		},
	}

	endpoints := Step{
		Name:  "endpoints",
		Title: "Endpoints",
		Fields: []Field{
			{Name: "endpointAId", Label: "Endpoint A", Required: true},
			{Name: "endpointBId", Label: "Endpoint B", Required: true},
		},
		Validate: func(ctx context.Context, state State) error {
			link := state["connectionType"] == ConnectionTypeLink
			for _, side := range []string{"endpointA", "endpointB"} {
				obj, err := business.GetObject(ctx, "", state[side+"Id"])
				if err != nil {
					return err
				}
				isPort := meta.IsSubclassOf(domain.ClassGenericPort, obj.ClassName)
				if link && !isPort {
					return domain.InvalidArgumentf("only ports can be connected using links")
				}
				if !link && isPort {
					return domain.InvalidArgumentf("ports can not be endpoints of containers")
				}
				state[side+"Class"] = obj.ClassName
			}
			if state["endpointAId"] == state["endpointBId"] {
				return domain.InvalidArgumentf("both endpoints are the same object")
			}
			return nil
		},
	}

	return Definition{
		ID:    PhysicalConnectionWizard,
		Title: "New physical connection",
		Steps: []Step{general, endpoints},
		Finish: func(ctx context.Context, identity domain.Identity, state State) (Result, error) {
			resp, err := exec.Execute(ctx, identity, actions.ActionNewPhysicalConnection, actions.Parameters{
				"endpointAClass":  state["endpointAClass"],
				"endpointAId":     state["endpointAId"],
				"endpointBClass":  state["endpointBClass"],
				"endpointBId":     state["endpointBId"],
				"name":            state["name"],
				"connectionClass": state["connectionClass"],
				"templateId":      state["templateId"],
			})
			if err != nil {
				return Result{}, err
			}
			return Result{Message: resp.Message, Payload: resp.Payload}, nil
		},
	}
}
