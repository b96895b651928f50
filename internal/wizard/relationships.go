package wizard

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/atvirokodosprendimai/inventory/internal/actions"
	"github.com/atvirokodosprendimai/inventory/internal/application"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
)

const (
	RelationshipWizard = "relationships"

	OperationCreate  = "create"
	OperationRelease = "release"
	OperationExplore = "explore"
)

// TargetOutcome reports one target of a create or release run; Error is empty on success.
type TargetOutcome struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// NewRelationshipManagement builds the wizard that creates, releases or lists the special
// relationships of the object in objectId.
func NewRelationshipManagement(business *application.BusinessService, exec Executor) Definition {
	nameChoices := func(ctx context.Context, state State) ([]Choice, error) {
		var names []string
		switch state["operation"] {
		case OperationCreate:
			known, err := business.ListSpecialRelationshipNames(ctx, state["objectClass"])
			if err != nil {
				return nil, err
			}
			names = append(names, known...)
			names = append(names, application.ReleasableRelationships...)
		case OperationRelease, OperationExplore:
			attrs, err := business.GetSpecialAttributes(ctx, state["objectClass"], state["objectId"])
			if err != nil {
				return nil, err
			}
			for name := range attrs {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		names = slices.Compact(names)
		out := make([]Choice, 0, len(names))
		for _, n := range names {
			if state["operation"] != OperationExplore && application.IsPhysicalRelationship(n) {
				continue
			}
			out = append(out, Choice{Value: n, Label: n})
		}
		return out, nil
	}

	operation := Step{
		Name:  "operation",
		Title: "What do you want to do",
		Fields: []Field{
			{Name: "objectId", Label: "Object", Required: true},
			{Name: "operation", Label: "Operation", Required: true, Choices: func(context.Context, State) ([]Choice, error) {
				return []Choice{
					{Value: OperationCreate, Label: "Create relationships"},
					{Value: OperationRelease, Label: "Release relationships"},
					{Value: OperationExplore, Label: "Explore relationships"},
				}, nil
			}},
		},
		Validate: func(ctx context.Context, state State) error {
			switch state["operation"] {
			case OperationCreate, OperationRelease, OperationExplore:
			default:
				return domain.InvalidArgumentf("unknown operation %q", state["operation"])
			}
			obj, err := business.GetObject(ctx, state["objectClass"], state["objectId"])
			if err != nil {
				return err
			}
			state["objectClass"] = obj.ClassName
			return nil
		},
	}

	relationship := Step{
		Name:  "relationship",
		Title: "Relationship",
		Fields: []Field{
			{Name: "relationshipName", Label: "Relationship", Required: true, Choices: nameChoices},
		},
		Validate: func(_ context.Context, state State) error {
			name := state["relationshipName"]
			if state["operation"] != OperationExplore && application.IsPhysicalRelationship(name) {
				return domain.NotPermittedf("%s is managed by the physical connection and mirror tools", name)
			}
			return nil
		},
	}

	targets := Step{
		Name:  "targets",
		Title: "Related objects",
		Fields: []Field{
			{Name: "targets", Label: "Object ids, comma separated"},
			{Name: "unique", Label: "Unique"},
		},
		Validate: func(ctx context.Context, state State) error {
			ids := splitIDs(state["targets"])
			if state["operation"] == OperationCreate && len(ids) == 0 {
				return domain.InvalidArgumentf("select at least one object to relate")
			}
			if state["operation"] == OperationExplore {
				return nil
			}
			var related map[string]struct{}
			if state["operation"] == OperationRelease || uniqueRequested(state) {
				current, err := business.GetSpecialAttribute(ctx, state["objectClass"], state["objectId"], state["relationshipName"])
				if err != nil {
					return err
				}
				related = make(map[string]struct{}, len(current))
				for _, o := range current {
					related[o.ID] = struct{}{}
				}
			}
			classes := make([]string, 0, len(ids))
			seen := make(map[string]struct{}, len(ids))
			for _, id := range ids {
				if _, dup := seen[id]; dup {
					return domain.InvalidArgumentf("object %s is selected twice", id)
				}
				seen[id] = struct{}{}
				obj, err := business.GetObject(ctx, "", id)
				if err != nil {
					return err
				}
				_, isRelated := related[id]
				switch {
				case state["operation"] == OperationCreate && id == state["objectId"]:
					return domain.NotPermittedf("an object can not be related with itself")
				case state["operation"] == OperationCreate && related != nil && isRelated:
					return domain.NotPermittedf("%s is already related through %s", obj.Name, state["relationshipName"])
				case state["operation"] == OperationRelease && !isRelated:
					return domain.NotFoundf("%s is not related through %s", obj.Name, state["relationshipName"])
				}
				classes = append(classes, obj.ClassName)
			}
			state["targetClasses"] = strings.Join(classes, ",")
			return nil
		},
	}

	return Definition{
		ID:    RelationshipWizard,
		Title: "Manage relationships",
		Steps: []Step{operation, relationship, targets},
		Finish: func(ctx context.Context, identity domain.Identity, state State) (Result, error) {
			name := state["relationshipName"]
			ids := splitIDs(state["targets"])
			classes := splitIDs(state["targetClasses"])

			switch state["operation"] {
			case OperationExplore:
				related, err := business.GetSpecialAttribute(ctx, state["objectClass"], state["objectId"], name)
				if err != nil {
					return Result{}, err
				}
				return Result{Message: fmt.Sprintf("%d object(s) related through %s", len(related), name), Payload: related}, nil

			case OperationCreate:
				var b batch
				for i, id := range ids {
					_, err := exec.Execute(ctx, identity, actions.ActionNewSpecialRelationship, actions.Parameters{
						"objectClass":      state["objectClass"],
						"objectId":         state["objectId"],
						"targetClass":      classes[i],
						"otherObjectId":    id,
						"relationshipName": name,
						"unique":           state["unique"],
					})
					b.add(id, err)
				}
				return b.result(fmt.Sprintf("%s relationship(s) created", name))

			default:
				if len(ids) == 0 {
					ids = []string{""}
				}
				var b batch
				for _, id := range ids {
					_, err := exec.Execute(ctx, identity, actions.ActionReleaseSpecialRelationship, actions.Parameters{
						"objectClass":      state["objectClass"],
						"objectId":         state["objectId"],
						"otherObjectId":    id,
						"relationshipName": name,
					})
					b.add(id, err)
				}
				return b.result(fmt.Sprintf("%s relationship(s) released", name))
			}
		},
	}
}

func uniqueRequested(state State) bool {
	unique, _ := strconv.ParseBool(state["unique"])
	return unique
}

// batch collects per target outcomes of one run.
type batch struct {
	outcomes []TargetOutcome
	failed   int
	first    error
}

func (b *batch) add(id string, err error) {
	if err == nil {
		b.outcomes = append(b.outcomes, TargetOutcome{ID: id})
		return
	}
	if b.first == nil {
		b.first = err
	}
	b.failed++
	b.outcomes = append(b.outcomes, TargetOutcome{ID: id, Error: err.Error()})
}

// result fails only when no target succeeded; partial runs report every outcome.
func (b *batch) result(done string) (Result, error) {
	if b.failed == len(b.outcomes) && b.first != nil {
		return Result{}, b.first
	}
	msg := fmt.Sprintf("%d %s", len(b.outcomes)-b.failed, done)
	if b.failed > 0 {
		msg += fmt.Sprintf(", %d failed", b.failed)
	}
	return Result{Message: msg, Payload: b.outcomes}, nil
}

func splitIDs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
