package actions

import (
	"fmt"

	"github.com/atvirokodosprendimai/inventory/internal/application"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
)

// Services are the collaborators the built-in actions forward to.
type Services struct {
	Meta     *application.MetadataService
	Business *application.BusinessService
	App      *application.ApplicationService
	Physical *application.PhysicalConnectionsService
	Mirrors  *application.MirrorService
}

// RegisterBuiltins adds every inventory action to r.
func RegisterBuiltins(r *Registry, s Services) error {
	all := append(objectActions(s), relationshipActions(s)...)
	all = append(all, fileActions(s)...)
	all = append(all, physicalActions(s)...)
	all = append(all, mirrorActions(s)...)
	for _, a := range all {
		if err := r.Register(a); err != nil {
			return err
		}
	}
	return nil
}

func objectNotes(o domain.BusinessObject) string {
	return fmt.Sprintf("%s [%s] (%s)", o.Name, o.ClassName, o.ID)
}

func str(name, label string, required bool) ParameterSpec {
	return ParameterSpec{Name: name, Label: label, Kind: KindString, Required: required}
}

func flag(name, label string) ParameterSpec {
	return ParameterSpec{Name: name, Label: label, Kind: KindBool}
}
