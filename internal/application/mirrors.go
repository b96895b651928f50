package application

import (
	"context"
	"fmt"
	"sort"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"go.uber.org/zap"
)

// PortMirrors lists the mirror peers of one port.
type PortMirrors struct {
	Port            domain.BusinessObjectLight   `json:"port"`
	Mirrors         []domain.BusinessObjectLight `json:"mirrors"`
	MultipleMirrors []domain.BusinessObjectLight `json:"multiple_mirrors"`
}

type MirrorSuggestion struct {
	Pairs []MirrorPair `json:"pairs"`
	Info  string       `json:"info,omitempty"`
}

type MultipleMirrorSuggestion struct {
	Groups []MultipleMirror `json:"groups"`
	Info   string           `json:"info,omitempty"`
}

// MirrorOutcome reports one requested mirror; Error is empty when it was created.
type MirrorOutcome struct {
	Source domain.BusinessObjectLight `json:"source"`
	Target domain.BusinessObjectLight `json:"target"`
	Error  string                     `json:"error,omitempty"`
}

type MirrorService struct {
	business *BusinessService
	meta     *MetadataService
	app      *ApplicationService
	log      *zap.Logger
}

func NewMirrorService(business *BusinessService, meta *MetadataService, app *ApplicationService, log *zap.Logger) *MirrorService {
	return &MirrorService{business: business, meta: meta, app: app, log: log.Named("mirrors")}
}

func mirrorName(multiple bool) string {
	if multiple {
		return domain.RelationshipMirrorMultiple
	}
	return domain.RelationshipMirror
}

// CreateMirror relates two ports with a single or a multiple mirror.
func (s *MirrorService) CreateMirror(ctx context.Context, aClass, aID, bClass, bID string, multiple bool, actor *uint) (domain.SpecialRelationship, error) {
	a, err := s.port(ctx, aClass, aID)
	if err != nil {
		return domain.SpecialRelationship{}, err
	}
	b, err := s.port(ctx, bClass, bID)
	if err != nil {
		return domain.SpecialRelationship{}, err
	}

	blocking := []string{domain.RelationshipMirror}
	if !multiple {
		blocking = append(blocking, domain.RelationshipMirrorMultiple)
	}
	for _, p := range []domain.BusinessObject{a, b} {
		for _, name := range blocking {
			has, err := s.business.hasRelationship(ctx, p.ID, name, 1)
			if err != nil {
				return domain.SpecialRelationship{}, err
			}
			if has {
				return domain.SpecialRelationship{}, domain.NotPermittedf("port %s already has a %s relationship", p.Name, name)
			}
		}
	}

	name := mirrorName(multiple)
	rel, err := s.business.CreateSpecialRelationship(ctx, a.ClassName, a.ID, b.ClassName, b.ID, name, true)
	if err != nil {
		return domain.SpecialRelationship{}, err
	}
	s.app.LogObjectActivity(ctx, actor, a.ClassName, a.ID, domain.ActivityCreateRelationship, name, "", b.ID,
		fmt.Sprintf("%s %s %s", a.Name, name, b.Name))
	return rel, nil
}

func (s *MirrorService) port(ctx context.Context, className, id string) (domain.BusinessObject, error) {
	p, err := s.business.GetObject(ctx, className, id)
	if err != nil {
		return domain.BusinessObject{}, err
	}
	if !s.meta.IsSubclassOf(domain.ClassGenericPort, p.ClassName) {
		return domain.BusinessObject{}, domain.NotPermittedf("%s [%s] is not a port", p.Name, p.ClassName)
	}
	return p, nil
}

// ReleaseMirror removes the mirror between a port and otherID, or all of its mirrors of that
// kind when otherID is empty.
func (s *MirrorService) ReleaseMirror(ctx context.Context, className, id, otherID string, multiple bool, actor *uint) (int64, error) {
	p, err := s.port(ctx, className, id)
	if err != nil {
		return 0, err
	}
	name := mirrorName(multiple)
	n, err := s.business.ReleaseSpecialRelationship(ctx, p.ClassName, p.ID, otherID, name)
	if err != nil {
		return 0, err
	}
	s.app.LogObjectActivity(ctx, actor, p.ClassName, p.ID, domain.ActivityReleaseRelationship, name, otherID, "",
		fmt.Sprintf("%d %s released from %s", n, name, p.Name))
	return n, nil
}

func (s *MirrorService) ReleaseAllMirrors(ctx context.Context, className, id string, actor *uint) (int64, error) {
	p, err := s.port(ctx, className, id)
	if err != nil {
		return 0, err
	}
	n, err := s.business.ReleaseRelationships(ctx, p.ClassName, p.ID, []string{domain.RelationshipMirror, domain.RelationshipMirrorMultiple})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.app.LogObjectActivity(ctx, actor, p.ClassName, p.ID, domain.ActivityReleaseRelationship, "", "", "",
			fmt.Sprintf("%d mirrors released from %s", n, p.Name))
	}
	return n, nil
}

func (s *MirrorService) ports(ctx context.Context, deviceClass, deviceID string) ([]domain.BusinessObject, error) {
	if _, err := s.business.GetObject(ctx, deviceClass, deviceID); err != nil {
		return nil, err
	}
	return s.business.GetChildrenOfClassRecursive(ctx, deviceID, domain.ClassGenericPort, maxChildrenLimit)
}

// ListMirrors returns every port below the device with its mirror peers, in name order.
func (s *MirrorService) ListMirrors(ctx context.Context, deviceClass, deviceID string) ([]PortMirrors, error) {
	ports, err := s.ports(ctx, deviceClass, deviceID)
	if err != nil {
		return nil, err
	}
	out := make([]PortMirrors, 0, len(ports))
	for _, p := range ports {
		attrs, err := s.business.specialAttributes(ctx, p.ClassName, p.ID, []string{domain.RelationshipMirror, domain.RelationshipMirrorMultiple})
		if err != nil {
			return nil, err
		}
		out = append(out, PortMirrors{
			Port:            p.Light(),
			Mirrors:         nonNil(attrs[domain.RelationshipMirror]),
			MultipleMirrors: nonNil(attrs[domain.RelationshipMirrorMultiple]),
		})
	}
	sortPortMirrors(out)
	return out, nil
}

// mirrorState splits the device ports into those without a single mirror and the set of
// those that carry a multiple mirror.
func (s *MirrorService) mirrorState(ctx context.Context, deviceClass, deviceID string) ([]domain.BusinessObjectLight, map[string]bool, error) {
	ports, err := s.ports(ctx, deviceClass, deviceID)
	if err != nil {
		return nil, nil, err
	}
	withoutMirror := make([]domain.BusinessObjectLight, 0, len(ports))
	multiple := make(map[string]bool)
	for _, p := range ports {
		has, err := s.business.hasRelationship(ctx, p.ID, domain.RelationshipMirror, 1)
		if err != nil {
			return nil, nil, err
		}
		if has {
			continue
		}
		withoutMirror = append(withoutMirror, p.Light())
		hasMultiple, err := s.business.hasRelationship(ctx, p.ID, domain.RelationshipMirrorMultiple, 1)
		if err != nil {
			return nil, nil, err
		}
		if hasMultiple {
			multiple[p.ID] = true
		}
	}
	return withoutMirror, multiple, nil
}

// SuggestFreePortMirrors proposes single mirrors between ports that have no mirror of any kind.
func (s *MirrorService) SuggestFreePortMirrors(ctx context.Context, deviceClass, deviceID string) (MirrorSuggestion, error) {
	withoutMirror, multiple, err := s.mirrorState(ctx, deviceClass, deviceID)
	if err != nil {
		return MirrorSuggestion{}, err
	}
	free := make([]domain.BusinessObjectLight, 0, len(withoutMirror))
	for _, p := range withoutMirror {
		if !multiple[p.ID] {
			free = append(free, p)
		}
	}
	if len(free) == 0 {
		return MirrorSuggestion{Pairs: []MirrorPair{}, Info: "there are no free ports to mirror"}, nil
	}
	pairs := MatchFreePorts(free)
	if len(pairs) == 0 {
		return MirrorSuggestion{Pairs: pairs, Info: "no free ports follow the in/out or front/back naming"}, nil
	}
	return MirrorSuggestion{Pairs: pairs}, nil
}

// MirrorFreePorts creates the requested single mirrors. A failing pair is reported in its
// outcome and does not stop the others.
func (s *MirrorService) MirrorFreePorts(ctx context.Context, deviceClass, deviceID string, pairs []MirrorPair, actor *uint) ([]MirrorOutcome, error) {
	return s.apply(ctx, deviceClass, deviceID, pairs, false, actor)
}

func (s *MirrorService) SuggestFreePortMultipleMirrors(ctx context.Context, deviceClass, deviceID string) (MultipleMirrorSuggestion, error) {
	withoutMirror, multiple, err := s.mirrorState(ctx, deviceClass, deviceID)
	if err != nil {
		return MultipleMirrorSuggestion{}, err
	}
	if len(withoutMirror) == 0 || !hasTargets(withoutMirror, multiple) {
		return MultipleMirrorSuggestion{Groups: []MultipleMirror{}, Info: "there are no free ports to mirror multiple"}, nil
	}
	return MultipleMirrorSuggestion{Groups: MatchMultipleMirrors(withoutMirror, multiple)}, nil
}

func (s *MirrorService) MirrorFreePortsMultiple(ctx context.Context, deviceClass, deviceID string, groups []MultipleMirror, actor *uint) ([]MirrorOutcome, error) {
	pairs := make([]MirrorPair, 0)
	for _, g := range groups {
		for _, t := range g.Targets {
			pairs = append(pairs, MirrorPair{Source: g.Source, Target: t})
		}
	}
	return s.apply(ctx, deviceClass, deviceID, pairs, true, actor)
}

func (s *MirrorService) apply(ctx context.Context, deviceClass, deviceID string, pairs []MirrorPair, multiple bool, actor *uint) ([]MirrorOutcome, error) {
	ports, err := s.ports(ctx, deviceClass, deviceID)
	if err != nil {
		return nil, err
	}
	below := make(map[string]domain.BusinessObjectLight, len(ports))
	for _, p := range ports {
		below[p.ID] = p.Light()
	}

	out := make([]MirrorOutcome, 0, len(pairs))
	created := 0
	for _, pair := range pairs {
		outcome := MirrorOutcome{Source: pair.Source, Target: pair.Target}
		src, okSrc := below[pair.Source.ID]
		dst, okDst := below[pair.Target.ID]
		switch {
		case !okSrc || !okDst:
			outcome.Error = fmt.Sprintf("ports %s and %s must both belong to the device", pair.Source.ID, pair.Target.ID)
		default:
			outcome.Source, outcome.Target = src, dst
			if _, err := s.CreateMirror(ctx, src.ClassName, src.ID, dst.ClassName, dst.ID, multiple, actor); err != nil {
				outcome.Error = err.Error()
			} else {
				created++
			}
		}
		if outcome.Error != "" {
			s.log.Debug("mirror not created", zap.String("source", pair.Source.ID), zap.String("target", pair.Target.ID), zap.String("reason", outcome.Error))
		}
		out = append(out, outcome)
	}
	s.log.Info("mirrors applied", zap.String("device", deviceID), zap.Bool("multiple", multiple),
		zap.Int("requested", len(pairs)), zap.Int("created", created))
	return out, nil
}

func sortPortMirrors(list []PortMirrors) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Port.Name < list[j].Port.Name })
}
