package application

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed datamodel.yaml
var defaultDataModel []byte

type dataModel struct {
	Classes []struct {
		Name        string `yaml:"name"`
		Parent      string `yaml:"parent"`
		Display     string `yaml:"display"`
		Description string `yaml:"description"`
		Abstract    bool   `yaml:"abstract"`
		Attributes  []struct {
			Name      string `yaml:"name"`
			Type      string `yaml:"type"`
			Mandatory bool   `yaml:"mandatory"`
			Unique    bool   `yaml:"unique"`
		} `yaml:"attributes"`
	} `yaml:"classes"`
	Containment []containmentSpec `yaml:"containment"`
	Special     []containmentSpec `yaml:"special"`
}

type containmentSpec struct {
	Parent   string   `yaml:"parent"`
	Children []string `yaml:"children"`
}

// MetadataService owns the class hierarchy and containment rules. Both are small
// and read on every write, so they are cached and reloaded after each change.
type MetadataService struct {
	repo domain.MetadataRepository
	log  *zap.Logger

	mu         sync.RWMutex
	classes    map[string]domain.ClassMetadata
	subclasses map[string][]string
	rules      []domain.ContainmentRule
}

func NewMetadataService(repo domain.MetadataRepository, log *zap.Logger) *MetadataService {
	return &MetadataService{
		repo:       repo,
		log:        log.Named("metadata"),
		classes:    map[string]domain.ClassMetadata{},
		subclasses: map[string][]string{},
	}
}

// Bootstrap seeds the default data model when no class exists yet, then loads the cache.
func (s *MetadataService) Bootstrap(ctx context.Context) error {
	count, err := s.repo.CountClasses(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		if err := s.seed(ctx, defaultDataModel); err != nil {
			return fmt.Errorf("seed data model: %w", err)
		}
	}
	return s.Reload(ctx)
}

func (s *MetadataService) seed(ctx context.Context, raw []byte) error {
	var model dataModel
	if err := yaml.Unmarshal(raw, &model); err != nil {
		return err
	}
	for _, c := range model.Classes {
		class := domain.ClassMetadata{
			Name:        c.Name,
			DisplayName: c.Display,
			ParentName:  c.Parent,
			Description: c.Description,
			Abstract:    c.Abstract,
		}
		for _, a := range c.Attributes {
			class.Attributes = append(class.Attributes, domain.AttributeMetadata{Name: a.Name, Type: a.Type, Mandatory: a.Mandatory, Unique: a.Unique})
		}
		if _, err := s.repo.CreateClass(ctx, class); err != nil {
			return fmt.Errorf("class %s: %w", c.Name, err)
		}
	}
	for special, specs := range map[bool][]containmentSpec{false: model.Containment, true: model.Special} {
		for _, spec := range specs {
			for _, child := range spec.Children {
				if err := s.repo.AddContainmentRule(ctx, domain.ContainmentRule{ParentClass: spec.Parent, ChildClass: child, Special: special}); err != nil {
					return err
				}
			}
		}
	}
	s.log.Info("default data model created", zap.Int("classes", len(model.Classes)))
	return nil
}

func (s *MetadataService) Reload(ctx context.Context) error {
	classes, err := s.repo.ListClasses(ctx)
	if err != nil {
		return err
	}
	rules, err := s.repo.ListContainmentRules(ctx)
	if err != nil {
		return err
	}

	byName := make(map[string]domain.ClassMetadata, len(classes))
	subclasses := make(map[string][]string)
	for _, c := range classes {
		byName[c.Name] = c
		if c.ParentName != "" {
			subclasses[c.ParentName] = append(subclasses[c.ParentName], c.Name)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes = byName
	s.subclasses = subclasses
	s.rules = rules
	return nil
}

func (s *MetadataService) CreateClass(ctx context.Context, value domain.ClassMetadata) (domain.ClassMetadata, error) {
	value.Name = strings.TrimSpace(value.Name)
	if value.Name == "" {
		return domain.ClassMetadata{}, domain.InvalidArgumentf("class name is required")
	}
	if value.Name == domain.DummyRootClass {
		return domain.ClassMetadata{}, domain.InvalidArgumentf("%s is reserved", domain.DummyRootClass)
	}
	if _, err := s.GetClass(value.Name); err == nil {
		return domain.ClassMetadata{}, domain.InvalidArgumentf("class %s already exists", value.Name)
	}
	if value.ParentName != "" {
		if _, err := s.GetClass(value.ParentName); err != nil {
			return domain.ClassMetadata{}, err
		}
	}
	seen := map[string]struct{}{}
	for _, a := range value.Attributes {
		if strings.TrimSpace(a.Name) == "" {
			return domain.ClassMetadata{}, domain.InvalidArgumentf("attribute name is required")
		}
		if _, dup := seen[a.Name]; dup {
			return domain.ClassMetadata{}, domain.InvalidArgumentf("attribute %s is declared twice", a.Name)
		}
		seen[a.Name] = struct{}{}
		if a.Type != "" && !validAttributeType(a.Type) {
			return domain.ClassMetadata{}, domain.InvalidArgumentf("attribute %s has unknown type %s", a.Name, a.Type)
		}
	}

	created, err := s.repo.CreateClass(ctx, value)
	if err != nil {
		return domain.ClassMetadata{}, err
	}
	return created, s.Reload(ctx)
}

func (s *MetadataService) GetClass(name string) (domain.ClassMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classes[name]
	if !ok {
		return domain.ClassMetadata{}, domain.NotFoundf("class %s not found", name)
	}
	return c, nil
}

// ListClasses returns classes whose name contains query, case-insensitive.
func (s *MetadataService) ListClasses(query string, includeAbstract bool, limit int) []domain.ClassMetadata {
	if limit <= 0 {
		limit = 500
	}
	query = strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	out := make([]domain.ClassMetadata, 0, len(s.classes))
	for _, c := range s.classes {
		if c.Abstract && !includeAbstract {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(c.Name), query) {
			continue
		}
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GetSubclasses returns every transitive subclass of name, sorted by name.
func (s *MetadataService) GetSubclasses(name string, includeSelf bool) ([]domain.ClassMetadata, error) {
	root, err := s.GetClass(name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ClassMetadata, 0)
	if includeSelf {
		out = append(out, root)
	}
	for _, n := range s.descendantsLocked(name) {
		out = append(out, s.classes[n])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SubclassNames is GetSubclasses projected to names; unknown classes yield nil.
func (s *MetadataService) SubclassNames(name string, includeSelf, concreteOnly bool) []string {
	classes, err := s.GetSubclasses(name, includeSelf)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		if concreteOnly && c.Abstract {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

func (s *MetadataService) descendantsLocked(name string) []string {
	out := make([]string, 0)
	queue := append([]string(nil), s.subclasses[name]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		out = append(out, next)
		queue = append(queue, s.subclasses[next]...)
	}
	return out
}

// IsSubclassOf reports whether class is super or inherits from it.
func (s *MetadataService) IsSubclassOf(super, class string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSubclassOfLocked(super, class)
}

func (s *MetadataService) isSubclassOfLocked(super, class string) bool {
	for depth := 0; class != "" && depth <= len(s.classes); depth++ {
		if class == super {
			return true
		}
		class = s.classes[class].ParentName
	}
	return false
}

// Attributes returns the attributes declared on class and its ancestors, closest declaration wins.
func (s *MetadataService) Attributes(class string) map[string]domain.AttributeMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.AttributeMetadata)
	for depth := 0; class != "" && depth <= len(s.classes); depth++ {
		c, ok := s.classes[class]
		if !ok {
			break
		}
		for _, a := range c.Attributes {
			if _, ok := out[a.Name]; !ok {
				out[a.Name] = a
			}
		}
		class = c.ParentName
	}
	return out
}

func (s *MetadataService) AddPossibleChildren(ctx context.Context, parent string, children []string, special bool) error {
	if parent != domain.DummyRootClass {
		if _, err := s.GetClass(parent); err != nil {
			return err
		}
	}
	if len(children) == 0 {
		return domain.InvalidArgumentf("at least one child class is required")
	}
	for _, child := range children {
		if _, err := s.GetClass(child); err != nil {
			return err
		}
		if s.IsSubclassOf(child, parent) {
			return domain.NotPermittedf("%s can not contain its own superclass %s", parent, child)
		}
	}
	for _, child := range children {
		if err := s.repo.AddContainmentRule(ctx, domain.ContainmentRule{ParentClass: parent, ChildClass: child, Special: special}); err != nil {
			return err
		}
	}
	return s.Reload(ctx)
}

func (s *MetadataService) GetPossibleChildren(parent string) []domain.ClassMetadata {
	return s.possibleChildren(parent, false)
}

func (s *MetadataService) GetPossibleSpecialChildren(parent string) []domain.ClassMetadata {
	return s.possibleChildren(parent, true)
}

// possibleChildren resolves rules declared on parent or any ancestor. Abstract children
// expand to their concrete subclasses.
func (s *MetadataService) possibleChildren(parent string, special bool) []domain.ClassMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]domain.ClassMetadata, 0)
	add := func(name string) {
		c, ok := s.classes[name]
		if !ok || c.Abstract {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, c)
	}
	for _, rule := range s.rules {
		if rule.Special != special || !s.ruleAppliesLocked(rule.ParentClass, parent) {
			continue
		}
		add(rule.ChildClass)
		for _, sub := range s.descendantsLocked(rule.ChildClass) {
			add(sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *MetadataService) ruleAppliesLocked(ruleParent, parent string) bool {
	if parent == domain.DummyRootClass || ruleParent == domain.DummyRootClass {
		return parent == ruleParent
	}
	return s.isSubclassOfLocked(ruleParent, parent)
}

// CanContain reports whether an instance of parent may hold child, directly or as a special child.
func (s *MetadataService) CanContain(parent, child string, special bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rule := range s.rules {
		if rule.Special == special && s.ruleAppliesLocked(rule.ParentClass, parent) && s.isSubclassOfLocked(rule.ChildClass, child) {
			return true
		}
	}
	return false
}

var attributeTypes = map[string]struct{}{
	"String": {}, "Integer": {}, "Float": {}, "Boolean": {}, "Date": {},
}

func validAttributeType(t string) bool {
	_, ok := attributeTypes[t]
	return ok
}
