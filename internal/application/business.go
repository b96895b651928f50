package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultChildrenLimit = 500
	maxChildrenLimit     = 5000
)

// ReleasableRelationships are the relationship names offered by release-from.
var ReleasableRelationships = []string{"hasContact", "contractHas", "projectsProjectUses", "hasProxy", "uses", "mplsBelongsTo"}

// AttributeChange describes one attribute touched by UpdateObject.
type AttributeChange struct {
	Name     string `json:"name"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// MovedObject is an object after a move, together with the parent it left.
type MovedObject struct {
	Object      domain.BusinessObject `json:"object"`
	OldParentID string                `json:"old_parent_id"`
}

type BusinessService struct {
	repo        domain.BusinessRepository
	templates   domain.ApplicationRepository
	meta        *MetadataService
	blobs       domain.BlobStore
	log         *zap.Logger
	maxFileSize int64
}

type BusinessOption func(*BusinessService)

// WithMaxFileSize bounds attachment payloads; zero or less means unbounded.
func WithMaxFileSize(n int64) BusinessOption {
	return func(s *BusinessService) {
		s.maxFileSize = n
	}
}

func NewBusinessService(repo domain.BusinessRepository, templates domain.ApplicationRepository, meta *MetadataService, blobs domain.BlobStore, log *zap.Logger, opts ...BusinessOption) *BusinessService {
	s := &BusinessService{
		repo:      repo,
		templates: templates,
		meta:      meta,
		blobs:     blobs,
		log:       log.Named("business"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultChildrenLimit
	}
	if limit > maxChildrenLimit {
		return maxChildrenLimit
	}
	return limit
}

func isRootID(id string) bool {
	return id == "" || id == domain.DummyRootID
}

// resolveParent loads a container; the empty id and "-1" are the dummy root.
func (s *BusinessService) resolveParent(ctx context.Context, className, id string) (domain.BusinessObjectLight, error) {
	if isRootID(id) {
		return domain.DummyRoot(), nil
	}
	obj, err := s.GetObject(ctx, className, id)
	if err != nil {
		return domain.BusinessObjectLight{}, err
	}
	return obj.Light(), nil
}

func (s *BusinessService) CreateObject(ctx context.Context, className, parentClass, parentID string, attributes map[string]string, templateID string) (domain.BusinessObject, error) {
	return s.createObject(ctx, className, parentClass, parentID, attributes, templateID, false)
}

func (s *BusinessService) CreateSpecialObject(ctx context.Context, className, parentClass, parentID string, attributes map[string]string, templateID string) (domain.BusinessObject, error) {
	return s.createObject(ctx, className, parentClass, parentID, attributes, templateID, true)
}

// CreateObjectFromTemplate takes every value, including the name, from the template.
func (s *BusinessService) CreateObjectFromTemplate(ctx context.Context, className, parentClass, parentID, templateID string) (domain.BusinessObject, error) {
	if templateID == "" {
		return domain.BusinessObject{}, domain.InvalidArgumentf("template id is required")
	}
	return s.createObject(ctx, className, parentClass, parentID, nil, templateID, false)
}

func (s *BusinessService) createObject(ctx context.Context, className, parentClass, parentID string, attributes map[string]string, templateID string, special bool) (domain.BusinessObject, error) {
	values := make(map[string]string)
	var elements []domain.TemplateElement
	if templateID != "" {
		tpl, err := s.templates.GetTemplate(ctx, templateID)
		if err != nil {
			return domain.BusinessObject{}, err
		}
		if tpl.ClassName != className {
			return domain.BusinessObject{}, domain.InvalidArgumentf("template %s is for class %s, not %s", tpl.Name, tpl.ClassName, className)
		}
		for k, v := range tpl.Attributes {
			values[k] = v
		}
		if values[domain.AttributeName] == "" {
			values[domain.AttributeName] = tpl.Name
		}
		elements = tpl.Elements
	}
	for k, v := range attributes {
		values[k] = v
	}

	created, err := s.insert(ctx, className, parentClass, parentID, values, special)
	if err != nil {
		return domain.BusinessObject{}, err
	}
	if len(elements) > 0 {
		if err := s.instantiateElements(ctx, created, elements, ""); err != nil {
			s.compensate(ctx, created.ID)
			return domain.BusinessObject{}, fmt.Errorf("instantiate template: %w", err)
		}
	}
	return created, nil
}

func (s *BusinessService) insert(ctx context.Context, className, parentClass, parentID string, values map[string]string, special bool) (domain.BusinessObject, error) {
	class, err := s.meta.GetClass(className)
	if err != nil {
		return domain.BusinessObject{}, err
	}
	if class.Abstract {
		return domain.BusinessObject{}, domain.InvalidArgumentf("abstract class %s can not be instantiated", className)
	}
	parent, err := s.resolveParent(ctx, parentClass, parentID)
	if err != nil {
		return domain.BusinessObject{}, err
	}
	if !s.meta.CanContain(parent.ClassName, className, special) {
		kind := "child"
		if special {
			kind = "special child"
		}
		return domain.BusinessObject{}, domain.NotPermittedf("%s can not be a %s of %s", className, kind, parent.ClassName)
	}
	name := strings.TrimSpace(values[domain.AttributeName])
	if name == "" {
		return domain.BusinessObject{}, domain.InvalidArgumentf("the name attribute is required")
	}
	if err := s.validateAttributes(ctx, className, "", values, true); err != nil {
		return domain.BusinessObject{}, err
	}

	parentRef := parent.ID
	if parent.IsDummyRoot() {
		parentRef = domain.DummyRootID
	}
	return s.repo.CreateObject(ctx, domain.BusinessObject{
		ID:         uuid.NewString(),
		ClassName:  className,
		Name:       name,
		ParentID:   parentRef,
		Special:    special,
		Attributes: values,
	})
}

func (s *BusinessService) instantiateElements(ctx context.Context, parent domain.BusinessObject, elements []domain.TemplateElement, parentElementID string) error {
	for _, e := range elements {
		if e.ParentElementID != parentElementID {
			continue
		}
		values := map[string]string{domain.AttributeName: e.Name}
		for k, v := range e.Attributes {
			values[k] = v
		}
		child, err := s.insert(ctx, e.ClassName, parent.ClassName, parent.ID, values, e.Special)
		if err != nil {
			return fmt.Errorf("element %s: %w", e.Name, err)
		}
		if err := s.instantiateElements(ctx, child, elements, e.ID); err != nil {
			return err
		}
	}
	return nil
}

// compensate removes a partially created subtree.
func (s *BusinessService) compensate(ctx context.Context, id string) {
	ids, err := s.repo.ListSubtreeIDs(ctx, id)
	if err == nil {
		err = s.repo.DeleteObjects(ctx, ids)
	}
	if err != nil {
		s.log.Error("rollback of partially created object failed", zap.String("id", id), zap.Error(err))
	}
}

func (s *BusinessService) validateAttributes(ctx context.Context, className, objectID string, values map[string]string, creating bool) error {
	declared := s.meta.Attributes(className)
	for name, value := range values {
		if name == domain.AttributeName {
			continue
		}
		attr, ok := declared[name]
		if !ok {
			return domain.InvalidArgumentf("attribute %s is not defined for class %s", name, className)
		}
		if value == "" {
			if attr.Mandatory {
				return domain.InvalidArgumentf("attribute %s is mandatory", name)
			}
			continue
		}
		if err := checkAttributeType(attr, value); err != nil {
			return err
		}
		if attr.Unique {
			scope := s.meta.SubclassNames(defaultString(attr.ClassName, className), true, false)
			count, err := s.repo.CountObjectsWithAttribute(ctx, scope, name, value, objectID)
			if err != nil {
				return err
			}
			if count > 0 {
				return domain.NotPermittedf("the value %s of unique attribute %s is already in use", value, name)
			}
		}
	}
	if creating {
		for name, attr := range declared {
			if attr.Mandatory && strings.TrimSpace(values[name]) == "" {
				return domain.InvalidArgumentf("attribute %s is mandatory", name)
			}
		}
	}
	return nil
}

func checkAttributeType(attr domain.AttributeMetadata, value string) error {
	var err error
	switch attr.Type {
	case "Integer":
		_, err = strconv.ParseInt(value, 10, 64)
	case "Float":
		_, err = strconv.ParseFloat(value, 64)
	case "Boolean":
		_, err = strconv.ParseBool(value)
	case "Date":
		_, err = time.Parse(time.DateOnly, value)
	}
	if err != nil {
		return domain.InvalidArgumentf("attribute %s expects a %s value, got %q", attr.Name, attr.Type, value)
	}
	return nil
}

// GetObject loads an object and checks that it is an instance of className (any class when empty).
func (s *BusinessService) GetObject(ctx context.Context, className, id string) (domain.BusinessObject, error) {
	if strings.TrimSpace(id) == "" {
		return domain.BusinessObject{}, domain.InvalidArgumentf("object id is required")
	}
	obj, err := s.repo.GetObject(ctx, id)
	if err != nil {
		return domain.BusinessObject{}, err
	}
	if className != "" && !s.meta.IsSubclassOf(className, obj.ClassName) {
		return domain.BusinessObject{}, domain.NotFoundf("object %s of class %s not found", id, className)
	}
	return obj, nil
}

func (s *BusinessService) GetObjectLight(ctx context.Context, className, id string) (domain.BusinessObjectLight, error) {
	obj, err := s.GetObject(ctx, className, id)
	if err != nil {
		return domain.BusinessObjectLight{}, err
	}
	return obj.Light(), nil
}

// UpdateObject writes attributes (name included) and reports what actually changed.
func (s *BusinessService) UpdateObject(ctx context.Context, className, id string, attributes map[string]string) (domain.BusinessObject, []AttributeChange, error) {
	current, err := s.GetObject(ctx, className, id)
	if err != nil {
		return domain.BusinessObject{}, nil, err
	}
	name := ""
	if v, ok := attributes[domain.AttributeName]; ok {
		name = strings.TrimSpace(v)
		if name == "" {
			return domain.BusinessObject{}, nil, domain.InvalidArgumentf("the name attribute can not be empty")
		}
	}
	if err := s.validateAttributes(ctx, current.ClassName, current.ID, attributes, false); err != nil {
		return domain.BusinessObject{}, nil, err
	}

	changes := make([]AttributeChange, 0, len(attributes))
	for k, v := range attributes {
		if k == domain.AttributeName {
			v = name
		}
		if current.Attributes[k] != v {
			changes = append(changes, AttributeChange{Name: k, OldValue: current.Attributes[k], NewValue: v})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Name < changes[j].Name })
	if len(changes) == 0 {
		return current, changes, nil
	}

	updated, err := s.repo.UpdateObject(ctx, current.ID, name, attributes)
	if err != nil {
		return domain.BusinessObject{}, nil, err
	}
	return updated, changes, nil
}

// DeleteObject removes the object and its whole subtree. Unless releaseRelationships is set,
// any special relationship left in the subtree blocks the deletion.
func (s *BusinessService) DeleteObject(ctx context.Context, className, id string, releaseRelationships bool) (domain.BusinessObject, error) {
	obj, err := s.GetObject(ctx, className, id)
	if err != nil {
		return domain.BusinessObject{}, err
	}
	ids, err := s.repo.ListSubtreeIDs(ctx, obj.ID)
	if err != nil {
		return domain.BusinessObject{}, err
	}
	if !releaseRelationships {
		count, err := s.repo.CountRelationshipsInvolving(ctx, ids)
		if err != nil {
			return domain.BusinessObject{}, err
		}
		if count > 0 {
			return domain.BusinessObject{}, domain.NotPermittedf("%s [%s] or one of its children still has %d relationship(s); release them first", obj.Name, obj.ClassName, count)
		}
	}
	files, err := s.repo.ListFiles(ctx, ids)
	if err != nil {
		return domain.BusinessObject{}, err
	}
	if err := s.repo.DeleteObjects(ctx, ids); err != nil {
		return domain.BusinessObject{}, err
	}
	for _, f := range files {
		if err := s.blobs.Delete(ctx, f.StorageKey); err != nil {
			s.log.Warn("orphaned attachment payload", zap.String("key", f.StorageKey), zap.Error(err))
		}
	}
	return obj, nil
}

// DeleteObjects deletes each id (mapped to its class) and stops at the first failure.
// Objects already removed as part of an earlier subtree are skipped.
func (s *BusinessService) DeleteObjects(ctx context.Context, objects map[string]string, releaseRelationships bool) ([]domain.BusinessObject, error) {
	ids := sortedKeys(objects)
	for _, id := range ids {
		if _, err := s.GetObject(ctx, objects[id], id); err != nil {
			return nil, err
		}
	}
	deleted := make([]domain.BusinessObject, 0, len(ids))
	for _, id := range ids {
		obj, err := s.DeleteObject(ctx, objects[id], id, releaseRelationships)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return deleted, err
		}
		deleted = append(deleted, obj)
	}
	return deleted, nil
}

func (s *BusinessService) MoveObjects(ctx context.Context, targetClass, targetID string, objects map[string]string) ([]MovedObject, error) {
	return s.move(ctx, targetClass, targetID, objects, false)
}

func (s *BusinessService) MoveSpecialObjects(ctx context.Context, targetClass, targetID string, objects map[string]string) ([]MovedObject, error) {
	return s.move(ctx, targetClass, targetID, objects, true)
}

func (s *BusinessService) move(ctx context.Context, targetClass, targetID string, objects map[string]string, special bool) ([]MovedObject, error) {
	if len(objects) == 0 {
		return nil, domain.InvalidArgumentf("no objects to move")
	}
	target, err := s.resolveParent(ctx, targetClass, targetID)
	if err != nil {
		return nil, err
	}
	if special && target.IsDummyRoot() {
		return nil, domain.NotPermittedf("special objects can not be moved to the root")
	}
	ancestors := map[string]struct{}{target.ID: {}}
	if !target.IsDummyRoot() {
		parents, err := s.repo.ListAncestors(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			ancestors[p.ID] = struct{}{}
		}
	}

	ids := sortedKeys(objects)
	sources := make([]domain.BusinessObject, 0, len(ids))
	for _, id := range ids {
		obj, err := s.GetObject(ctx, objects[id], id)
		if err != nil {
			return nil, err
		}
		if _, inside := ancestors[obj.ID]; inside {
			return nil, domain.NotPermittedf("%s can not be moved into itself or one of its children", obj.Name)
		}
		if !s.meta.CanContain(target.ClassName, obj.ClassName, special) {
			return nil, domain.NotPermittedf("%s can not be a child of %s", obj.ClassName, target.ClassName)
		}
		sources = append(sources, obj)
	}

	moved := make([]MovedObject, 0, len(sources))
	for _, obj := range sources {
		if err := s.repo.SetParent(ctx, obj.ID, target.ID, special); err != nil {
			return moved, err
		}
		oldParent := obj.ParentID
		obj.ParentID = target.ID
		obj.Special = special
		moved = append(moved, MovedObject{Object: obj, OldParentID: oldParent})
	}
	return moved, nil
}

// CopyObject duplicates an object under a new parent. Recursive copies include every child.
func (s *BusinessService) CopyObject(ctx context.Context, targetClass, targetID, className, id string, recursive bool) (domain.BusinessObject, error) {
	source, err := s.GetObject(ctx, className, id)
	if err != nil {
		return domain.BusinessObject{}, err
	}
	target, err := s.resolveParent(ctx, targetClass, targetID)
	if err != nil {
		return domain.BusinessObject{}, err
	}
	if recursive && !target.IsDummyRoot() {
		if target.ID == source.ID {
			return domain.BusinessObject{}, domain.NotPermittedf("%s can not be copied recursively into itself", source.Name)
		}
		parents, err := s.repo.ListAncestors(ctx, target.ID)
		if err != nil {
			return domain.BusinessObject{}, err
		}
		for _, p := range parents {
			if p.ID == source.ID {
				return domain.BusinessObject{}, domain.NotPermittedf("%s can not be copied recursively into one of its children", source.Name)
			}
		}
	}

	created, err := s.copyOne(ctx, source, target.ClassName, target.ID)
	if err != nil {
		return domain.BusinessObject{}, err
	}
	if recursive {
		if err := s.copyChildren(ctx, source.ID, created); err != nil {
			s.compensate(ctx, created.ID)
			return domain.BusinessObject{}, err
		}
	}
	return created, nil
}

func (s *BusinessService) copyOne(ctx context.Context, source domain.BusinessObject, parentClass, parentID string) (domain.BusinessObject, error) {
	values := make(map[string]string, len(source.Attributes))
	declared := s.meta.Attributes(source.ClassName)
	for k, v := range source.Attributes {
		if declared[k].Unique {
			continue
		}
		values[k] = v
	}
	return s.insert(ctx, source.ClassName, parentClass, parentID, values, source.Special)
}

func (s *BusinessService) copyChildren(ctx context.Context, sourceID string, copyParent domain.BusinessObject) error {
	children, err := s.repo.ListChildren(ctx, sourceID, nil, maxChildrenLimit)
	if err != nil {
		return err
	}
	for _, child := range children {
		created, err := s.copyOne(ctx, child, copyParent.ClassName, copyParent.ID)
		if err != nil {
			return err
		}
		if err := s.copyChildren(ctx, child.ID, created); err != nil {
			return err
		}
	}
	return nil
}

func (s *BusinessService) GetChildren(ctx context.Context, className, id string, limit int) ([]domain.BusinessObject, error) {
	special := false
	return s.children(ctx, className, id, &special, limit)
}

func (s *BusinessService) GetSpecialChildren(ctx context.Context, className, id string, limit int) ([]domain.BusinessObject, error) {
	special := true
	return s.children(ctx, className, id, &special, limit)
}

func (s *BusinessService) children(ctx context.Context, className, id string, special *bool, limit int) ([]domain.BusinessObject, error) {
	parent, err := s.resolveParent(ctx, className, id)
	if err != nil {
		return nil, err
	}
	parentID := parent.ID
	if parent.IsDummyRoot() {
		parentID = domain.DummyRootID
	}
	return s.repo.ListChildren(ctx, parentID, special, clampLimit(limit))
}

// GetChildrenOfClassRecursive lists every object below id that is an instance of className.
func (s *BusinessService) GetChildrenOfClassRecursive(ctx context.Context, id, className string, limit int) ([]domain.BusinessObject, error) {
	if _, err := s.GetObject(ctx, "", id); err != nil {
		return nil, err
	}
	classes := s.meta.SubclassNames(className, true, false)
	if len(classes) == 0 {
		return nil, domain.NotFoundf("class %s not found", className)
	}
	return s.repo.ListDescendantsOfClasses(ctx, id, classes, clampLimit(limit))
}

func (s *BusinessService) GetParent(ctx context.Context, className, id string) (domain.BusinessObjectLight, error) {
	obj, err := s.GetObject(ctx, className, id)
	if err != nil {
		return domain.BusinessObjectLight{}, err
	}
	if isRootID(obj.ParentID) {
		return domain.DummyRoot(), nil
	}
	return s.GetObjectLight(ctx, "", obj.ParentID)
}

// GetParents returns the containment chain, closest first, ending at the dummy root.
func (s *BusinessService) GetParents(ctx context.Context, className, id string) ([]domain.BusinessObjectLight, error) {
	obj, err := s.GetObject(ctx, className, id)
	if err != nil {
		return nil, err
	}
	parents, err := s.repo.ListAncestors(ctx, obj.ID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.BusinessObjectLight, 0, len(parents)+1)
	for _, p := range parents {
		out = append(out, p.Light())
	}
	return append(out, domain.DummyRoot()), nil
}

func (s *BusinessService) GetFirstParentOfClass(ctx context.Context, className, id, parentClass string) (domain.BusinessObjectLight, error) {
	parents, err := s.GetParents(ctx, className, id)
	if err != nil {
		return domain.BusinessObjectLight{}, err
	}
	for _, p := range parents {
		if !p.IsDummyRoot() && s.meta.IsSubclassOf(parentClass, p.ClassName) {
			return p, nil
		}
	}
	return domain.BusinessObjectLight{}, domain.NotFoundf("object %s has no parent of class %s", id, parentClass)
}

// GetCommonParent returns the deepest container shared by both objects; it may be the dummy root.
func (s *BusinessService) GetCommonParent(ctx context.Context, aClass, aID, bClass, bID string) (domain.BusinessObjectLight, error) {
	aParents, err := s.GetParents(ctx, aClass, aID)
	if err != nil {
		return domain.BusinessObjectLight{}, err
	}
	bParents, err := s.GetParents(ctx, bClass, bID)
	if err != nil {
		return domain.BusinessObjectLight{}, err
	}
	inB := make(map[string]struct{}, len(bParents))
	for _, p := range bParents {
		inB[p.ID] = struct{}{}
	}
	for _, p := range aParents {
		if _, ok := inB[p.ID]; ok {
			return p, nil
		}
	}
	return domain.DummyRoot(), nil
}

func (s *BusinessService) SearchObjects(ctx context.Context, className, query string, limit int) ([]domain.BusinessObject, error) {
	var classes []string
	if className != "" {
		classes = s.meta.SubclassNames(className, true, false)
		if len(classes) == 0 {
			return nil, domain.NotFoundf("class %s not found", className)
		}
	}
	return s.repo.SearchObjects(ctx, classes, query, clampLimit(limit))
}

// CreateSpecialRelationship relates a to b under name. With unique set, an existing
// relationship of that name between the same pair is refused; otherwise duplicates are kept.
func (s *BusinessService) CreateSpecialRelationship(ctx context.Context, aClass, aID, bClass, bID, name string, unique bool) (domain.SpecialRelationship, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.SpecialRelationship{}, domain.InvalidArgumentf("relationship name is required")
	}
	if aID == bID {
		return domain.SpecialRelationship{}, domain.NotPermittedf("an object can not be related with itself")
	}
	a, err := s.GetObject(ctx, aClass, aID)
	if err != nil {
		return domain.SpecialRelationship{}, err
	}
	b, err := s.GetObject(ctx, bClass, bID)
	if err != nil {
		return domain.SpecialRelationship{}, err
	}

	if unique {
		existing, err := s.repo.ListRelationships(ctx, domain.RelationshipFilter{ObjectID: a.ID, OtherID: b.ID, Names: []string{name}})
		if err != nil {
			return domain.SpecialRelationship{}, err
		}
		if len(existing) > 0 {
			return domain.SpecialRelationship{}, domain.NotPermittedf("%s and %s are already related through %s", a.Name, b.Name, name)
		}
	}

	return s.repo.CreateRelationship(ctx, domain.SpecialRelationship{
		Name:        name,
		SourceClass: a.ClassName,
		SourceID:    a.ID,
		TargetClass: b.ClassName,
		TargetID:    b.ID,
	})
}

// ReleaseSpecialRelationship removes name between a and otherID, or every name relationship
// of a when otherID is empty.
func (s *BusinessService) ReleaseSpecialRelationship(ctx context.Context, aClass, aID, otherID, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, domain.InvalidArgumentf("relationship name is required")
	}
	a, err := s.GetObject(ctx, aClass, aID)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.DeleteRelationships(ctx, domain.RelationshipFilter{ObjectID: a.ID, OtherID: otherID, Names: []string{name}})
	if err != nil {
		return 0, err
	}
	if n == 0 && otherID != "" {
		return 0, domain.NotFoundf("%s is not related to %s through %s", a.Name, otherID, name)
	}
	return n, nil
}

// ReleaseRelationships removes every relationship with one of names from the object.
func (s *BusinessService) ReleaseRelationships(ctx context.Context, className, id string, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, domain.InvalidArgumentf("at least one relationship name is required")
	}
	obj, err := s.GetObject(ctx, className, id)
	if err != nil {
		return 0, err
	}
	return s.repo.DeleteRelationships(ctx, domain.RelationshipFilter{ObjectID: obj.ID, Names: names})
}

func (s *BusinessService) GetSpecialAttribute(ctx context.Context, className, id, name string) ([]domain.BusinessObjectLight, error) {
	attrs, err := s.specialAttributes(ctx, className, id, []string{name})
	if err != nil {
		return nil, err
	}
	if attrs[name] == nil {
		return []domain.BusinessObjectLight{}, nil
	}
	return attrs[name], nil
}

func (s *BusinessService) GetSpecialAttributes(ctx context.Context, className, id string) (map[string][]domain.BusinessObjectLight, error) {
	return s.specialAttributes(ctx, className, id, nil)
}

func (s *BusinessService) specialAttributes(ctx context.Context, className, id string, names []string) (map[string][]domain.BusinessObjectLight, error) {
	obj, err := s.GetObject(ctx, className, id)
	if err != nil {
		return nil, err
	}
	rels, err := s.repo.ListRelationships(ctx, domain.RelationshipFilter{ObjectID: obj.ID, Names: names})
	if err != nil {
		return nil, err
	}
	otherIDs := make([]string, 0, len(rels))
	for _, r := range rels {
		otherIDs = append(otherIDs, r.Other(obj.ID).ID)
	}
	others, err := s.repo.GetObjects(ctx, otherIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.BusinessObjectLight, len(others))
	for _, o := range others {
		byID[o.ID] = o.Light()
	}

	out := make(map[string][]domain.BusinessObjectLight)
	for _, r := range rels {
		other, ok := byID[r.Other(obj.ID).ID]
		if !ok {
			continue
		}
		out[r.Name] = append(out[r.Name], other)
	}
	return out, nil
}

func (s *BusinessService) HasSpecialRelationship(ctx context.Context, className, id, name string, count int) (bool, error) {
	obj, err := s.GetObject(ctx, className, id)
	if err != nil {
		return false, err
	}
	return s.hasRelationship(ctx, obj.ID, name, count)
}

func (s *BusinessService) hasRelationship(ctx context.Context, id, name string, count int) (bool, error) {
	rels, err := s.repo.ListRelationships(ctx, domain.RelationshipFilter{ObjectID: id, Names: []string{name}})
	if err != nil {
		return false, err
	}
	return len(rels) >= count, nil
}

// ListSpecialRelationshipNames returns the relationship names that make sense for className:
// the general purpose ones, those already used in the inventory, plus the port and connection
// specific ones where they apply.
func (s *BusinessService) ListSpecialRelationshipNames(ctx context.Context, className string) ([]string, error) {
	used, err := s.repo.ListRelationshipNames(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, n := range append(append([]string{}, ReleasableRelationships...), used...) {
		set[n] = struct{}{}
	}
	reserved := []string{domain.RelationshipMirror, domain.RelationshipMirrorMultiple, domain.RelationshipEndpointA, domain.RelationshipEndpointB}
	for _, n := range reserved {
		delete(set, n)
	}
	if className != "" {
		switch {
		case s.meta.IsSubclassOf(domain.ClassGenericPort, className):
			set[domain.RelationshipMirror] = struct{}{}
			set[domain.RelationshipMirrorMultiple] = struct{}{}
		case s.meta.IsSubclassOf(domain.ClassGenericPhysicalConnection, className):
			set[domain.RelationshipEndpointA] = struct{}{}
			set[domain.RelationshipEndpointB] = struct{}{}
		}
	}
	return sortedSet(set), nil
}

// AttachFile stores content under objects/<id>/<fileID> and records it against the object.
func (s *BusinessService) AttachFile(ctx context.Context, className, id, name, tags, contentType string, content []byte) (domain.FileObject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.FileObject{}, domain.InvalidArgumentf("file name is required")
	}
	if len(content) == 0 {
		return domain.FileObject{}, domain.InvalidArgumentf("file %s is empty", name)
	}
	if s.maxFileSize > 0 && int64(len(content)) > s.maxFileSize {
		return domain.FileObject{}, domain.InvalidArgumentf("file %s is %d bytes, the limit is %d", name, len(content), s.maxFileSize)
	}
	obj, err := s.GetObject(ctx, className, id)
	if err != nil {
		return domain.FileObject{}, err
	}

	fileID := uuid.NewString()
	key := fmt.Sprintf("objects/%s/%s", obj.ID, fileID)
	if err := s.blobs.Put(ctx, key, content, contentType); err != nil {
		return domain.FileObject{}, fmt.Errorf("store attachment: %w", err)
	}
	file, err := s.repo.CreateFile(ctx, domain.FileObject{
		ID:          fileID,
		ObjectClass: obj.ClassName,
		ObjectID:    obj.ID,
		Name:        name,
		Tags:        strings.TrimSpace(tags),
		ContentType: defaultString(contentType, "application/octet-stream"),
		Size:        int64(len(content)),
		StorageKey:  key,
	})
	if err != nil {
		if derr := s.blobs.Delete(ctx, key); derr != nil {
			s.log.Warn("orphaned attachment payload", zap.String("key", key), zap.Error(derr))
		}
		return domain.FileObject{}, err
	}
	return file, nil
}

func (s *BusinessService) GetFilesForObject(ctx context.Context, className, id string) ([]domain.FileObject, error) {
	obj, err := s.GetObject(ctx, className, id)
	if err != nil {
		return nil, err
	}
	return s.repo.ListFiles(ctx, []string{obj.ID})
}

func (s *BusinessService) GetFile(ctx context.Context, className, id, fileID string) (domain.FileObject, []byte, error) {
	file, err := s.fileOf(ctx, className, id, fileID)
	if err != nil {
		return domain.FileObject{}, nil, err
	}
	content, err := s.blobs.Get(ctx, file.StorageKey)
	if err != nil {
		return domain.FileObject{}, nil, err
	}
	return file, content, nil
}

func (s *BusinessService) DetachFile(ctx context.Context, className, id, fileID string) (domain.FileObject, error) {
	file, err := s.fileOf(ctx, className, id, fileID)
	if err != nil {
		return domain.FileObject{}, err
	}
	if err := s.repo.DeleteFile(ctx, file.ID); err != nil {
		return domain.FileObject{}, err
	}
	if err := s.blobs.Delete(ctx, file.StorageKey); err != nil {
		s.log.Warn("orphaned attachment payload", zap.String("key", file.StorageKey), zap.Error(err))
	}
	return file, nil
}

func (s *BusinessService) fileOf(ctx context.Context, className, id, fileID string) (domain.FileObject, error) {
	obj, err := s.GetObject(ctx, className, id)
	if err != nil {
		return domain.FileObject{}, err
	}
	file, err := s.repo.GetFile(ctx, fileID)
	if err != nil {
		return domain.FileObject{}, err
	}
	if file.ObjectID != obj.ID {
		return domain.FileObject{}, domain.NotFoundf("file %s is not attached to %s", fileID, obj.Name)
	}
	return file, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}
