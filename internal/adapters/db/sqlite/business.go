package sqlite

import (
	"context"
	"sort"
	"strings"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"gorm.io/gorm"
)

// maxTreeDepth bounds the recursive containment queries.
const maxTreeDepth = 256

func (r *Repository) CreateObject(ctx context.Context, value domain.BusinessObject) (domain.BusinessObject, error) {
	m := ObjectModel{
		ID:        value.ID,
		ClassName: value.ClassName,
		Name:      value.Name,
		ParentID:  defaultString(value.ParentID, domain.DummyRootID),
		Special:   value.Special,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return upsertAttributes(tx, m.ID, value.Attributes)
	})
	if err != nil {
		return domain.BusinessObject{}, err
	}
	return r.GetObject(ctx, m.ID)
}

func (r *Repository) GetObject(ctx context.Context, id string) (domain.BusinessObject, error) {
	var m ObjectModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.BusinessObject{}, notFound(err, "object %s not found", id)
	}
	out, err := r.withAttributes(ctx, []ObjectModel{m})
	if err != nil {
		return domain.BusinessObject{}, err
	}
	return out[0], nil
}

func (r *Repository) GetObjects(ctx context.Context, ids []string) ([]domain.BusinessObject, error) {
	if len(ids) == 0 {
		return []domain.BusinessObject{}, nil
	}
	rows := make([]ObjectModel, 0, len(ids))
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	objects, err := r.withAttributes(ctx, rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.BusinessObject, len(objects))
	for _, o := range objects {
		byID[o.ID] = o
	}
	result := make([]domain.BusinessObject, 0, len(objects))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			result = append(result, o)
		}
	}
	return result, nil
}

func (r *Repository) UpdateObject(ctx context.Context, id string, name string, attributes map[string]string) (domain.BusinessObject, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"updated_at": nowUTC()}
		if name != "" {
			updates["name"] = name
		}
		res := tx.Model(&ObjectModel{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.NotFoundf("object %s not found", id)
		}
		return upsertAttributes(tx, id, attributes)
	})
	if err != nil {
		return domain.BusinessObject{}, err
	}
	return r.GetObject(ctx, id)
}

func (r *Repository) SetParent(ctx context.Context, id, parentID string, special bool) error {
	res := r.db.WithContext(ctx).Model(&ObjectModel{}).Where("id = ?", id).
		Updates(map[string]any{"parent_id": defaultString(parentID, domain.DummyRootID), "special": special, "updated_at": nowUTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundf("object %s not found", id)
	}
	return nil
}

// DeleteObjects removes the objects together with their attributes, relationships and file records.
func (r *Repository) DeleteObjects(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_id IN ? OR target_id IN ?", ids, ids).Delete(&SpecialRelationshipModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("object_id IN ?", ids).Delete(&ObjectAttributeModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("object_id IN ?", ids).Delete(&FileModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&ObjectModel{}).Error
	})
}

func (r *Repository) ListChildren(ctx context.Context, parentID string, special *bool, limit int) ([]domain.BusinessObject, error) {
	q := r.db.WithContext(ctx).Model(&ObjectModel{}).Where("parent_id = ?", defaultString(parentID, domain.DummyRootID))
	if special != nil {
		q = q.Where("special = ?", *special)
	}
	rows := make([]ObjectModel, 0)
	if err := q.Order("name ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.withAttributes(ctx, rows)
}

func (r *Repository) ListSubtreeIDs(ctx context.Context, id string) ([]string, error) {
	type row struct {
		ID    string
		Depth int
	}
	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
WITH RECURSIVE down(id, depth) AS (
    SELECT id, 0 FROM objects WHERE id = ?
    UNION ALL
    SELECT o.id, down.depth + 1
    FROM objects o
    JOIN down ON o.parent_id = down.id
    WHERE down.depth < ?
)
SELECT id, depth FROM down ORDER BY depth ASC;
`, id, maxTreeDepth).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.ID)
	}
	return result, nil
}

// ListAncestors returns the parents of id, closest first. The dummy root is not a row and is never returned.
func (r *Repository) ListAncestors(ctx context.Context, id string) ([]domain.BusinessObject, error) {
	type row struct {
		ID    string
		Depth int
	}
	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
WITH RECURSIVE up(id, parent_id, depth) AS (
    SELECT id, parent_id, 0 FROM objects WHERE id = ?
    UNION ALL
    SELECT o.id, o.parent_id, up.depth + 1
    FROM objects o
    JOIN up ON o.id = up.parent_id
    WHERE up.depth < ?
)
SELECT id, depth FROM up WHERE depth > 0 ORDER BY depth ASC;
`, id, maxTreeDepth).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return r.GetObjects(ctx, ids)
}

func (r *Repository) ListDescendantsOfClasses(ctx context.Context, id string, classNames []string, limit int) ([]domain.BusinessObject, error) {
	if len(classNames) == 0 {
		return []domain.BusinessObject{}, nil
	}
	placeholders := make([]string, 0, len(classNames))
	args := []any{id, maxTreeDepth}
	for _, name := range classNames {
		placeholders = append(placeholders, "?")
		args = append(args, name)
	}
	args = append(args, limit)

	rows := make([]ObjectModel, 0)
	err := r.db.WithContext(ctx).Raw(`
WITH RECURSIVE down(id, depth) AS (
    SELECT id, 0 FROM objects WHERE id = ?
    UNION ALL
    SELECT o.id, down.depth + 1
    FROM objects o
    JOIN down ON o.parent_id = down.id
    WHERE down.depth < ?
)
SELECT o.*
FROM down
JOIN objects o ON o.id = down.id
WHERE down.depth > 0 AND o.class_name IN (`+strings.Join(placeholders, ",")+`)
ORDER BY o.name ASC
LIMIT ?;
`, args...).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.withAttributes(ctx, rows)
}

func (r *Repository) SearchObjects(ctx context.Context, classNames []string, query string, limit int) ([]domain.BusinessObject, error) {
	q := r.db.WithContext(ctx).Model(&ObjectModel{})
	if len(classNames) > 0 {
		q = q.Where("class_name IN ?", classNames)
	}
	if strings.TrimSpace(query) != "" {
		q = q.Where("name LIKE ?", "%"+strings.TrimSpace(query)+"%")
	}
	rows := make([]ObjectModel, 0)
	if err := q.Order("name ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.withAttributes(ctx, rows)
}

// CountObjectsWithAttribute counts objects of the given classes carrying value for the attribute.
func (r *Repository) CountObjectsWithAttribute(ctx context.Context, classNames []string, name, value, excludeID string) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&ObjectModel{}).Where("objects.id <> ?", excludeID)
	if len(classNames) > 0 {
		q = q.Where("objects.class_name IN ?", classNames)
	}
	if name == domain.AttributeName {
		q = q.Where("objects.name = ?", value)
	} else {
		q = q.Joins("JOIN object_attributes oa ON oa.object_id = objects.id").
			Where("oa.name = ? AND oa.value = ?", name, value)
	}
	err := q.Count(&count).Error
	return count, err
}

func (r *Repository) withAttributes(ctx context.Context, rows []ObjectModel) ([]domain.BusinessObject, error) {
	if len(rows) == 0 {
		return []domain.BusinessObject{}, nil
	}
	ids := make([]string, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.ID)
	}
	attrs := make([]ObjectAttributeModel, 0)
	if err := r.db.WithContext(ctx).Where("object_id IN ?", ids).Find(&attrs).Error; err != nil {
		return nil, err
	}
	byObject := make(map[string]map[string]string, len(rows))
	for _, a := range attrs {
		if byObject[a.ObjectID] == nil {
			byObject[a.ObjectID] = make(map[string]string)
		}
		byObject[a.ObjectID][a.Name] = a.Value
	}

	result := make([]domain.BusinessObject, 0, len(rows))
	for _, m := range rows {
		values := byObject[m.ID]
		if values == nil {
			values = make(map[string]string)
		}
		values[domain.AttributeName] = m.Name
		result = append(result, domain.BusinessObject{
			ID:         m.ID,
			ClassName:  m.ClassName,
			Name:       m.Name,
			ParentID:   m.ParentID,
			Special:    m.Special,
			Attributes: values,
			CreatedAt:  m.CreatedAt,
			UpdatedAt:  m.UpdatedAt,
		})
	}
	return result, nil
}

// upsertAttributes writes attribute values; an empty value clears the attribute. The name lives on the object row.
func upsertAttributes(tx *gorm.DB, objectID string, attrs map[string]string) error {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		if name == domain.AttributeName {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	if err := tx.Where("object_id = ? AND name IN ?", objectID, names).Delete(&ObjectAttributeModel{}).Error; err != nil {
		return err
	}
	rows := make([]ObjectAttributeModel, 0, len(names))
	for _, name := range names {
		if attrs[name] == "" {
			continue
		}
		rows = append(rows, ObjectAttributeModel{ObjectID: objectID, Name: name, Value: attrs[name]})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

func (r *Repository) CreateFile(ctx context.Context, value domain.FileObject) (domain.FileObject, error) {
	m := FileModel{
		ID:          value.ID,
		ObjectClass: value.ObjectClass,
		ObjectID:    value.ObjectID,
		Name:        value.Name,
		Tags:        value.Tags,
		ContentType: value.ContentType,
		Size:        value.Size,
		StorageKey:  value.StorageKey,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.FileObject{}, err
	}
	return toFile(m), nil
}

func (r *Repository) GetFile(ctx context.Context, id string) (domain.FileObject, error) {
	var m FileModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.FileObject{}, notFound(err, "file %s not found", id)
	}
	return toFile(m), nil
}

func (r *Repository) ListFiles(ctx context.Context, objectIDs []string) ([]domain.FileObject, error) {
	if len(objectIDs) == 0 {
		return []domain.FileObject{}, nil
	}
	rows := make([]FileModel, 0)
	if err := r.db.WithContext(ctx).Where("object_id IN ?", objectIDs).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.FileObject, 0, len(rows))
	for _, m := range rows {
		result = append(result, toFile(m))
	}
	return result, nil
}

func (r *Repository) DeleteFile(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&FileModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundf("file %s not found", id)
	}
	return nil
}

func toFile(m FileModel) domain.FileObject {
	return domain.FileObject{
		ID:          m.ID,
		ObjectClass: m.ObjectClass,
		ObjectID:    m.ObjectID,
		Name:        m.Name,
		Tags:        m.Tags,
		ContentType: m.ContentType,
		Size:        m.Size,
		StorageKey:  m.StorageKey,
		CreatedAt:   m.CreatedAt,
	}
}
