package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"gorm.io/gorm"
)

func (r *Repository) CreateRelationship(ctx context.Context, value domain.SpecialRelationship) (domain.SpecialRelationship, error) {
	m := SpecialRelationshipModel{
		Name:        value.Name,
		SourceClass: value.SourceClass,
		SourceID:    value.SourceID,
		TargetClass: value.TargetClass,
		TargetID:    value.TargetID,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.SpecialRelationship{}, err
	}
	return toRelationship(m), nil
}

func (r *Repository) relationshipQuery(ctx context.Context, filter domain.RelationshipFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&SpecialRelationshipModel{})
	switch {
	case filter.ObjectID != "" && filter.OtherID != "":
		q = q.Where("((source_id = ? AND target_id = ?) OR (source_id = ? AND target_id = ?))",
			filter.ObjectID, filter.OtherID, filter.OtherID, filter.ObjectID)
	case filter.ObjectID != "":
		q = q.Where("(source_id = ? OR target_id = ?)", filter.ObjectID, filter.ObjectID)
	}
	if len(filter.Names) > 0 {
		q = q.Where("name IN ?", filter.Names)
	}
	return q
}

func (r *Repository) ListRelationships(ctx context.Context, filter domain.RelationshipFilter) ([]domain.SpecialRelationship, error) {
	rows := make([]SpecialRelationshipModel, 0)
	if err := r.relationshipQuery(ctx, filter).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.SpecialRelationship, 0, len(rows))
	for _, m := range rows {
		result = append(result, toRelationship(m))
	}
	return result, nil
}

func (r *Repository) DeleteRelationships(ctx context.Context, filter domain.RelationshipFilter) (int64, error) {
	if filter.ObjectID == "" {
		return 0, domain.InvalidArgumentf("an object id is required to release relationships")
	}
	res := r.relationshipQuery(ctx, filter).Delete(&SpecialRelationshipModel{})
	return res.RowsAffected, res.Error
}

func (r *Repository) CountRelationshipsInvolving(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&SpecialRelationshipModel{}).
		Where("(source_id IN ? OR target_id IN ?)", ids, ids).
		Count(&count).Error
	return count, err
}

func (r *Repository) ListRelationshipNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	if err := r.db.WithContext(ctx).Model(&SpecialRelationshipModel{}).Distinct().Order("name ASC").Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// ListConnectedRelationships returns every relationship with one of names in the component
// reachable from startID, following them in either direction. At most maxObjects objects are
// visited, so the result stays bounded on densely meshed ports.
func (r *Repository) ListConnectedRelationships(ctx context.Context, startID string, names []string, maxObjects int) ([]domain.SpecialRelationship, error) {
	if len(names) == 0 {
		return []domain.SpecialRelationship{}, nil
	}
	placeholders := make([]string, 0, len(names))
	for range names {
		placeholders = append(placeholders, "?")
	}
	in := strings.Join(placeholders, ",")

	args := []any{startID}
	for _, name := range names {
		args = append(args, name)
	}
	args = append(args, maxObjects)
	for _, name := range names {
		args = append(args, name)
	}

	// UNION keeps each object once, which ends the recursion on cycles.
	q := fmt.Sprintf(`
WITH RECURSIVE reach(id) AS (
    SELECT ?
    UNION
    SELECT CASE WHEN rel.source_id = reach.id THEN rel.target_id ELSE rel.source_id END
    FROM reach
    JOIN special_relationships rel
      ON rel.source_id = reach.id OR rel.target_id = reach.id
    WHERE rel.name IN (%s)
    LIMIT ?
)
SELECT * FROM special_relationships
WHERE name IN (%s)
  AND source_id IN (SELECT id FROM reach)
ORDER BY id ASC;
`, in, in)

	rows := make([]SpecialRelationshipModel, 0)
	if err := r.db.WithContext(ctx).Raw(q, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.SpecialRelationship, 0, len(rows))
	for _, m := range rows {
		result = append(result, toRelationship(m))
	}
	return result, nil
}

func toRelationship(m SpecialRelationshipModel) domain.SpecialRelationship {
	return domain.SpecialRelationship{
		ID:          m.ID,
		Name:        m.Name,
		SourceClass: m.SourceClass,
		SourceID:    m.SourceID,
		TargetClass: m.TargetClass,
		TargetID:    m.TargetID,
		CreatedAt:   m.CreatedAt,
	}
}
