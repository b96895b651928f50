package sqlite

import (
	"context"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"gorm.io/gorm"
)

func (r *Repository) CreateClass(ctx context.Context, value domain.ClassMetadata) (domain.ClassMetadata, error) {
	m := ClassModel{
		Name:        value.Name,
		DisplayName: value.DisplayName,
		ParentName:  value.ParentName,
		Description: value.Description,
		Abstract:    value.Abstract,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		for i, attr := range value.Attributes {
			am := ClassAttributeModel{ClassName: m.Name, Name: attr.Name, Type: defaultString(attr.Type, "String"), Mandatory: attr.Mandatory, IsUnique: attr.Unique}
			if err := tx.Create(&am).Error; err != nil {
				return err
			}
			value.Attributes[i].ID = am.ID
			value.Attributes[i].ClassName = m.Name
		}
		return nil
	})
	if err != nil {
		return domain.ClassMetadata{}, err
	}
	value.ID = m.ID
	value.CreatedAt = m.CreatedAt
	value.UpdatedAt = m.UpdatedAt
	return value, nil
}

func (r *Repository) CreateAttribute(ctx context.Context, value domain.AttributeMetadata) (domain.AttributeMetadata, error) {
	m := ClassAttributeModel{ClassName: value.ClassName, Name: value.Name, Type: defaultString(value.Type, "String"), Mandatory: value.Mandatory, IsUnique: value.Unique}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.AttributeMetadata{}, err
	}
	value.ID = m.ID
	return value, nil
}

func (r *Repository) ListClasses(ctx context.Context) ([]domain.ClassMetadata, error) {
	rows := make([]ClassModel, 0)
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	attrs := make([]ClassAttributeModel, 0)
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&attrs).Error; err != nil {
		return nil, err
	}
	byClass := make(map[string][]domain.AttributeMetadata)
	for _, a := range attrs {
		byClass[a.ClassName] = append(byClass[a.ClassName], domain.AttributeMetadata{
			ID:        a.ID,
			ClassName: a.ClassName,
			Name:      a.Name,
			Type:      a.Type,
			Mandatory: a.Mandatory,
			Unique:    a.IsUnique,
		})
	}

	result := make([]domain.ClassMetadata, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.ClassMetadata{
			ID:          m.ID,
			Name:        m.Name,
			DisplayName: m.DisplayName,
			ParentName:  m.ParentName,
			Description: m.Description,
			Abstract:    m.Abstract,
			Attributes:  byClass[m.Name],
			CreatedAt:   m.CreatedAt,
			UpdatedAt:   m.UpdatedAt,
		})
	}
	return result, nil
}

func (r *Repository) CountClasses(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&ClassModel{}).Count(&count).Error
	return count, err
}

func (r *Repository) AddContainmentRule(ctx context.Context, value domain.ContainmentRule) error {
	m := ContainmentRuleModel{ParentClass: value.ParentClass, ChildClass: value.ChildClass, Special: value.Special}
	return r.db.WithContext(ctx).
		Where("parent_class = ? AND child_class = ? AND special = ?", value.ParentClass, value.ChildClass, value.Special).
		FirstOrCreate(&m).Error
}

func (r *Repository) ListContainmentRules(ctx context.Context) ([]domain.ContainmentRule, error) {
	rows := make([]ContainmentRuleModel, 0)
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.ContainmentRule, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.ContainmentRule{ParentClass: m.ParentClass, ChildClass: m.ChildClass, Special: m.Special})
	}
	return result, nil
}

func defaultString(input, fallback string) string {
	if input == "" {
		return fallback
	}
	return input
}
