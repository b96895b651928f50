package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

// Repository implements the metadata, business and application ports over one sqlite database.
type Repository struct {
	db *gorm.DB
}

var (
	_ domain.MetadataRepository    = (*Repository)(nil)
	_ domain.BusinessRepository    = (*Repository)(nil)
	_ domain.ApplicationRepository = (*Repository)(nil)
)

// Open connects to the sqlite database at path. gorm options such as a logger may be passed.
func Open(path string, opts ...gorm.Option) (*gorm.DB, error) {
	dsn := path
	if path != ":memory:" && !strings.Contains(path, "?") {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	return gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}, append([]gorm.Option{&gorm.Config{}}, opts...)...)
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFoundf(format, args...)
	}
	return err
}

func (r *Repository) CreateActivity(ctx context.Context, value domain.ActivityLogEntry) error {
	m := ActivityLogModel{
		ActorUserID:      value.ActorUserID,
		Type:             value.Type,
		ObjectClass:      value.ObjectClass,
		ObjectID:         value.ObjectID,
		AffectedProperty: value.AffectedProperty,
		OldValue:         value.OldValue,
		NewValue:         value.NewValue,
		Notes:            value.Notes,
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *Repository) ListActivity(ctx context.Context, query domain.ActivityQuery) ([]domain.ActivityLogEntry, error) {
	type row struct {
		ActivityLogModel
		ActorEmail string
	}
	q := r.db.WithContext(ctx).Table("activity_log a").
		Select("a.*, COALESCE(u.email, '') AS actor_email").
		Joins("LEFT JOIN users u ON u.id = a.actor_user_id")
	if query.ObjectID != "" {
		q = q.Where("a.object_id = ?", query.ObjectID)
	}
	if query.Type != "" {
		q = q.Where("a.type = ?", query.Type)
	}
	rows := make([]row, 0)
	if err := q.Order("a.id DESC").Limit(query.Limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.ActivityLogEntry, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.ActivityLogEntry{
			ID:               m.ID,
			ActorUserID:      m.ActorUserID,
			ActorEmail:       m.ActorEmail,
			Type:             m.Type,
			ObjectClass:      m.ObjectClass,
			ObjectID:         m.ObjectID,
			AffectedProperty: m.AffectedProperty,
			OldValue:         m.OldValue,
			NewValue:         m.NewValue,
			Notes:            m.Notes,
			CreatedAt:        m.CreatedAt,
		})
	}
	return result, nil
}

func (r *Repository) CreateUser(ctx context.Context, value domain.User) (domain.User, error) {
	m := UserModel{Email: strings.ToLower(strings.TrimSpace(value.Email)), PasswordHash: value.PasswordHash}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.User{}, err
	}
	return toUser(m), nil
}

func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error
	return count, err
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&m).Error; err != nil {
		return domain.User{}, notFound(err, "user %s not found", email)
	}
	return toUser(m), nil
}

func (r *Repository) GetUserByID(ctx context.Context, id uint) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.User{}, notFound(err, "user %d not found", id)
	}
	return toUser(m), nil
}

func (r *Repository) ListUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	q := r.db.WithContext(ctx).Model(&UserModel{})
	if strings.TrimSpace(query) != "" {
		q = q.Where("email LIKE ?", "%"+strings.TrimSpace(query)+"%")
	}
	rows := make([]UserModel, 0)
	if err := q.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.User, 0, len(rows))
	for _, m := range rows {
		result = append(result, toUser(m))
	}
	return result, nil
}

func toUser(m UserModel) domain.User {
	return domain.User{ID: m.ID, Email: m.Email, PasswordHash: m.PasswordHash, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func (r *Repository) CreateSession(ctx context.Context, value domain.AuthSession) (domain.AuthSession, error) {
	m := SessionModel{UserID: value.UserID, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.AuthSession{}, err
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *Repository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.AuthSession, error) {
	var m SessionModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.AuthSession{}, notFound(err, "session not found")
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *Repository) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	return r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&SessionModel{}).Error
}

func (r *Repository) CreateAPIToken(ctx context.Context, value domain.APIToken) (domain.APIToken, error) {
	m := APITokenModel{UserID: value.UserID, Name: value.Name, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.APIToken{}, err
	}
	return domain.APIToken{ID: m.ID, UserID: m.UserID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *Repository) GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (domain.APIToken, error) {
	var m APITokenModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.APIToken{}, notFound(err, "api token not found")
	}
	return domain.APIToken{ID: m.ID, UserID: m.UserID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *Repository) CreateRoleIfMissing(ctx context.Context, key, name string) (uint, error) {
	m := RoleModel{Key: key, Name: name}
	if err := r.db.WithContext(ctx).Where("key = ?", key).FirstOrCreate(&m).Error; err != nil {
		return 0, err
	}
	return m.ID, nil
}

func (r *Repository) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows := make([]RoleModel, 0)
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Role, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.Role{ID: m.ID, Key: m.Key, Name: m.Name, CreatedAt: m.CreatedAt})
	}
	return result, nil
}

func (r *Repository) CreatePermissionIfMissing(ctx context.Context, key string) (uint, error) {
	m := PermissionModel{Key: key}
	if err := r.db.WithContext(ctx).Where("key = ?", key).FirstOrCreate(&m).Error; err != nil {
		return 0, err
	}
	return m.ID, nil
}

func (r *Repository) GrantPermissionToRole(ctx context.Context, roleID, permissionID uint) error {
	m := RolePermissionModel{RoleID: roleID, PermissionID: permissionID}
	return r.db.WithContext(ctx).Where("role_id = ? AND permission_id = ?", roleID, permissionID).FirstOrCreate(&m).Error
}

func (r *Repository) AssignRoleToUser(ctx context.Context, userID, roleID uint) error {
	m := UserRoleModel{UserID: userID, RoleID: roleID}
	return r.db.WithContext(ctx).Where("user_id = ? AND role_id = ?", userID, roleID).FirstOrCreate(&m).Error
}

func (r *Repository) GetPermissionsByUserID(ctx context.Context, userID uint) ([]string, error) {
	keys := make([]string, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT DISTINCT p.key
FROM permissions p
JOIN role_permissions rp ON rp.permission_id = p.id
JOIN user_roles ur ON ur.role_id = rp.role_id
WHERE ur.user_id = ?
`, userID).Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *Repository) CreateTemplate(ctx context.Context, value domain.TemplateObject) (domain.TemplateObject, error) {
	m := TemplateModel{ID: value.ID, ClassName: value.ClassName, Name: value.Name}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return insertTemplateAttributes(tx, value.ID, "", value.Attributes)
	})
	if err != nil {
		return domain.TemplateObject{}, err
	}
	value.CreatedAt = m.CreatedAt
	return value, nil
}

func (r *Repository) CreateTemplateElement(ctx context.Context, value domain.TemplateElement) (domain.TemplateElement, error) {
	m := TemplateElementModel{
		ID:              value.ID,
		TemplateID:      value.TemplateID,
		ParentElementID: value.ParentElementID,
		ClassName:       value.ClassName,
		Name:            value.Name,
		Special:         value.Special,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return insertTemplateAttributes(tx, value.TemplateID, value.ID, value.Attributes)
	})
	if err != nil {
		return domain.TemplateElement{}, err
	}
	return value, nil
}

func insertTemplateAttributes(tx *gorm.DB, templateID, elementID string, attrs map[string]string) error {
	if len(attrs) == 0 {
		return nil
	}
	rows := make([]TemplateAttributeModel, 0, len(attrs))
	for name, value := range attrs {
		rows = append(rows, TemplateAttributeModel{TemplateID: templateID, ElementID: elementID, Name: name, Value: value})
	}
	return tx.Create(&rows).Error
}

// SetTemplateAttributes replaces the named attribute values of a template (elementID "") or one of its elements.
// Empty values remove the attribute.
func (r *Repository) SetTemplateAttributes(ctx context.Context, templateID, elementID string, attributes map[string]string) error {
	names := make([]string, 0, len(attributes))
	values := make(map[string]string, len(attributes))
	for name, value := range attributes {
		names = append(names, name)
		if value != "" {
			values[name] = value
		}
	}
	if len(names) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&TemplateModel{}).Where("id = ?", templateID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.NotFoundf("template %s not found", templateID)
		}
		if err := tx.Where("template_id = ? AND element_id = ? AND name IN ?", templateID, elementID, names).
			Delete(&TemplateAttributeModel{}).Error; err != nil {
			return err
		}
		return insertTemplateAttributes(tx, templateID, elementID, values)
	})
}

func (r *Repository) GetTemplate(ctx context.Context, id string) (domain.TemplateObject, error) {
	var m TemplateModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.TemplateObject{}, notFound(err, "template %s not found", id)
	}

	attrs := make([]TemplateAttributeModel, 0)
	if err := r.db.WithContext(ctx).Where("template_id = ?", id).Find(&attrs).Error; err != nil {
		return domain.TemplateObject{}, err
	}
	elements := make([]TemplateElementModel, 0)
	if err := r.db.WithContext(ctx).Where("template_id = ?", id).Order("rowid ASC").Find(&elements).Error; err != nil {
		return domain.TemplateObject{}, err
	}

	byElement := make(map[string]map[string]string)
	for _, a := range attrs {
		if byElement[a.ElementID] == nil {
			byElement[a.ElementID] = make(map[string]string)
		}
		byElement[a.ElementID][a.Name] = a.Value
	}

	out := domain.TemplateObject{ID: m.ID, ClassName: m.ClassName, Name: m.Name, Attributes: byElement[""], CreatedAt: m.CreatedAt}
	if out.Attributes == nil {
		out.Attributes = map[string]string{}
	}
	for _, e := range elements {
		out.Elements = append(out.Elements, domain.TemplateElement{
			ID:              e.ID,
			TemplateID:      e.TemplateID,
			ParentElementID: e.ParentElementID,
			ClassName:       e.ClassName,
			Name:            e.Name,
			Special:         e.Special,
			Attributes:      byElement[e.ID],
		})
	}
	return out, nil
}

func (r *Repository) ListTemplates(ctx context.Context, className string) ([]domain.TemplateObject, error) {
	q := r.db.WithContext(ctx).Model(&TemplateModel{})
	if className != "" {
		q = q.Where("class_name = ?", className)
	}
	rows := make([]TemplateModel, 0)
	if err := q.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.TemplateObject, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.TemplateObject{ID: m.ID, ClassName: m.ClassName, Name: m.Name, CreatedAt: m.CreatedAt})
	}
	return result, nil
}

func nowUTC() time.Time { return time.Now().UTC() }
