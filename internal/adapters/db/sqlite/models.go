package sqlite

import "time"

type ClassModel struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;not null"`
	DisplayName string
	ParentName  string `gorm:"not null;default:'';index"`
	Description string
	Abstract    bool `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ClassModel) TableName() string { return "classes" }

type ClassAttributeModel struct {
	ID        uint   `gorm:"primaryKey"`
	ClassName string `gorm:"not null;index:idx_class_attr,unique"`
	Name      string `gorm:"not null;index:idx_class_attr,unique"`
	Type      string `gorm:"not null;default:'String'"`
	Mandatory bool   `gorm:"not null;default:false"`
	IsUnique  bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (ClassAttributeModel) TableName() string { return "class_attributes" }

type ContainmentRuleModel struct {
	ID          uint   `gorm:"primaryKey"`
	ParentClass string `gorm:"not null;index:idx_containment,unique"`
	ChildClass  string `gorm:"not null;index:idx_containment,unique"`
	Special     bool   `gorm:"not null;default:false;index:idx_containment,unique"`
	CreatedAt   time.Time
}

func (ContainmentRuleModel) TableName() string { return "containment_rules" }

type ObjectModel struct {
	ID        string `gorm:"primaryKey"`
	ClassName string `gorm:"not null;index"`
	Name      string `gorm:"not null;index"`
	ParentID  string `gorm:"not null;default:'-1';index"`
	Special   bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ObjectModel) TableName() string { return "objects" }

type ObjectAttributeModel struct {
	ID       uint   `gorm:"primaryKey"`
	ObjectID string `gorm:"not null;index:idx_object_attr,unique"`
	Name     string `gorm:"not null;index:idx_object_attr,unique"`
	Value    string `gorm:"not null"`
}

func (ObjectAttributeModel) TableName() string { return "object_attributes" }

type SpecialRelationshipModel struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"not null;index"`
	SourceClass string `gorm:"not null"`
	SourceID    string `gorm:"not null;index"`
	TargetClass string `gorm:"not null"`
	TargetID    string `gorm:"not null;index"`
	CreatedAt   time.Time
}

func (SpecialRelationshipModel) TableName() string { return "special_relationships" }

type FileModel struct {
	ID          string `gorm:"primaryKey"`
	ObjectClass string `gorm:"not null"`
	ObjectID    string `gorm:"not null;index"`
	Name        string `gorm:"not null"`
	Tags        string `gorm:"not null;default:''"`
	ContentType string `gorm:"not null;default:''"`
	Size        int64  `gorm:"not null;default:0"`
	StorageKey  string `gorm:"not null"`
	CreatedAt   time.Time
}

func (FileModel) TableName() string { return "files" }

type TemplateModel struct {
	ID        string `gorm:"primaryKey"`
	ClassName string `gorm:"not null;index"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
}

func (TemplateModel) TableName() string { return "templates" }

type TemplateElementModel struct {
	ID              string `gorm:"primaryKey"`
	TemplateID      string `gorm:"not null;index"`
	ParentElementID string `gorm:"not null;default:''"`
	ClassName       string `gorm:"not null"`
	Name            string `gorm:"not null"`
	Special         bool   `gorm:"not null;default:false"`
	CreatedAt       time.Time
}

func (TemplateElementModel) TableName() string { return "template_elements" }

// TemplateAttributeModel holds values of a template (ElementID empty) or of one of its elements.
type TemplateAttributeModel struct {
	ID         uint   `gorm:"primaryKey"`
	TemplateID string `gorm:"not null;index"`
	ElementID  string `gorm:"not null;default:''"`
	Name       string `gorm:"not null"`
	Value      string `gorm:"not null"`
}

func (TemplateAttributeModel) TableName() string { return "template_attributes" }

type ActivityLogModel struct {
	ID               uint `gorm:"primaryKey"`
	ActorUserID      *uint
	Type             string `gorm:"not null;index"`
	ObjectClass      string `gorm:"not null;default:''"`
	ObjectID         string `gorm:"not null;default:'';index"`
	AffectedProperty string `gorm:"not null;default:''"`
	OldValue         string `gorm:"not null;default:''"`
	NewValue         string `gorm:"not null;default:''"`
	Notes            string `gorm:"not null;default:''"`
	CreatedAt        time.Time
}

func (ActivityLogModel) TableName() string { return "activity_log" }

type UserModel struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type SessionModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (SessionModel) TableName() string { return "sessions" }

type APITokenModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	Name      string `gorm:"not null"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (APITokenModel) TableName() string { return "api_tokens" }

type RoleModel struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"not null;uniqueIndex"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
}

func (RoleModel) TableName() string { return "roles" }

type PermissionModel struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
}

func (PermissionModel) TableName() string { return "permissions" }

type UserRoleModel struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;index:idx_user_role,unique"`
	RoleID    uint `gorm:"not null;index:idx_user_role,unique"`
	CreatedAt time.Time
}

func (UserRoleModel) TableName() string { return "user_roles" }

type RolePermissionModel struct {
	ID           uint `gorm:"primaryKey"`
	RoleID       uint `gorm:"not null;index:idx_role_perm,unique"`
	PermissionID uint `gorm:"not null;index:idx_role_perm,unique"`
	CreatedAt    time.Time
}

func (RolePermissionModel) TableName() string { return "role_permissions" }
