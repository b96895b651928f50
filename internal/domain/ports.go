package domain

import "context"

type MetadataRepository interface {
	CreateClass(ctx context.Context, value ClassMetadata) (ClassMetadata, error)
	ListClasses(ctx context.Context) ([]ClassMetadata, error)
	CountClasses(ctx context.Context) (int64, error)
	CreateAttribute(ctx context.Context, value AttributeMetadata) (AttributeMetadata, error)
	AddContainmentRule(ctx context.Context, value ContainmentRule) error
	ListContainmentRules(ctx context.Context) ([]ContainmentRule, error)
}

type BusinessRepository interface {
	CreateObject(ctx context.Context, value BusinessObject) (BusinessObject, error)
	GetObject(ctx context.Context, id string) (BusinessObject, error)
	GetObjects(ctx context.Context, ids []string) ([]BusinessObject, error)
	UpdateObject(ctx context.Context, id string, name string, attributes map[string]string) (BusinessObject, error)
	SetParent(ctx context.Context, id, parentID string, special bool) error
	DeleteObjects(ctx context.Context, ids []string) error
	ListChildren(ctx context.Context, parentID string, special *bool, limit int) ([]BusinessObject, error)
	ListSubtreeIDs(ctx context.Context, id string) ([]string, error)
	ListAncestors(ctx context.Context, id string) ([]BusinessObject, error)
	ListDescendantsOfClasses(ctx context.Context, id string, classNames []string, limit int) ([]BusinessObject, error)
	SearchObjects(ctx context.Context, classNames []string, query string, limit int) ([]BusinessObject, error)
	CountObjectsWithAttribute(ctx context.Context, classNames []string, name, value, excludeID string) (int64, error)

	CreateRelationship(ctx context.Context, value SpecialRelationship) (SpecialRelationship, error)
	ListRelationships(ctx context.Context, filter RelationshipFilter) ([]SpecialRelationship, error)
	DeleteRelationships(ctx context.Context, filter RelationshipFilter) (int64, error)
	CountRelationshipsInvolving(ctx context.Context, ids []string) (int64, error)
	ListRelationshipNames(ctx context.Context) ([]string, error)
	ListConnectedRelationships(ctx context.Context, startID string, names []string, maxObjects int) ([]SpecialRelationship, error)

	CreateFile(ctx context.Context, value FileObject) (FileObject, error)
	GetFile(ctx context.Context, id string) (FileObject, error)
	ListFiles(ctx context.Context, objectIDs []string) ([]FileObject, error)
	DeleteFile(ctx context.Context, id string) error
}

type ApplicationRepository interface {
	CreateActivity(ctx context.Context, value ActivityLogEntry) error
	ListActivity(ctx context.Context, query ActivityQuery) ([]ActivityLogEntry, error)

	CreateTemplate(ctx context.Context, value TemplateObject) (TemplateObject, error)
	CreateTemplateElement(ctx context.Context, value TemplateElement) (TemplateElement, error)
	SetTemplateAttributes(ctx context.Context, templateID, elementID string, attributes map[string]string) error
	GetTemplate(ctx context.Context, id string) (TemplateObject, error)
	ListTemplates(ctx context.Context, className string) ([]TemplateObject, error)

	CreateUser(ctx context.Context, value User) (User, error)
	CountUsers(ctx context.Context) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id uint) (User, error)
	ListUsers(ctx context.Context, query string, limit int) ([]User, error)
	CreateSession(ctx context.Context, value AuthSession) (AuthSession, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (AuthSession, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	CreateAPIToken(ctx context.Context, value APIToken) (APIToken, error)
	GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (APIToken, error)
	CreateRoleIfMissing(ctx context.Context, key, name string) (uint, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreatePermissionIfMissing(ctx context.Context, key string) (uint, error)
	GrantPermissionToRole(ctx context.Context, roleID, permissionID uint) error
	AssignRoleToUser(ctx context.Context, userID, roleID uint) error
	GetPermissionsByUserID(ctx context.Context, userID uint) ([]string, error)
}

// BlobStore keeps attachment payloads outside the relational store.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
