package domain

import "time"

const (
	DummyRootID    = "-1"
	DummyRootClass = "DummyRoot"
)

const (
	ClassInventoryObject              = "InventoryObject"
	ClassGenericLocation              = "GenericLocation"
	ClassGenericCommunicationsElement = "GenericCommunicationsElement"
	ClassGenericPort                  = "GenericPort"
	ClassGenericPhysicalPort          = "GenericPhysicalPort"
	ClassGenericLogicalPort           = "GenericLogicalPort"
	ClassGenericPhysicalConnection    = "GenericPhysicalConnection"
	ClassGenericPhysicalLink          = "GenericPhysicalLink"
	ClassGenericPhysicalContainer     = "GenericPhysicalContainer"
)

const (
	RelationshipEndpointA      = "endpointA"
	RelationshipEndpointB      = "endpointB"
	RelationshipMirror         = "mirror"
	RelationshipMirrorMultiple = "mirrorMultiple"
)

const AttributeName = "name"

type ClassMetadata struct {
	ID          uint
	Name        string
	DisplayName string
	ParentName  string
	Description string
	Abstract    bool
	Attributes  []AttributeMetadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type AttributeMetadata struct {
	ID        uint
	ClassName string
	Name      string
	Type      string
	Mandatory bool
	Unique    bool
}

type ContainmentRule struct {
	ParentClass string
	ChildClass  string
	Special     bool
}

type BusinessObjectLight struct {
	ID        string `json:"id"`
	ClassName string `json:"class_name"`
	Name      string `json:"name"`
}

func DummyRoot() BusinessObjectLight {
	return BusinessObjectLight{ID: DummyRootID, ClassName: DummyRootClass, Name: DummyRootClass}
}

func (o BusinessObjectLight) IsDummyRoot() bool {
	return o.ID == DummyRootID || o.ClassName == DummyRootClass
}

type BusinessObject struct {
	ID         string            `json:"id"`
	ClassName  string            `json:"class_name"`
	Name       string            `json:"name"`
	ParentID   string            `json:"parent_id"`
	Special    bool              `json:"special"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (o BusinessObject) Light() BusinessObjectLight {
	return BusinessObjectLight{ID: o.ID, ClassName: o.ClassName, Name: o.Name}
}

type SpecialRelationship struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	SourceClass string    `json:"source_class"`
	SourceID    string    `json:"source_id"`
	TargetClass string    `json:"target_class"`
	TargetID    string    `json:"target_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Other returns the end of the relationship that is not id.
func (r SpecialRelationship) Other(id string) BusinessObjectLight {
	if r.SourceID == id {
		return BusinessObjectLight{ID: r.TargetID, ClassName: r.TargetClass}
	}
	return BusinessObjectLight{ID: r.SourceID, ClassName: r.SourceClass}
}

type RelationshipFilter struct {
	ObjectID string
	OtherID  string
	Names    []string
}

type FileObject struct {
	ID          string    `json:"id"`
	ObjectClass string    `json:"object_class"`
	ObjectID    string    `json:"object_id"`
	Name        string    `json:"name"`
	Tags        string    `json:"tags"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	StorageKey  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

type TemplateObject struct {
	ID         string            `json:"id"`
	ClassName  string            `json:"class_name"`
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
	Elements   []TemplateElement `json:"elements"`
	CreatedAt  time.Time         `json:"created_at"`
}

type TemplateElement struct {
	ID              string            `json:"id"`
	TemplateID      string            `json:"template_id"`
	ParentElementID string            `json:"parent_element_id"`
	ClassName       string            `json:"class_name"`
	Name            string            `json:"name"`
	Special         bool              `json:"special"`
	Attributes      map[string]string `json:"attributes"`
}

// PhysicalPath is one walk over physical relationships, starting at the queried object.
type PhysicalPath []BusinessObjectLight

type PhysicalTreeNode struct {
	Object BusinessObjectLight   `json:"object"`
	Next   []BusinessObjectLight `json:"next"`
}

const (
	ActivityCreateObject        = "inventory.object.create"
	ActivityUpdateObject        = "inventory.object.update"
	ActivityDeleteObject        = "inventory.object.delete"
	ActivityMoveObject          = "inventory.object.move"
	ActivityCreateRelationship  = "inventory.relationship.create"
	ActivityReleaseRelationship = "inventory.relationship.release"
	ActivityAttachFile          = "inventory.file.attach"
	ActivityDetachFile          = "inventory.file.detach"
	ActivityCreateClass         = "metadata.class.create"
	ActivityCreateTemplate      = "application.template.create"
	ActivityOpenSession         = "application.session.open"
	ActivityCloseSession        = "application.session.close"
	ActivityCreateUser          = "application.user.create"
)

type ActivityLogEntry struct {
	ID               uint      `json:"id"`
	ActorUserID      *uint     `json:"actor_user_id"`
	ActorEmail       string    `json:"actor_email"`
	Type             string    `json:"type"`
	ObjectClass      string    `json:"object_class"`
	ObjectID         string    `json:"object_id"`
	AffectedProperty string    `json:"affected_property"`
	OldValue         string    `json:"old_value"`
	NewValue         string    `json:"new_value"`
	Notes            string    `json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
}

type ActivityQuery struct {
	ObjectID string
	Type     string
	Limit    int
}

type User struct {
	ID           uint
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AuthSession struct {
	ID        uint
	UserID    uint
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type APIToken struct {
	ID        uint
	UserID    uint
	Name      string
	TokenHash string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

type Identity struct {
	User        User
	Permissions map[string]struct{}
}

// Actor returns the user id for activity entries, nil for anonymous identities.
func (i Identity) Actor() *uint {
	if i.User.ID == 0 {
		return nil
	}
	id := i.User.ID
	return &id
}

type Role struct {
	ID        uint
	Key       string
	Name      string
	CreatedAt time.Time
}

const (
	PermissionInventoryRead  = "inventory.read"
	PermissionInventoryWrite = "inventory.write"
	PermissionMetadataWrite  = "metadata.write"
	PermissionAccessAdmin    = "access.admin"
)
