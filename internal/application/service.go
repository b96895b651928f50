package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Permissions lists every permission key checked by the adapters and actions.
var Permissions = []string{
	domain.PermissionInventoryRead,
	domain.PermissionInventoryWrite,
	domain.PermissionMetadataWrite,
	domain.PermissionAccessAdmin,
}

// defaultRoles are created next to the bootstrap admin.
var defaultRoles = []struct {
	key, name   string
	permissions []string
}{
	{key: "admin", name: "Administrator", permissions: []string{"*"}},
	{key: "operator", name: "Operator", permissions: []string{domain.PermissionInventoryRead, domain.PermissionInventoryWrite}},
	{key: "viewer", name: "Viewer", permissions: []string{domain.PermissionInventoryRead}},
}

// ApplicationService covers activity logging, templates and access control.
type ApplicationService struct {
	repo domain.ApplicationRepository
	meta *MetadataService
	log  *zap.Logger
}

func NewApplicationService(repo domain.ApplicationRepository, meta *MetadataService, log *zap.Logger) *ApplicationService {
	return &ApplicationService{repo: repo, meta: meta, log: log.Named("application")}
}

func (s *ApplicationService) CreateGeneralActivityLogEntry(ctx context.Context, actor *uint, activityType, notes string) error {
	if strings.TrimSpace(activityType) == "" {
		return domain.InvalidArgumentf("activity type is required")
	}
	return s.repo.CreateActivity(ctx, domain.ActivityLogEntry{ActorUserID: actor, Type: activityType, Notes: notes})
}

func (s *ApplicationService) CreateObjectActivityLogEntry(ctx context.Context, actor *uint, className, id, activityType, property, oldValue, newValue, notes string) error {
	if strings.TrimSpace(activityType) == "" {
		return domain.InvalidArgumentf("activity type is required")
	}
	return s.repo.CreateActivity(ctx, domain.ActivityLogEntry{
		ActorUserID:      actor,
		Type:             activityType,
		ObjectClass:      className,
		ObjectID:         id,
		AffectedProperty: property,
		OldValue:         oldValue,
		NewValue:         newValue,
		Notes:            notes,
	})
}

// LogObjectActivity records an entry and only logs a failure. The change it describes has
// already been committed and must not be reported as failed.
func (s *ApplicationService) LogObjectActivity(ctx context.Context, actor *uint, className, id, activityType, property, oldValue, newValue, notes string) {
	if err := s.CreateObjectActivityLogEntry(ctx, actor, className, id, activityType, property, oldValue, newValue, notes); err != nil {
		s.log.Warn("activity entry lost", zap.String("type", activityType), zap.String("object_id", id), zap.Error(err))
	}
}

func (s *ApplicationService) ListActivity(ctx context.Context, query domain.ActivityQuery) ([]domain.ActivityLogEntry, error) {
	if query.Limit <= 0 {
		query.Limit = 100
	}
	if query.Limit > 1000 {
		query.Limit = 1000
	}
	return s.repo.ListActivity(ctx, query)
}

func (s *ApplicationService) CreateTemplate(ctx context.Context, className, name string) (domain.TemplateObject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.TemplateObject{}, domain.InvalidArgumentf("template name is required")
	}
	class, err := s.meta.GetClass(className)
	if err != nil {
		return domain.TemplateObject{}, err
	}
	if class.Abstract {
		return domain.TemplateObject{}, domain.InvalidArgumentf("templates can not be created for abstract class %s", className)
	}
	return s.repo.CreateTemplate(ctx, domain.TemplateObject{ID: uuid.NewString(), ClassName: className, Name: name})
}

func (s *ApplicationService) CreateTemplateElement(ctx context.Context, templateID, parentElementID, className, name string, special bool) (domain.TemplateElement, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.TemplateElement{}, domain.InvalidArgumentf("template element name is required")
	}
	tpl, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return domain.TemplateElement{}, err
	}
	parentClass := tpl.ClassName
	if parentElementID != "" {
		parent, ok := findElement(tpl, parentElementID)
		if !ok {
			return domain.TemplateElement{}, domain.NotFoundf("template element %s not found", parentElementID)
		}
		parentClass = parent.ClassName
	}
	class, err := s.meta.GetClass(className)
	if err != nil {
		return domain.TemplateElement{}, err
	}
	if class.Abstract {
		return domain.TemplateElement{}, domain.InvalidArgumentf("abstract class %s can not be instantiated", className)
	}
	if !s.meta.CanContain(parentClass, className, special) {
		return domain.TemplateElement{}, domain.NotPermittedf("%s can not be a child of %s", className, parentClass)
	}
	return s.repo.CreateTemplateElement(ctx, domain.TemplateElement{
		ID:              uuid.NewString(),
		TemplateID:      tpl.ID,
		ParentElementID: parentElementID,
		ClassName:       className,
		Name:            name,
		Special:         special,
	})
}

// SetTemplateAttributes sets values on the template itself (elementID "") or on one of its elements.
func (s *ApplicationService) SetTemplateAttributes(ctx context.Context, templateID, elementID string, attributes map[string]string) error {
	tpl, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	className := tpl.ClassName
	if elementID != "" {
		e, ok := findElement(tpl, elementID)
		if !ok {
			return domain.NotFoundf("template element %s not found", elementID)
		}
		className = e.ClassName
	}
	declared := s.meta.Attributes(className)
	for name, value := range attributes {
		if name == domain.AttributeName {
			continue
		}
		attr, ok := declared[name]
		if !ok {
			return domain.InvalidArgumentf("attribute %s is not defined for class %s", name, className)
		}
		if value != "" {
			if err := checkAttributeType(attr, value); err != nil {
				return err
			}
		}
	}
	return s.repo.SetTemplateAttributes(ctx, tpl.ID, elementID, attributes)
}

func (s *ApplicationService) GetTemplatesForClass(ctx context.Context, className string) ([]domain.TemplateObject, error) {
	if _, err := s.meta.GetClass(className); err != nil {
		return nil, err
	}
	return s.repo.ListTemplates(ctx, className)
}

func (s *ApplicationService) GetTemplate(ctx context.Context, templateID string) (domain.TemplateObject, error) {
	return s.repo.GetTemplate(ctx, templateID)
}

func findElement(tpl domain.TemplateObject, id string) (domain.TemplateElement, bool) {
	for _, e := range tpl.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return domain.TemplateElement{}, false
}

// BootstrapAdmin creates the default roles and, when no user exists yet, an administrator.
func (s *ApplicationService) BootstrapAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return domain.InvalidArgumentf("bootstrap admin email and password are required")
	}

	roleIDs := make(map[string]uint, len(defaultRoles))
	for _, role := range defaultRoles {
		roleID, err := s.repo.CreateRoleIfMissing(ctx, role.key, role.name)
		if err != nil {
			return err
		}
		roleIDs[role.key] = roleID
		for _, key := range role.permissions {
			permID, err := s.repo.CreatePermissionIfMissing(ctx, key)
			if err != nil {
				return err
			}
			if err := s.repo.GrantPermissionToRole(ctx, roleID, permID); err != nil {
				return err
			}
		}
	}

	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	u, err := s.CreateUser(ctx, email, password, roleIDs["admin"])
	if err != nil {
		return err
	}
	s.log.Info("bootstrap admin created", zap.String("email", u.Email))
	return s.CreateGeneralActivityLogEntry(ctx, &u.ID, domain.ActivityCreateUser, "initial admin created")
}

func (s *ApplicationService) LoginWithSession(ctx context.Context, email, password string, ttl time.Duration) (domain.User, string, error) {
	u, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.User{}, "", err
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return domain.User{}, "", err
	}
	_, err = s.repo.CreateSession(ctx, domain.AuthSession{
		UserID:    u.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().UTC().Add(ttl),
	})
	if err != nil {
		return domain.User{}, "", err
	}

	_ = s.CreateGeneralActivityLogEntry(ctx, &u.ID, domain.ActivityOpenSession, "session login")
	return u, plain, nil
}

func (s *ApplicationService) LoginWithAPIToken(ctx context.Context, email, password, tokenName string, ttl *time.Duration) (domain.User, string, error) {
	u, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.User{}, "", err
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return domain.User{}, "", err
	}

	var expiresAt *time.Time
	if ttl != nil {
		t := time.Now().UTC().Add(*ttl)
		expiresAt = &t
	}
	_, err = s.repo.CreateAPIToken(ctx, domain.APIToken{
		UserID:    u.ID,
		Name:      defaultString(tokenName, "cli"),
		TokenHash: hash,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return domain.User{}, "", err
	}

	_ = s.CreateGeneralActivityLogEntry(ctx, &u.ID, domain.ActivityOpenSession, "api token issued: "+defaultString(tokenName, "cli"))
	return u, plain, nil
}

func (s *ApplicationService) AuthenticateSession(ctx context.Context, token string) (domain.Identity, error) {
	hash := hashToken(token)
	session, err := s.repo.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: unknown session", domain.ErrUnauthorized)
	}
	if session.ExpiresAt.Before(time.Now().UTC()) {
		_ = s.repo.DeleteSessionByTokenHash(ctx, hash)
		return domain.Identity{}, fmt.Errorf("%w: session expired", domain.ErrUnauthorized)
	}
	return s.identityByUserID(ctx, session.UserID)
}

func (s *ApplicationService) AuthenticateBearerToken(ctx context.Context, token string) (domain.Identity, error) {
	apit, err := s.repo.GetAPITokenByTokenHash(ctx, hashToken(token))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: unknown token", domain.ErrUnauthorized)
	}
	if apit.ExpiresAt != nil && apit.ExpiresAt.Before(time.Now().UTC()) {
		return domain.Identity{}, fmt.Errorf("%w: token expired", domain.ErrUnauthorized)
	}
	return s.identityByUserID(ctx, apit.UserID)
}

func (s *ApplicationService) LogoutSession(ctx context.Context, identity domain.Identity, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	if err := s.repo.DeleteSessionByTokenHash(ctx, hashToken(token)); err != nil {
		return err
	}
	_ = s.CreateGeneralActivityLogEntry(ctx, identity.Actor(), domain.ActivityCloseSession, "session logout")
	return nil
}

func (s *ApplicationService) Can(identity domain.Identity, permission string) bool {
	if _, ok := identity.Permissions["*"]; ok {
		return true
	}
	_, ok := identity.Permissions[permission]
	return ok
}

func (s *ApplicationService) CreateUser(ctx context.Context, email, password string, roleID uint) (domain.User, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return domain.User{}, domain.InvalidArgumentf("email and password are required")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.repo.CreateUser(ctx, domain.User{Email: strings.ToLower(strings.TrimSpace(email)), PasswordHash: hash})
	if err != nil {
		return domain.User{}, err
	}
	if roleID != 0 {
		if err := s.repo.AssignRoleToUser(ctx, u.ID, roleID); err != nil {
			return domain.User{}, err
		}
	}
	return u, nil
}

func (s *ApplicationService) ListUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	return s.repo.ListUsers(ctx, query, limit)
}

func (s *ApplicationService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.repo.ListRoles(ctx)
}

func (s *ApplicationService) AssignRole(ctx context.Context, userID, roleID uint) error {
	if userID == 0 || roleID == 0 {
		return domain.InvalidArgumentf("user_id and role_id are required")
	}
	return s.repo.AssignRoleToUser(ctx, userID, roleID)
}

func (s *ApplicationService) authenticateEmailPassword(ctx context.Context, email, password string) (domain.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
		}
		return domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	return u, nil
}

func (s *ApplicationService) identityByUserID(ctx context.Context, userID uint) (domain.Identity, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: unknown user", domain.ErrUnauthorized)
	}
	permList, err := s.repo.GetPermissionsByUserID(ctx, userID)
	if err != nil {
		return domain.Identity{}, err
	}
	permMap := make(map[string]struct{}, len(permList))
	for _, p := range permList {
		permMap[p] = struct{}{}
	}
	return domain.Identity{User: u, Permissions: permMap}, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func newTokenPair() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plain := base64.RawURLEncoding.EncodeToString(raw)
	return plain, hashToken(plain), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:])
}
