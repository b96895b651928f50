package application

import (
	"context"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityLog(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)

	require.NoError(t, s.app.CreateGeneralActivityLogEntry(ctx, nil, domain.ActivityCreateClass, "class Shelter"))
	require.NoError(t, s.app.CreateObjectActivityLogEntry(ctx, nil, "Router", "r1", domain.ActivityUpdateObject, "vendor", "a", "b", ""))
	s.app.LogObjectActivity(ctx, nil, "Router", "r1", domain.ActivityDeleteObject, "", "", "", "core-1 [Router] (r1)")

	err := s.app.CreateGeneralActivityLogEntry(ctx, nil, " ", "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	entries, err := s.app.ListActivity(ctx, domain.ActivityQuery{ObjectID: "r1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	updates, err := s.app.ListActivity(ctx, domain.ActivityQuery{Type: domain.ActivityUpdateObject})
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "vendor", updates[0].AffectedProperty)
	assert.Equal(t, "b", updates[0].NewValue)
}

func TestTemplateValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)

	_, err := s.app.CreateTemplate(ctx, domain.ClassGenericPort, "any port")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = s.app.CreateTemplate(ctx, "Router", "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	tpl, err := s.app.CreateTemplate(ctx, "Router", "edge")
	require.NoError(t, err)

	_, err = s.app.CreateTemplateElement(ctx, tpl.ID, "", "Room", "room", false)
	assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
	_, err = s.app.CreateTemplateElement(ctx, tpl.ID, "missing", "OpticalPort", "p1", false)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = s.app.SetTemplateAttributes(ctx, tpl.ID, "", map[string]string{"colour": "red"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	list, err := s.app.GetTemplatesForClass(ctx, "Router")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	_, err = s.app.GetTemplatesForClass(ctx, "Nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBootstrapAdminAndSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)

	require.NoError(t, s.app.BootstrapAdmin(ctx, "Admin@Inventory.local", "secret"))
	// a second run keeps the existing user
	require.NoError(t, s.app.BootstrapAdmin(ctx, "other@inventory.local", "secret"))
	users, err := s.app.ListUsers(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin@inventory.local", users[0].Email)

	_, _, err = s.app.LoginWithSession(ctx, "admin@inventory.local", "wrong", time.Hour)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, token, err := s.app.LoginWithSession(ctx, "admin@inventory.local", "secret", time.Hour)
	require.NoError(t, err)
	identity, err := s.app.AuthenticateSession(ctx, token)
	require.NoError(t, err)
	assert.True(t, s.app.Can(identity, domain.PermissionInventoryWrite))
	assert.NotNil(t, identity.Actor())

	require.NoError(t, s.app.LogoutSession(ctx, identity, token))
	_, err = s.app.AuthenticateSession(ctx, token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, expired, err := s.app.LoginWithSession(ctx, "admin@inventory.local", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = s.app.AuthenticateSession(ctx, expired)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAPITokensAndRoles(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	require.NoError(t, s.app.BootstrapAdmin(ctx, "admin@inventory.local", "secret"))

	roles, err := s.app.ListRoles(ctx)
	require.NoError(t, err)
	var viewer uint
	for _, r := range roles {
		if r.Key == "viewer" {
			viewer = r.ID
		}
	}
	require.NotZero(t, viewer)

	_, err = s.app.CreateUser(ctx, "viewer@inventory.local", "pw", viewer)
	require.NoError(t, err)

	_, token, err := s.app.LoginWithAPIToken(ctx, "viewer@inventory.local", "pw", "", nil)
	require.NoError(t, err)
	identity, err := s.app.AuthenticateBearerToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, s.app.Can(identity, domain.PermissionInventoryRead))
	assert.False(t, s.app.Can(identity, domain.PermissionInventoryWrite))

	_, err = s.app.AuthenticateBearerToken(ctx, "bogus")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.ErrorIs(t, s.app.AssignRole(ctx, 0, viewer), domain.ErrInvalidArgument)
}
