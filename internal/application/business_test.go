package application

import (
	"context"
	"testing"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateObjectValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)

	_, err := s.business.CreateObject(ctx, "Router", "Room", st.room.ID, map[string]string{
		domain.AttributeName: "edge-1", "serialNumber": "SN-1", "vendor": "acme",
	}, "")
	require.NoError(t, err)

	tests := []struct {
		name        string
		class       string
		parentClass string
		parentID    string
		attrs       map[string]string
		kind        error
	}{
		{"abstract class", domain.ClassGenericCommunicationsElement, "Room", st.room.ID, map[string]string{"name": "x"}, domain.ErrInvalidArgument},
		{"unknown class", "Toaster", "Room", st.room.ID, map[string]string{"name": "x"}, domain.ErrNotFound},
		{"containment", "Building", "Country", st.country.ID, map[string]string{"name": "x"}, domain.ErrOperationNotPermitted},
		{"root only takes countries", "City", "", "", map[string]string{"name": "x"}, domain.ErrOperationNotPermitted},
		{"missing name", "Router", "Room", st.room.ID, map[string]string{}, domain.ErrInvalidArgument},
		{"unknown attribute", "Router", "Room", st.room.ID, map[string]string{"name": "x", "colour": "red"}, domain.ErrInvalidArgument},
		{"wrong type", "ODF", "Room", st.room.ID, map[string]string{"name": "x", "rackUnits": "many"}, domain.ErrInvalidArgument},
		{"unique across subclasses", "Switch", "Room", st.room.ID, map[string]string{"name": "x", "serialNumber": "SN-1"}, domain.ErrOperationNotPermitted},
		{"wrong parent class", "Router", "Building", st.room.ID, map[string]string{"name": "x"}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.business.CreateObject(ctx, tt.class, tt.parentClass, tt.parentID, tt.attrs, "")
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestCreateSpecialObjectNeedsSpecialRule(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)

	link, err := s.business.CreateSpecialObject(ctx, "OpticalLink", "Room", st.room.ID, map[string]string{"name": "l1", "length": "12.5"}, "")
	require.NoError(t, err)
	assert.True(t, link.Special)

	_, err = s.business.CreateObject(ctx, "OpticalLink", "Room", st.room.ID, map[string]string{"name": "l2"}, "")
	assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)

	children, err := s.business.GetChildren(ctx, "Room", st.room.ID, 0)
	require.NoError(t, err)
	for _, c := range children {
		assert.NotEqual(t, link.ID, c.ID)
	}
	special, err := s.business.GetSpecialChildren(ctx, "Room", st.room.ID, 0)
	require.NoError(t, err)
	require.Len(t, special, 1)
	assert.Equal(t, link.ID, special[0].ID)
}

func TestCreateObjectFromTemplate(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)

	tpl, err := s.app.CreateTemplate(ctx, "Router", "edge router")
	require.NoError(t, err)
	require.NoError(t, s.app.SetTemplateAttributes(ctx, tpl.ID, "", map[string]string{"vendor": "acme"}))
	port, err := s.app.CreateTemplateElement(ctx, tpl.ID, "", "OpticalPort", "ge-0/0/0", false)
	require.NoError(t, err)
	require.NoError(t, s.app.SetTemplateAttributes(ctx, tpl.ID, port.ID, map[string]string{"speed": "10G"}))
	_, err = s.app.CreateTemplateElement(ctx, tpl.ID, port.ID, "VirtualPort", "ge-0/0/0.100", false)
	require.NoError(t, err)

	router, err := s.business.CreateObjectFromTemplate(ctx, "Router", "Room", st.room.ID, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "edge router", router.Name)
	assert.Equal(t, "acme", router.Attributes["vendor"])

	ports, err := s.business.GetChildren(ctx, "Router", router.ID, 0)
	require.NoError(t, err)
	require.Len(t, ports, 1)
	assert.Equal(t, "10G", ports[0].Attributes["speed"])

	logical, err := s.business.GetChildren(ctx, "OpticalPort", ports[0].ID, 0)
	require.NoError(t, err)
	require.Len(t, logical, 1)
	assert.Equal(t, "VirtualPort", logical[0].ClassName)

	named, err := s.business.CreateObject(ctx, "Router", "Room", st.room.ID, map[string]string{"name": "override"}, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "override", named.Name)

	_, err = s.business.CreateObjectFromTemplate(ctx, "Switch", "Room", st.room.ID, tpl.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestUpdateObjectReportsChanges(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)

	updated, changes, err := s.business.UpdateObject(ctx, "Router", st.r1.ID, map[string]string{"name": "core-1a", "vendor": "acme"})
	require.NoError(t, err)
	assert.Equal(t, "core-1a", updated.Name)
	assert.Equal(t, []AttributeChange{
		{Name: "name", OldValue: "core-1", NewValue: "core-1a"},
		{Name: "vendor", OldValue: "", NewValue: "acme"},
	}, changes)

	_, changes, err = s.business.UpdateObject(ctx, "Router", st.r1.ID, map[string]string{"vendor": "acme"})
	require.NoError(t, err)
	assert.Empty(t, changes)

	_, _, err = s.business.UpdateObject(ctx, "Router", st.r1.ID, map[string]string{"name": " "})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, _, err = s.business.UpdateObject(ctx, "Switch", st.r1.ID, map[string]string{"vendor": "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteObjectReleasesOrBlocks(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)
	port := s.create(t, "OpticalPort", st.r1, "p1")
	other := s.create(t, "OpticalPort", st.r2, "p2")

	_, err := s.business.CreateSpecialRelationship(ctx, "OpticalPort", port.ID, "OpticalPort", other.ID, "uses", false)
	require.NoError(t, err)
	file, err := s.business.AttachFile(ctx, "OpticalPort", port.ID, "photo.jpg", "", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)

	_, err = s.business.DeleteObject(ctx, "Router", st.r1.ID, false)
	assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)

	deleted, err := s.business.DeleteObject(ctx, "Router", st.r1.ID, true)
	require.NoError(t, err)
	assert.Equal(t, st.r1.ID, deleted.ID)

	_, err = s.business.GetObject(ctx, "", port.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	exists, err := vfs.Exists(s.fs, "/"+file.StorageKey)
	require.NoError(t, err)
	assert.False(t, exists)

	attrs, err := s.business.GetSpecialAttributes(ctx, "OpticalPort", other.ID)
	require.NoError(t, err)
	assert.Empty(t, attrs)
}

func TestDeleteObjectsSkipsRemovedDescendants(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)
	port := s.create(t, "OpticalPort", st.r1, "p1")

	deleted, err := s.business.DeleteObjects(ctx, map[string]string{st.r1.ID: "Router", port.ID: "OpticalPort"}, false)
	require.NoError(t, err)
	assert.NotEmpty(t, deleted)

	_, err = s.business.DeleteObjects(ctx, map[string]string{"missing": "Router"}, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMoveObjects(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)
	room2 := s.create(t, "Room", st.building, "Hall B")

	moved, err := s.business.MoveObjects(ctx, "Room", room2.ID, map[string]string{st.r1.ID: "Router"})
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, st.room.ID, moved[0].OldParentID)

	parent, err := s.business.GetParent(ctx, "Router", st.r1.ID)
	require.NoError(t, err)
	assert.Equal(t, room2.ID, parent.ID)

	_, err = s.business.MoveObjects(ctx, "Room", room2.ID, map[string]string{st.building.ID: "Building"})
	assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)

	_, err = s.business.MoveObjects(ctx, "City", st.city.ID, map[string]string{st.r2.ID: "Router"})
	assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)

	_, err = s.business.MoveObjects(ctx, "Room", room2.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	link, err := s.business.CreateSpecialObject(ctx, "WireContainer", "Room", st.room.ID, map[string]string{"name": "duct"}, "")
	require.NoError(t, err)
	_, err = s.business.MoveSpecialObjects(ctx, "Building", st.building.ID, map[string]string{link.ID: "WireContainer"})
	require.NoError(t, err)
	_, err = s.business.MoveSpecialObjects(ctx, "", "", map[string]string{link.ID: "WireContainer"})
	assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
}

func TestCopyObjectRecursive(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)

	_, _, err := s.business.UpdateObject(ctx, "Router", st.r1.ID, map[string]string{"serialNumber": "SN-9", "vendor": "acme"})
	require.NoError(t, err)
	port := s.create(t, "OpticalPort", st.r1, "p1")
	s.create(t, "VirtualPort", port, "p1.10")

	flat, err := s.business.CopyObject(ctx, "Room", st.room.ID, "Router", st.r1.ID, false)
	require.NoError(t, err)
	children, err := s.business.GetChildren(ctx, "Router", flat.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, children)
	assert.Equal(t, "acme", flat.Attributes["vendor"])
	assert.Empty(t, flat.Attributes["serialNumber"], "unique values are not copied")

	deepCopy, err := s.business.CopyObject(ctx, "Room", st.room.ID, "Router", st.r1.ID, true)
	require.NoError(t, err)
	ports, err := s.business.GetChildrenOfClassRecursive(ctx, deepCopy.ID, domain.ClassGenericPort, 0)
	require.NoError(t, err)
	assert.Len(t, ports, 2)

	_, err = s.business.CopyObject(ctx, "OpticalPort", port.ID, "Router", st.r1.ID, true)
	assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
}

func TestParentQueries(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)
	p1 := s.create(t, "OpticalPort", st.r1, "p1")
	p2 := s.create(t, "OpticalPort", st.r2, "p2")

	parents, err := s.business.GetParents(ctx, "OpticalPort", p1.ID)
	require.NoError(t, err)
	require.Len(t, parents, 6)
	assert.Equal(t, st.r1.ID, parents[0].ID)
	assert.True(t, parents[5].IsDummyRoot())

	common, err := s.business.GetCommonParent(ctx, "OpticalPort", p1.ID, "OpticalPort", p2.ID)
	require.NoError(t, err)
	assert.Equal(t, st.room.ID, common.ID)

	location, err := s.business.GetFirstParentOfClass(ctx, "OpticalPort", p1.ID, domain.ClassGenericLocation)
	require.NoError(t, err)
	assert.Equal(t, st.room.ID, location.ID)

	_, err = s.business.GetFirstParentOfClass(ctx, "OpticalPort", p1.ID, "Switch")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	other := s.create(t, "Country", domain.BusinessObject{}, "Latvia")
	root, err := s.business.GetCommonParent(ctx, "Country", other.ID, "OpticalPort", p1.ID)
	require.NoError(t, err)
	assert.True(t, root.IsDummyRoot())

	found, err := s.business.SearchObjects(ctx, domain.ClassGenericPort, "p", 0)
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestSpecialRelationships(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)

	_, err := s.business.CreateSpecialRelationship(ctx, "Router", st.r1.ID, "Router", st.r2.ID, "uses", true)
	require.NoError(t, err)

	_, err = s.business.CreateSpecialRelationship(ctx, "Router", st.r2.ID, "Router", st.r1.ID, "uses", true)
	assert.ErrorIs(t, err, domain.ErrOperationNotPermitted, "the pair is already related")

	_, err = s.business.CreateSpecialRelationship(ctx, "Router", st.r1.ID, "ODF", st.odf.ID, "uses", true)
	require.NoError(t, err, "a source may relate to many targets under one name")
	_, err = s.business.CreateSpecialRelationship(ctx, "Router", st.r1.ID, "ODF", st.odf.ID, "uses", false)
	require.NoError(t, err, "non-unique calls may duplicate a pair")
	fromR1, err := s.business.GetSpecialAttribute(ctx, "Router", st.r1.ID, "uses")
	require.NoError(t, err)
	assert.Len(t, fromR1, 3)

	_, err = s.business.CreateSpecialRelationship(ctx, "ODF", st.odf.ID, "Router", st.r2.ID, "uses", true)
	require.NoError(t, err)

	_, err = s.business.CreateSpecialRelationship(ctx, "Router", st.r1.ID, "Router", st.r1.ID, "uses", false)
	assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
	_, err = s.business.CreateSpecialRelationship(ctx, "Router", st.r1.ID, "Router", st.r2.ID, " ", false)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	related, err := s.business.GetSpecialAttribute(ctx, "Router", st.r2.ID, "uses")
	require.NoError(t, err)
	assert.Len(t, related, 2)

	has, err := s.business.HasSpecialRelationship(ctx, "Router", st.r2.ID, "uses", 2)
	require.NoError(t, err)
	assert.True(t, has)

	n, err := s.business.ReleaseSpecialRelationship(ctx, "Router", st.r2.ID, st.r1.ID, "uses")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = s.business.ReleaseSpecialRelationship(ctx, "Router", st.r2.ID, st.r1.ID, "uses")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.business.CreateSpecialRelationship(ctx, "Router", st.r2.ID, "ODF", st.odf.ID, "hasContact", false)
	require.NoError(t, err)
	n, err = s.business.ReleaseRelationships(ctx, "Router", st.r2.ID, ReleasableRelationships)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestListSpecialRelationshipNames(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)

	portNames, err := s.business.ListSpecialRelationshipNames(ctx, "OpticalPort")
	require.NoError(t, err)
	assert.Contains(t, portNames, domain.RelationshipMirror)
	assert.NotContains(t, portNames, domain.RelationshipEndpointA)

	linkNames, err := s.business.ListSpecialRelationshipNames(ctx, "OpticalLink")
	require.NoError(t, err)
	assert.Contains(t, linkNames, domain.RelationshipEndpointB)
	assert.Contains(t, linkNames, "uses")
}

func TestAttachments(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t, WithMaxFileSize(8))
	st := s.site(t)

	file, err := s.business.AttachFile(ctx, "Router", st.r1.ID, "notes.txt", "ops", "", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", file.ContentType)
	assert.EqualValues(t, 5, file.Size)

	files, err := s.business.GetFilesForObject(ctx, "Router", st.r1.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)

	_, content, err := s.business.GetFile(ctx, "Router", st.r1.ID, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	_, _, err = s.business.GetFile(ctx, "Router", st.r2.ID, file.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.business.AttachFile(ctx, "Router", st.r1.ID, "big.bin", "", "", []byte("0123456789"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = s.business.AttachFile(ctx, "Router", st.r1.ID, "empty.bin", "", "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = s.business.DetachFile(ctx, "Router", st.r1.ID, file.ID)
	require.NoError(t, err)
	exists, err := vfs.Exists(s.fs, "/"+file.StorageKey)
	require.NoError(t, err)
	assert.False(t, exists)
}
