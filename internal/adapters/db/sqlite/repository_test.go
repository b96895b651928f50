package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "inventory_test.db"))
	require.NoError(t, err)
	require.NoError(t, RunMigrations(ctx, db, zaptest.NewLogger(t)))
	return NewRepository(db)
}

func mustObject(t *testing.T, repo *Repository, id, class, name, parentID string) domain.BusinessObject {
	t.Helper()
	o, err := repo.CreateObject(context.Background(), domain.BusinessObject{ID: id, ClassName: class, Name: name, ParentID: parentID})
	require.NoError(t, err)
	return o
}

func relate(t *testing.T, repo *Repository, name string, a, b domain.BusinessObject) {
	t.Helper()
	_, err := repo.CreateRelationship(context.Background(), domain.SpecialRelationship{
		Name: name, SourceClass: a.ClassName, SourceID: a.ID, TargetClass: b.ClassName, TargetID: b.ID,
	})
	require.NoError(t, err)
}

func relationshipIDs(rels []domain.SpecialRelationship) [][2]string {
	out := make([][2]string, 0, len(rels))
	for _, r := range rels {
		out = append(out, [2]string{r.SourceID, r.TargetID})
	}
	return out
}

func TestListConnectedRelationshipsFollowsComponent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	portA := mustObject(t, repo, "port-a", "OpticalPort", "port-a", "")
	link := mustObject(t, repo, "link-1", "OpticalLink", "link-1", "")
	portB := mustObject(t, repo, "port-b", "OpticalPort", "port-b", "")
	portBOut := mustObject(t, repo, "port-b-out", "OpticalPort", "port-b-out", "")
	other := mustObject(t, repo, "other", "OpticalPort", "other", "")
	island := mustObject(t, repo, "island", "OpticalPort", "island", "")
	islandOut := mustObject(t, repo, "island-out", "OpticalPort", "island-out", "")

	relate(t, repo, domain.RelationshipEndpointA, link, portA)
	relate(t, repo, domain.RelationshipEndpointB, link, portB)
	relate(t, repo, domain.RelationshipMirror, portB, portBOut)
	relate(t, repo, "uses", portBOut, other)
	// closes a cycle back to the start
	relate(t, repo, domain.RelationshipMirror, portBOut, portA)
	relate(t, repo, domain.RelationshipMirror, island, islandOut)

	names := []string{domain.RelationshipEndpointA, domain.RelationshipEndpointB, domain.RelationshipMirror}

	rels, err := repo.ListConnectedRelationships(ctx, portA.ID, names, 100)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{
		{link.ID, portA.ID},
		{link.ID, portB.ID},
		{portB.ID, portBOut.ID},
		{portBOut.ID, portA.ID},
	}, relationshipIDs(rels), "other is only reachable through uses and the island is not connected")

	fromMiddle, err := repo.ListConnectedRelationships(ctx, portBOut.ID, names, 100)
	require.NoError(t, err)
	assert.Len(t, fromMiddle, 4)

	capped, err := repo.ListConnectedRelationships(ctx, portA.ID, names, 1)
	require.NoError(t, err)
	assert.Less(t, len(capped), 4)

	none, err := repo.ListConnectedRelationships(ctx, portA.ID, []string{"contains"}, 100)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListConnectedRelationshipsOnMesh(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	const n = 16
	var ins, outs []domain.BusinessObject
	for i := 0; i < n; i++ {
		ins = append(ins, mustObject(t, repo, fmt.Sprintf("in-%02d", i), "OpticalPort", fmt.Sprintf("in-%02d", i), ""))
		outs = append(outs, mustObject(t, repo, fmt.Sprintf("out-%02d", i), "OpticalPort", fmt.Sprintf("out-%02d", i), ""))
	}
	for _, in := range ins {
		for _, out := range outs {
			relate(t, repo, domain.RelationshipMirrorMultiple, in, out)
		}
	}

	rels, err := repo.ListConnectedRelationships(ctx, ins[0].ID, []string{domain.RelationshipMirrorMultiple}, 1000)
	require.NoError(t, err)
	assert.Len(t, rels, n*n, "each relationship is returned once")
}

func TestContainmentQueries(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	city := mustObject(t, repo, "city", "City", "Vilnius", "")
	building := mustObject(t, repo, "building", "Building", "DC-1", city.ID)
	rack := mustObject(t, repo, "rack", "Rack", "R-01", building.ID)
	router := mustObject(t, repo, "router", "Router", "core-1", rack.ID)
	port := mustObject(t, repo, "port", "OpticalPort", "ge-0/0/1", router.ID)

	ancestors, err := repo.ListAncestors(ctx, port.ID)
	require.NoError(t, err)
	require.Len(t, ancestors, 4)
	assert.Equal(t, router.ID, ancestors[0].ID)
	assert.Equal(t, city.ID, ancestors[3].ID)

	subtree, err := repo.ListSubtreeIDs(ctx, building.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{building.ID, rack.ID, router.ID, port.ID}, subtree)

	ports, err := repo.ListDescendantsOfClasses(ctx, city.ID, []string{"OpticalPort", "ElectricalPort"}, 100)
	require.NoError(t, err)
	require.Len(t, ports, 1)
	assert.Equal(t, "ge-0/0/1", ports[0].Name)

	roots, err := repo.ListChildren(ctx, "", nil, 100)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, city.ID, roots[0].ID)
}

func TestDeleteObjectsRemovesRelationshipsAndAttributes(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	a, err := repo.CreateObject(ctx, domain.BusinessObject{ID: "a", ClassName: "OpticalPort", Name: "a", Attributes: map[string]string{"serial": "S-1"}})
	require.NoError(t, err)
	assert.Equal(t, "S-1", a.Attributes["serial"])
	b := mustObject(t, repo, "b", "OpticalPort", "b", "")
	relate(t, repo, domain.RelationshipMirror, a, b)

	count, err := repo.CountRelationshipsInvolving(ctx, []string{a.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	require.NoError(t, repo.DeleteObjects(ctx, []string{a.ID}))

	_, err = repo.GetObject(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rels, err := repo.ListRelationships(ctx, domain.RelationshipFilter{ObjectID: b.ID})
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestUpdateObjectClearsEmptyAttributes(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.CreateObject(ctx, domain.BusinessObject{ID: "r1", ClassName: "Router", Name: "edge", Attributes: map[string]string{"vendor": "acme", "serial": "X"}})
	require.NoError(t, err)

	updated, err := repo.UpdateObject(ctx, "r1", "edge-2", map[string]string{"vendor": "", "serial": "Y"})
	require.NoError(t, err)
	assert.Equal(t, "edge-2", updated.Name)
	assert.Equal(t, "Y", updated.Attributes["serial"])
	_, hasVendor := updated.Attributes["vendor"]
	assert.False(t, hasVendor)

	_, err = repo.UpdateObject(ctx, "missing", "x", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTemplatesRoundTripElements(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.CreateTemplate(ctx, domain.TemplateObject{ID: "t1", ClassName: "Router", Name: "edge router", Attributes: map[string]string{"vendor": "acme"}})
	require.NoError(t, err)
	_, err = repo.CreateTemplateElement(ctx, domain.TemplateElement{ID: "e1", TemplateID: "t1", ClassName: "OpticalPort", Name: "port-1", Attributes: map[string]string{"speed": "10G"}})
	require.NoError(t, err)

	tpl, err := repo.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "acme", tpl.Attributes["vendor"])
	require.Len(t, tpl.Elements, 1)
	assert.Equal(t, "10G", tpl.Elements[0].Attributes["speed"])

	list, err := repo.ListTemplates(ctx, "Router")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSetTemplateAttributesReplacesValues(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.CreateTemplate(ctx, domain.TemplateObject{ID: "t1", ClassName: "Router", Name: "edge", Attributes: map[string]string{"vendor": "acme", "model": "x1"}})
	require.NoError(t, err)

	require.NoError(t, repo.SetTemplateAttributes(ctx, "t1", "", map[string]string{"vendor": "globex", "model": ""}))
	tpl, err := repo.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"vendor": "globex"}, tpl.Attributes)

	err = repo.SetTemplateAttributes(ctx, "missing", "", map[string]string{"vendor": "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCountObjectsWithAttribute(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.CreateObject(ctx, domain.BusinessObject{ID: "r1", ClassName: "Router", Name: "edge-1", Attributes: map[string]string{"serialNumber": "SN-1"}})
	require.NoError(t, err)
	_, err = repo.CreateObject(ctx, domain.BusinessObject{ID: "s1", ClassName: "Switch", Name: "edge-1", Attributes: map[string]string{"serialNumber": "SN-1"}})
	require.NoError(t, err)

	count, err := repo.CountObjectsWithAttribute(ctx, []string{"Router"}, "serialNumber", "SN-1", "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	count, err = repo.CountObjectsWithAttribute(ctx, []string{"Router", "Switch"}, "serialNumber", "SN-1", "r1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	count, err = repo.CountObjectsWithAttribute(ctx, nil, domain.AttributeName, "edge-1", "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}
