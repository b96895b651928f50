package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(objects []domain.BusinessObjectLight) []string {
	out := make([]string, 0, len(objects))
	for _, o := range objects {
		out = append(out, o.ID)
	}
	return out
}

func linkRequest(a, b domain.BusinessObject, name string) PhysicalConnectionRequest {
	return PhysicalConnectionRequest{
		EndpointAClass:  a.ClassName,
		EndpointAID:     a.ID,
		EndpointBClass:  b.ClassName,
		EndpointBID:     b.ID,
		Name:            name,
		ConnectionClass: "OpticalLink",
	}
}

func TestCreatePhysicalConnection(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)
	a1 := s.create(t, "OpticalPort", st.r1, "a1")
	b1 := s.create(t, "OpticalPort", st.r2, "b1")

	link, err := s.physical.CreatePhysicalConnection(ctx, linkRequest(a1, b1, "fiber-1"), nil)
	require.NoError(t, err)
	assert.Equal(t, st.room.ID, link.ParentID)
	assert.True(t, link.Special)

	a, b, err := s.physical.Endpoints(ctx, link.ClassName, link.ID)
	require.NoError(t, err)
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, a1.ID, a.ID)
	assert.Equal(t, b1.ID, b.ID)

	entries, err := s.app.ListActivity(ctx, domain.ActivityQuery{ObjectID: link.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fiber-1 [OpticalLink] ("+link.ID+")", entries[0].Notes)

	connected, err := s.physical.GetLinkConnectedToPort(ctx, "OpticalPort", b1.ID)
	require.NoError(t, err)
	require.NotNil(t, connected)
	assert.Equal(t, link.ID, connected.ID)

	free := s.create(t, "OpticalPort", st.r2, "b2")
	none, err := s.physical.GetLinkConnectedToPort(ctx, "OpticalPort", free.ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCreatePhysicalConnectionRejects(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)
	a1 := s.create(t, "OpticalPort", st.r1, "a1")
	b1 := s.create(t, "OpticalPort", st.r2, "b1")
	b2 := s.create(t, "OpticalPort", st.r2, "b2")
	_, err := s.physical.CreatePhysicalConnection(ctx, linkRequest(a1, b1, "fiber-1"), nil)
	require.NoError(t, err)

	abroad := s.create(t, "Country", domain.BusinessObject{}, "Latvia")
	city := s.create(t, "City", abroad, "Riga")
	building := s.create(t, "Building", city, "RIX-1")
	farRouter := s.create(t, "Router", building, "rix-core")
	far := s.create(t, "OpticalPort", farRouter, "x1")

	notAConnection := linkRequest(a1, b2, "x")
	notAConnection.ConnectionClass = "Router"

	tests := []struct {
		name string
		req  PhysicalConnectionRequest
		kind error
	}{
		{"not a connection class", notAConnection, domain.ErrOperationNotPermitted},
		{"endpoint A already used as A", linkRequest(a1, b2, "fiber-2"), domain.ErrOperationNotPermitted},
		{"endpoint B already used as B", linkRequest(b2, b1, "fiber-3"), domain.ErrOperationNotPermitted},
		{"links need ports", linkRequest(st.r1, b2, "fiber-4"), domain.ErrOperationNotPermitted},
		{"no common parent", linkRequest(b2, far, "fiber-5"), domain.ErrOperationNotPermitted},
		{"same port on both sides", linkRequest(b2, b2, "fiber-6"), domain.ErrOperationNotPermitted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.physical.CreatePhysicalConnection(ctx, tt.req, nil)
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	p := s.create(t, "OpticalPort", st.odf, "odf-1")
	_, err = s.physical.CreatePhysicalConnection(ctx, linkRequest(b2, p, ""), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	special, err := s.business.GetSpecialChildren(ctx, "Room", st.room.ID, 0)
	require.NoError(t, err)
	assert.Len(t, special, 1, "failed attempts leave no connection behind")
}

func TestContainersMayShareEndpoints(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)
	other := s.create(t, "Building", st.city, "DC-2")

	req := PhysicalConnectionRequest{
		EndpointAClass: "Building", EndpointAID: st.building.ID,
		EndpointBClass: "Building", EndpointBID: other.ID,
		Name: "duct-1", ConnectionClass: "WireContainer",
	}
	first, err := s.physical.CreatePhysicalConnection(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, st.city.ID, first.ParentID)

	req.Name = "duct-2"
	_, err = s.physical.CreatePhysicalConnection(ctx, req, nil)
	require.NoError(t, err)

	deleted, err := s.physical.DeletePhysicalConnection(ctx, "WireContainer", first.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, deleted.ID)

	_, err = s.physical.DeletePhysicalConnection(ctx, "Building", other.ID, nil)
	assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
}

func TestPhysicalPathAndTree(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)
	a1 := s.create(t, "OpticalPort", st.r1, "a1")
	b1 := s.create(t, "OpticalPort", st.r2, "b1")
	b2 := s.create(t, "OpticalPort", st.r2, "b2")
	vlan := s.create(t, "VirtualPort", a1, "a1.100")

	link, err := s.physical.CreatePhysicalConnection(ctx, linkRequest(a1, b1, "fiber-1"), nil)
	require.NoError(t, err)
	_, err = s.mirrors.CreateMirror(ctx, "OpticalPort", b1.ID, "OpticalPort", b2.ID, false, nil)
	require.NoError(t, err)

	path, err := s.physical.GetPhysicalPath(ctx, "OpticalPort", a1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a1.ID, link.ID, b1.ID, b2.ID}, ids(path))

	fromLogical, err := s.physical.GetPhysicalPath(ctx, "VirtualPort", vlan.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{vlan.ID, a1.ID, link.ID, b1.ID, b2.ID}, ids(fromLogical))

	alone := s.create(t, "OpticalPort", st.r1, "a2")
	single, err := s.physical.GetPhysicalPath(ctx, "OpticalPort", alone.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alone.ID}, ids(single))

	tree, err := s.physical.GetPhysicalTree(ctx, "OpticalPort", b1.ID)
	require.NoError(t, err)
	require.Len(t, tree, 4)
	assert.Equal(t, b1.ID, tree[0].Object.ID)
	assert.ElementsMatch(t, []string{link.ID, b2.ID}, ids(tree[0].Next))
	for _, node := range tree[1:] {
		switch node.Object.ID {
		case link.ID:
			assert.Equal(t, []string{a1.ID}, ids(node.Next))
		case a1.ID, b2.ID:
			assert.Empty(t, node.Next)
		default:
			t.Fatalf("unexpected node %s", node.Object.ID)
		}
	}
}

func TestPhysicalTraceOnMeshedMirrors(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)

	const n = 12
	var ins, outs []domain.BusinessObject
	for i := 0; i < n; i++ {
		ins = append(ins, s.create(t, "OpticalPort", st.odf, fmt.Sprintf("%02d-in", i)))
		outs = append(outs, s.create(t, "OpticalPort", st.odf, fmt.Sprintf("%02d-out", i)))
	}
	for _, in := range ins {
		for _, out := range outs {
			_, err := s.mirrors.CreateMirror(ctx, "OpticalPort", in.ID, "OpticalPort", out.ID, true, nil)
			require.NoError(t, err)
		}
	}

	started := time.Now()
	path, err := s.physical.GetPhysicalPath(ctx, "OpticalPort", ins[0].ID)
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 5*time.Second)
	require.Len(t, path, 2*n, "every port is on the longest path")
	assert.Equal(t, ins[0].ID, path[0].ID)
	visited := map[string]bool{}
	for _, hop := range path {
		assert.False(t, visited[hop.ID], "%s repeats", hop.Name)
		visited[hop.ID] = true
	}

	tree, err := s.physical.GetPhysicalTree(ctx, "OpticalPort", ins[0].ID)
	require.NoError(t, err)
	require.Len(t, tree, 2*n)
	assert.Equal(t, ins[0].ID, tree[0].Object.ID)
	assert.Len(t, tree[0].Next, n)

	summary, err := s.physical.PortSummary(ctx, "OpticalPort", outs[n-1].ID)
	require.NoError(t, err)
	assert.Len(t, summary.MultipleMirrors, n)
	assert.Equal(t, 2*n, summary.PathLength)
}

func TestEditConnectionEndpoints(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)
	a1 := s.create(t, "OpticalPort", st.r1, "a1")
	b1 := s.create(t, "OpticalPort", st.r2, "b1")
	b2 := s.create(t, "OpticalPort", st.r2, "b2")
	c1 := s.create(t, "OpticalPort", st.odf, "c1")
	c2 := s.create(t, "OpticalPort", st.odf, "c2")

	link, err := s.physical.CreatePhysicalConnection(ctx, linkRequest(a1, b1, "fiber-1"), nil)
	require.NoError(t, err)
	other, err := s.physical.CreatePhysicalConnection(ctx, linkRequest(c1, c2, "patch-1"), nil)
	require.NoError(t, err)

	_, skipped, err := s.physical.EditConnectionEndpoints(ctx, "OpticalLink", link.ID, a1.Light(), b2.Light())
	require.NoError(t, err)
	assert.Empty(t, skipped)
	old, err := s.physical.GetLinkConnectedToPort(ctx, "OpticalPort", b1.ID)
	require.NoError(t, err)
	assert.Nil(t, old)
	now, err := s.physical.GetLinkConnectedToPort(ctx, "OpticalPort", b2.ID)
	require.NoError(t, err)
	require.NotNil(t, now)
	assert.Equal(t, link.ID, now.ID)

	endpoints := func() (*domain.BusinessObjectLight, *domain.BusinessObjectLight) {
		t.Helper()
		a, b, err := s.physical.Endpoints(ctx, "OpticalLink", link.ID)
		require.NoError(t, err)
		return a, b
	}

	_, skipped, err = s.physical.EditConnectionEndpoints(ctx, "OpticalLink", link.ID, a1.Light(), c1.Light())
	require.NoError(t, err, "a port used by %s is skipped, not fatal", other.Name)
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0], "endpoint B skipped")
	a, b := endpoints()
	require.NotNil(t, a)
	assert.Equal(t, a1.ID, a.ID)
	assert.Nil(t, b)
	still, err := s.physical.GetLinkConnectedToPort(ctx, "OpticalPort", c1.ID)
	require.NoError(t, err)
	require.NotNil(t, still)
	assert.Equal(t, other.ID, still.ID)

	_, skipped, err = s.physical.EditConnectionEndpoints(ctx, "OpticalLink", link.ID, st.r1.Light(), b2.Light())
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0], "endpoint A skipped")
	a, b = endpoints()
	assert.Nil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, b2.ID, b.ID)

	_, skipped, err = s.physical.EditConnectionEndpoints(ctx, "OpticalLink", link.ID, a1.Light(), domain.BusinessObjectLight{})
	require.NoError(t, err)
	assert.Empty(t, skipped)
	a, b = endpoints()
	require.NotNil(t, a)
	assert.Equal(t, a1.ID, a.ID)
	assert.Nil(t, b)

	_, _, err = s.physical.EditConnectionEndpoints(ctx, "OpticalLink", link.ID, b2.Light(), b2.Light())
	assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
}

func TestPortSummary(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	st := s.site(t)
	a1 := s.create(t, "OpticalPort", st.r1, "a1")
	b1 := s.create(t, "OpticalPort", st.r2, "b1")
	b2 := s.create(t, "OpticalPort", st.r2, "b2")

	link, err := s.physical.CreatePhysicalConnection(ctx, linkRequest(a1, b1, "fiber-1"), nil)
	require.NoError(t, err)
	_, err = s.mirrors.CreateMirror(ctx, "OpticalPort", b1.ID, "OpticalPort", b2.ID, false, nil)
	require.NoError(t, err)

	summary, err := s.physical.PortSummary(ctx, "OpticalPort", b1.ID)
	require.NoError(t, err)
	require.NotNil(t, summary.Link)
	assert.Equal(t, link.ID, summary.Link.ID)
	require.NotNil(t, summary.FarEnd)
	assert.Equal(t, a1.ID, summary.FarEnd.ID)
	assert.Equal(t, []string{b2.ID}, ids(summary.Mirrors))
	assert.Empty(t, summary.MultipleMirrors)
	assert.Equal(t, 3, summary.PathLength)

	_, err = s.physical.PortSummary(ctx, "Router", st.r1.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
