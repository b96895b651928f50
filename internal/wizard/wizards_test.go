package wizard

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/inventory/internal/actions"
	"github.com/atvirokodosprendimai/inventory/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/inventory/internal/application"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/atvirokodosprendimai/inventory/internal/storage"
	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type env struct {
	business *application.BusinessService
	app      *application.ApplicationService
	engine   *Engine
	registry *actions.Registry
	events   []actions.ActionCompletedEvent
	admin    domain.Identity
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "inventory_test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.RunMigrations(ctx, db, log))
	repo := sqlite.NewRepository(db)

	meta := application.NewMetadataService(repo, log)
	require.NoError(t, meta.Bootstrap(ctx))
	app := application.NewApplicationService(repo, meta, log)
	business := application.NewBusinessService(repo, repo, meta, storage.NewFileStoreOn(memoryfs.New()), log)

	e := &env{
		business: business,
		app:      app,
		engine:   NewEngine(time.Minute, log),
		admin:    domain.Identity{User: domain.User{ID: 1}, Permissions: map[string]struct{}{"*": {}}},
	}
	bus := actions.NewBus(log)
	bus.Subscribe(actions.HandlerFunc(func(_ context.Context, ev actions.ActionCompletedEvent) error {
		e.events = append(e.events, ev)
		return nil
	}))
	registry := actions.NewRegistry(app, bus, log)
	e.registry = registry
	require.NoError(t, actions.RegisterBuiltins(registry, actions.Services{
		Meta:     meta,
		Business: business,
		App:      app,
		Physical: application.NewPhysicalConnectionsService(repo, business, meta, app, log),
		Mirrors:  application.NewMirrorService(business, meta, app, log),
	}))
	require.NoError(t, e.engine.Register(NewPhysicalConnection(meta, business, app, registry)))
	require.NoError(t, e.engine.Register(NewRelationshipManagement(business, registry)))
	return e
}

func (e *env) create(t *testing.T, class string, parent domain.BusinessObject, name string) domain.BusinessObject {
	t.Helper()
	obj, err := e.business.CreateObject(context.Background(), class, parent.ClassName, parent.ID,
		map[string]string{domain.AttributeName: name}, "")
	require.NoError(t, err)
	return obj
}

func (e *env) room(t *testing.T) domain.BusinessObject {
	t.Helper()
	country := e.create(t, "Country", domain.BusinessObject{}, "Lithuania")
	city := e.create(t, "City", country, "Vilnius")
	building := e.create(t, "Building", city, "DC-1")
	return e.create(t, "Room", building, "Hall A")
}

func choiceValues(v View, field string) []string {
	for _, f := range v.Fields {
		if f.Name == field {
			out := make([]string, 0, len(f.Choices))
			for _, c := range f.Choices {
				out = append(out, c.Value)
			}
			return out
		}
	}
	return nil
}

func TestPhysicalConnectionWizard(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	room := e.room(t)
	r1 := e.create(t, "Router", room, "core-1")
	r2 := e.create(t, "Router", room, "core-2")
	a := e.create(t, "OpticalPort", r1, "ge-0/0/1")
	b := e.create(t, "OpticalPort", r2, "ge-0/0/1")

	v, err := e.engine.Start(ctx, e.admin, PhysicalConnectionWizard, nil)
	require.NoError(t, err)
	assert.Empty(t, choiceValues(v, "connectionClass"), "no type selected yet")

	v, err = e.engine.Next(ctx, e.admin, v.SessionID, State{"name": "fiber-1", "connectionType": "link", "connectionClass": "WireContainer"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Contains(t, choiceValues(v, "connectionClass"), "OpticalLink")
	assert.NotContains(t, choiceValues(v, "connectionClass"), "WireContainer")

	v, err = e.engine.Next(ctx, e.admin, v.SessionID, State{"connectionClass": "OpticalLink"})
	require.NoError(t, err)
	assert.Equal(t, "endpoints", v.StepName)

	_, err = e.engine.Finish(ctx, e.admin, v.SessionID, State{"endpointAId": a.ID, "endpointBId": r2.ID})
	assert.EqualError(t, err, "only ports can be connected using links")

	res, err := e.engine.Finish(ctx, e.admin, v.SessionID, State{"endpointAId": a.ID, "endpointBId": b.ID})
	require.NoError(t, err)
	link, ok := res.Payload.(domain.BusinessObject)
	require.True(t, ok)
	assert.Equal(t, "OpticalLink", link.ClassName)
	assert.Equal(t, room.ID, link.ParentID)

	require.Len(t, e.events, 1)
	assert.Equal(t, actions.ActionNewPhysicalConnection, e.events[0].ActionID)
}

func TestContainerWizardRejectsPorts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	room := e.room(t)
	r1 := e.create(t, "Router", room, "core-1")
	port := e.create(t, "OpticalPort", r1, "ge-0/0/1")

	v, err := e.engine.Start(ctx, e.admin, PhysicalConnectionWizard, nil)
	require.NoError(t, err)
	v, err = e.engine.Next(ctx, e.admin, v.SessionID, State{"name": "duct", "connectionType": "container", "connectionClass": "WireContainer"})
	require.NoError(t, err)

	_, err = e.engine.Finish(ctx, e.admin, v.SessionID, State{"endpointAId": port.ID, "endpointBId": room.ID})
	assert.EqualError(t, err, "ports can not be endpoints of containers")
}

func TestRelationshipWizard(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	room := e.room(t)
	r1 := e.create(t, "Router", room, "core-1")
	r2 := e.create(t, "Router", room, "core-2")
	r3 := e.create(t, "Router", room, "core-3")

	run := func(operation, name, targets string) Result {
		t.Helper()
		v, err := e.engine.Start(ctx, e.admin, RelationshipWizard, State{"objectId": r1.ID})
		require.NoError(t, err)
		v, err = e.engine.Next(ctx, e.admin, v.SessionID, State{"operation": operation})
		require.NoError(t, err)
		if operation == OperationCreate {
			assert.Contains(t, choiceValues(v, "relationshipName"), "uses")
		}
		v, err = e.engine.Next(ctx, e.admin, v.SessionID, State{"relationshipName": name})
		require.NoError(t, err)
		res, err := e.engine.Finish(ctx, e.admin, v.SessionID, State{"targets": targets})
		require.NoError(t, err)
		return res
	}

	run(OperationCreate, "uses", r2.ID+", "+r3.ID)
	res := run(OperationExplore, "uses", "")
	related, ok := res.Payload.([]domain.BusinessObjectLight)
	require.True(t, ok)
	assert.Len(t, related, 2)

	run(OperationRelease, "uses", r2.ID)
	res = run(OperationExplore, "uses", "")
	assert.Len(t, res.Payload, 1)

	v, err := e.engine.Start(ctx, e.admin, RelationshipWizard, State{"objectId": r1.ID})
	require.NoError(t, err)
	_, err = e.engine.Next(ctx, e.admin, v.SessionID, State{"operation": "destroy"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

// failingExecutor refuses the listed targets and forwards everything else.
type failingExecutor struct {
	next   Executor
	refuse map[string]bool
}

func (f failingExecutor) Execute(ctx context.Context, identity domain.Identity, actionID string, params actions.Parameters) (actions.Response, error) {
	if id, _ := params["otherObjectId"].(string); f.refuse[id] {
		return actions.Response{}, domain.NotPermittedf("%s refused", id)
	}
	return f.next.Execute(ctx, identity, actionID, params)
}

func TestRelationshipWizardHidesPhysicalRelationships(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	room := e.room(t)
	r1 := e.create(t, "Router", room, "core-1")
	port := e.create(t, "OpticalPort", r1, "ge-0/0/1")

	v, err := e.engine.Start(ctx, e.admin, RelationshipWizard, State{"objectId": port.ID})
	require.NoError(t, err)
	v, err = e.engine.Next(ctx, e.admin, v.SessionID, State{"operation": OperationCreate})
	require.NoError(t, err)
	names := choiceValues(v, "relationshipName")
	assert.Contains(t, names, "uses")
	for _, reserved := range []string{domain.RelationshipMirror, domain.RelationshipMirrorMultiple, domain.RelationshipEndpointA, domain.RelationshipEndpointB} {
		assert.NotContains(t, names, reserved)
	}

	_, err = e.engine.Next(ctx, e.admin, v.SessionID, State{"relationshipName": domain.RelationshipMirror})
	assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
}

func TestRelationshipWizardChecksTargetsBeforeRunning(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	room := e.room(t)
	r1 := e.create(t, "Router", room, "core-1")
	r2 := e.create(t, "Router", room, "core-2")
	r3 := e.create(t, "Router", room, "core-3")

	_, err := e.business.CreateSpecialRelationship(ctx, "Router", r1.ID, "Router", r2.ID, "uses", true)
	require.NoError(t, err)

	v, err := e.engine.Start(ctx, e.admin, RelationshipWizard, State{"objectId": r1.ID})
	require.NoError(t, err)
	v, err = e.engine.Next(ctx, e.admin, v.SessionID, State{"operation": OperationCreate})
	require.NoError(t, err)
	v, err = e.engine.Next(ctx, e.admin, v.SessionID, State{"relationshipName": "uses"})
	require.NoError(t, err)

	_, err = e.engine.Finish(ctx, e.admin, v.SessionID, State{"targets": r3.ID + "," + r2.ID, "unique": "true"})
	assert.ErrorIs(t, err, domain.ErrOperationNotPermitted)
	related, err := e.business.GetSpecialAttribute(ctx, "Router", r1.ID, "uses")
	require.NoError(t, err)
	assert.Equal(t, []string{r2.ID}, lightIDs(related), "nothing runs when one target is refused")
	assert.Empty(t, e.events)

	res, err := e.engine.Finish(ctx, e.admin, v.SessionID, State{"targets": r3.ID})
	require.NoError(t, err)
	assert.Equal(t, "1 uses relationship(s) created", res.Message)
}

func TestRelationshipWizardReportsEveryTarget(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	room := e.room(t)
	r1 := e.create(t, "Router", room, "core-1")
	r2 := e.create(t, "Router", room, "core-2")
	r3 := e.create(t, "Router", room, "core-3")
	r4 := e.create(t, "Router", room, "core-4")

	engine := NewEngine(time.Minute, zaptest.NewLogger(t))
	require.NoError(t, engine.Register(NewRelationshipManagement(e.business, failingExecutor{next: e.registry, refuse: map[string]bool{r3.ID: true}})))

	start := func() string {
		v, err := engine.Start(ctx, e.admin, RelationshipWizard, State{"objectId": r1.ID})
		require.NoError(t, err)
		v, err = engine.Next(ctx, e.admin, v.SessionID, State{"operation": OperationCreate})
		require.NoError(t, err)
		v, err = engine.Next(ctx, e.admin, v.SessionID, State{"relationshipName": "uses"})
		require.NoError(t, err)
		return v.SessionID
	}

	session := start()
	res, err := engine.Finish(ctx, e.admin, session, State{"targets": r2.ID + "," + r3.ID + "," + r4.ID})
	require.NoError(t, err)
	assert.Equal(t, "2 uses relationship(s) created, 1 failed", res.Message)
	outcomes, ok := res.Payload.([]TargetOutcome)
	require.True(t, ok)
	require.Len(t, outcomes, 3)
	assert.Empty(t, outcomes[0].Error)
	assert.Equal(t, r3.ID, outcomes[1].ID)
	assert.NotEmpty(t, outcomes[1].Error)
	assert.Empty(t, outcomes[2].Error)

	_, err = engine.Next(ctx, e.admin, session, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound, "a finished run closes the session")

	related, err := e.business.GetSpecialAttribute(ctx, "Router", r1.ID, "uses")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{r2.ID, r4.ID}, lightIDs(related))

	session = start()
	_, err = engine.Finish(ctx, e.admin, session, State{"targets": r3.ID})
	assert.ErrorIs(t, err, domain.ErrOperationNotPermitted, "a run where every target fails is an error")
}

func lightIDs(objects []domain.BusinessObjectLight) []string {
	out := make([]string, 0, len(objects))
	for _, o := range objects {
		out = append(out, o.ID)
	}
	return out
}
