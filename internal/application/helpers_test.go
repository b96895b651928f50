package application

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/atvirokodosprendimai/inventory/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/atvirokodosprendimai/inventory/internal/storage"
	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testServices struct {
	repo     *sqlite.Repository
	fs       vfs.FileSystem
	meta     *MetadataService
	business *BusinessService
	app      *ApplicationService
	physical *PhysicalConnectionsService
	mirrors  *MirrorService
}

func newTestServices(t *testing.T, opts ...BusinessOption) *testServices {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "inventory_test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.RunMigrations(ctx, db, log))
	repo := sqlite.NewRepository(db)

	fs := memoryfs.New()
	meta := NewMetadataService(repo, log)
	require.NoError(t, meta.Bootstrap(ctx))
	app := NewApplicationService(repo, meta, log)
	business := NewBusinessService(repo, repo, meta, storage.NewFileStoreOn(fs), log, opts...)

	return &testServices{
		repo:     repo,
		fs:       fs,
		meta:     meta,
		business: business,
		app:      app,
		physical: NewPhysicalConnectionsService(repo, business, meta, app, log),
		mirrors:  NewMirrorService(business, meta, app, log),
	}
}

func (s *testServices) create(t *testing.T, className string, parent domain.BusinessObject, name string) domain.BusinessObject {
	t.Helper()
	obj, err := s.business.CreateObject(context.Background(), className, parent.ClassName, parent.ID,
		map[string]string{domain.AttributeName: name}, "")
	require.NoError(t, err)
	return obj
}

// site is a small inventory: one room holding two routers and a distribution frame.
type site struct {
	country, city, building, room domain.BusinessObject
	r1, r2, odf                   domain.BusinessObject
}

func (s *testServices) site(t *testing.T) site {
	t.Helper()
	var out site
	out.country = s.create(t, "Country", domain.BusinessObject{}, "Lithuania")
	out.city = s.create(t, "City", out.country, "Vilnius")
	out.building = s.create(t, "Building", out.city, "DC-1")
	out.room = s.create(t, "Room", out.building, "Hall A")
	out.r1 = s.create(t, "Router", out.room, "core-1")
	out.r2 = s.create(t, "Router", out.room, "core-2")
	out.odf = s.create(t, "ODF", out.room, "ODF-01")
	return out
}
