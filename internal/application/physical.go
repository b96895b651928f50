package application

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"go.uber.org/zap"
)

const (
	// maxPathDepth bounds the number of hops in a physical path.
	maxPathDepth = 64
	// maxTraceObjects bounds how many objects one trace loads.
	maxTraceObjects = 5000
	// maxPathSteps bounds the longest path search; meshes of multiple mirrors have far too many
	// simple paths to try them all, so the longest one found within the budget is returned.
	maxPathSteps = 20000
)

// physicalRelationships are followed, in either direction, when tracing a physical path.
var physicalRelationships = []string{
	domain.RelationshipMirror,
	domain.RelationshipMirrorMultiple,
	domain.RelationshipEndpointA,
	domain.RelationshipEndpointB,
}

// IsPhysicalRelationship reports whether name is managed by the physical connection and mirror
// services rather than as a plain special relationship.
func IsPhysicalRelationship(name string) bool {
	return slices.Contains(physicalRelationships, name)
}

type PhysicalConnectionRequest struct {
	EndpointAClass  string
	EndpointAID     string
	EndpointBClass  string
	EndpointBID     string
	Name            string
	ConnectionClass string
	TemplateID      string
}

// PortSummary is what the port inspector shows for one port.
type PortSummary struct {
	Port            domain.BusinessObjectLight   `json:"port"`
	Link            *domain.BusinessObjectLight  `json:"link,omitempty"`
	FarEnd          *domain.BusinessObjectLight  `json:"far_end,omitempty"`
	Mirrors         []domain.BusinessObjectLight `json:"mirrors"`
	MultipleMirrors []domain.BusinessObjectLight `json:"multiple_mirrors"`
	PathLength      int                          `json:"path_length"`
}

type PhysicalConnectionsService struct {
	repo     domain.BusinessRepository
	business *BusinessService
	meta     *MetadataService
	app      *ApplicationService
	log      *zap.Logger
}

func NewPhysicalConnectionsService(repo domain.BusinessRepository, business *BusinessService, meta *MetadataService, app *ApplicationService, log *zap.Logger) *PhysicalConnectionsService {
	return &PhysicalConnectionsService{repo: repo, business: business, meta: meta, app: app, log: log.Named("physical")}
}

func (s *PhysicalConnectionsService) isLink(className string) bool {
	return s.meta.IsSubclassOf(domain.ClassGenericPhysicalLink, className)
}

func (s *PhysicalConnectionsService) isPort(className string) bool {
	return s.meta.IsSubclassOf(domain.ClassGenericPort, className)
}

// CreatePhysicalConnection creates a link or container between two objects as a special
// child of their common parent.
func (s *PhysicalConnectionsService) CreatePhysicalConnection(ctx context.Context, req PhysicalConnectionRequest, actor *uint) (domain.BusinessObject, error) {
	if !s.meta.IsSubclassOf(domain.ClassGenericPhysicalConnection, req.ConnectionClass) {
		return domain.BusinessObject{}, domain.NotPermittedf("class %s is not a physical connection", req.ConnectionClass)
	}
	if req.EndpointAID == req.EndpointBID {
		return domain.BusinessObject{}, domain.NotPermittedf("both endpoints can not be the same object")
	}
	parent, err := s.business.GetCommonParent(ctx, req.EndpointAClass, req.EndpointAID, req.EndpointBClass, req.EndpointBID)
	if err != nil {
		return domain.BusinessObject{}, err
	}
	if parent.IsDummyRoot() {
		return domain.BusinessObject{}, domain.NotPermittedf("the endpoints have no common parent")
	}

	if s.isLink(req.ConnectionClass) {
		if !s.isPort(req.EndpointAClass) || !s.isPort(req.EndpointBClass) {
			return domain.BusinessObject{}, domain.NotPermittedf("links can only connect ports")
		}
		if err := s.ensureFree(ctx, req.EndpointAClass, req.EndpointAID, domain.RelationshipEndpointA); err != nil {
			return domain.BusinessObject{}, err
		}
		if err := s.ensureFree(ctx, req.EndpointBClass, req.EndpointBID, domain.RelationshipEndpointB); err != nil {
			return domain.BusinessObject{}, err
		}
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.BusinessObject{}, domain.InvalidArgumentf("the connection name is required")
	}

	conn, err := s.business.CreateSpecialObject(ctx, req.ConnectionClass, parent.ClassName, parent.ID,
		map[string]string{domain.AttributeName: name}, req.TemplateID)
	if err != nil {
		return domain.BusinessObject{}, domain.NotPermitted(err)
	}

	if err := s.connect(ctx, conn, req.EndpointAClass, req.EndpointAID, req.EndpointBClass, req.EndpointBID); err != nil {
		if _, derr := s.business.DeleteObject(ctx, conn.ClassName, conn.ID, true); derr != nil {
			s.log.Error("removing half created connection failed", zap.String("id", conn.ID), zap.Error(derr))
		}
		return domain.BusinessObject{}, domain.NotPermitted(err)
	}

	s.app.LogObjectActivity(ctx, actor, conn.ClassName, conn.ID, domain.ActivityCreateObject, "", "", "",
		fmt.Sprintf("%s [%s] (%s)", conn.Name, conn.ClassName, conn.ID))
	return conn, nil
}

// ensureFree fails when the port already plays the given endpoint role on some connection.
func (s *PhysicalConnectionsService) ensureFree(ctx context.Context, className, id, role string) error {
	port, err := s.business.GetObject(ctx, className, id)
	if err != nil {
		return err
	}
	connected, err := s.repo.ListRelationships(ctx, domain.RelationshipFilter{ObjectID: port.ID, Names: []string{role}})
	if err != nil {
		return err
	}
	if len(connected) > 0 {
		return domain.NotPermittedf("port %s is already connected as %s", port.Name, role)
	}
	return nil
}

func (s *PhysicalConnectionsService) connect(ctx context.Context, conn domain.BusinessObject, aClass, aID, bClass, bID string) error {
	if aID != "" {
		if _, err := s.business.CreateSpecialRelationship(ctx, conn.ClassName, conn.ID, aClass, aID, domain.RelationshipEndpointA, true); err != nil {
			return err
		}
	}
	if bID != "" {
		if _, err := s.business.CreateSpecialRelationship(ctx, conn.ClassName, conn.ID, bClass, bID, domain.RelationshipEndpointB, true); err != nil {
			return err
		}
	}
	return nil
}

func (s *PhysicalConnectionsService) DeletePhysicalConnection(ctx context.Context, className, id string, actor *uint) (domain.BusinessObject, error) {
	conn, err := s.business.GetObject(ctx, className, id)
	if err != nil {
		return domain.BusinessObject{}, err
	}
	if !s.meta.IsSubclassOf(domain.ClassGenericPhysicalConnection, conn.ClassName) {
		return domain.BusinessObject{}, domain.NotPermittedf("%s [%s] is not a physical connection", conn.Name, conn.ClassName)
	}
	deleted, err := s.business.DeleteObject(ctx, conn.ClassName, conn.ID, true)
	if err != nil {
		return domain.BusinessObject{}, err
	}
	s.app.LogObjectActivity(ctx, actor, deleted.ClassName, deleted.ID, domain.ActivityDeleteObject, "", "", "",
		fmt.Sprintf("%s [%s] (%s)", deleted.Name, deleted.ClassName, deleted.ID))
	return deleted, nil
}

// traceStart resolves where a physical walk begins. Logical ports start at their first
// physical parent port and are returned as a prefix.
func (s *PhysicalConnectionsService) traceStart(ctx context.Context, className, id string) (domain.BusinessObjectLight, []domain.BusinessObjectLight, error) {
	obj, err := s.business.GetObject(ctx, className, id)
	if err != nil {
		return domain.BusinessObjectLight{}, nil, err
	}
	if !s.meta.IsSubclassOf(domain.ClassGenericLogicalPort, obj.ClassName) {
		return obj.Light(), nil, nil
	}
	physical, err := s.business.GetFirstParentOfClass(ctx, obj.ClassName, obj.ID, domain.ClassGenericPhysicalPort)
	if err != nil {
		return obj.Light(), nil, nil
	}
	return physical, []domain.BusinessObjectLight{obj.Light()}, nil
}

// physicalGraph is the part of the physical topology reachable from one object.
type physicalGraph struct {
	start   domain.BusinessObjectLight
	objects map[string]domain.BusinessObjectLight
	next    map[string][]string
}

func (s *PhysicalConnectionsService) graph(ctx context.Context, start domain.BusinessObjectLight) (*physicalGraph, error) {
	rels, err := s.repo.ListConnectedRelationships(ctx, start.ID, physicalRelationships, maxTraceObjects)
	if err != nil {
		return nil, err
	}
	ids := []string{start.ID}
	for _, r := range rels {
		ids = append(ids, r.SourceID, r.TargetID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	objects, err := s.repo.GetObjects(ctx, ids)
	if err != nil {
		return nil, err
	}

	g := &physicalGraph{
		start:   start,
		objects: map[string]domain.BusinessObjectLight{start.ID: start},
		next:    make(map[string][]string),
	}
	for _, o := range objects {
		g.objects[o.ID] = o.Light()
	}
	for _, r := range rels {
		_, okA := g.objects[r.SourceID]
		_, okB := g.objects[r.TargetID]
		if !okA || !okB || r.SourceID == r.TargetID {
			continue
		}
		g.next[r.SourceID] = append(g.next[r.SourceID], r.TargetID)
		g.next[r.TargetID] = append(g.next[r.TargetID], r.SourceID)
	}
	for id, next := range g.next {
		slices.Sort(next)
		g.next[id] = slices.Compact(next)
	}
	return g, nil
}

// longestPath searches simple paths from the start depth first, neighbours in id order, and
// keeps the first longest one. The search stops after maxPathSteps expansions.
func (g *physicalGraph) longestPath() []domain.BusinessObjectLight {
	path := []string{g.start.ID}
	best := slices.Clone(path)
	onPath := map[string]bool{g.start.ID: true}
	budget := maxPathSteps

	var visit func()
	visit = func() {
		if len(path) > len(best) {
			best = slices.Clone(path)
		}
		if len(path) > maxPathDepth {
			return
		}
		for _, n := range g.next[path[len(path)-1]] {
			if onPath[n] {
				continue
			}
			if budget == 0 {
				return
			}
			budget--
			onPath[n] = true
			path = append(path, n)
			visit()
			path = path[:len(path)-1]
			delete(onPath, n)
		}
	}
	visit()

	out := make([]domain.BusinessObjectLight, 0, len(best))
	for _, id := range best {
		out = append(out, g.objects[id])
	}
	return out
}

// edges walks the graph breadth first and yields each hop away from the start once. Every
// neighbour of a node except the one it was reached from counts as a next hop.
func (g *physicalGraph) edges(yield func(from, to domain.BusinessObjectLight)) {
	parent := map[string]string{}
	seen := map[string]bool{g.start.ID: true}
	queue := []string{g.start.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, n := range g.next[id] {
			if n == parent[id] {
				continue
			}
			yield(g.objects[id], g.objects[n])
			if !seen[n] {
				seen[n] = true
				parent[n] = id
				queue = append(queue, n)
			}
		}
	}
}

// GetPhysicalPath returns the longest simple path through mirrors and connection endpoints.
func (s *PhysicalConnectionsService) GetPhysicalPath(ctx context.Context, className, id string) (domain.PhysicalPath, error) {
	start, prefix, err := s.traceStart(ctx, className, id)
	if err != nil {
		return nil, err
	}
	g, err := s.graph(ctx, start)
	if err != nil {
		return nil, err
	}
	return append(domain.PhysicalPath(prefix), g.longestPath()...), nil
}

// GetPhysicalTree returns the reachable topology as an adjacency list ordered by first
// appearance, each node listing its next hops away from the start.
func (s *PhysicalConnectionsService) GetPhysicalTree(ctx context.Context, className, id string) ([]domain.PhysicalTreeNode, error) {
	start, prefix, err := s.traceStart(ctx, className, id)
	if err != nil {
		return nil, err
	}
	g, err := s.graph(ctx, start)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	nodes := make([]domain.PhysicalTreeNode, 0, len(g.objects)+len(prefix))
	node := func(o domain.BusinessObjectLight) int {
		if i, ok := index[o.ID]; ok {
			return i
		}
		index[o.ID] = len(nodes)
		nodes = append(nodes, domain.PhysicalTreeNode{Object: o, Next: []domain.BusinessObjectLight{}})
		return index[o.ID]
	}
	edge := func(from, to domain.BusinessObjectLight) {
		i := node(from)
		node(to)
		for _, n := range nodes[i].Next {
			if n.ID == to.ID {
				return
			}
		}
		nodes[i].Next = append(nodes[i].Next, to)
	}

	chain := append([]domain.BusinessObjectLight{}, prefix...)
	chain = append(chain, start)
	node(chain[0])
	for i := 0; i+1 < len(chain); i++ {
		edge(chain[i], chain[i+1])
	}
	g.edges(edge)
	return nodes, nil
}

// GetLinkConnectedToPort returns the connection holding the port as an endpoint, nil when unconnected.
func (s *PhysicalConnectionsService) GetLinkConnectedToPort(ctx context.Context, className, id string) (*domain.BusinessObjectLight, error) {
	port, err := s.business.GetObject(ctx, className, id)
	if err != nil {
		return nil, err
	}
	if !s.isPort(port.ClassName) {
		return nil, domain.InvalidArgumentf("%s [%s] is not a port", port.Name, port.ClassName)
	}
	attrs, err := s.business.GetSpecialAttributes(ctx, port.ClassName, port.ID)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{domain.RelationshipEndpointA, domain.RelationshipEndpointB} {
		for _, other := range attrs[name] {
			if s.meta.IsSubclassOf(domain.ClassGenericPhysicalConnection, other.ClassName) {
				link := other
				return &link, nil
			}
		}
	}
	return nil, nil
}

// EditConnectionEndpoints releases both endpoints of a connection and reconnects the given
// sides. A side with an empty id is left disconnected. On links, a side that is not a port or
// whose port belongs to another connection is skipped and reported in the returned notes.
func (s *PhysicalConnectionsService) EditConnectionEndpoints(ctx context.Context, connectionClass, connectionID string, sideA, sideB domain.BusinessObjectLight) (domain.BusinessObject, []string, error) {
	conn, err := s.business.GetObject(ctx, connectionClass, connectionID)
	if err != nil {
		return domain.BusinessObject{}, nil, err
	}
	if !s.meta.IsSubclassOf(domain.ClassGenericPhysicalConnection, conn.ClassName) {
		return domain.BusinessObject{}, nil, domain.NotPermittedf("%s [%s] is not a physical connection", conn.Name, conn.ClassName)
	}
	if sideA.ID != "" && sideA.ID == sideB.ID {
		return domain.BusinessObject{}, nil, domain.NotPermittedf("both endpoints can not be the same object")
	}

	var skipped []string
	sides := []*domain.BusinessObjectLight{&sideA, &sideB}
	for i, side := range sides {
		if side.ID == "" {
			continue
		}
		endpoint, err := s.business.GetObject(ctx, side.ClassName, side.ID)
		if err != nil {
			return domain.BusinessObject{}, nil, err
		}
		*side = endpoint.Light()
		if !s.isLink(conn.ClassName) {
			continue
		}
		role := []string{"A", "B"}[i]
		if !s.isPort(endpoint.ClassName) {
			skipped = append(skipped, fmt.Sprintf("endpoint %s skipped: %s [%s] is not a port", role, endpoint.Name, endpoint.ClassName))
			*side = domain.BusinessObjectLight{}
			continue
		}
		link, err := s.GetLinkConnectedToPort(ctx, endpoint.ClassName, endpoint.ID)
		if err != nil {
			return domain.BusinessObject{}, nil, err
		}
		if link != nil && link.ID != conn.ID {
			skipped = append(skipped, fmt.Sprintf("endpoint %s skipped: port %s is already connected to %s", role, endpoint.Name, link.Name))
			*side = domain.BusinessObjectLight{}
		}
	}

	if _, err := s.repo.DeleteRelationships(ctx, domain.RelationshipFilter{
		ObjectID: conn.ID,
		Names:    []string{domain.RelationshipEndpointA, domain.RelationshipEndpointB},
	}); err != nil {
		return domain.BusinessObject{}, nil, err
	}
	if err := s.connect(ctx, conn, sideA.ClassName, sideA.ID, sideB.ClassName, sideB.ID); err != nil {
		return domain.BusinessObject{}, nil, err
	}
	return conn, skipped, nil
}

// Endpoints returns the objects at side A and B of a connection; missing sides are nil.
func (s *PhysicalConnectionsService) Endpoints(ctx context.Context, className, id string) (*domain.BusinessObjectLight, *domain.BusinessObjectLight, error) {
	conn, err := s.business.GetObject(ctx, className, id)
	if err != nil {
		return nil, nil, err
	}
	rels, err := s.repo.ListRelationships(ctx, domain.RelationshipFilter{
		ObjectID: conn.ID,
		Names:    []string{domain.RelationshipEndpointA, domain.RelationshipEndpointB},
	})
	if err != nil {
		return nil, nil, err
	}
	var a, b *domain.BusinessObjectLight
	for _, r := range rels {
		if r.SourceID != conn.ID {
			continue
		}
		other, err := s.business.GetObjectLight(ctx, "", r.TargetID)
		if err != nil {
			return nil, nil, err
		}
		if r.Name == domain.RelationshipEndpointA {
			a = &other
		} else {
			b = &other
		}
	}
	return a, b, nil
}

func (s *PhysicalConnectionsService) PortSummary(ctx context.Context, className, id string) (PortSummary, error) {
	port, err := s.business.GetObject(ctx, className, id)
	if err != nil {
		return PortSummary{}, err
	}
	if !s.isPort(port.ClassName) {
		return PortSummary{}, domain.InvalidArgumentf("%s [%s] is not a port", port.Name, port.ClassName)
	}
	out := PortSummary{Port: port.Light()}

	link, err := s.GetLinkConnectedToPort(ctx, port.ClassName, port.ID)
	if err != nil {
		return PortSummary{}, err
	}
	if link != nil {
		out.Link = link
		a, b, err := s.Endpoints(ctx, link.ClassName, link.ID)
		if err != nil {
			return PortSummary{}, err
		}
		if a != nil && a.ID == port.ID {
			out.FarEnd = b
		} else {
			out.FarEnd = a
		}
	}

	attrs, err := s.business.GetSpecialAttributes(ctx, port.ClassName, port.ID)
	if err != nil {
		return PortSummary{}, err
	}
	out.Mirrors = nonNil(attrs[domain.RelationshipMirror])
	out.MultipleMirrors = nonNil(attrs[domain.RelationshipMirrorMultiple])

	path, err := s.GetPhysicalPath(ctx, port.ClassName, port.ID)
	if err != nil {
		return PortSummary{}, err
	}
	out.PathLength = len(path)
	return out, nil
}

func nonNil(in []domain.BusinessObjectLight) []domain.BusinessObjectLight {
	if in == nil {
		return []domain.BusinessObjectLight{}
	}
	return in
}
