package routing

import (
	"container/heap"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/ProRail-DataLab/openspoor/internal/catalog"
	"github.com/ProRail-DataLab/openspoor/internal/graph"
	"github.com/ProRail-DataLab/openspoor/internal/models"
)

// Location is a query endpoint: either a segment id or a coordinate
// point to be projected onto the nearest segment.
type Location struct {
	SegmentID string
	Point     *orb.Point
}

// SegmentLocation addresses a segment directly by id.
func SegmentLocation(id string) Location {
	return Location{SegmentID: id}
}

// PointLocation addresses the segment nearest to a coordinate.
func PointLocation(p orb.Point) Location {
	return Location{Point: &p}
}

// RouteNotFoundError reports that the search space was exhausted
// before the destination was reached.
type RouteNotFoundError struct {
	From string
	To   string
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route found from segment %s to segment %s", e.From, e.To)
}

// Finder answers shortest-path queries over an immutable connectivity
// graph. Finders hold no mutable state, so concurrent Find calls are
// safe.
type Finder struct {
	cat *catalog.Catalog
	g   *graph.ConnectivityGraph
}

// NewFinder creates a finder over a built catalog and graph.
func NewFinder(cat *catalog.Catalog, g *graph.ConnectivityGraph) *Finder {
	return &Finder{cat: cat, g: g}
}

// Find runs a constrained Dijkstra search between two locations.
// With keringenAllowed set, every graph edge is traversable,
// modelling permitted reversals through crossings. Without it, a step
// onto a neighbor is rejected when the neighbor forms an illegal pair
// with the current segment or with any segment already on the path:
// approaching a junction from the wrong side makes an otherwise valid
// edge a physically impossible move, so legality is path-dependent
// rather than a per-edge filter.
func (f *Finder) Find(start, end Location, keringenAllowed bool) (*models.Route, error) {
	startID, err := f.resolve(start)
	if err != nil {
		return nil, err
	}
	endID, err := f.resolve(end)
	if err != nil {
		return nil, err
	}

	pq := searchQueue{{id: startID}}
	heap.Init(&pq)
	visited := make(map[string]bool)

	for pq.Len() > 0 {
		cur := heap.Pop(&pq).(*searchState)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true

		path := append(append(make([]string, 0, len(cur.path)+1), cur.path...), cur.id)

		if cur.id == endID {
			return &models.Route{
				Segments: path,
				From:     startID,
				To:       endID,
				Length:   f.pathLength(path),
			}, nil
		}

		for _, nb := range f.g.Neighbors(cur.id) {
			if visited[nb.ID] {
				continue
			}
			if !keringenAllowed && f.blocked(path, nb.ID) {
				continue
			}
			heap.Push(&pq, &searchState{
				cost: cur.cost + nb.Weight,
				id:   nb.ID,
				path: path,
			})
		}
	}

	return nil, &RouteNotFoundError{From: startID, To: endID}
}

// blocked scans the path so far, current segment included, for an
// illegal pairing with the candidate neighbor. Linear in the path
// length per expansion; fine at national-network scale.
func (f *Finder) blocked(path []string, neighbor string) bool {
	for _, p := range path {
		if f.g.Illegal(p, neighbor) {
			return true
		}
	}
	return false
}

// resolve turns a location into a segment id, projecting coordinate
// points onto the catalog.
func (f *Finder) resolve(loc Location) (string, error) {
	if loc.Point != nil {
		return f.cat.NearestSegment(*loc.Point)
	}
	if _, ok := f.cat.Get(loc.SegmentID); !ok {
		return "", fmt.Errorf("unknown segment id %s", loc.SegmentID)
	}
	return loc.SegmentID, nil
}

// pathLength sums the traversed segment lengths in meters.
func (f *Finder) pathLength(path []string) float64 {
	total := 0.0
	for _, id := range path {
		if seg, ok := f.cat.Get(id); ok {
			total += seg.Length
		}
	}
	return total
}

// searchState is one priority-queue entry: the cheapest known way to
// reach a segment together with the segments traveled to get there.
type searchState struct {
	cost  float64
	id    string
	path  []string
	index int
}

// searchQueue implements heap.Interface keyed by cumulative traveled
// length. Non-negative segment lengths keep Dijkstra's pop-minimal
// invariant intact.
type searchQueue []*searchState

func (q searchQueue) Len() int { return len(q) }

func (q searchQueue) Less(i, j int) bool {
	return q[i].cost < q[j].cost
}

func (q searchQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *searchQueue) Push(x interface{}) {
	s := x.(*searchState)
	s.index = len(*q)
	*q = append(*q, s)
}

func (q *searchQueue) Pop() interface{} {
	old := *q
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	s.index = -1
	*q = old[0 : n-1]
	return s
}
