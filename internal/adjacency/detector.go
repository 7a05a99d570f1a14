package adjacency

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"
	"github.com/sirupsen/logrus"

	"github.com/ProRail-DataLab/openspoor/internal/catalog"
	"github.com/ProRail-DataLab/openspoor/internal/geomutil"
	"github.com/ProRail-DataLab/openspoor/internal/models"
)

// Config holds the geometric tuning constants of adjacency detection.
// They vary per dataset and are deliberately not hardcoded.
type Config struct {
	// BufferTolerance is the flat-capped buffer width applied to each
	// segment before computing the overlap area.
	BufferTolerance float64
	// OverlapThreshold is the maximum overlap area a candidate may
	// have to count as roughly consecutive. Touches with a larger
	// overlap are segments crossing mid-extent, not meeting end to
	// end.
	OverlapThreshold float64
	// TouchTolerance is the distance under which points are
	// considered coincident.
	TouchTolerance float64
}

// DefaultConfig returns the tuning used for the national track
// dataset.
func DefaultConfig() Config {
	return Config{
		BufferTolerance:  1.0,
		OverlapThreshold: 0.2,
		TouchTolerance:   1e-6,
	}
}

// Detector finds geometric touch candidates between catalog segments
// and filters them to roughly consecutive pairs.
type Detector struct {
	cfg Config
	cat *catalog.Catalog
}

// NewDetector creates a detector over an immutable catalog.
func NewDetector(cat *catalog.Catalog, cfg Config) *Detector {
	return &Detector{cfg: cfg, cat: cat}
}

// endpointRef indexes one polyline endpoint in the quadtree.
type endpointRef struct {
	segID string
	p     orb.Point
}

func (e endpointRef) Point() orb.Point { return e.p }

// AllTouches returns every ordered pair of segments that share at
// least one point, with endpoint coincidence flags and the buffered
// overlap area. Two polylines touch when an endpoint of one lies on
// the other; candidate endpoints come from a quadtree so only nearby
// segments are tested.
func (d *Detector) AllTouches() []models.AdjacencyCandidate {
	ids := d.cat.IDs()
	if len(ids) < 2 {
		return nil
	}

	// Index all segment endpoints.
	bound := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0, 0}}
	first := true
	for _, id := range ids {
		seg, _ := d.cat.Get(id)
		if first {
			bound = seg.Geometry.Bound()
			first = false
		} else {
			bound = bound.Union(seg.Geometry.Bound())
		}
	}
	qt := quadtree.New(bound.Pad(d.cfg.TouchTolerance))
	for _, id := range ids {
		seg, _ := d.cat.Get(id)
		qt.Add(endpointRef{segID: id, p: geomutil.Begin(seg.Geometry)})
		qt.Add(endpointRef{segID: id, p: geomutil.End(seg.Geometry)})
	}

	// Pairs where an endpoint of one segment lies on the other. The
	// relation is recorded in both directions.
	type pair struct{ left, right string }
	touching := make(map[pair]bool)
	var buf []orb.Pointer
	for _, id := range ids {
		seg, _ := d.cat.Get(id)
		buf = qt.InBound(buf[:0], seg.Geometry.Bound().Pad(d.cfg.TouchTolerance))
		for _, ptr := range buf {
			ref := ptr.(endpointRef)
			if ref.segID == id {
				continue
			}
			if planar.DistanceFrom(seg.Geometry, ref.p) <= d.cfg.TouchTolerance {
				touching[pair{id, ref.segID}] = true
				touching[pair{ref.segID, id}] = true
			}
		}
	}

	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	pairs := make([]pair, 0, len(touching))
	for p := range touching {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].left != pairs[j].left {
			return index[pairs[i].left] < index[pairs[j].left]
		}
		return index[pairs[i].right] < index[pairs[j].right]
	})

	candidates := make([]models.AdjacencyCandidate, 0, len(pairs))
	for _, p := range pairs {
		left, _ := d.cat.Get(p.left)
		right, _ := d.cat.Get(p.right)
		candidates = append(candidates, d.candidate(left, right))
	}
	return candidates
}

// candidate records the geometric relation between an ordered segment
// pair.
func (d *Detector) candidate(left, right *models.TrackSegment) models.AdjacencyCandidate {
	tol := d.cfg.TouchTolerance
	lb, le := geomutil.Begin(left.Geometry), geomutil.End(left.Geometry)
	rb, re := geomutil.Begin(right.Geometry), geomutil.End(right.Geometry)

	return models.AdjacencyCandidate{
		Left:        left.ID,
		Right:       right.ID,
		OverlapArea: geomutil.BufferOverlapArea(left.Geometry, right.Geometry, d.cfg.BufferTolerance),
		BeginBegin:  geomutil.SamePoint(lb, rb, tol),
		BeginEnd:    geomutil.SamePoint(lb, re, tol),
		EndBegin:    geomutil.SamePoint(le, rb, tol),
		EndEnd:      geomutil.SamePoint(le, re, tol),
	}
}

// Detect returns the touch candidates whose overlap area stays under
// the threshold, annotated with the live connection count per left
// segment.
func (d *Detector) Detect() []models.AdjacencyCandidate {
	return d.Filter(d.AllTouches())
}

// Filter applies the overlap threshold to a candidate set and fills
// in the per-segment found-connection counts.
func (d *Detector) Filter(all []models.AdjacencyCandidate) []models.AdjacencyCandidate {
	kept := make([]models.AdjacencyCandidate, 0, len(all))
	counts := make(map[string]int)
	for _, c := range all {
		if c.OverlapArea < d.cfg.OverlapThreshold {
			kept = append(kept, c)
			counts[c.Left]++
		}
	}
	for i := range kept {
		kept[i].FoundConnections = counts[kept[i].Left]
	}

	logrus.WithFields(logrus.Fields{
		"touches":  len(all),
		"retained": len(kept),
	}).Info("adjacency candidates filtered")
	return kept
}
