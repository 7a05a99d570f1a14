package catalog

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
	"github.com/sirupsen/logrus"

	"github.com/ProRail-DataLab/openspoor/internal/models"
)

// CRS says which coordinate reference system the catalog geometries
// are expressed in. Planar means a projected system in meters (the
// national grid for Dutch track data); Geographic means WGS84
// degrees.
type CRS string

const (
	CRSPlanar     CRS = "planar"
	CRSGeographic CRS = "geographic"
)

// geographicMagnitudeLimit separates geographic degrees from planar
// meters when a query point carries no CRS metadata: coordinates
// under this magnitude are treated as degrees. A heuristic proxy, not
// CRS detection; kept because ad hoc query points come without
// metadata.
const geographicMagnitudeLimit = 100

// ProjectionError reports that a query point could not be matched to
// any segment.
type ProjectionError struct {
	Point orb.Point
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("no segment found for point (%f, %f)", e.Point[0], e.Point[1])
}

// Catalog is the immutable set of track segments for one dataset
// snapshot. It owns the expected-connection oracle and nearest-segment
// point projection. Built once, read-only afterwards, safe for
// concurrent readers.
type Catalog struct {
	crs      CRS
	toPlanar func(orb.Point) orb.Point
	order    []string
	segments map[string]*models.TrackSegment
}

// Option configures a Catalog during construction.
type Option func(*Catalog)

// WithCRS sets the CRS of the segment geometries. Default is planar.
func WithCRS(crs CRS) Option {
	return func(c *Catalog) { c.crs = crs }
}

// WithGeographicToPlanar sets the transform applied to query points
// that look geographic before matching them against a planar catalog.
// Datasets in a national grid should supply their own transform; the
// default is spherical Mercator.
func WithGeographicToPlanar(f func(orb.Point) orb.Point) Option {
	return func(c *Catalog) { c.toPlanar = f }
}

// New builds a catalog from materialized segments, computing each
// segment's expected connection count and length. Segment order is
// preserved and fixes the tie-break of point projection.
func New(segments []models.TrackSegment, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		crs:      CRSPlanar,
		toPlanar: func(p orb.Point) orb.Point { return project.WGS84.ToMercator(p) },
		order:    make([]string, 0, len(segments)),
		segments: make(map[string]*models.TrackSegment, len(segments)),
	}
	for _, opt := range opts {
		opt(c)
	}

	for i := range segments {
		seg := segments[i]
		if seg.ID == "" {
			return nil, fmt.Errorf("segment at index %d has empty id", i)
		}
		if _, dup := c.segments[seg.ID]; dup {
			return nil, fmt.Errorf("duplicate segment id %s", seg.ID)
		}
		if len(seg.Geometry) < 2 {
			return nil, fmt.Errorf("segment %s has empty geometry", seg.ID)
		}

		seg.ExpectedConnections = c.expectedConnections(&seg)
		seg.Length = c.length(seg.Geometry)

		c.order = append(c.order, seg.ID)
		c.segments[seg.ID] = &seg
	}
	return c, nil
}

// Get returns the segment with the given id.
func (c *Catalog) Get(id string) (*models.TrackSegment, bool) {
	seg, ok := c.segments[id]
	return seg, ok
}

// IDs returns all segment ids in catalog order.
func (c *Catalog) IDs() []string {
	return c.order
}

// Len returns the number of segments.
func (c *Catalog) Len() int {
	return len(c.order)
}

// CRS returns the coordinate reference system of the geometries.
func (c *Catalog) CRS() CRS {
	return c.crs
}

// Length measures a polyline in meters in the catalog CRS.
func (c *Catalog) length(ls orb.LineString) float64 {
	if c.crs == CRSGeographic {
		return geo.Length(ls)
	}
	return planar.Length(ls)
}

// expectedConnections sums the per-end connection counts derived from
// the boundary metadata. Unknown boundary types and side codes
// contribute zero and are logged, never failed on: the catalog stays
// usable with incomplete metadata.
func (c *Catalog) expectedConnections(seg *models.TrackSegment) int {
	return c.endConnections(seg.ID, models.EndBegin, seg.BoundaryBegin, seg.SideBegin) +
		c.endConnections(seg.ID, models.EndEnd, seg.BoundaryEnd, seg.SideEnd)
}

func (c *Catalog) endConnections(id string, end models.SegmentEnd, boundary models.BoundaryType, side models.SideCode) int {
	switch boundary {
	case models.BoundaryDeadEnd, models.BoundaryBufferStop, models.BoundaryUnmapped:
		return 0
	case models.BoundaryCrossing:
		return 1
	case models.BoundaryEnglishSwitch, models.BoundaryHalfEnglishSwitch:
		return 2
	case models.BoundarySimpleSwitch:
		switch side {
		case models.SideLeft, models.SideRight:
			return 1
		case models.SideFacing:
			return 2
		default:
			logrus.WithFields(logrus.Fields{
				"segment":   id,
				"end":       end,
				"side_code": side,
			}).Warn("unknown side code on simple switch")
			return 0
		}
	default:
		logrus.WithFields(logrus.Fields{
			"segment":       id,
			"end":           end,
			"boundary_type": boundary,
		}).Warn("unknown boundary type")
		return 0
	}
}

// NearestSegment projects a query point onto the catalog and returns
// the id of the segment with minimum planar distance to it. Points
// whose coordinates are under the geographic magnitude limit are
// treated as WGS84 degrees and transformed first. Ties are broken by
// catalog order: the first segment encountered at the minimum
// distance wins.
func (c *Catalog) NearestSegment(p orb.Point) (string, error) {
	if len(c.order) == 0 {
		return "", &ProjectionError{Point: p}
	}

	if c.crs == CRSPlanar && looksGeographic(p) {
		p = c.toPlanar(p)
	}

	best := ""
	bestDist := math.Inf(1)
	for _, id := range c.order {
		d := planar.DistanceFrom(c.segments[id].Geometry, p)
		if d < bestDist {
			best = id
			bestDist = d
		}
	}
	return best, nil
}

// looksGeographic applies the coordinate magnitude heuristic.
func looksGeographic(p orb.Point) bool {
	return math.Abs(p[0]) < geographicMagnitudeLimit && math.Abs(p[1]) < geographicMagnitudeLimit
}
