package models

import "github.com/paulmach/orb"

// BoundaryType classifies the physical termination at a segment end.
// The values mirror the source data model of the national track
// registry; anything outside this set contributes zero expected
// connections and is reported as a data-quality warning.
type BoundaryType string

const (
	BoundaryDeadEnd           BoundaryType = "DEAD_END"
	BoundaryBufferStop        BoundaryType = "BUFFER_STOP"
	BoundaryUnmapped          BoundaryType = "UNMAPPED"
	BoundaryCrossing          BoundaryType = "CROSSING"
	BoundarySimpleSwitch      BoundaryType = "SIMPLE_SWITCH"
	BoundaryEnglishSwitch     BoundaryType = "ENGLISH_SWITCH"
	BoundaryHalfEnglishSwitch BoundaryType = "HALF_ENGLISH_SWITCH"
)

// SideCode disambiguates which leg of a simple switch a segment end
// attaches to. Only meaningful when the boundary is a simple switch.
type SideCode string

const (
	SideNone   SideCode = ""
	SideLeft   SideCode = "LEFT"
	SideRight  SideCode = "RIGHT"
	SideFacing SideCode = "FACING"
)

// SegmentEnd identifies one of the two ends of a track segment.
type SegmentEnd string

const (
	EndBegin SegmentEnd = "begin"
	EndEnd   SegmentEnd = "end"
)

// TrackSegment is one physical track element: a directed polyline with
// boundary metadata on each end.
type TrackSegment struct {
	ID            string
	Geometry      orb.LineString
	BoundaryBegin BoundaryType
	BoundaryEnd   BoundaryType
	SideBegin     SideCode
	SideEnd       SideCode

	// ExpectedConnections is derived from the boundary metadata when
	// the segment enters the catalog and is immutable afterwards.
	ExpectedConnections int
	// Length is the geometry length in meters, computed once at
	// catalog build time (planar or haversine depending on the
	// catalog CRS).
	Length float64
}

// AdjacencyCandidate is a directionally recorded geometric touch
// between two segments. Candidates are ephemeral: they are recomputed
// from geometry on every detection pass and never persisted on their
// own.
type AdjacencyCandidate struct {
	Left  string
	Right string

	// OverlapArea is the intersection area of the two flat-capped
	// segment buffers; smaller means the ends align more precisely.
	OverlapArea float64

	// Endpoint coincidence flags between left and right.
	BeginBegin bool // left begin == right begin
	BeginEnd   bool // left begin == right end
	EndBegin   bool // left end == right begin
	EndEnd     bool // left end == right end

	// FoundConnections is the number of surviving candidates sharing
	// this candidate's left segment, filled in by the detector.
	FoundConnections int
}

// TouchesBegin reports whether the candidate involves the begin end
// of the left segment.
func (c AdjacencyCandidate) TouchesBegin() bool { return c.BeginBegin || c.BeginEnd }

// TouchesEnd reports whether the candidate involves the end end of
// the left segment.
func (c AdjacencyCandidate) TouchesEnd() bool { return c.EndBegin || c.EndEnd }

// ConnectionSource records which resolution rule promoted a candidate
// to a validated connection. Used for auditing and tests only.
type ConnectionSource string

const (
	SourceCorrect            ConnectionSource = "correct"
	SourceNonKruisingProblem ConnectionSource = "non_kruising_problem"
	SourceFixedBegin         ConnectionSource = "fixed_begin"
	SourceFixedEnd           ConnectionSource = "fixed_end"
)

// ValidatedConnection is a candidate promoted to a real graph edge.
// Weight is the length of the segment being entered.
type ValidatedConnection struct {
	Left   string
	Right  string
	Weight float64
	Source ConnectionSource
}

// ConnectionRow is the tabular cache form of one ordered touch pair:
// validated rows carry the edge weight, invalid rows record a
// geometric touch that is not a real connection.
type ConnectionRow struct {
	Left   string
	Right  string
	Weight float64
	Valid  bool
}

// Mismatch flags a segment whose validated connection count differs
// from its expected connection count. Reported for inspection, never
// auto-corrected.
type Mismatch struct {
	SegmentID string `json:"segment_id"`
	Expected  int    `json:"expected"`
	Found     int    `json:"found"`
}

// Route is the result of a shortest-path query: the ordered segment
// ids traversed plus the resolved endpoint segments. Constructed
// fresh per query and read-only.
type Route struct {
	Segments []string `json:"segments"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	// Length is the sum of traversed segment lengths in meters.
	Length float64 `json:"length_meters"`
}
