package junction

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProRail-DataLab/openspoor/internal/catalog"
	"github.com/ProRail-DataLab/openspoor/internal/models"
)

func testCatalog(t *testing.T, segments ...models.TrackSegment) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(segments)
	require.NoError(t, err)
	return c
}

func byPair(conns []models.ValidatedConnection) map[[2]string]models.ValidatedConnection {
	m := make(map[[2]string]models.ValidatedConnection, len(conns))
	for _, v := range conns {
		m[[2]string{v.Left, v.Right}] = v
	}
	return m
}

func TestResolveCorrect(t *testing.T) {
	// A straight chain: mid expects one neighbor per end and finds
	// exactly two candidates.
	cat := testCatalog(t,
		models.TrackSegment{ID: "one", Geometry: orb.LineString{{0, 0}, {10, 0}},
			BoundaryBegin: models.BoundaryDeadEnd, BoundaryEnd: models.BoundaryCrossing},
		models.TrackSegment{ID: "mid", Geometry: orb.LineString{{10, 0}, {20, 0}},
			BoundaryBegin: models.BoundaryCrossing, BoundaryEnd: models.BoundaryCrossing},
		models.TrackSegment{ID: "three", Geometry: orb.LineString{{20, 0}, {30, 0}},
			BoundaryBegin: models.BoundaryCrossing, BoundaryEnd: models.BoundaryDeadEnd},
	)
	r := NewResolver(cat)

	candidates := []models.AdjacencyCandidate{
		{Left: "mid", Right: "one", BeginEnd: true, FoundConnections: 2},
		{Left: "mid", Right: "three", EndBegin: true, FoundConnections: 2},
	}

	got := byPair(r.Resolve(candidates))
	require.Len(t, got, 2)
	assert.Equal(t, models.SourceCorrect, got[[2]string{"mid", "one"}].Source)
	assert.Equal(t, models.SourceCorrect, got[[2]string{"mid", "three"}].Source)

	t.Run("weight is the length of the entered segment", func(t *testing.T) {
		assert.InDelta(t, 10.0, got[[2]string{"mid", "one"}].Weight, 1e-9)
	})
}

func TestResolveNonKruisingProblem(t *testing.T) {
	t.Run("mismatch without any crossing boundary is accepted flagged", func(t *testing.T) {
		cat := testCatalog(t,
			models.TrackSegment{ID: "sw", Geometry: orb.LineString{{0, 0}, {10, 0}},
				BoundaryBegin: models.BoundaryEnglishSwitch, BoundaryEnd: models.BoundaryEnglishSwitch},
			models.TrackSegment{ID: "nb", Geometry: orb.LineString{{10, 0}, {20, 0}},
				BoundaryBegin: models.BoundaryDeadEnd, BoundaryEnd: models.BoundaryDeadEnd},
		)
		r := NewResolver(cat)

		// sw expects 4 but only one candidate survives: not correct,
		// and no crossing involved to fix.
		got := byPair(r.Resolve([]models.AdjacencyCandidate{
			{Left: "sw", Right: "nb", EndBegin: true, FoundConnections: 1},
		}))
		require.Len(t, got, 1)
		assert.Equal(t, models.SourceNonKruisingProblem, got[[2]string{"sw", "nb"}].Source)
	})

	t.Run("candidate away from the crossing end is not the crossing's problem", func(t *testing.T) {
		cat := testCatalog(t,
			models.TrackSegment{ID: "lx", Geometry: orb.LineString{{0, 0}, {10, 0}},
				BoundaryBegin: models.BoundaryCrossing, BoundaryEnd: models.BoundarySimpleSwitch,
				SideEnd: models.SideFacing},
			models.TrackSegment{ID: "tail", Geometry: orb.LineString{{10, 0}, {20, 0}},
				BoundaryBegin: models.BoundaryDeadEnd, BoundaryEnd: models.BoundaryDeadEnd},
		)
		r := NewResolver(cat)

		// lx's begin is a crossing, but this candidate touches only
		// its end.
		got := byPair(r.Resolve([]models.AdjacencyCandidate{
			{Left: "lx", Right: "tail", EndBegin: true, FoundConnections: 1},
		}))
		require.Len(t, got, 1)
		assert.Equal(t, models.SourceNonKruisingProblem, got[[2]string{"lx", "tail"}].Source)
	})
}

func crossingScenario(t *testing.T) (*Resolver, []models.AdjacencyCandidate) {
	t.Helper()
	cat := testCatalog(t,
		models.TrackSegment{ID: "in", Geometry: orb.LineString{{0, 0}, {10, 0}},
			BoundaryBegin: models.BoundaryDeadEnd, BoundaryEnd: models.BoundaryCrossing},
		models.TrackSegment{ID: "out", Geometry: orb.LineString{{10, 0}, {22, 0}},
			BoundaryBegin: models.BoundaryCrossing, BoundaryEnd: models.BoundaryDeadEnd},
		models.TrackSegment{ID: "bad", Geometry: orb.LineString{{10, 0}, {18, 6}},
			BoundaryBegin: models.BoundaryCrossing, BoundaryEnd: models.BoundaryDeadEnd},
	)
	// "in" expects a single neighbor at its crossing end but two
	// candidates survive the overlap filter; the straighter one wins.
	candidates := []models.AdjacencyCandidate{
		{Left: "in", Right: "out", OverlapArea: 0.01, EndBegin: true, FoundConnections: 2},
		{Left: "in", Right: "bad", OverlapArea: 0.15, EndBegin: true, FoundConnections: 2},
	}
	return NewResolver(cat), candidates
}

func TestResolveFixedAtCrossing(t *testing.T) {
	r, candidates := crossingScenario(t)

	got := byPair(r.Resolve(candidates))
	require.Len(t, got, 1)

	conn, ok := got[[2]string{"in", "out"}]
	require.True(t, ok, "the minimum-overlap candidate must be selected")
	assert.Equal(t, models.SourceFixedEnd, conn.Source)
	assert.InDelta(t, 12.0, conn.Weight, 1e-9)
}

func TestResolveFixedAtBegin(t *testing.T) {
	cat := testCatalog(t,
		models.TrackSegment{ID: "in", Geometry: orb.LineString{{10, 0}, {0, 0}},
			BoundaryBegin: models.BoundaryCrossing, BoundaryEnd: models.BoundaryDeadEnd},
		models.TrackSegment{ID: "out", Geometry: orb.LineString{{10, 0}, {22, 0}},
			BoundaryBegin: models.BoundaryCrossing, BoundaryEnd: models.BoundaryDeadEnd},
		models.TrackSegment{ID: "bad", Geometry: orb.LineString{{10, 0}, {18, 6}},
			BoundaryBegin: models.BoundaryCrossing, BoundaryEnd: models.BoundaryDeadEnd},
	)
	r := NewResolver(cat)

	got := byPair(r.Resolve([]models.AdjacencyCandidate{
		{Left: "in", Right: "out", OverlapArea: 0.01, BeginBegin: true, FoundConnections: 2},
		{Left: "in", Right: "bad", OverlapArea: 0.15, BeginBegin: true, FoundConnections: 2},
	}))
	require.Len(t, got, 1)
	assert.Equal(t, models.SourceFixedBegin, got[[2]string{"in", "out"}].Source)
}

func TestResolveRetainsExactTies(t *testing.T) {
	r, candidates := crossingScenario(t)
	candidates[1].OverlapArea = candidates[0].OverlapArea

	got := byPair(r.Resolve(candidates))
	assert.Len(t, got, 2, "equally aligned candidates are surfaced, not broken arbitrarily")
}

func TestResolveIdempotent(t *testing.T) {
	r, candidates := crossingScenario(t)

	first := r.Resolve(candidates)
	second := r.Resolve(candidates)
	assert.Equal(t, first, second)
}

func TestResolveDeduplicates(t *testing.T) {
	// A candidate that is both correct and fixable appears once, with
	// the earlier rule's source.
	cat := testCatalog(t,
		models.TrackSegment{ID: "in", Geometry: orb.LineString{{0, 0}, {10, 0}},
			BoundaryBegin: models.BoundaryDeadEnd, BoundaryEnd: models.BoundaryCrossing},
		models.TrackSegment{ID: "out", Geometry: orb.LineString{{10, 0}, {20, 0}},
			BoundaryBegin: models.BoundaryCrossing, BoundaryEnd: models.BoundaryDeadEnd},
	)
	r := NewResolver(cat)

	got := r.Resolve([]models.AdjacencyCandidate{
		{Left: "in", Right: "out", OverlapArea: 0.01, EndBegin: true, FoundConnections: 1},
	})
	require.Len(t, got, 1)
	assert.Equal(t, models.SourceCorrect, got[0].Source)
}
