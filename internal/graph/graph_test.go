package graph

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProRail-DataLab/openspoor/internal/adjacency"
	"github.com/ProRail-DataLab/openspoor/internal/catalog"
	"github.com/ProRail-DataLab/openspoor/internal/models"
)

func chainCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]models.TrackSegment{
		{ID: "one", Geometry: orb.LineString{{0, 0}, {10, 0}},
			BoundaryBegin: models.BoundaryDeadEnd, BoundaryEnd: models.BoundaryCrossing},
		{ID: "mid", Geometry: orb.LineString{{10, 0}, {25, 0}},
			BoundaryBegin: models.BoundaryCrossing, BoundaryEnd: models.BoundaryCrossing},
		{ID: "three", Geometry: orb.LineString{{25, 0}, {30, 0}},
			BoundaryBegin: models.BoundaryCrossing, BoundaryEnd: models.BoundaryDeadEnd},
		{ID: "xtrack", Geometry: orb.LineString{{10, 0}, {16, 8}},
			BoundaryBegin: models.BoundaryCrossing, BoundaryEnd: models.BoundaryDeadEnd},
	})
	require.NoError(t, err)
	return cat
}

func chainCandidates() []models.AdjacencyCandidate {
	return []models.AdjacencyCandidate{
		{Left: "one", Right: "mid", EndBegin: true},
		{Left: "mid", Right: "one", BeginEnd: true},
		{Left: "mid", Right: "three", EndBegin: true},
		{Left: "three", Right: "mid", BeginEnd: true},
		{Left: "one", Right: "xtrack", EndBegin: true},
		{Left: "xtrack", Right: "one", BeginBegin: true},
	}
}

func chainValidated() []models.ValidatedConnection {
	return []models.ValidatedConnection{
		{Left: "one", Right: "mid", Weight: 15, Source: models.SourceCorrect},
		{Left: "mid", Right: "one", Weight: 10, Source: models.SourceCorrect},
		{Left: "mid", Right: "three", Weight: 5, Source: models.SourceCorrect},
		{Left: "three", Right: "mid", Weight: 15, Source: models.SourceCorrect},
	}
}

func TestAssemble(t *testing.T) {
	g := Assemble(chainCatalog(t), chainCandidates(), chainValidated())

	t.Run("edges are symmetric with per-direction weights", func(t *testing.T) {
		assert.Equal(t, []Neighbor{{ID: "mid", Weight: 15}}, g.Neighbors("one"))
		assert.ElementsMatch(t, []Neighbor{{ID: "one", Weight: 10}, {ID: "three", Weight: 5}}, g.Neighbors("mid"))
		assert.Equal(t, []Neighbor{{ID: "mid", Weight: 15}}, g.Neighbors("three"))
	})

	t.Run("valid is an ordered membership test", func(t *testing.T) {
		assert.True(t, g.Valid("one", "mid"))
		assert.True(t, g.Valid("mid", "one"))
		assert.False(t, g.Valid("one", "xtrack"))
	})

	t.Run("unvalidated touches become illegal pairs in both orders", func(t *testing.T) {
		assert.True(t, g.Illegal("one", "xtrack"))
		assert.True(t, g.Illegal("xtrack", "one"))
		assert.False(t, g.Illegal("one", "mid"))
		assert.Equal(t, 1, g.IllegalCount())
	})

	t.Run("segment without edges is a dead end", func(t *testing.T) {
		assert.Empty(t, g.Neighbors("xtrack"))
		assert.Empty(t, g.Neighbors("nonexistent"))
	})

	t.Run("mismatches recount from validated edges", func(t *testing.T) {
		mismatches := g.Mismatches()
		ids := make(map[string]models.Mismatch)
		for _, m := range mismatches {
			ids[m.SegmentID] = m
		}
		// one: expected 1 (crossing end), found 1 -> fine.
		assert.NotContains(t, ids, "one")
		assert.NotContains(t, ids, "mid")
		// xtrack expects one connection at its crossing begin but
		// none was validated.
		require.Contains(t, ids, "xtrack")
		assert.Equal(t, 1, ids["xtrack"].Expected)
		assert.Equal(t, 0, ids["xtrack"].Found)
	})
}

func TestFromRowsRoundTrip(t *testing.T) {
	cat := chainCatalog(t)
	g := Assemble(cat, chainCandidates(), chainValidated())

	reloaded := FromRows(cat, g.Rows())

	assert.Equal(t, g.EdgeCount(), reloaded.EdgeCount())
	assert.Equal(t, g.IllegalCount(), reloaded.IllegalCount())
	assert.Equal(t, g.Neighbors("mid"), reloaded.Neighbors("mid"))
	assert.Equal(t, g.Mismatches(), reloaded.Mismatches())
}

// fakeStore is an in-memory Store for builder tests.
type fakeStore struct {
	segments []models.TrackSegment
	rows     []models.ConnectionRow
	saved    int
}

func (f *fakeStore) LoadSegments(ctx context.Context) ([]models.TrackSegment, error) {
	return f.segments, nil
}

func (f *fakeStore) HasConnections(ctx context.Context) (bool, error) {
	return len(f.rows) > 0, nil
}

func (f *fakeStore) LoadConnections(ctx context.Context) ([]models.ConnectionRow, error) {
	return f.rows, nil
}

func (f *fakeStore) SaveConnections(ctx context.Context, rows []models.ConnectionRow) error {
	f.rows = rows
	f.saved++
	return nil
}

func builderSegments() []models.TrackSegment {
	return []models.TrackSegment{
		{ID: "a", Geometry: orb.LineString{{0, 0}, {10, 0}},
			BoundaryBegin: models.BoundaryDeadEnd, BoundaryEnd: models.BoundaryCrossing},
		{ID: "b", Geometry: orb.LineString{{10, 0}, {20, 0}},
			BoundaryBegin: models.BoundaryCrossing, BoundaryEnd: models.BoundaryDeadEnd},
	}
}

func TestBuilder(t *testing.T) {
	ctx := context.Background()

	t.Run("recomputes and persists when no cache exists", func(t *testing.T) {
		store := &fakeStore{segments: builderSegments()}
		b := NewBuilder(store, adjacency.DefaultConfig())

		cat, g, err := b.Build(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 2, cat.Len())
		assert.Equal(t, 1, store.saved)
		assert.True(t, g.Valid("a", "b"))
		assert.True(t, g.Valid("b", "a"))
	})

	t.Run("uses the cached table when present", func(t *testing.T) {
		store := &fakeStore{
			segments: builderSegments(),
			rows: []models.ConnectionRow{
				{Left: "a", Right: "b", Weight: 10, Valid: true},
				{Left: "b", Right: "a", Weight: 10, Valid: true},
			},
		}
		b := NewBuilder(store, adjacency.DefaultConfig())

		_, g, err := b.Build(ctx, false)
		require.NoError(t, err)
		assert.Zero(t, store.saved, "cache hit must not recompute")
		assert.True(t, g.Valid("a", "b"))
	})

	t.Run("force recompute ignores the cache", func(t *testing.T) {
		store := &fakeStore{
			segments: builderSegments(),
			rows:     []models.ConnectionRow{{Left: "stale", Right: "rows", Valid: true}},
		}
		b := NewBuilder(store, adjacency.DefaultConfig())

		_, g, err := b.Build(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, 1, store.saved)
		assert.True(t, g.Valid("a", "b"))
		assert.False(t, g.Valid("stale", "rows"))
	})
}
