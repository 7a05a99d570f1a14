package junction

import (
	"math"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/ProRail-DataLab/openspoor/internal/catalog"
	"github.com/ProRail-DataLab/openspoor/internal/models"
)

// Resolver selects, from the filtered touch candidates, the subset
// that represents real physical connections. Segments over-connected
// by a crossing are disambiguated with the minimum-overlap tie-break;
// everything else is either unambiguous or a data-quality problem
// that is accepted and surfaced rather than auto-resolved.
type Resolver struct {
	cat *catalog.Catalog
}

// NewResolver creates a resolver over an immutable catalog.
func NewResolver(cat *catalog.Catalog) *Resolver {
	return &Resolver{cat: cat}
}

// Resolve applies the selection rules in order and returns the
// validated connections, de-duplicated by (left, right) with the
// first matching rule winning. The result is deterministic for a
// given candidate set: running it twice yields the same connections.
func (r *Resolver) Resolve(candidates []models.AdjacencyCandidate) []models.ValidatedConnection {
	selected := make([]models.ValidatedConnection, 0, len(candidates))

	selected = append(selected, r.corrects(candidates)...)
	selected = append(selected, r.nonProblems(candidates)...)
	selected = append(selected, r.fixedAtEnd(candidates)...)
	selected = append(selected, r.fixedAtBegin(candidates)...)

	return lo.UniqBy(selected, func(v models.ValidatedConnection) [2]string {
		return [2]string{v.Left, v.Right}
	})
}

// corrects accepts every candidate of a segment whose live connection
// count already matches its expected count. No ambiguity to resolve.
func (r *Resolver) corrects(candidates []models.AdjacencyCandidate) []models.ValidatedConnection {
	var out []models.ValidatedConnection
	for _, c := range candidates {
		left, ok := r.cat.Get(c.Left)
		if !ok {
			continue
		}
		if c.FoundConnections == left.ExpectedConnections {
			out = append(out, r.validated(c, models.SourceCorrect))
		}
	}
	return out
}

// nonProblems accepts candidates whose mismatch cannot be caused by a
// crossing: either neither end of the left segment is bounded by one,
// or the candidate touches the end that is not. Their ambiguity is a
// data-quality issue, out of scope to auto-resolve, and shows up in
// the mismatch diagnostics instead.
func (r *Resolver) nonProblems(candidates []models.AdjacencyCandidate) []models.ValidatedConnection {
	var out []models.ValidatedConnection
	for _, c := range candidates {
		left, ok := r.cat.Get(c.Left)
		if !ok {
			continue
		}
		beginCrossing := left.BoundaryBegin == models.BoundaryCrossing
		endCrossing := left.BoundaryEnd == models.BoundaryCrossing

		switch {
		case !beginCrossing && !endCrossing:
			out = append(out, r.validated(c, models.SourceNonKruisingProblem))
		case beginCrossing && !endCrossing && !c.TouchesBegin():
			out = append(out, r.validated(c, models.SourceNonKruisingProblem))
		case endCrossing && !beginCrossing && !c.TouchesEnd():
			out = append(out, r.validated(c, models.SourceNonKruisingProblem))
		}
	}
	return out
}

// fixedAtBegin resolves candidates touching a begin end bounded by a
// crossing (on either side of the pair): per left segment the
// candidate with the minimum overlap area is the true continuation.
func (r *Resolver) fixedAtBegin(candidates []models.AdjacencyCandidate) []models.ValidatedConnection {
	return r.fixed(candidates, models.SourceFixedBegin, func(c models.AdjacencyCandidate, left, right *models.TrackSegment) bool {
		crossing := left.BoundaryBegin == models.BoundaryCrossing || right.BoundaryBegin == models.BoundaryCrossing
		return crossing && c.TouchesBegin()
	})
}

// fixedAtEnd is the end-side counterpart of fixedAtBegin.
func (r *Resolver) fixedAtEnd(candidates []models.AdjacencyCandidate) []models.ValidatedConnection {
	return r.fixed(candidates, models.SourceFixedEnd, func(c models.AdjacencyCandidate, left, right *models.TrackSegment) bool {
		crossing := left.BoundaryEnd == models.BoundaryCrossing || right.BoundaryEnd == models.BoundaryCrossing
		return crossing && c.TouchesEnd()
	})
}

// fixed keeps, per left segment, the matching candidates that share
// the minimum overlap area. Exact ties are all retained: if several
// candidates align equally well the ambiguity is surfaced through the
// mismatch diagnostics, never silently broken.
func (r *Resolver) fixed(candidates []models.AdjacencyCandidate, source models.ConnectionSource,
	match func(models.AdjacencyCandidate, *models.TrackSegment, *models.TrackSegment) bool) []models.ValidatedConnection {

	matching := make(map[string][]models.AdjacencyCandidate)
	minOverlap := make(map[string]float64)
	var order []string

	for _, c := range candidates {
		left, ok := r.cat.Get(c.Left)
		if !ok {
			continue
		}
		right, ok := r.cat.Get(c.Right)
		if !ok {
			continue
		}
		if !match(c, left, right) {
			continue
		}
		if _, seen := minOverlap[c.Left]; !seen {
			minOverlap[c.Left] = math.Inf(1)
			order = append(order, c.Left)
		}
		matching[c.Left] = append(matching[c.Left], c)
		if c.OverlapArea < minOverlap[c.Left] {
			minOverlap[c.Left] = c.OverlapArea
		}
	}

	var out []models.ValidatedConnection
	for _, leftID := range order {
		best := lo.Filter(matching[leftID], func(c models.AdjacencyCandidate, _ int) bool {
			return c.OverlapArea == minOverlap[leftID]
		})
		if len(best) > 1 {
			logrus.WithFields(logrus.Fields{
				"segment": leftID,
				"ties":    len(best),
				"source":  source,
			}).Warn("ambiguous junction: multiple equally aligned candidates retained")
		}
		for _, c := range best {
			out = append(out, r.validated(c, source))
		}
	}
	return out
}

// validated promotes a candidate to a connection weighted by the
// length of the segment being entered.
func (r *Resolver) validated(c models.AdjacencyCandidate, source models.ConnectionSource) models.ValidatedConnection {
	weight := 0.0
	if right, ok := r.cat.Get(c.Right); ok {
		weight = right.Length
	}
	return models.ValidatedConnection{
		Left:   c.Left,
		Right:  c.Right,
		Weight: weight,
		Source: source,
	}
}
