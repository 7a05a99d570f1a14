package graph

import (
	"github.com/sirupsen/logrus"

	"github.com/ProRail-DataLab/openspoor/internal/catalog"
	"github.com/ProRail-DataLab/openspoor/internal/models"
)

// Neighbor is one outgoing edge of the connectivity graph.
type Neighbor struct {
	ID     string
	Weight float64
}

// ConnectivityGraph is the weighted adjacency over validated
// connections plus the set of geometric touches that were rejected.
// Built once per dataset snapshot and read-only afterwards; there is
// no update-in-place, a new dataset means a new graph.
type ConnectivityGraph struct {
	edges      map[string][]Neighbor
	valid      map[[2]string]bool
	illegal    map[[2]string]bool
	mismatches []models.Mismatch
	rows       []models.ConnectionRow
}

// Assemble builds the graph from the full touch-candidate set and the
// validated subset. Every touch ends up in exactly one of two places:
// a weighted edge or the illegal-pair set.
func Assemble(cat *catalog.Catalog, all []models.AdjacencyCandidate, validated []models.ValidatedConnection) *ConnectivityGraph {
	validSet := make(map[[2]string]bool, len(validated))
	weights := make(map[[2]string]float64, len(validated))
	for _, v := range validated {
		key := [2]string{v.Left, v.Right}
		validSet[key] = true
		weights[key] = v.Weight
	}

	rows := make([]models.ConnectionRow, 0, len(all))
	for _, c := range all {
		key := [2]string{c.Left, c.Right}
		row := models.ConnectionRow{Left: c.Left, Right: c.Right, Valid: validSet[key]}
		if row.Valid {
			row.Weight = weights[key]
		} else if right, ok := cat.Get(c.Right); ok {
			row.Weight = right.Length
		}
		rows = append(rows, row)
	}
	return FromRows(cat, rows)
}

// FromRows reconstructs the graph from the tabular cache form.
func FromRows(cat *catalog.Catalog, rows []models.ConnectionRow) *ConnectivityGraph {
	g := &ConnectivityGraph{
		edges:   make(map[string][]Neighbor),
		valid:   make(map[[2]string]bool),
		illegal: make(map[[2]string]bool),
		rows:    rows,
	}

	for _, row := range rows {
		if row.Valid {
			g.valid[[2]string{row.Left, row.Right}] = true
			g.edges[row.Left] = append(g.edges[row.Left], Neighbor{ID: row.Right, Weight: row.Weight})
		}
	}
	// A touch is illegal when neither orientation was validated.
	for _, row := range rows {
		if !g.valid[[2]string{row.Left, row.Right}] && !g.valid[[2]string{row.Right, row.Left}] {
			g.illegal[pairKey(row.Left, row.Right)] = true
		}
	}

	g.mismatches = computeMismatches(cat, g.edges)

	logrus.WithFields(logrus.Fields{
		"segments":   cat.Len(),
		"edges":      len(g.valid),
		"illegal":    len(g.illegal),
		"mismatches": len(g.mismatches),
	}).Info("connectivity graph assembled")
	return g
}

// computeMismatches recounts connections per segment from the
// validated edges only and flags every segment whose count differs
// from the expected one. Diagnostics only, never auto-corrected.
func computeMismatches(cat *catalog.Catalog, edges map[string][]Neighbor) []models.Mismatch {
	var out []models.Mismatch
	for _, id := range cat.IDs() {
		seg, _ := cat.Get(id)
		found := len(edges[id])
		if found != seg.ExpectedConnections {
			out = append(out, models.Mismatch{
				SegmentID: id,
				Expected:  seg.ExpectedConnections,
				Found:     found,
			})
		}
	}
	return out
}

// Neighbors returns the outgoing edges of a segment. A segment absent
// from the adjacency is a dead end, not an error: the result is
// simply empty.
func (g *ConnectivityGraph) Neighbors(id string) []Neighbor {
	return g.edges[id]
}

// Valid reports whether the ordered pair is a validated connection.
func (g *ConnectivityGraph) Valid(left, right string) bool {
	return g.valid[[2]string{left, right}]
}

// Illegal reports whether the pair touches geometrically without
// being a valid physical connection. Order does not matter.
func (g *ConnectivityGraph) Illegal(a, b string) bool {
	return g.illegal[pairKey(a, b)]
}

// Mismatches returns the segments whose validated connection count
// deviates from the expected count.
func (g *ConnectivityGraph) Mismatches() []models.Mismatch {
	return g.mismatches
}

// Rows returns the tabular cache form of the graph for persistence.
func (g *ConnectivityGraph) Rows() []models.ConnectionRow {
	return g.rows
}

// EdgeCount returns the number of validated directed edges.
func (g *ConnectivityGraph) EdgeCount() int {
	return len(g.valid)
}

// IllegalCount returns the number of illegal unordered pairs.
func (g *ConnectivityGraph) IllegalCount() int {
	return len(g.illegal)
}

// pairKey normalizes an unordered segment pair.
func pairKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}
