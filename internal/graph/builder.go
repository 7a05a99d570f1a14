package graph

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ProRail-DataLab/openspoor/internal/adjacency"
	"github.com/ProRail-DataLab/openspoor/internal/catalog"
	"github.com/ProRail-DataLab/openspoor/internal/junction"
	"github.com/ProRail-DataLab/openspoor/internal/models"
)

// Store is the cache boundary: segments come in materialized, and the
// computed connection table may be persisted and reloaded. Retrieval
// and retry of the raw geodata stay with the external collaborator.
type Store interface {
	LoadSegments(ctx context.Context) ([]models.TrackSegment, error)
	HasConnections(ctx context.Context) (bool, error)
	LoadConnections(ctx context.Context) ([]models.ConnectionRow, error)
	SaveConnections(ctx context.Context, rows []models.ConnectionRow) error
}

// Builder materializes the catalog and the connectivity graph, either
// from the persisted connection table or by recomputing from
// geometry.
type Builder struct {
	store      Store
	cfg        adjacency.Config
	catalogOps []catalog.Option
}

// NewBuilder creates a builder with explicit geometric tuning.
func NewBuilder(store Store, cfg adjacency.Config, catalogOps ...catalog.Option) *Builder {
	return &Builder{store: store, cfg: cfg, catalogOps: catalogOps}
}

// Build loads the segment catalog and returns it together with the
// connectivity graph. When force is set, or no connection table has
// been persisted yet, the full detection and resolution pipeline runs
// and its result is saved; otherwise the cached table is used as-is.
func (b *Builder) Build(ctx context.Context, force bool) (*catalog.Catalog, *ConnectivityGraph, error) {
	segments, err := b.store.LoadSegments(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load segments: %w", err)
	}
	cat, err := catalog.New(segments, b.catalogOps...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build catalog: %w", err)
	}
	logrus.WithField("segments", cat.Len()).Info("segment catalog loaded")

	if !force {
		cached, err := b.store.HasConnections(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check connection cache: %w", err)
		}
		if cached {
			rows, err := b.store.LoadConnections(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to load cached connections: %w", err)
			}
			logrus.WithField("rows", len(rows)).Info("connection table loaded from cache")
			return cat, FromRows(cat, rows), nil
		}
	}

	g, err := b.recompute(ctx, cat)
	if err != nil {
		return nil, nil, err
	}
	return cat, g, nil
}

// recompute runs detection, junction resolution and assembly, then
// persists the resulting connection table.
func (b *Builder) recompute(ctx context.Context, cat *catalog.Catalog) (*ConnectivityGraph, error) {
	logrus.Info("recomputing track connections from geometry")

	detector := adjacency.NewDetector(cat, b.cfg)
	all := detector.AllTouches()
	filtered := detector.Filter(all)
	validated := junction.NewResolver(cat).Resolve(filtered)

	g := Assemble(cat, all, validated)

	if err := b.store.SaveConnections(ctx, g.Rows()); err != nil {
		return nil, fmt.Errorf("failed to persist connection table: %w", err)
	}
	return g, nil
}
