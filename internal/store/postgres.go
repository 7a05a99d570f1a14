package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"github.com/ProRail-DataLab/openspoor/internal/models"
)

const batchSize = 1000

// Postgres persists the segment catalog and the computed connection
// table. Geometries are stored as GeoJSON text; the database knows
// nothing about coordinates beyond that.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres creates a store on an existing connection pool.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the segment and connection tables when they do
// not exist yet.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS track_segment (
			id             TEXT PRIMARY KEY,
			geometry       TEXT NOT NULL,
			boundary_begin TEXT NOT NULL,
			boundary_end   TEXT NOT NULL,
			side_begin     TEXT NOT NULL DEFAULT '',
			side_end       TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create track_segment: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS track_connection (
			left_id  TEXT NOT NULL,
			right_id TEXT NOT NULL,
			weight   DOUBLE PRECISION NOT NULL,
			valid    BOOLEAN NOT NULL,
			PRIMARY KEY (left_id, right_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create track_connection: %w", err)
	}
	return nil
}

// LoadSegments reads all segments, decoding their GeoJSON geometry.
// Rows with undecodable or non-line geometry are skipped with a
// warning so one bad row cannot take the whole catalog down.
func (s *Postgres) LoadSegments(ctx context.Context) ([]models.TrackSegment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, geometry, boundary_begin, boundary_end, side_begin, side_end
		FROM track_segment
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	var segments []models.TrackSegment
	for rows.Next() {
		var (
			seg     models.TrackSegment
			geomRaw []byte
		)
		if err := rows.Scan(&seg.ID, &geomRaw, &seg.BoundaryBegin, &seg.BoundaryEnd, &seg.SideBegin, &seg.SideEnd); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}

		geom, err := geojson.UnmarshalGeometry(geomRaw)
		if err != nil {
			logrus.WithError(err).WithField("segment", seg.ID).Warn("skipping segment with invalid geometry")
			continue
		}
		ls, ok := geom.Geometry().(orb.LineString)
		if !ok {
			logrus.WithField("segment", seg.ID).Warn("skipping segment with non-line geometry")
			continue
		}
		seg.Geometry = ls
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// SaveSegments upserts segments in batches.
func (s *Postgres) SaveSegments(ctx context.Context, segments []models.TrackSegment) error {
	batch := &pgx.Batch{}
	for _, seg := range segments {
		geomRaw, err := geojson.NewGeometry(seg.Geometry).MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to encode geometry of %s: %w", seg.ID, err)
		}
		batch.Queue(`
			INSERT INTO track_segment (id, geometry, boundary_begin, boundary_end, side_begin, side_end)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				geometry = EXCLUDED.geometry,
				boundary_begin = EXCLUDED.boundary_begin,
				boundary_end = EXCLUDED.boundary_end,
				side_begin = EXCLUDED.side_begin,
				side_end = EXCLUDED.side_end
		`, seg.ID, string(geomRaw), seg.BoundaryBegin, seg.BoundaryEnd, seg.SideBegin, seg.SideEnd)

		if batch.Len() >= batchSize {
			if err := s.executeBatch(ctx, batch); err != nil {
				return err
			}
			batch = &pgx.Batch{}
		}
	}
	if batch.Len() > 0 {
		return s.executeBatch(ctx, batch)
	}
	return nil
}

// HasConnections reports whether a computed connection table is
// present.
func (s *Postgres) HasConnections(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM track_connection)").Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check track_connection: %w", err)
	}
	return exists, nil
}

// LoadConnections reads the cached connection table.
func (s *Postgres) LoadConnections(ctx context.Context) ([]models.ConnectionRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT left_id, right_id, weight, valid
		FROM track_connection
		ORDER BY left_id, right_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer rows.Close()

	var out []models.ConnectionRow
	for rows.Next() {
		var row models.ConnectionRow
		if err := rows.Scan(&row.Left, &row.Right, &row.Weight, &row.Valid); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// SaveConnections replaces the connection table with a freshly
// computed one.
func (s *Postgres) SaveConnections(ctx context.Context, connRows []models.ConnectionRow) error {
	if _, err := s.db.Exec(ctx, "TRUNCATE TABLE track_connection"); err != nil {
		return fmt.Errorf("failed to clear track_connection: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range connRows {
		batch.Queue(`
			INSERT INTO track_connection (left_id, right_id, weight, valid)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (left_id, right_id) DO NOTHING
		`, row.Left, row.Right, row.Weight, row.Valid)

		if batch.Len() >= batchSize {
			if err := s.executeBatch(ctx, batch); err != nil {
				return err
			}
			batch = &pgx.Batch{}
		}
	}
	if batch.Len() > 0 {
		if err := s.executeBatch(ctx, batch); err != nil {
			return err
		}
	}

	logrus.WithField("rows", len(connRows)).Info("connection table persisted")
	return nil
}

// CountSegments returns the number of stored segments.
func (s *Postgres) CountSegments(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM track_segment").Scan(&count)
	return count, err
}

// executeBatch sends a batch and surfaces the first failing query.
func (s *Postgres) executeBatch(ctx context.Context, batch *pgx.Batch) error {
	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch execution failed at query %d: %w", i, err)
		}
	}
	return nil
}
