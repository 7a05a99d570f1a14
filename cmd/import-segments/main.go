package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"github.com/ProRail-DataLab/openspoor/internal/db"
	"github.com/ProRail-DataLab/openspoor/internal/models"
	"github.com/ProRail-DataLab/openspoor/internal/store"
)

// Track registry exports name segments and boundaries in Dutch. The
// importer is the only place that vocabulary is allowed to appear;
// everything downstream uses the catalog's own types.
var boundaryNames = map[string]models.BoundaryType{
	"EINDESPOOR":          models.BoundaryDeadEnd,
	"STOOTJUK":            models.BoundaryBufferStop,
	"TERRA-INCOGNITA":     models.BoundaryUnmapped,
	"KRUISING":            models.BoundaryCrossing,
	"WISSEL_GW":           models.BoundarySimpleSwitch,
	"WISSEL_EW":           models.BoundaryEnglishSwitch,
	"WISSEL_HEW":          models.BoundaryHalfEnglishSwitch,
	"DEAD_END":            models.BoundaryDeadEnd,
	"BUFFER_STOP":         models.BoundaryBufferStop,
	"UNMAPPED":            models.BoundaryUnmapped,
	"CROSSING":            models.BoundaryCrossing,
	"SIMPLE_SWITCH":       models.BoundarySimpleSwitch,
	"ENGLISH_SWITCH":      models.BoundaryEnglishSwitch,
	"HALF_ENGLISH_SWITCH": models.BoundaryHalfEnglishSwitch,
}

var sideNames = map[string]models.SideCode{
	"L":      models.SideLeft,
	"R":      models.SideRight,
	"V":      models.SideFacing,
	"LEFT":   models.SideLeft,
	"RIGHT":  models.SideRight,
	"FACING": models.SideFacing,
}

func main() {
	geojsonPath := flag.String("geojson", "", "Path to a GeoJSON FeatureCollection of track segments (required)")
	flag.Parse()

	if *geojsonPath == "" {
		fmt.Println("Usage: import-segments --geojson=<path>")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if _, err := os.Stat(*geojsonPath); os.IsNotExist(err) {
		logrus.Fatalf("GeoJSON file not found: %s", *geojsonPath)
	}

	logrus.Info("Starting track segment import...")
	logrus.Infof("Source file: %s", *geojsonPath)

	pool, err := db.GetDB()
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	pg := store.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		logrus.Fatalf("Failed to ensure schema: %v", err)
	}

	segments, skipped, err := loadSegments(*geojsonPath)
	if err != nil {
		logrus.Fatalf("Failed to read segments: %v", err)
	}
	logrus.Infof("Parsed %d segments (%d features skipped)", len(segments), skipped)
	if len(segments) == 0 {
		logrus.Fatal("No usable segments in input")
	}

	startTime := time.Now()
	if err := pg.SaveSegments(ctx, segments); err != nil {
		logrus.Fatalf("Failed to save segments: %v", err)
	}

	logrus.Infof("Import completed in %v", time.Since(startTime))

	total, err := pg.CountSegments(ctx)
	if err == nil {
		logrus.Infof("Segments in database: %d", total)
	}
}

// loadSegments parses the FeatureCollection and maps registry
// properties onto track segments. Features without an id or a line
// geometry are skipped with a warning rather than failing the run.
func loadSegments(path string) ([]models.TrackSegment, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse FeatureCollection: %w", err)
	}

	var (
		segments []models.TrackSegment
		skipped  int
	)
	for i, feature := range fc.Features {
		id := stringProp(feature, "PUIC", "puic", "id", "ID")
		if id == "" {
			logrus.WithField("feature", i).Warn("skipping feature without id")
			skipped++
			continue
		}

		ls, ok := feature.Geometry.(orb.LineString)
		if !ok {
			logrus.WithField("segment", id).Warn("skipping feature with non-line geometry")
			skipped++
			continue
		}

		segments = append(segments, models.TrackSegment{
			ID:            id,
			Geometry:      ls,
			BoundaryBegin: boundary(feature, id, "REF_BEGRENZER_TYPE_BEGIN", "boundary_begin"),
			BoundaryEnd:   boundary(feature, id, "REF_BEGRENZER_TYPE_EIND", "boundary_end"),
			SideBegin:     side(feature, "KANTCODE_SPOORTAK_BEGIN", "side_begin"),
			SideEnd:       side(feature, "KANTCODE_SPOORTAK_EIND", "side_end"),
		})
	}
	return segments, skipped, nil
}

func boundary(feature *geojson.Feature, id string, keys ...string) models.BoundaryType {
	raw := strings.ToUpper(strings.TrimSpace(stringProp(feature, keys...)))
	if raw == "" {
		return models.BoundaryUnmapped
	}
	if bt, ok := boundaryNames[raw]; ok {
		return bt
	}
	logrus.WithFields(logrus.Fields{
		"segment":  id,
		"boundary": raw,
	}).Warn("unknown boundary type, treating as unmapped")
	return models.BoundaryUnmapped
}

func side(feature *geojson.Feature, keys ...string) models.SideCode {
	raw := strings.ToUpper(strings.TrimSpace(stringProp(feature, keys...)))
	if sc, ok := sideNames[raw]; ok {
		return sc
	}
	return models.SideNone
}

// stringProp returns the first present string property among keys.
func stringProp(feature *geojson.Feature, keys ...string) string {
	for _, key := range keys {
		if v, ok := feature.Properties[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
