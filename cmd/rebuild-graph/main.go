package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ProRail-DataLab/openspoor/internal/adjacency"
	"github.com/ProRail-DataLab/openspoor/internal/db"
	"github.com/ProRail-DataLab/openspoor/internal/graph"
	"github.com/ProRail-DataLab/openspoor/internal/store"
)

func main() {
	yes := flag.Bool("yes", false, "Skip the confirmation prompt")
	overlapThreshold := flag.Float64("overlap-threshold", adjacency.DefaultConfig().OverlapThreshold,
		"Buffer overlap area above which a touching pair is discarded")
	flag.Parse()

	logrus.Info("openspoor - connectivity rebuild tool")

	pool, err := db.GetDB()
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logrus.Info("Database connected")

	ctx := context.Background()
	pg := store.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		logrus.Fatalf("Failed to ensure schema: %v", err)
	}

	segmentCount, err := pg.CountSegments(ctx)
	if err != nil {
		logrus.Fatalf("Failed to count segments: %v", err)
	}
	if segmentCount == 0 {
		logrus.Fatal("No segments found in database. Import track geometry first!")
	}
	logrus.Infof("Segments in database: %d", segmentCount)

	if !*yes {
		fmt.Println()
		fmt.Println("This will REPLACE the persisted connection table!")
		fmt.Print("Continue? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)

		if confirm != "yes" && confirm != "y" {
			logrus.Info("Rebuild cancelled")
			os.Exit(0)
		}
	}

	logrus.Info("Starting connectivity rebuild...")
	startTime := time.Now()

	cfg := adjacency.DefaultConfig()
	cfg.OverlapThreshold = *overlapThreshold

	builder := graph.NewBuilder(pg, cfg)
	cat, g, err := builder.Build(ctx, true)
	if err != nil {
		logrus.Fatalf("Failed to rebuild connectivity: %v", err)
	}

	duration := time.Since(startTime)

	logrus.Info("Connectivity rebuild completed!")
	logrus.Infof("Duration: %v", duration)
	logrus.Infof("Segments: %d", cat.Len())
	logrus.Infof("Directed edges: %d", g.EdgeCount())
	logrus.Infof("Illegal pairs: %d", g.IllegalCount())

	mismatches := g.Mismatches()
	if len(mismatches) > 0 {
		logrus.Warnf("Segments with unexpected connection counts: %d", len(mismatches))
		for _, m := range mismatches {
			logrus.WithFields(logrus.Fields{
				"segment":  m.SegmentID,
				"expected": m.Expected,
				"found":    m.Found,
			}).Warn("connection count mismatch")
		}
	}

	logrus.Info("Graph is ready for routing!")
}
