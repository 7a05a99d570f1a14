package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/ProRail-DataLab/openspoor/internal/cache"
	"github.com/ProRail-DataLab/openspoor/internal/catalog"
	"github.com/ProRail-DataLab/openspoor/internal/db"
	"github.com/ProRail-DataLab/openspoor/internal/graph"
	"github.com/ProRail-DataLab/openspoor/internal/models"
	"github.com/ProRail-DataLab/openspoor/internal/routing"
)

// Server bundles the in-memory graph with its query handlers. The
// catalog and graph are built once at startup; handlers never touch
// the database on the query path.
type Server struct {
	finder *routing.Finder
	graph  *graph.ConnectivityGraph
	cat    *catalog.Catalog
}

// NewServer creates the handler set over a built catalog and graph.
func NewServer(cat *catalog.Catalog, g *graph.ConnectivityGraph) *Server {
	return &Server{
		finder: routing.NewFinder(cat, g),
		graph:  g,
		cat:    cat,
	}
}

// RouteResponse is the API response structure for a route query
type RouteResponse struct {
	Route *models.Route `json:"route"`
}

// Route handles the /v1/route endpoint. The from and to parameters
// are either segment ids or "x,y" coordinates that get projected onto
// the nearest segment.
func (s *Server) Route(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")

	if fromStr == "" || toStr == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "missing required parameters: from and to",
		})
	}

	from, err := parseLocation(fromStr)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid 'from' location: %v", err),
		})
	}
	to, err := parseLocation(toStr)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid 'to' location: %v", err),
		})
	}

	keringenAllowed := c.QueryBool("keringen", false)

	route, err := s.computeRoute(c.Context(), fromStr, toStr, from, to, keringenAllowed)
	if err != nil {
		var notFound *routing.RouteNotFoundError
		if errors.As(err, &notFound) {
			return c.Status(404).JSON(fiber.Map{
				"error": "no route found",
				"from":  notFound.From,
				"to":    notFound.To,
			})
		}
		var projErr *catalog.ProjectionError
		if errors.As(err, &projErr) {
			return c.Status(422).JSON(fiber.Map{
				"error": projErr.Error(),
			})
		}
		if strings.Contains(err.Error(), "unknown segment id") {
			return c.Status(404).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logrus.WithError(err).Error("route computation failed")
		return c.Status(500).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(RouteResponse{Route: route})
}

// computeRoute computes a route with caching
func (s *Server) computeRoute(ctx context.Context, fromStr, toStr string, from, to routing.Location, keringenAllowed bool) (*models.Route, error) {
	cacheKey := cache.RouteKey(fromStr, toStr, keringenAllowed)
	lockKey := cache.LockKey(cacheKey)

	cached, err := cache.GetRoute(ctx, cacheKey)
	if err == nil && cached != nil {
		return cached, nil
	}

	acquired, err := cache.AcquireLock(ctx, lockKey, 5*time.Second)
	if err != nil {
		logrus.WithError(err).Warn("failed to acquire cache lock")
		// Continue without lock (degrade gracefully)
	} else if !acquired {
		// Another request is computing this route, wait for it
		cached, err := cache.WaitForLock(ctx, cacheKey, 3*time.Second)
		if err == nil && cached != nil {
			return cached, nil
		}
		// If waiting failed, compute anyway
	}

	defer func() {
		if acquired {
			cache.ReleaseLock(ctx, lockKey)
		}
	}()

	route, err := s.finder.Find(from, to, keringenAllowed)
	if err != nil {
		return nil, err
	}

	if err := cache.SetRoute(ctx, cacheKey, route, 10*time.Minute); err != nil {
		logrus.WithError(err).Warn("failed to cache route")
	}

	return route, nil
}

// Mismatches handles the /v1/mismatches endpoint, listing segments
// whose validated connection count differs from what their boundary
// types promise.
func (s *Server) Mismatches(c *fiber.Ctx) error {
	mismatches := s.graph.Mismatches()
	if mismatches == nil {
		mismatches = []models.Mismatch{}
	}
	return c.JSON(fiber.Map{
		"count":      len(mismatches),
		"mismatches": mismatches,
	})
}

// Health handles the /health endpoint
func (s *Server) Health(c *fiber.Ctx) error {
	ctx := c.Context()

	dbStatus := "ok"
	if err := db.HealthCheck(ctx); err != nil {
		dbStatus = err.Error()
	}

	redisStatus := "ok"
	if err := cache.HealthCheck(ctx); err != nil {
		redisStatus = err.Error()
	}

	status := 200
	if dbStatus != "ok" || redisStatus != "ok" {
		status = 503
	}

	return c.Status(status).JSON(fiber.Map{
		"database": dbStatus,
		"redis":    redisStatus,
		"graph": fiber.Map{
			"segments":      s.cat.Len(),
			"edges":         s.graph.EdgeCount(),
			"illegal_pairs": s.graph.IllegalCount(),
		},
	})
}

// parseLocation interprets a query value as "x,y" coordinates when
// both halves parse as numbers, and as a segment id otherwise.
func parseLocation(value string) (routing.Location, error) {
	parts := strings.Split(value, ",")
	if len(parts) == 2 {
		x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errX == nil && errY == nil {
			return routing.PointLocation(orb.Point{x, y}), nil
		}
		return routing.Location{}, fmt.Errorf("expected two numbers, got %q", value)
	}
	if strings.TrimSpace(value) == "" {
		return routing.Location{}, fmt.Errorf("empty location")
	}
	return routing.SegmentLocation(value), nil
}
