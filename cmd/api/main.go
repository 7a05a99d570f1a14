package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/ProRail-DataLab/openspoor/internal/adjacency"
	"github.com/ProRail-DataLab/openspoor/internal/api"
	"github.com/ProRail-DataLab/openspoor/internal/cache"
	"github.com/ProRail-DataLab/openspoor/internal/db"
	"github.com/ProRail-DataLab/openspoor/internal/graph"
	"github.com/ProRail-DataLab/openspoor/internal/store"
)

func main() {
	logrus.Info("Starting openspoor API server...")

	pool, err := db.GetDB()
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logrus.Info("Database connection established")

	if _, err := cache.GetClient(); err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer cache.Close()
	logrus.Info("Redis connection established")

	pg := store.NewPostgres(pool)
	ctx := context.Background()
	if err := pg.EnsureSchema(ctx); err != nil {
		logrus.Fatalf("Failed to ensure schema: %v", err)
	}

	// Load catalog and connectivity graph into memory. The persisted
	// connection table is reused when present.
	builder := graph.NewBuilder(pg, adjacency.DefaultConfig())
	cat, g, err := builder.Build(ctx, false)
	if err != nil {
		logrus.Fatalf("Failed to build connectivity graph: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"segments":      cat.Len(),
		"edges":         g.EdgeCount(),
		"illegal_pairs": g.IllegalCount(),
	}).Info("Connectivity graph loaded into memory")

	server := api.NewServer(cat, g)

	app := fiber.New(fiber.Config{
		AppName:      "openspoor API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	app.Get("/health", server.Health)
	app.Get("/v1/route", server.Route)
	app.Get("/v1/mismatches", server.Mismatches)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	port := getEnv("API_PORT", "8080")
	addr := fmt.Sprintf(":%s", port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logrus.Info("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("Error during shutdown: %v", err)
		}
	}()

	logrus.Infof("Server listening on http://localhost%s", addr)
	logrus.Infof("Route search: http://localhost%s/v1/route?from=X,Y&to=X,Y", addr)

	if err := app.Listen(addr); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}
}

// customErrorHandler handles errors returned from handlers
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	logrus.Errorf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
