package rest

import (
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"github.com/zapdigest/ingest/core/config"
	"github.com/zapdigest/ingest/pkg/msgworker"
)

type Monitoring struct {
	Pool *msgworker.EventWorkerPool
}

func InitRestMonitoring(app fiber.Router, pool *msgworker.EventWorkerPool) Monitoring {
	rest := Monitoring{Pool: pool}

	app.Get("/health", rest.Health)

	g := app.Group("/monitoring")
	g.Get("/stats", rest.GetStats)
	g.Get("/workerpool", rest.GetWorkerPoolStats)

	return rest
}

func (handler *Monitoring) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": config.Global.App.Version,
	})
}

// GetStats reports pool throughput plus process-level numbers in a shape
// meant for humans poking the endpoint, not for scrapers.
func (handler *Monitoring) GetStats(c *fiber.Ctx) error {
	stats := handler.Pool.GetStats()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return c.JSON(fiber.Map{
		"uptime":           humanize.Time(time.Now().Add(-handler.Pool.Uptime())),
		"goroutines":       runtime.NumGoroutine(),
		"memory_alloc":     humanize.Bytes(mem.Alloc),
		"events_total":     humanize.Comma(stats.TotalDispatched),
		"events_processed": humanize.Comma(stats.TotalProcessed),
		"events_dropped":   humanize.Comma(stats.TotalDropped),
		"events_failed":    humanize.Comma(stats.TotalErrors),
		"pool":             stats,
	})
}

// GetWorkerPoolStats returns the raw pool snapshot.
func (handler *Monitoring) GetWorkerPoolStats(c *fiber.Ctx) error {
	return c.JSON(handler.Pool.GetStats())
}
