package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/gather/api/handler"
	"github.com/use-agent/gather/cache"
	"github.com/use-agent/gather/config"
	"github.com/use-agent/gather/extract"
	"github.com/use-agent/gather/fetcher"
)

// NewRouter creates a configured Gin engine with all routes.
//
// Middleware chain: Recovery → Logger. Recovery is the last line of
// defence; every expected failure is converted to a structured JSON
// error before it can panic.
func NewRouter(f *fetcher.Fetcher, ex *extract.Extractor, cc *cache.Cache, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(startTime))

	v1.POST("/scrape", handler.Scrape(f, ex, cc, cfg.Fetcher))

	v1.POST("/batch/scrape", handler.PostBatch(f, ex, *cfg))
	v1.GET("/batch/:id", handler.GetBatch())

	return r
}
