package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"vehicle-inspection-backend/config"
	"vehicle-inspection-backend/internal/files"
	"vehicle-inspection-backend/internal/inspection"
	"vehicle-inspection-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, svc *inspection.Service, fs files.Store, limiter *mw.IPRateLimiter, log logrus.FieldLogger) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(gin.Recovery(), mw.RequestID(), mw.Logger(log))

	handler := NewHandler(svc, fs, log)

	// Response cache for read endpoints. A zero TTL disables it.
	caching := func(c *gin.Context) { c.Next() }
	var cacheStore *cache.Cache
	if cfg.CacheTTLSeconds > 0 {
		ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
		cacheStore = cache.New(ttl, 2*ttl)
		caching = mw.Cache(cacheStore, ttl)
	}

	// API group
	api := r.Group("/api")
	api.Use(mw.RateLimiter(limiter), mw.Identity())
	if cacheStore != nil {
		api.Use(mw.FlushOnWrite(cacheStore))
	}
	{
		api.GET("/records", caching, handler.ListRecords)
		api.POST("/records", handler.CreateRecord)
		api.GET("/records/:id", handler.GetRecord)
		api.PUT("/records/:id", handler.UpdateRecord)
		api.DELETE("/records/:id", handler.DeleteRecord)
		api.POST("/records/:id/attachments", handler.AddAttachments)
		api.DELETE("/records/:id/attachments/:name", handler.RemoveAttachment)

		api.GET("/uploads/:name", handler.ServeUpload)

		api.GET("/stats/machines", caching, handler.TopMachines)
		api.GET("/stats/trend", caching, handler.Trend)
		api.GET("/stats/issues", caching, handler.TopIssues)
		api.GET("/stats/summary", caching, handler.Summary)
		api.GET("/dashboard", caching, handler.Dashboard)

		api.GET("/export/:format", handler.Export)
		api.GET("/admin/backup", handler.Backup)
		api.POST("/admin/restore", handler.Restore)
	}

	return r
}
