package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/AhmedAl-shari/GoldVision/internal/cache"
	"github.com/AhmedAl-shari/GoldVision/internal/middleware"
)

// CacheAdmin exposes forecast cache statistics and invalidation
type CacheAdmin interface {
	GetStats() cache.ForecastCacheStats
	Clear(ctx context.Context) error
}

// CacheHandler serves the cache monitoring endpoints
type CacheHandler struct {
	cache  CacheAdmin
	logger *logrus.Logger
}

func NewCacheHandler(cache CacheAdmin, logger *logrus.Logger) *CacheHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CacheHandler{cache: cache, logger: logger}
}

// GetCacheStats handles GET /api/v1/cache/stats
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	stats := h.cache.GetStats()

	hitRate := 0.0
	if lookups := stats.Hits + stats.Misses; lookups > 0 {
		hitRate = float64(stats.Hits) / float64(lookups)
	}

	c.JSON(http.StatusOK, gin.H{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"sets":     stats.Sets,
		"hit_rate": hitRate,
	})
}

// ClearCache handles DELETE /api/v1/cache
func (h *CacheHandler) ClearCache(c *gin.Context) {
	if err := h.cache.Clear(c.Request.Context()); err != nil {
		middleware.RecordError(c, err)
		h.logger.WithError(err).WithField("request_id", middleware.GetRequestID(c)).Error("Failed to clear forecast cache")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to clear cache",
			RequestID: middleware.GetRequestID(c),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
