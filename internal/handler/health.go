package handler

import (
	"context"
	"net/http"
	"time"

	"restorant/internal/infra"
	"restorant/internal/repository"
	"restorant/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity plus the ledger breaker; never exposes
// credentials or internals. A down ledger alone is degraded, not unhealthy:
// settlements still queue as long as Redis is up.
func Health(db *gorm.DB, rdb *redis.Client, cb *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		var fallidos, alertas int64
		if rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		} else {
			fallidos, _ = rdb.LLen(ctx, repository.DLQLiquidacion).Result()
			alertas, _ = worker.JobsFallidos(ctx, rdb, worker.QueueAlertas)
		}

		status := http.StatusOK
		if redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":                status == http.StatusOK,
			"degraded":          dbStatus != "connected",
			"db":                dbStatus,
			"redis":             redisStatus,
			"ledger_circuit":    cb.State().String(),
			"liquidaciones_dlq": fallidos,
			"alertas_dlq":       alertas,
		})
	}
}
