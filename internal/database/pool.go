package database

import (
	"context"
	"log/slog"
	"time"

	"raffle/internal/metrics"
)

type HealthCheck struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
}

func (db *DB) HealthCheck(ctx context.Context) HealthCheck {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := db.PingContext(pingCtx)

	stats := db.Stats()
	hc := HealthCheck{
		Status:       "healthy",
		ResponseTime: time.Since(start),
		InUse:        stats.InUse,
		Idle:         stats.Idle,
	}
	if err != nil {
		hc.Status = "unhealthy"
		hc.Error = err.Error()
		slog.Error("Database health check failed", "error", err)
	}
	return hc
}

// ObservePool exports pool gauges and warns when checkouts are likely queueing
// for connections. Each checkout holds one connection for its whole
// transaction.
func (db *DB) ObservePool() {
	stats := db.Stats()

	metrics.DBConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	metrics.DBConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	metrics.DBConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
	metrics.DBWaitSeconds.Set(stats.WaitDuration.Seconds())

	if stats.MaxOpenConnections > 0 && stats.InUse*10 > stats.MaxOpenConnections*9 {
		slog.Warn("Connection pool nearly exhausted",
			"in_use", stats.InUse, "max_open", stats.MaxOpenConnections)
	}
	if stats.WaitCount > 0 && stats.WaitDuration > time.Second {
		slog.Warn("Queries waiting for pooled connections",
			"wait_count", stats.WaitCount, "wait_duration", stats.WaitDuration)
	}
}
