package jobs

import (
	"context"
	"time"

	"raffle/internal/logger"
)

// Expirer closes pending orders older than maxAge
type Expirer interface {
	ExpirePending(ctx context.Context, maxAge time.Duration, limit int) (int, error)
}

// OrderExpirationJob periodically releases tickets held by abandoned checkouts
type OrderExpirationJob struct {
	expirer  Expirer
	ttl      time.Duration
	interval time.Duration
	batch    int
	afterRun func()

	ticker *time.Ticker
	done   chan struct{}
}

func NewOrderExpirationJob(expirer Expirer, ttl, interval time.Duration, batch int) *OrderExpirationJob {
	return &OrderExpirationJob{
		expirer:  expirer,
		ttl:      ttl,
		interval: interval,
		batch:    batch,
		done:     make(chan struct{}),
	}
}

// AfterRun registers a hook called after every sweep, e.g. pool diagnostics
func (j *OrderExpirationJob) AfterRun(fn func()) {
	j.afterRun = fn
}

func (j *OrderExpirationJob) Start(ctx context.Context) {
	logger.Get().Info("Starting order expiration job",
		"check_interval", j.interval.String(),
		"reservation_ttl", j.ttl.String(),
		"batch", j.batch)

	j.ticker = time.NewTicker(j.interval)

	go func() {
		// первый прогон сразу, не дожидаясь тикера
		j.RunOnce(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.RunOnce(ctx)
			case <-ctx.Done():
				return
			case <-j.done:
				logger.Get().Info("Order expiration job stopped")
				return
			}
		}
	}()
}

func (j *OrderExpirationJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

// RunOnce sweeps one batch. Sweeps never overlap since the loop is sequential.
func (j *OrderExpirationJob) RunOnce(ctx context.Context) int {
	start := time.Now()
	expired, err := j.expirer.ExpirePending(ctx, j.ttl, j.batch)
	if err != nil {
		logger.Get().Error("Failed to expire pending orders", "error", err, "processed", expired)
	} else if expired > 0 {
		logger.Get().Info("Expired pending orders",
			"count", expired,
			"elapsed", time.Since(start).String())
	} else {
		logger.Get().Debug("No expired orders found")
	}

	if j.afterRun != nil {
		j.afterRun()
	}
	return expired
}
