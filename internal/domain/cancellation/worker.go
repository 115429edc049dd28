package cancellation

import (
	"context"
	"time"

	"github.com/bookloop/bookloop-api/internal/pkg/lock"
	"github.com/bookloop/bookloop-api/internal/pkg/logger"
)

// Worker runs Sweep periodically. A shared lock keeps concurrent instances
// from sweeping at the same time.
type Worker struct {
	svc      *Service
	locker   lock.Locker
	interval time.Duration
	batch    int
	stopCh   chan struct{}
}

const sweepLockKey = "lock:cancellation:expiry-sweep"

// NewWorker creates the expiry worker
func NewWorker(svc *Service, locker lock.Locker, interval time.Duration, batch int) *Worker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Worker{
		svc:      svc,
		locker:   locker,
		interval: interval,
		batch:    batch,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background worker
func (w *Worker) Start() {
	logger.LogInfo(context.Background(), "Starting cancellation expiry worker", "interval", w.interval.String())
	go w.loop()
}

// Stop gracefully stops the background worker
func (w *Worker) Stop() {
	logger.LogInfo(context.Background(), "Stopping cancellation expiry worker")
	close(w.stopCh)
}

func (w *Worker) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce()

	for {
		select {
		case <-ticker.C:
			w.RunOnce()
		case <-w.stopCh:
			return
		}
	}
}

// RunOnce performs a single guarded sweep and reports whether it ran.
func (w *Worker) RunOnce() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if w.locker != nil {
		release, err := w.locker.TryLock(ctx, sweepLockKey, w.interval)
		if err != nil {
			logger.LogDebug(ctx, "Expiry sweep skipped", "reason", err.Error())
			return false
		}
		defer release()
	}

	if _, err := w.svc.Sweep(ctx, w.batch); err != nil {
		logger.LogError(ctx, err, "Expiry sweep failed")
	}
	return true
}
