package booking

import (
	"context"
	"time"

	"github.com/therapistbooster/booking-platform/internal/observability/metrics"
	"github.com/therapistbooster/booking-platform/pkg/logging"
)

// ReaperStore is the slice of the booking store the reaper needs.
type ReaperStore interface {
	ExpireStaleHolds(ctx context.Context, cutoff time.Time) (int64, error)
}

// Reaper sweeps lapsed holds on a timer. Lazy expiry during reserve keeps a
// stale hold from ever blocking a fresh attempt; the reaper is the cleanup
// path for holds nobody contends for, so availability and reporting stay
// truthful without waiting on traffic.
type Reaper struct {
	store   ReaperStore
	metrics *metrics.BookingMetrics
	logger  *logging.Logger

	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewReaper builds a hold reaper with a 15 minute TTL and 5 minute sweep.
func NewReaper(store ReaperStore, m *metrics.BookingMetrics, logger *logging.Logger) *Reaper {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reaper{
		store:    store,
		metrics:  m,
		logger:   logger,
		ttl:      15 * time.Minute,
		interval: 5 * time.Minute,
		now:      time.Now,
	}
}

// WithTTL overrides the hold TTL. Must match the coordinator's.
func (r *Reaper) WithTTL(ttl time.Duration) *Reaper {
	if ttl > 0 {
		r.ttl = ttl
	}
	return r
}

// WithInterval overrides the sweep cadence.
func (r *Reaper) WithInterval(interval time.Duration) *Reaper {
	if interval > 0 {
		r.interval = interval
	}
	return r
}

// WithNow overrides the clock (for tests).
func (r *Reaper) WithNow(now func() time.Time) *Reaper {
	r.now = now
	return r
}

// Start runs the sweep loop until the context is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("hold reaper started", "ttl", r.ttl, "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("hold reaper stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep.
func (r *Reaper) RunOnce(ctx context.Context) {
	cutoff := r.now().Add(-r.ttl)
	n, err := r.store.ExpireStaleHolds(ctx, cutoff)
	if err != nil {
		r.logger.Error("hold sweep failed", "error", err)
		return
	}
	if n > 0 {
		r.metrics.ObserveHoldsExpired(int(n))
		r.logger.Info("expired stale holds", "count", n, "cutoff", cutoff)
	}
}
