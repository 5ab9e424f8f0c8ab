package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultRetentionSchedule runs the purge daily at 03:00.
const DefaultRetentionSchedule = "0 3 * * *"

type purger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Retention periodically purges entries older than the retention window.
type Retention struct {
	cron  *cron.Cron
	store purger
	keep  time.Duration
	now   func() time.Time
}

// NewRetention schedules purges of entries older than days. Cron expressions
// use the standard 5-field format.
func NewRetention(store purger, days int, schedule string) (*Retention, error) {
	if days <= 0 {
		return nil, fmt.Errorf("audit retention must be at least one day (got %d)", days)
	}
	if schedule == "" {
		schedule = DefaultRetentionSchedule
	}
	r := &Retention{
		cron:  cron.New(),
		store: store,
		keep:  time.Duration(days) * 24 * time.Hour,
		now:   time.Now,
	}
	if _, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("audit_retention_failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("registering retention cron %q: %w", schedule, err)
	}
	return r, nil
}

// RunOnce purges immediately.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.keep)
	n, err := r.store.Purge(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.Info().Int64("purged", n).Time("cutoff", cutoff).Msg("audit_retention_completed")
	return n, nil
}

// Start begins the schedule.
func (r *Retention) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running purge.
func (r *Retention) Stop() {
	<-r.cron.Stop().Done()
}
