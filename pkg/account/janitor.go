package account

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/doorman/pkg/observability"
)

// Janitor periodically removes expired sessions and refreshes the
// active-session gauge.
type Janitor struct {
	sessions *SessionManager
	metrics  *observability.Metrics
	cron     *cron.Cron
	log      *logrus.Logger
}

// NewJanitor creates a new session janitor
func NewJanitor(sessions *SessionManager, metrics *observability.Metrics, log *logrus.Logger) *Janitor {
	if log == nil {
		log = logrus.New()
	}
	return &Janitor{
		sessions: sessions,
		metrics:  metrics,
		cron:     cron.New(),
		log:      log,
	}
}

// Start schedules the cleanup job and starts the scheduler
func (j *Janitor) Start(schedule string) error {
	if schedule == "" {
		schedule = "@every 10m"
	}

	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return err
	}

	j.cron.Start()
	j.log.Infof("Session janitor started with schedule %q", schedule)
	return nil
}

// Stop stops the scheduler, waiting for a running job to finish
func (j *Janitor) Stop(ctx context.Context) error {
	stopped := j.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	j.log.Info("Session janitor stopped")
	return nil
}

func (j *Janitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reaped, err := j.sessions.CleanupExpired(ctx)
	if err != nil {
		j.log.WithError(err).Error("Failed to clean up expired sessions")
		return
	}
	if reaped > 0 {
		j.log.Debugf("Reaped %d expired sessions", reaped)
	}

	if j.metrics != nil {
		j.metrics.SessionsReapedTotal.Add(float64(reaped))
		if active, err := j.sessions.CountActive(ctx); err == nil {
			j.metrics.SessionsActive.Set(float64(active))
		}
	}
}
