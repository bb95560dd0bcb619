// Package callbackworker publishes a daily digest of post-visit follow-ups.
// It only reads patients; lifecycle changes stay with operators.
package callbackworker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wolfman30/dentalcrm/internal/observability/metrics"
	"github.com/wolfman30/dentalcrm/internal/patients"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

// DefaultSchedule runs the digest at 08:00 clinic time.
const DefaultSchedule = "0 8 * * *"

type dueLister interface {
	DueCallbacks(ctx context.Context, day *patients.Date) ([]patients.DueCallback, error)
}

// Digest counts due follow-ups, logs the queue and updates the due gauge.
type Digest struct {
	source  dueLister
	metrics *metrics.CRMMetrics
	logger  *logging.Logger
	timeout time.Duration
}

func NewDigest(source dueLister, logger *logging.Logger) *Digest {
	if logger == nil {
		logger = logging.Default()
	}
	return &Digest{source: source, logger: logger, timeout: time.Minute}
}

func (d *Digest) WithMetrics(m *metrics.CRMMetrics) *Digest {
	d.metrics = m
	return d
}

// Summary is the outcome of one digest run.
type Summary struct {
	Due     int
	Overdue int
}

// RunOnce computes the digest for today.
func (d *Digest) RunOnce(ctx context.Context) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	due, err := d.source.DueCallbacks(ctx, nil)
	if err != nil {
		d.logger.Error("callback digest failed", "error", err)
		return Summary{}, err
	}
	var sum Summary
	sum.Due = len(due)
	for _, c := range due {
		if c.Overdue {
			sum.Overdue++
		}
		d.logger.Debug("callback due",
			"patient_id", c.PatientID,
			"next_callback_date", c.NextCallbackDate.String(),
			"overdue", c.Overdue,
		)
	}
	d.metrics.SetCallbacksDue(sum.Due, sum.Overdue)
	d.logger.Info("callback digest", "due", sum.Due, "overdue", sum.Overdue)
	return sum, nil
}

// Start schedules the digest on spec (standard 5-field cron) in loc and
// returns the running scheduler. Stop it on shutdown.
func (d *Digest) Start(ctx context.Context, spec string, loc *time.Location) (*cron.Cron, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, func() { _, _ = d.RunOnce(ctx) }); err != nil {
		return nil, err
	}
	c.Start()
	d.logger.Info("callback digest scheduled", "schedule", spec, "timezone", loc.String())
	return c, nil
}
