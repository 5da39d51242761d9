// Package reaper periodically expires pending reservations that were not
// paid before they started.
package reaper

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/area-reservation/internal/metrics"
	"github.com/iliyamo/area-reservation/internal/service"
)

// Expirer is the part of the reservation service the reaper drives.
type Expirer interface {
	ExpireDue(ctx context.Context) (service.ExpireResult, error)
}

// Reaper polls Expirer every Interval.
type Reaper struct {
	Expirer  Expirer
	Interval time.Duration
	Metrics  *metrics.Metrics
	Log      logrus.FieldLogger
}

func New(e Expirer, interval time.Duration, m *metrics.Metrics, log logrus.FieldLogger) *Reaper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reaper{Expirer: e, Interval: interval, Metrics: m, Log: log}
}

// Run makes a pass immediately and then on every tick until ctx is done.
// A failed pass is logged and retried on the next tick.
func (r *Reaper) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	r.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.pass(ctx)
		}
	}
}

func (r *Reaper) pass(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
		r.Log.Warnf("reaper: pass failed: %v", err)
	}
}

// RunOnce performs a single pass.
func (r *Reaper) RunOnce(ctx context.Context) (service.ExpireResult, error) {
	start := time.Now()
	res, err := r.Expirer.ExpireDue(ctx)
	r.Metrics.ObserveReaperPass(res.Expired, time.Since(start))
	if err == nil && res.Expired > 0 {
		r.Log.Infof("reaper: expired %d reservation(s)", res.Expired)
	}
	return res, err
}
