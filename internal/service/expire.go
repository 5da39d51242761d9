package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/area-reservation/internal/lifecycle"
	"github.com/iliyamo/area-reservation/internal/model"
	"github.com/iliyamo/area-reservation/internal/queue"
)

// ExpireResult summarizes one ExpireDue call.
type ExpireResult struct {
	Scanned int // due pending reservations read from the store
	Expired int // transitions this call performed
	Skipped int // lost a race (paid or cancelled meanwhile)
}

// ExpireDue moves every pending reservation whose start (minus the grace
// period) has been reached to expired.  Reservations that change status
// concurrently are skipped, so running it twice, or from two processes,
// is harmless.
func (s *ReservationService) ExpireDue(ctx context.Context) (ExpireResult, error) {
	const op = "service.ExpireDue"

	var out ExpireResult
	now := s.clock.Now()
	cutoff := now.Add(s.opts.ExpiryGrace)
	for {
		batch, err := s.store.ListDuePending(ctx, cutoff, s.opts.ExpireBatch)
		if err != nil {
			return out, fmt.Errorf("%s: %w", op, err)
		}
		out.Scanned += len(batch)
		expired := 0
		for _, r := range batch {
			t, err := lifecycle.Apply(r, lifecycle.ActionExpire, now, s.opts.ExpiryGrace)
			if err == nil {
				r, err = s.store.Transition(ctx, r.ID, t)
			}
			switch {
			case err == nil:
				expired++
				s.metrics.ObserveTransition(string(lifecycle.ActionExpire), "ok")
				s.publish(ctx, queue.EventExpired, r, "")
			case errors.Is(err, model.ErrInvalidStatusTransition):
				out.Skipped++
			default:
				out.Expired += expired
				return out, fmt.Errorf("%s: %w", op, err)
			}
		}
		out.Expired += expired
		// a full batch with no progress would be returned again
		if len(batch) < s.opts.ExpireBatch || expired == 0 {
			break
		}
	}
	if out.Expired > 0 || out.Skipped > 0 {
		s.log.WithFields(logrus.Fields{"op": op, "expired": out.Expired, "skipped": out.Skipped}).Info("expired due reservations")
	}
	return out, nil
}
