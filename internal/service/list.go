package service

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/iliyamo/area-reservation/internal/model"
	"github.com/iliyamo/area-reservation/internal/repository"
)

// UserFilter narrows ListForUser.  Upcoming keeps reservations starting
// after the moment iteration begins.
type UserFilter struct {
	Statuses []model.Status
	Upcoming bool
}

// DateRange keeps reservations overlapping [From, To).  A zero bound is
// open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// ListForUser yields the user's reservations ordered by start, then id.
// The sequence is lazy: the store is read one page at a time, and each
// range over it starts a fresh scan.
func (s *ReservationService) ListForUser(ctx context.Context, userID string, f UserFilter) iter.Seq2[model.Reservation, error] {
	return s.paged(ctx, "service.ListForUser",
		func() (repository.ListQuery, error) {
			q := repository.ListQuery{Statuses: f.Statuses}
			if f.Upcoming {
				q.StartAfter = s.clock.Now()
			}
			return q, nil
		},
		func(ctx context.Context, q repository.ListQuery) ([]model.Reservation, error) {
			return s.store.ListByUser(ctx, userID, q)
		})
}

// ListForArea yields the area's reservations overlapping dr, optionally
// restricted to statuses, ordered by start, then id.
func (s *ReservationService) ListForArea(ctx context.Context, areaID uint64, dr DateRange, statuses ...model.Status) iter.Seq2[model.Reservation, error] {
	return s.paged(ctx, "service.ListForArea",
		func() (repository.ListQuery, error) {
			if !dr.From.IsZero() && !dr.To.IsZero() && !dr.From.Before(dr.To) {
				return repository.ListQuery{}, model.ErrInvalidRange
			}
			return repository.ListQuery{Statuses: statuses, From: dr.From, To: dr.To}, nil
		},
		func(ctx context.Context, q repository.ListQuery) ([]model.Reservation, error) {
			return s.store.ListByArea(ctx, areaID, q)
		})
}

// paged turns a keyset-paginated store listing into a sequence.  An error
// is yielded once and ends the sequence.
func (s *ReservationService) paged(
	ctx context.Context,
	op string,
	build func() (repository.ListQuery, error),
	fetch func(context.Context, repository.ListQuery) ([]model.Reservation, error),
) iter.Seq2[model.Reservation, error] {
	return func(yield func(model.Reservation, error) bool) {
		q, err := build()
		if err != nil {
			yield(model.Reservation{}, fmt.Errorf("%s: %w", op, err))
			return
		}
		q.Limit = s.opts.PageSize
		for {
			page, err := fetch(ctx, q)
			if err != nil {
				yield(model.Reservation{}, fmt.Errorf("%s: %w", op, err))
				return
			}
			for _, r := range page {
				if !yield(r, nil) {
					return
				}
			}
			if len(page) < q.Limit {
				return
			}
			q.After = repository.CursorOf(page[len(page)-1])
		}
	}
}

// Collect drains seq, stopping at the first error.
func Collect(seq iter.Seq2[model.Reservation, error]) ([]model.Reservation, error) {
	out := make([]model.Reservation, 0)
	for r, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}
