package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/area-reservation/internal/clock"
	"github.com/iliyamo/area-reservation/internal/logger"
	"github.com/iliyamo/area-reservation/internal/metrics"
	"github.com/iliyamo/area-reservation/internal/model"
	"github.com/iliyamo/area-reservation/internal/queue"
	"github.com/iliyamo/area-reservation/internal/repository"
)

var now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *ReservationService
	clock   *clock.Fake
	events  *queue.Recorder
	store   *repository.MemoryStore
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		clock:   clock.NewFake(now),
		events:  &queue.Recorder{},
		store:   repository.NewMemoryStore(),
		metrics: metrics.New(),
	}
	areas := repository.NewStaticCatalog(
		model.Area{ID: 1, Name: "Main Hall", MinCapacity: 1, MaxCapacity: 40, IsActive: true},
		model.Area{ID: 2, Name: "Terrace", MinCapacity: 2, MaxCapacity: 16, IsActive: true},
		model.Area{ID: 3, Name: "Closed Room", MinCapacity: 1, MaxCapacity: 10, IsActive: false},
	)
	f.svc = New(Deps{
		Store:   f.store,
		Areas:   areas,
		Clock:   f.clock,
		Events:  f.events,
		Metrics: f.metrics,
		Log:     logger.Discard(),
	}, opts)
	return f
}

func booking(user string, area uint64, fromH, toMin int) CreateRequest {
	start := now.Add(time.Duration(fromH) * time.Hour)
	return CreateRequest{
		UserID:     user,
		AreaID:     area,
		Start:      start,
		End:        start.Add(time.Duration(toMin) * time.Minute),
		GuestCount: 2,
	}
}

func TestCreate_PricesAndPublishes(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	res, err := f.svc.Create(context.Background(), booking("u1", 1, 2, 90))
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, res.Status)
	assert.Equal(t, "7.50", res.TotalPrice.StringFixed(2))
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, now, res.CreatedAt)
	assert.Equal(t, []queue.EventType{queue.EventCreated}, f.events.Types())

	stored, err := f.svc.Get(context.Background(), res.ID, model.Actor{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, res.ID, stored.ID)
}

func TestCreate_RejectionsInOrder(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	tests := []struct {
		name string
		mod  func(*CreateRequest)
		want error
	}{
		{"end before start", func(r *CreateRequest) { r.End = r.Start.Add(-time.Minute) }, model.ErrInvalidRange},
		{"empty range", func(r *CreateRequest) { r.End = r.Start }, model.ErrInvalidRange},
		{"unknown area", func(r *CreateRequest) { r.AreaID = 99 }, model.ErrNotFound},
		{"inactive area", func(r *CreateRequest) { r.AreaID = 3 }, model.ErrAreaInactive},
		{"start in the past", func(r *CreateRequest) {
			r.Start = now.Add(-time.Minute)
			r.End = now.Add(time.Hour)
		}, model.ErrInvalidBookingWindow},
		{"too far ahead", func(r *CreateRequest) {
			r.Start = now.Add(31 * 24 * time.Hour)
			r.End = r.Start.Add(time.Hour)
		}, model.ErrInvalidBookingWindow},
		{"too long", func(r *CreateRequest) { r.End = r.Start.Add(13 * time.Hour) }, model.ErrInvalidBookingWindow},
		{"too many guests", func(r *CreateRequest) { r.GuestCount = 41 }, model.ErrCapacityExceeded},
		{"no guests", func(r *CreateRequest) { r.GuestCount = 0 }, model.ErrCapacityExceeded},
		{"under minimum", func(r *CreateRequest) {
			r.AreaID = 2
			r.GuestCount = 1
		}, model.ErrCapacityExceeded},
		{"notes too long", func(r *CreateRequest) { r.Notes = strings.Repeat("x", 501) }, model.ErrInvalidNotes},
		{"inactive area with long notes", func(r *CreateRequest) {
			r.AreaID = 3
			r.Notes = strings.Repeat("x", 501)
		}, model.ErrAreaInactive},
		{"oversized with long notes", func(r *CreateRequest) {
			r.GuestCount = 41
			r.Notes = strings.Repeat("x", 501)
		}, model.ErrCapacityExceeded},
		// window is checked before capacity
		{"past and oversized", func(r *CreateRequest) {
			r.Start = now.Add(-time.Hour)
			r.End = now.Add(time.Hour)
			r.GuestCount = 100
		}, model.ErrInvalidBookingWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := booking("u1", 1, 2, 60)
			tt.mod(&req)
			_, err := f.svc.Create(ctx, req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.events.Events())
}

func TestCreate_OverlapIsSlotUnavailable(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	_, err := f.svc.Create(ctx, booking("u1", 1, 2, 120))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, booking("u2", 1, 3, 60))
	assert.ErrorIs(t, err, model.ErrSlotUnavailable)

	// touching ranges and other areas are fine
	_, err = f.svc.Create(ctx, booking("u2", 1, 4, 60))
	assert.NoError(t, err)
	_, err = f.svc.Create(ctx, booking("u2", 2, 3, 60))
	assert.NoError(t, err)

	// one series per result: ok and slot_unavailable
	n, err := testutil.GatherAndCount(f.metrics.Registry(), "reservation_create_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCreate_ConcurrentRequestsOneWinner(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	const n = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		won  []model.Reservation
		lost int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Create(ctx, booking(fmt.Sprintf("u%d", i), 1, 2, 60))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				won = append(won, res)
			} else if errors.Is(err, model.ErrSlotUnavailable) {
				lost++
			}
		}(i)
	}
	wg.Wait()
	require.Len(t, won, 1)
	assert.Equal(t, n-1, lost)
	assert.Equal(t, "5.00", won[0].TotalPrice.StringFixed(2))
}

func TestPayAndCancel(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	res, err := f.svc.Create(ctx, booking("u1", 1, 2, 60))
	require.NoError(t, err)

	_, err = f.svc.ConfirmPayment(ctx, res.ID, "someone-else")
	assert.ErrorIs(t, err, model.ErrForbidden)

	paid, err := f.svc.ConfirmPayment(ctx, res.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, paid.Status)
	assert.Equal(t, res.TotalPrice, paid.TotalPrice)

	_, err = f.svc.ConfirmPayment(ctx, res.ID, "u1")
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)

	_, err = f.svc.Cancel(ctx, res.ID, model.Actor{UserID: "u2"})
	assert.ErrorIs(t, err, model.ErrForbidden)

	cancelled, err := f.svc.Cancel(ctx, res.ID, model.Actor{UserID: "ops", Admin: true})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	evs := f.events.Events()
	require.Len(t, evs, 3)
	assert.Equal(t, queue.EventCancelled, evs[2].Type)
	assert.Equal(t, "admin:ops", evs[2].Actor)

	// the slot is free again
	_, err = f.svc.Create(ctx, booking("u2", 1, 2, 60))
	assert.NoError(t, err)
}

func TestCancel_AfterStartIsRejected(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	res, err := f.svc.Create(ctx, booking("u1", 1, 2, 60))
	require.NoError(t, err)
	_, err = f.svc.ConfirmPayment(ctx, res.ID, "u1")
	require.NoError(t, err)

	f.clock.Advance(2*time.Hour + time.Minute)
	_, err = f.svc.Cancel(ctx, res.ID, model.Actor{UserID: "u1"})
	assert.ErrorIs(t, err, model.ErrReservationAlreadyStarted)
}

func TestExpireDue_ThenPayFails(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	soon, err := f.svc.Create(ctx, booking("u1", 1, 1, 60))
	require.NoError(t, err)
	later, err := f.svc.Create(ctx, booking("u1", 1, 5, 60))
	require.NoError(t, err)
	paid, err := f.svc.Create(ctx, booking("u1", 2, 1, 60))
	require.NoError(t, err)
	_, err = f.svc.ConfirmPayment(ctx, paid.ID, "u1")
	require.NoError(t, err)

	f.clock.Set(soon.Range.Start)
	out, err := f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpireResult{Scanned: 1, Expired: 1}, out)

	// a second pass finds nothing
	out, err = f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpireResult{}, out)

	_, err = f.svc.ConfirmPayment(ctx, soon.ID, "u1")
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)

	got, err := f.svc.Get(ctx, later.ID, model.Actor{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)

	got, err = f.svc.Get(ctx, paid.ID, model.Actor{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, got.Status)
}

func TestExpireDue_GraceAndBatches(t *testing.T) {
	opts := DefaultOptions()
	opts.ExpiryGrace = 30 * time.Minute
	opts.ExpireBatch = 2
	f := newFixture(t, opts)
	ctx := context.Background()

	for h := 1; h <= 5; h++ {
		_, err := f.svc.Create(ctx, booking("u1", 1, h, 60))
		require.NoError(t, err)
	}

	// 30 minutes before the fifth start
	f.clock.Set(now.Add(4*time.Hour + 30*time.Minute))
	out, err := f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, out.Expired)
	assert.Equal(t, 5, out.Scanned)
}

func TestUpdateNotes(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	res, err := f.svc.Create(ctx, booking("u1", 1, 2, 60))
	require.NoError(t, err)

	got, err := f.svc.UpdateNotes(ctx, res.ID, "u1", "birthday")
	require.NoError(t, err)
	assert.Equal(t, "birthday", got.Notes)

	_, err = f.svc.UpdateNotes(ctx, res.ID, "u2", "mine now")
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.svc.UpdateNotes(ctx, res.ID, "u1", strings.Repeat("é", 501))
	assert.ErrorIs(t, err, model.ErrInvalidNotes)

	_, err = f.svc.ConfirmPayment(ctx, res.ID, "u1")
	require.NoError(t, err)
	_, err = f.svc.UpdateNotes(ctx, res.ID, "u1", "too late")
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)
}

func TestCheckAvailabilityAndQuote(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	res, err := f.svc.Create(ctx, booking("u1", 1, 2, 60))
	require.NoError(t, err)

	av, err := f.svc.CheckAvailability(ctx, 1, res.Range.Start.Add(30*time.Minute), res.Range.End.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, av.Available)

	av, err = f.svc.CheckAvailability(ctx, 1, res.Range.End, res.Range.End.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, av.Available)

	_, err = f.svc.CheckAvailability(ctx, 99, res.Range.Start, res.Range.End)
	assert.ErrorIs(t, err, model.ErrNotFound)

	q, err := f.svc.Quote(now, now.Add(121*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, q.BilledHours)
	assert.Equal(t, "10.00", q.Total.StringFixed(2))

	_, err = f.svc.Quote(now, now)
	assert.ErrorIs(t, err, model.ErrInvalidRange)
}

func TestLifecycle_ConcurrentPayAndCancel(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	for round := 0; round < 50; round++ {
		res, err := f.svc.Create(ctx, booking("u1", 1, 2+round%20, 30))
		require.NoError(t, err)

		var (
			wg            sync.WaitGroup
			pays, cancels atomic.Int32
			unexpected    = make(chan error, 6)
		)
		for i := 0; i < 3; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, err := f.svc.ConfirmPayment(ctx, res.ID, "u1")
				switch {
				case err == nil:
					pays.Add(1)
				case !errors.Is(err, model.ErrInvalidStatusTransition):
					unexpected <- err
				}
			}()
			go func() {
				defer wg.Done()
				_, err := f.svc.Cancel(ctx, res.ID, model.Actor{UserID: "u1"})
				switch {
				case err == nil:
					cancels.Add(1)
				case !errors.Is(err, model.ErrInvalidStatusTransition):
					unexpected <- err
				}
			}()
		}
		wg.Wait()
		close(unexpected)
		for err := range unexpected {
			t.Fatalf("round %d: %v", round, err)
		}

		assert.LessOrEqual(t, pays.Load(), int32(1))
		require.Equal(t, int32(1), cancels.Load(), "a pending or paid reservation is cancelled exactly once")

		got, err := f.svc.Get(ctx, res.ID, model.Actor{UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, got.Status)
	}
}

func TestLifecycle_ExpireRacesPayAndCancel(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	res, err := f.svc.Create(ctx, booking("u1", 1, 1, 60))
	require.NoError(t, err)
	f.clock.Set(res.Range.Start)

	var (
		wg      sync.WaitGroup
		expired atomic.Int32
		errs    = make(chan error, 8)
	)
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			out, err := f.svc.ExpireDue(ctx)
			if err != nil {
				errs <- err
				return
			}
			expired.Add(int32(out.Expired))
		}()
		go func() {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = f.svc.ConfirmPayment(ctx, res.ID, "u1")
			} else {
				_, err = f.svc.Cancel(ctx, res.ID, model.Actor{UserID: "u1"})
			}
			if !errors.Is(err, model.ErrReservationAlreadyStarted) && !errors.Is(err, model.ErrInvalidStatusTransition) {
				errs <- fmt.Errorf("pay or cancel at start: %v", err)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	assert.Equal(t, int32(1), expired.Load())
	got, err := f.svc.Get(ctx, res.ID, model.Actor{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, got.Status)
}
