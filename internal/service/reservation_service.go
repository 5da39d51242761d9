// Package service orchestrates reservations: it validates requests against
// the area catalog and booking rules, prices them, persists them through a
// repository.Store and reports every outcome as metrics, logs and events.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/area-reservation/internal/clock"
	"github.com/iliyamo/area-reservation/internal/lifecycle"
	"github.com/iliyamo/area-reservation/internal/metrics"
	"github.com/iliyamo/area-reservation/internal/model"
	"github.com/iliyamo/area-reservation/internal/pricing"
	"github.com/iliyamo/area-reservation/internal/queue"
	"github.com/iliyamo/area-reservation/internal/repository"
)

// Options are the booking rules.
type Options struct {
	MaxAdvance     time.Duration // latest start accepted, relative to now
	MaxDuration    time.Duration // longest reservation; zero means unbounded
	ExpiryGrace    time.Duration // pending reservations expire at start - grace
	PageSize       int           // store page size behind the list iterators
	MaxNotesLength int           // in runes
	ExpireBatch    int           // reservations expired per store round trip
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MaxAdvance:     30 * 24 * time.Hour,
		MaxDuration:    12 * time.Hour,
		PageSize:       50,
		MaxNotesLength: 500,
		ExpireBatch:    100,
	}
}

// Deps are the collaborators of ReservationService.  Store and Areas are
// required; the rest default to the real clock, no events, no metrics and
// the standard logger.
type Deps struct {
	Store   repository.Store
	Areas   repository.AreaCatalog
	Pricing pricing.Policy
	Clock   clock.Clock
	Events  queue.Publisher
	Metrics *metrics.Metrics
	Log     logrus.FieldLogger
}

type ReservationService struct {
	store   repository.Store
	areas   repository.AreaCatalog
	pricing pricing.Policy
	clock   clock.Clock
	events  queue.Publisher
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	opts    Options
}

func New(d Deps, opts Options) *ReservationService {
	def := DefaultOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	if opts.MaxNotesLength <= 0 {
		opts.MaxNotesLength = def.MaxNotesLength
	}
	if opts.ExpireBatch <= 0 {
		opts.ExpireBatch = def.ExpireBatch
	}
	if opts.MaxAdvance <= 0 {
		opts.MaxAdvance = def.MaxAdvance
	}
	s := &ReservationService{
		store:   d.Store,
		areas:   d.Areas,
		pricing: d.Pricing,
		clock:   d.Clock,
		events:  d.Events,
		metrics: d.Metrics,
		log:     d.Log,
		opts:    opts,
	}
	if s.pricing.Base.IsZero() && s.pricing.Increment.IsZero() {
		s.pricing = pricing.DefaultPolicy()
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.events == nil {
		s.events = queue.NoopPublisher{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

// CreateRequest is a booking attempt by UserID.
type CreateRequest struct {
	UserID     string
	AreaID     uint64
	Start      time.Time
	End        time.Time
	GuestCount int
	Notes      string
}

// Create validates req and books the slot.  Preconditions are checked in
// order and the first failure is returned: range, area, booking window,
// capacity, notes, then availability.  Availability and insert are a
// single atomic store call, so two overlapping requests can never both
// succeed.
func (s *ReservationService) Create(ctx context.Context, req CreateRequest) (model.Reservation, error) {
	const op = "service.Create"

	res, err := s.create(ctx, req)
	s.metrics.ObserveCreate(result(err))
	l := s.log.WithFields(logrus.Fields{"op": op, "area_id": req.AreaID, "user_id": req.UserID})
	if err != nil {
		logOutcome(l, err, "reservation rejected")
		return model.Reservation{}, fmt.Errorf("%s: %w", op, err)
	}
	l.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"start":          res.Range.Start,
		"end":            res.Range.End,
		"total_price":    res.TotalPrice.StringFixed(2),
	}).Info("reservation created")
	s.publish(ctx, queue.EventCreated, res, "")
	return res, nil
}

func (s *ReservationService) create(ctx context.Context, req CreateRequest) (model.Reservation, error) {
	tr, err := model.NewTimeRange(req.Start, req.End)
	if err != nil {
		return model.Reservation{}, err
	}
	area, err := s.areas.GetArea(ctx, req.AreaID)
	if err != nil {
		return model.Reservation{}, err
	}
	if !area.IsActive {
		return model.Reservation{}, model.ErrAreaInactive
	}

	now := s.clock.Now()
	if err := s.checkWindow(tr, now); err != nil {
		return model.Reservation{}, err
	}

	if req.GuestCount <= 0 || !area.Fits(req.GuestCount) {
		return model.Reservation{}, fmt.Errorf("%d guests, area accepts %d-%d: %w",
			req.GuestCount, area.MinCapacity, area.MaxCapacity, model.ErrCapacityExceeded)
	}
	if err := s.checkNotes(req.Notes); err != nil {
		return model.Reservation{}, err
	}

	price, err := s.pricing.PriceRange(tr)
	if err != nil {
		return model.Reservation{}, err
	}
	res := model.Reservation{
		ID:              uuid.NewString(),
		AreaID:          area.ID,
		UserID:          req.UserID,
		Range:           tr,
		GuestCount:      req.GuestCount,
		Status:          model.StatusPending,
		TotalPrice:      price,
		Notes:           req.Notes,
		CreatedAt:       now,
		StatusChangedAt: now,
	}
	if err := s.store.Create(ctx, res); err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

func (s *ReservationService) checkWindow(tr model.TimeRange, now time.Time) error {
	switch {
	case tr.Start.Before(now):
		return fmt.Errorf("start %s is in the past: %w", tr.Start.Format(time.RFC3339), model.ErrInvalidBookingWindow)
	case tr.Start.After(now.Add(s.opts.MaxAdvance)):
		return fmt.Errorf("start is more than %s ahead: %w", s.opts.MaxAdvance, model.ErrInvalidBookingWindow)
	case s.opts.MaxDuration > 0 && tr.Duration() > s.opts.MaxDuration:
		return fmt.Errorf("duration exceeds %s: %w", s.opts.MaxDuration, model.ErrInvalidBookingWindow)
	}
	return nil
}

func (s *ReservationService) checkNotes(notes string) error {
	if utf8.RuneCountInString(notes) > s.opts.MaxNotesLength {
		return fmt.Errorf("at most %d characters: %w", s.opts.MaxNotesLength, model.ErrInvalidNotes)
	}
	return nil
}

// ConfirmPayment records that the owner paid a pending reservation.  The
// price is the one fixed at creation.
func (s *ReservationService) ConfirmPayment(ctx context.Context, id, userID string) (model.Reservation, error) {
	const op = "service.ConfirmPayment"
	res, err := s.transition(ctx, id, lifecycle.ActionPay, func(r model.Reservation) bool {
		return r.OwnedBy(userID)
	})
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	s.publish(ctx, queue.EventPaid, res, "")
	return res, nil
}

// Cancel cancels a pending or paid reservation before it starts.  The
// owner and admins may cancel.
func (s *ReservationService) Cancel(ctx context.Context, id string, actor model.Actor) (model.Reservation, error) {
	const op = "service.Cancel"
	res, err := s.transition(ctx, id, lifecycle.ActionCancel, actor.CanAccess)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	by := actor.UserID
	if actor.Admin && !res.OwnedBy(actor.UserID) {
		by = "admin:" + actor.UserID
	}
	s.publish(ctx, queue.EventCancelled, res, by)
	return res, nil
}

// transition loads id, authorizes the caller, validates action against
// the lifecycle and persists it as a compare-and-swap on the loaded
// status.  A concurrent change between load and swap surfaces as
// model.ErrInvalidStatusTransition.
func (s *ReservationService) transition(ctx context.Context, id string, action lifecycle.Action, allowed func(model.Reservation) bool) (model.Reservation, error) {
	l := s.log.WithFields(logrus.Fields{"op": "service.transition", "action": action, "reservation_id": id})
	res, err := s.doTransition(ctx, id, action, allowed)
	s.metrics.ObserveTransition(string(action), result(err))
	if err != nil {
		logOutcome(l, err, "transition rejected")
		return model.Reservation{}, err
	}
	l.WithField("status", res.Status).Info("reservation status changed")
	return res, nil
}

func (s *ReservationService) doTransition(ctx context.Context, id string, action lifecycle.Action, allowed func(model.Reservation) bool) (model.Reservation, error) {
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if !allowed(cur) {
		return model.Reservation{}, model.ErrForbidden
	}
	t, err := lifecycle.Apply(cur, action, s.clock.Now(), s.opts.ExpiryGrace)
	if err != nil {
		return model.Reservation{}, err
	}
	return s.store.Transition(ctx, id, t)
}

// UpdateNotes replaces the notes of the owner's pending reservation.
func (s *ReservationService) UpdateNotes(ctx context.Context, id, userID, notes string) (model.Reservation, error) {
	const op = "service.UpdateNotes"
	if err := s.checkNotes(notes); err != nil {
		return model.Reservation{}, fmt.Errorf("%s: %w", op, err)
	}
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("%s: %w", op, err)
	}
	if !cur.OwnedBy(userID) {
		return model.Reservation{}, fmt.Errorf("%s: %w", op, model.ErrForbidden)
	}
	if cur.Status != model.StatusPending {
		return model.Reservation{}, fmt.Errorf("%s: notes are read-only once %s: %w", op, cur.Status, model.ErrInvalidStatusTransition)
	}
	res, err := s.store.UpdateNotes(ctx, id, notes)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// Get returns a reservation visible to actor.
func (s *ReservationService) Get(ctx context.Context, id string, actor model.Actor) (model.Reservation, error) {
	const op = "service.Get"
	res, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("%s: %w", op, err)
	}
	if !actor.CanAccess(res) {
		return model.Reservation{}, fmt.Errorf("%s: %w", op, model.ErrForbidden)
	}
	return res, nil
}

// Availability is the answer of CheckAvailability.
type Availability struct {
	AreaID    uint64
	Range     model.TimeRange
	Available bool
}

// CheckAvailability is a read-only check.  A positive answer does not
// reserve anything; Create re-checks atomically.
func (s *ReservationService) CheckAvailability(ctx context.Context, areaID uint64, start, end time.Time) (Availability, error) {
	const op = "service.CheckAvailability"
	tr, err := model.NewTimeRange(start, end)
	if err != nil {
		return Availability{}, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.areas.GetArea(ctx, areaID); err != nil {
		return Availability{}, fmt.Errorf("%s: %w", op, err)
	}
	free, err := s.store.IsAvailable(ctx, areaID, tr, "")
	if err != nil {
		return Availability{}, fmt.Errorf("%s: %w", op, err)
	}
	return Availability{AreaID: areaID, Range: tr, Available: free}, nil
}

// Quote prices [start, end) without booking it.
func (s *ReservationService) Quote(start, end time.Time) (pricing.Quote, error) {
	tr, err := model.NewTimeRange(start, end)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("service.Quote: %w", err)
	}
	return s.pricing.Quote(tr)
}

func (s *ReservationService) publish(ctx context.Context, t queue.EventType, res model.Reservation, actor string) {
	ev := queue.NewReservationEvent(t, res, s.clock.Now())
	ev.Actor = actor
	// the request may already be finishing; events get their own deadline
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.events.Publish(pctx, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"event": t, "reservation_id": res.ID}).Warn("event publish failed")
	}
}

// result is the metrics label of an outcome.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	return model.Code(err)
}

// logOutcome logs expected rejections at info and everything else at
// error.
func logOutcome(l logrus.FieldLogger, err error, msg string) {
	l = l.WithError(err).WithField("code", model.Code(err))
	if errors.Is(err, model.ErrStorageUnavailable) || model.Code(err) == "internal" {
		l.Error(msg)
		return
	}
	l.Info(msg)
}
