package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/area-reservation/internal/model"
)

var start = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func reservation(s model.Status) model.Reservation {
	return model.Reservation{
		ID:     "r1",
		Status: s,
		Range:  model.TimeRange{Start: start, End: start.Add(time.Hour)},
	}
}

func TestApply_HappyPaths(t *testing.T) {
	before := start.Add(-time.Hour)

	tr, err := Apply(reservation(model.StatusPending), ActionPay, before, 0)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, tr.From)
	assert.Equal(t, model.StatusPaid, tr.To)
	assert.Equal(t, before, tr.At)

	tr, err = Apply(reservation(model.StatusPaid), ActionCancel, before, 0)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, tr.To)

	tr, err = Apply(reservation(model.StatusPending), ActionExpire, start, 0)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, tr.To)
}

func TestApply_NoTransitionLeavesTerminalStates(t *testing.T) {
	before := start.Add(-time.Hour)
	for _, s := range []model.Status{model.StatusCancelled, model.StatusExpired} {
		for _, a := range []Action{ActionPay, ActionCancel, ActionExpire} {
			// both before and after start: status wins over time
			for _, now := range []time.Time{before, start.Add(time.Hour)} {
				_, err := Apply(reservation(s), a, now, 0)
				assert.ErrorIs(t, err, model.ErrInvalidStatusTransition, "%s from %s", a, s)
			}
		}
		for _, to := range model.AllStatuses {
			assert.False(t, CanTransition(s, to))
		}
	}
}

func TestApply_PayAndCancelStopAtStart(t *testing.T) {
	_, err := Apply(reservation(model.StatusPending), ActionPay, start, 0)
	assert.ErrorIs(t, err, model.ErrReservationAlreadyStarted)

	_, err = Apply(reservation(model.StatusPaid), ActionCancel, start.Add(time.Minute), 0)
	assert.ErrorIs(t, err, model.ErrReservationAlreadyStarted)

	_, err = Apply(reservation(model.StatusPaid), ActionPay, start.Add(-time.Hour), 0)
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)
}

func TestApply_ExpireRespectsGrace(t *testing.T) {
	grace := 15 * time.Minute
	_, err := Apply(reservation(model.StatusPending), ActionExpire, start.Add(-20*time.Minute), grace)
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)

	_, err = Apply(reservation(model.StatusPending), ActionExpire, start.Add(-15*time.Minute), grace)
	assert.NoError(t, err)

	_, err = Apply(reservation(model.StatusPaid), ActionExpire, start.Add(time.Hour), 0)
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(model.StatusPending, model.StatusPaid))
	assert.True(t, CanTransition(model.StatusPending, model.StatusCancelled))
	assert.True(t, CanTransition(model.StatusPaid, model.StatusCancelled))
	assert.True(t, CanTransition(model.StatusPending, model.StatusExpired))
	assert.False(t, CanTransition(model.StatusPaid, model.StatusExpired))
	assert.False(t, CanTransition(model.StatusPaid, model.StatusPending))
}
