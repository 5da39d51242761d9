package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/area-reservation/internal/model"
)

func TestPrice_FixedPoints(t *testing.T) {
	p := DefaultPolicy()
	cases := map[int]string{
		1:   "5.00",
		30:  "5.00",
		60:  "5.00",
		61:  "7.50",
		120: "7.50",
		121: "10.00",
		180: "10.00",
		720: "32.50",
	}
	for minutes, want := range cases {
		got, err := p.Price(minutes)
		require.NoError(t, err)
		assert.Equal(t, want, got.StringFixed(2), "%d minutes", minutes)
	}
}

func TestPrice_RejectsNonPositive(t *testing.T) {
	p := DefaultPolicy()
	for _, m := range []int{0, -1} {
		_, err := p.Price(m)
		assert.ErrorIs(t, err, model.ErrInvalidDuration)
	}
}

func TestPrice_Monotonic(t *testing.T) {
	p := DefaultPolicy()
	prev := decimal.Zero
	for m := 1; m <= 24*60; m++ {
		got, err := p.Price(m)
		require.NoError(t, err)
		assert.True(t, got.GreaterThanOrEqual(prev), "price dropped at %d minutes", m)
		prev = got
	}
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy("8.00", "3.25")
	require.NoError(t, err)
	got, err := p.Price(150)
	require.NoError(t, err)
	assert.Equal(t, "14.50", got.StringFixed(2))

	_, err = NewPolicy("-1", "2")
	assert.Error(t, err)
	_, err = NewPolicy("abc", "2")
	assert.Error(t, err)
}

func TestQuote(t *testing.T) {
	start := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)
	r, err := model.NewTimeRange(start, start.Add(61*time.Minute))
	require.NoError(t, err)

	q, err := DefaultPolicy().Quote(r)
	require.NoError(t, err)
	assert.Equal(t, 61, q.DurationMinutes)
	assert.Equal(t, 2, q.BilledHours)
	assert.Equal(t, "7.50", q.Total.StringFixed(2))

	_, err = DefaultPolicy().Quote(model.TimeRange{})
	assert.ErrorIs(t, err, model.ErrInvalidRange)
}
