package booking

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeQuote(t *testing.T) {
	cases := []struct {
		name                 string
		base, hourly, hours  string
		urgency              Urgency
		subtotal, vat, total string
	}{
		{"electrical priority", "180", "75", "2", UrgencyPriority, "330.00", "20.63", "433.13"},
		{"plumbing regular", "120", "55", "1", UrgencyRegular, "175.00", "8.75", "183.75"},
		{"ac emergency half hours", "150", "60", "1.5", UrgencyEmergency, "240.00", "18.00", "378.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := ComputeQuote(d(tc.base), d(tc.hourly), d(tc.hours), tc.urgency)
			require.NoError(t, err)
			assert.Equal(t, tc.subtotal, q.Subtotal.StringFixed(2))
			assert.Equal(t, tc.vat, q.VAT.StringFixed(2))
			assert.Equal(t, tc.total, q.Total.StringFixed(2))
		})
	}
}

func TestComputeQuoteRoundsTotalOnce(t *testing.T) {
	// 412.50 * 1.05 = 433.125 rounds half away from zero.
	q, err := ComputeQuote(d("180"), d("75"), d("2"), UrgencyPriority)
	require.NoError(t, err)
	assert.Equal(t, "412.50", q.Adjusted.StringFixed(2))
	assert.True(t, q.Total.Equal(d("433.13")), "total %s", q.Total)
	assert.True(t, q.Multiplier.Equal(d("1.25")))
}

func TestComputeQuoteRejectsBadInput(t *testing.T) {
	_, err := ComputeQuote(d("180"), d("75"), decimal.Zero, UrgencyRegular)
	assert.True(t, errors.Is(err, ErrInvalidDuration))

	_, err = ComputeQuote(d("180"), d("75"), d("-1"), UrgencyRegular)
	assert.True(t, errors.Is(err, ErrInvalidDuration))

	_, err = ComputeQuote(d("180"), d("75"), d("1"), Urgency("urgent"))
	assert.True(t, errors.Is(err, ErrUnknownUrgency))

	_, err = ComputeQuote(d("180"), d("75"), d("1"), Urgency(""))
	assert.True(t, errors.Is(err, ErrUnknownUrgency))
}

func TestParseUrgency(t *testing.T) {
	for in, want := range map[string]Urgency{
		"regular":    UrgencyRegular,
		" Priority ": UrgencyPriority,
		"EMERGENCY":  UrgencyEmergency,
	} {
		got, err := ParseUrgency(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "asap", "normal"} {
		_, err := ParseUrgency(in)
		assert.ErrorIs(t, err, ErrUnknownUrgency, in)
	}
}

func TestEnumParsers(t *testing.T) {
	e, err := ParseEmirate("ras_al_khaimah")
	require.NoError(t, err)
	assert.Equal(t, "Ras Al Khaimah", e.Label())
	_, err = ParseEmirate("muscat")
	assert.ErrorIs(t, err, ErrUnknownEmirate)

	_, err = ParsePropertyType("castle")
	assert.ErrorIs(t, err, ErrUnknownPropertyType)
	p, err := ParsePropertyType("Villa")
	require.NoError(t, err)
	assert.Equal(t, PropertyVilla, p)

	_, err = ParseContactMethod("fax")
	assert.ErrorIs(t, err, ErrUnknownContactMethod)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusConfirmed))
	assert.True(t, CanTransition(StatusConfirmed, StatusAssigned))
	assert.True(t, CanTransition(StatusAssigned, StatusInProgress))
	assert.True(t, CanTransition(StatusInProgress, StatusCompleted))
	assert.True(t, CanTransition(StatusInProgress, StatusCancelled))

	assert.False(t, CanTransition(StatusPending, StatusCompleted))
	assert.False(t, CanTransition(StatusCompleted, StatusCancelled))
	assert.False(t, CanTransition(StatusCancelled, StatusPending))
	assert.True(t, StatusCompleted.Terminal())
	assert.Empty(t, StatusCancelled.Next())

	_, err := ParseStatus("archived")
	assert.Error(t, err)
}
