package booking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"ffb.ae/internal/apperr"
	"ffb.ae/internal/audit"
)

func TestBackofficeStatusWorkflow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, sampleBooking("FFB-20250301-ABCDEF")))

	core, logs := observer.New(zap.InfoLevel)
	office := NewBackoffice(store, audit.New(zap.New(core)))

	for _, next := range []Status{StatusConfirmed, StatusAssigned, StatusInProgress, StatusCompleted} {
		b, err := office.SetStatus(ctx, "FFB-20250301-ABCDEF", next)
		require.NoError(t, err)
		assert.Equal(t, next, b.Status)
	}
	assert.Equal(t, 4, logs.FilterField(zap.String("event", audit.BookingStatusSet)).Len())

	_, err := office.SetStatus(ctx, "FFB-20250301-ABCDEF", StatusCancelled)
	assert.Contains(t, fieldsOf(t, err), "status")
}

func TestBackofficeRejectsSkippedStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, sampleBooking("FFB-20250301-ABCDEF")))
	office := NewBackoffice(store, nil)

	_, err := office.SetStatus(ctx, "FFB-20250301-ABCDEF", StatusCompleted)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	b, err := office.Find(ctx, "FFB-20250301-ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, b.Status)
}

func TestBackofficeNotFoundHidesReference(t *testing.T) {
	office := NewBackoffice(NewMemoryStore(), nil)
	for _, ref := range []string{"FFB-20250301-ZZZZZZ", "'; drop table bookings; --"} {
		_, err := office.Find(context.Background(), ref)
		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.KindNotFound, e.Kind)
		assert.NotContains(t, e.Message, ref)
	}
}

func TestBackofficeDashboard(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, sampleBooking("FFB-20250301-ABCDEF")))
	require.NoError(t, store.Create(ctx, sampleBooking("FFB-20250301-BCDEFG")))
	office := NewBackoffice(store, nil)
	_, err := office.SetStatus(ctx, "FFB-20250301-BCDEFG", StatusCancelled)
	require.NoError(t, err)

	dash, err := office.Dashboard(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, dash.Total)
	assert.Equal(t, 1, dash.Counts[StatusPending])
	assert.Equal(t, 1, dash.Counts[StatusCancelled])
	assert.Equal(t, 0, dash.Counts[StatusCompleted])
	assert.Len(t, dash.Recent, 2)
}
