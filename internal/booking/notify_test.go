package booking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ffb.ae/internal/stream"
)

type recordingFeed struct {
	mu     sync.Mutex
	events []stream.Event
}

func (f *recordingFeed) Publish(evt stream.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

type failingNotifier struct{}

func (failingNotifier) BookingCreated(context.Context, *Booking) error {
	return errors.New("smtp down")
}

func TestFeedNotifierPublishesSummary(t *testing.T) {
	feed := &recordingFeed{}
	b := sampleBooking("FFB-20250301-ABCDEF")
	require.NoError(t, NewFeedNotifier(feed).BookingCreated(context.Background(), b))

	require.Len(t, feed.events, 1)
	evt := feed.events[0]
	assert.Equal(t, stream.BookingCreated, evt.Type)
	assert.Equal(t, "FFB-20250301-ABCDEF", evt.Reference)
	assert.Equal(t, "pending", evt.Status)
	assert.Equal(t, "433.13", evt.Total)
}

func TestNotifiersRunAllAndJoinErrors(t *testing.T) {
	feed := &recordingFeed{}
	ns := Notifiers{failingNotifier{}, NewFeedNotifier(feed)}
	err := ns.BookingCreated(context.Background(), sampleBooking("FFB-20250301-ABCDEF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Len(t, feed.events, 1, "later notifiers still run")
}

func TestBackofficePublishesStatusChanges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, sampleBooking("FFB-20250301-ABCDEF")))
	feed := &recordingFeed{}
	office := NewBackoffice(store, nil, WithFeed(feed))

	_, err := office.SetStatus(ctx, "FFB-20250301-ABCDEF", StatusConfirmed)
	require.NoError(t, err)
	_, err = office.SetStatus(ctx, "FFB-20250301-ABCDEF", StatusCompleted)
	require.Error(t, err)

	require.Len(t, feed.events, 1)
	assert.Equal(t, stream.BookingStatusChanged, feed.events[0].Type)
	assert.Equal(t, "confirmed", feed.events[0].Status)
}
