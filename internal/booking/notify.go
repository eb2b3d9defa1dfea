package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"ffb.ae/internal/stream"
)

// Notifier is told about every stored booking. Failures never fail the
// booking itself.
type Notifier interface {
	BookingCreated(ctx context.Context, b *Booking) error
}

// LogNotifier records the confirmation hand-off in the service log. Mail
// delivery is handled outside this process.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) BookingCreated(_ context.Context, b *Booking) error {
	n.logger.Info("booking confirmation queued",
		zap.String("reference", b.Reference),
		zap.String("service", b.ServiceName),
		zap.String("urgency", string(b.Urgency)),
		zap.String("contact_method", string(b.ContactMethod)),
		zap.String("email_domain", emailDomain(b.ClientEmail)),
	)
	return nil
}

func emailDomain(email string) string {
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return email[i+1:]
	}
	return ""
}

// Publisher receives feed events. *stream.Hub satisfies it.
type Publisher interface {
	Publish(evt stream.Event)
}

// FeedNotifier puts new bookings on the back-office activity feed.
type FeedNotifier struct {
	feed Publisher
}

func NewFeedNotifier(feed Publisher) *FeedNotifier {
	return &FeedNotifier{feed: feed}
}

func (n *FeedNotifier) BookingCreated(_ context.Context, b *Booking) error {
	n.feed.Publish(feedEvent(stream.BookingCreated, b, b.CreatedAt))
	return nil
}

// Notifiers calls each notifier in turn and joins their errors.
type Notifiers []Notifier

func (ns Notifiers) BookingCreated(ctx context.Context, b *Booking) error {
	var errs []error
	for _, n := range ns {
		if err := n.BookingCreated(ctx, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func feedEvent(kind string, b *Booking, at time.Time) stream.Event {
	return stream.Event{
		Type:        kind,
		Reference:   b.Reference,
		Status:      string(b.Status),
		ServiceName: b.ServiceName,
		Urgency:     string(b.Urgency),
		Emirate:     string(b.Emirate),
		Total:       b.Quote.Total.StringFixed(2),
		At:          at.UTC(),
	}
}
