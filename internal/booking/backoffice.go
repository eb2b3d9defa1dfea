package booking

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ffb.ae/internal/apperr"
	"ffb.ae/internal/audit"
	"ffb.ae/internal/stream"
)

// Dashboard is the admin overview.
type Dashboard struct {
	Counts map[Status]int `json:"counts"`
	Total  int            `json:"total"`
	Recent []*Booking     `json:"recent"`
}

// Backoffice serves the admin side of bookings.
type Backoffice struct {
	store Store
	audit *audit.Logger
	feed  Publisher
	now   func() time.Time
}

type BackofficeOption func(*Backoffice)

// WithFeed publishes status changes to feed.
func WithFeed(feed Publisher) BackofficeOption {
	return func(o *Backoffice) { o.feed = feed }
}

func NewBackoffice(store Store, auditLog *audit.Logger, opts ...BackofficeOption) *Backoffice {
	o := &Backoffice{store: store, audit: auditLog, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Backoffice) Dashboard(ctx context.Context, recent int) (*Dashboard, error) {
	const op = "booking.dashboard"
	counts, err := o.store.CountByStatus(ctx)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	list, err := o.store.ListRecent(ctx, recent)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	d := &Dashboard{Counts: make(map[Status]int, len(Statuses)), Recent: list}
	for _, s := range Statuses {
		d.Counts[s] = counts[s]
		d.Total += counts[s]
	}
	return d, nil
}

func (o *Backoffice) Find(ctx context.Context, reference string) (*Booking, error) {
	const op = "booking.find"
	if !ValidReference(reference) {
		return nil, apperr.NotFound(op, ErrNotFound)
	}
	b, err := o.store.FindByReference(ctx, reference)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound(op, err)
	}
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return b, nil
}

// SetStatus moves a booking along the workflow. Steps outside the
// transition table are validation errors.
func (o *Backoffice) SetStatus(ctx context.Context, reference string, to Status) (*Booking, error) {
	const op = "booking.set_status"
	b, err := o.Find(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, to) {
		return nil, apperr.Validation(op, map[string]string{"status": "This status change is not allowed."})
	}
	at := o.now().UTC()
	err = o.store.UpdateStatus(ctx, reference, b.Status, to, at)
	switch {
	case errors.Is(err, ErrStatusConflict):
		return nil, apperr.Validation(op, map[string]string{"status": "The booking was updated by someone else. Please reload."})
	case errors.Is(err, ErrNotFound):
		return nil, apperr.NotFound(op, err)
	case err != nil:
		return nil, apperr.Persistence(op, err)
	}
	_ = o.audit.Event(ctx, audit.BookingStatusSet,
		zap.String("reference", reference),
		zap.String("from", string(b.Status)),
		zap.String("to", string(to)),
	)
	b.Status = to
	b.UpdatedAt = at
	if o.feed != nil {
		o.feed.Publish(feedEvent(stream.BookingStatusChanged, b, at))
	}
	return b, nil
}
