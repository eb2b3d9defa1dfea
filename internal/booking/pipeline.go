package booking

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"ffb.ae/internal/apperr"
	"ffb.ae/internal/audit"
	"ffb.ae/internal/catalog"
	"ffb.ae/internal/guard"
	"ffb.ae/internal/obs"
	"ffb.ae/internal/session"
	"ffb.ae/internal/uploads"
)

const defaultReferenceAttempts = 5

var ErrReferenceExhausted = errors.New("booking: could not allocate a unique reference")

// Gate runs the CSRF and rate-limit checks in front of a submission.
// *guard.Guard satisfies it.
type Gate interface {
	Protect(ctx context.Context, s *session.Session, token, ip string, p guard.Policy) error
}

// ServiceCatalog resolves the service whose stored rates price a booking.
type ServiceCatalog interface {
	FindService(ctx context.Context, id int64) (*catalog.Service, error)
}

// PhotoStore keeps uploaded photos. *uploads.DiskStore satisfies it.
type PhotoStore interface {
	Save(ctx context.Context, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// Photo is one attached file of a submission.
type Photo struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// Submission is one posted booking form.
type Submission struct {
	Session   *session.Session
	CSRFToken string
	ClientIP  string
	Form      Form
	Photos    []Photo
}

// Result is a stored booking and the token of its tracking link.
type Result struct {
	Booking       *Booking
	TrackingToken string
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Gate     Gate
	Catalog  ServiceCatalog
	Store    Store
	Photos   PhotoStore
	Notifier Notifier
	Tracker  *Tracker
	Audit    *audit.Logger
	Metrics  *obs.Metrics
	Logger   *zap.Logger
}

// Pipeline validates, prices and stores booking submissions.
type Pipeline struct {
	gate     Gate
	catalog  ServiceCatalog
	store    Store
	photos   PhotoStore
	notifier Notifier
	tracker  *Tracker
	audit    *audit.Logger
	metrics  *obs.Metrics
	logger   *zap.Logger

	policy    guard.Policy
	maxPhotos int
	attempts  int
	now       func() time.Time
	entropy   io.Reader
}

type Option func(*Pipeline)

// WithPolicy sets the per-IP submission budget.
func WithPolicy(p guard.Policy) Option {
	return func(pl *Pipeline) { pl.policy = p }
}

func WithMaxPhotos(n int) Option {
	return func(pl *Pipeline) {
		if n >= 0 {
			pl.maxPhotos = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(pl *Pipeline) {
		if now != nil {
			pl.now = now
		}
	}
}

// WithEntropy replaces the reference randomness source.
func WithEntropy(r io.Reader) Option {
	return func(pl *Pipeline) {
		if r != nil {
			pl.entropy = r
		}
	}
}

// WithReferenceAttempts bounds retries after reference collisions.
func WithReferenceAttempts(n int) Option {
	return func(pl *Pipeline) {
		if n > 0 {
			pl.attempts = n
		}
	}
}

func NewPipeline(d Deps, opts ...Option) (*Pipeline, error) {
	if d.Gate == nil || d.Catalog == nil || d.Store == nil {
		return nil, errors.New("booking: gate, catalog and store are required")
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	p := &Pipeline{
		gate:      d.Gate,
		catalog:   d.Catalog,
		store:     d.Store,
		photos:    d.Photos,
		notifier:  notifier,
		tracker:   d.Tracker,
		audit:     d.Audit,
		metrics:   d.Metrics,
		logger:    logger.Named("booking"),
		policy:    guard.Policy{Bucket: "booking", Window: time.Hour, Max: 5},
		maxPhotos: 5,
		attempts:  defaultReferenceAttempts,
		now:       time.Now,
		entropy:   rand.Reader,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Quote prices serviceID for the given duration and urgency from the
// stored catalog rates.
func (p *Pipeline) Quote(ctx context.Context, serviceID int64, hours, urgency string) (*catalog.Service, Quote, error) {
	const op = "booking.quote"
	fields := make(map[string]string)
	u, err := ParseUrgency(urgency)
	if err != nil {
		fields["urgency"] = "Please choose regular, priority or emergency."
	}
	h, msg := parseHours(hours)
	if msg != "" {
		fields["estimated_duration"] = msg
	}
	if len(fields) > 0 {
		return nil, Quote{}, apperr.Validation(op, fields)
	}
	svc, err := p.findService(ctx, op, serviceID)
	if err != nil {
		return nil, Quote{}, err
	}
	q, err := ComputeQuote(svc.BasePrice, svc.HourlyRate, h, u)
	if err != nil {
		return nil, Quote{}, apperr.Validation(op, map[string]string{"estimated_duration": "Duration must be greater than zero."})
	}
	return svc, q, nil
}

func (p *Pipeline) findService(ctx context.Context, op string, id int64) (*catalog.Service, error) {
	svc, err := p.catalog.FindService(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, apperr.NotFound(op, err)
	}
	if err != nil {
		p.logger.Error("service lookup failed", zap.Error(err))
		return nil, apperr.Persistence(op, err)
	}
	return svc, nil
}

// Submit runs the whole pipeline: gate, validation, pricing from stored
// rates, photo storage and insertion under a fresh reference. The new
// booking is always pending.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) (*Result, error) {
	const op = "booking.submit"
	if err := p.gate.Protect(ctx, sub.Session, sub.CSRFToken, sub.ClientIP, p.policy); err != nil {
		p.metrics.ObserveBooking(urgencyLabel(sub.Form.Urgency), "rejected")
		return nil, err
	}

	now := p.now()
	req, err := Validate(sub.Form, now)
	if err == nil && len(sub.Photos) > p.maxPhotos {
		err = apperr.Validation("booking.validate", map[string]string{
			"photos": fmt.Sprintf("You can attach at most %d photos.", p.maxPhotos),
		})
	}
	if err != nil {
		p.metrics.ObserveBooking(urgencyLabel(sub.Form.Urgency), "invalid")
		return nil, err
	}

	svc, err := p.findService(ctx, op, req.ServiceID)
	if err != nil {
		p.metrics.ObserveBooking(string(req.Urgency), "invalid")
		return nil, err
	}
	quote, err := ComputeQuote(svc.BasePrice, svc.HourlyRate, req.Hours, req.Urgency)
	if err != nil {
		return nil, apperr.Validation(op, map[string]string{"estimated_duration": "Duration must be greater than zero."})
	}

	keys, err := p.savePhotos(ctx, sub.Photos)
	if err != nil {
		p.metrics.ObserveBooking(string(req.Urgency), "invalid")
		return nil, err
	}

	b := &Booking{
		ServiceID:        svc.ID,
		ServiceName:      svc.NameEN,
		ScheduledDate:    req.Date,
		TimeSlot:         req.TimeSlot,
		Hours:            req.Hours,
		Urgency:          req.Urgency,
		Emirate:          req.Emirate,
		Area:             req.Area,
		PropertyType:     req.PropertyType,
		Address:          req.Address,
		IssueDescription: req.IssueDescription,
		Photos:           keys,
		ClientName:       req.ClientName,
		ClientEmail:      req.ClientEmail,
		ClientPhone:      req.ClientPhone,
		ContactMethod:    req.ContactMethod,
		Quote:            quote,
		Status:           StatusPending,
		ClientIP:         sub.ClientIP,
		CreatedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}
	if err := p.insert(ctx, b); err != nil {
		p.discardPhotos(keys)
		p.metrics.ObserveBooking(string(req.Urgency), "error")
		return nil, err
	}

	if err := p.notifier.BookingCreated(ctx, b); err != nil {
		p.logger.Warn("booking notification failed", zap.String("reference", b.Reference), zap.Error(err))
	}
	_ = p.audit.Event(ctx, audit.BookingCreated,
		zap.String("reference", b.Reference),
		zap.Int64("service_id", b.ServiceID),
		zap.String("urgency", string(b.Urgency)),
		zap.String("total", quote.Total.StringFixed(2)),
	)
	p.metrics.ObserveBooking(string(req.Urgency), "created")

	res := &Result{Booking: b}
	if p.tracker != nil {
		token, err := p.tracker.Issue(b.Reference)
		if err != nil {
			p.logger.Warn("issue tracking token", zap.Error(err))
		} else {
			res.TrackingToken = token
		}
	}
	return res, nil
}

// urgencyLabel keeps client input out of metric label values.
func urgencyLabel(raw string) string {
	u, err := ParseUrgency(raw)
	if err != nil {
		return "unknown"
	}
	return string(u)
}

func (p *Pipeline) insert(ctx context.Context, b *Booking) error {
	const op = "booking.insert"
	for attempt := 1; attempt <= p.attempts; attempt++ {
		ref, err := NewReference(b.CreatedAt, p.entropy)
		if err != nil {
			return apperr.Persistence(op, err)
		}
		b.Reference = ref
		err = p.store.Create(ctx, b)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateReference) {
			p.logger.Error("insert booking", zap.Error(err))
			return apperr.Persistence(op, err)
		}
		p.logger.Info("booking reference collision", zap.String("reference", ref), zap.Int("attempt", attempt))
	}
	b.Reference = ""
	p.logger.Error("booking references exhausted", zap.Int("attempts", p.attempts))
	return apperr.Persistence(op, ErrReferenceExhausted)
}

func (p *Pipeline) savePhotos(ctx context.Context, photos []Photo) ([]string, error) {
	const op = "booking.photos"
	if len(photos) == 0 {
		return nil, nil
	}
	if p.photos == nil {
		return nil, apperr.Validation(op, map[string]string{"photos": "Photo uploads are not available."})
	}
	keys := make([]string, 0, len(photos))
	for _, ph := range photos {
		key, err := p.savePhoto(ctx, ph)
		if err != nil {
			p.discardPhotos(keys)
			switch {
			case errors.Is(err, uploads.ErrUnsupportedType):
				return nil, apperr.Validation(op, map[string]string{"photos": "Photos must be JPEG, PNG or WebP images."})
			case errors.Is(err, uploads.ErrTooLarge):
				return nil, apperr.Validation(op, map[string]string{"photos": "Each photo must be 5 MB or smaller."})
			case errors.Is(err, uploads.ErrEmpty):
				return nil, apperr.Validation(op, map[string]string{"photos": "One of the photos is empty."})
			}
			p.logger.Error("store photo", zap.Error(err))
			return nil, apperr.Persistence(op, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (p *Pipeline) savePhoto(ctx context.Context, ph Photo) (string, error) {
	rc, err := ph.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return p.photos.Save(ctx, rc)
}

func (p *Pipeline) discardPhotos(keys []string) {
	for _, k := range keys {
		if err := p.photos.Delete(context.Background(), k); err != nil {
			p.logger.Warn("discard photo", zap.String("key", k), zap.Error(err))
		}
	}
}

// Track resolves a tracking token to its booking.
func (p *Pipeline) Track(ctx context.Context, token string) (*Booking, error) {
	const op = "booking.track"
	if p.tracker == nil {
		return nil, apperr.NotFound(op, ErrInvalidTrackingToken)
	}
	ref, err := p.tracker.Parse(token)
	if err != nil {
		return nil, apperr.NotFound(op, err)
	}
	b, err := p.store.FindByReference(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound(op, err)
	}
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return b, nil
}
