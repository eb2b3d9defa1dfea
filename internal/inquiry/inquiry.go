// Package inquiry handles the contact form and newsletter sign-ups.
package inquiry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ffb.ae/internal/apperr"
	"ffb.ae/internal/audit"
	"ffb.ae/internal/guard"
	"ffb.ae/internal/obs"
	"ffb.ae/internal/session"
)

// Gate runs the CSRF and rate-limit checks. *guard.Guard satisfies it.
type Gate interface {
	Protect(ctx context.Context, s *session.Session, token, ip string, p guard.Policy) error
}

type ContactMessage struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	ClientIP  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type Subscriber struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Locale    string    `json:"locale"`
	ClientIP  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists inquiries.
type Store interface {
	SaveContact(ctx context.Context, m *ContactMessage) error
	// Subscribe adds s unless the address is already on the list. created
	// reports which case happened.
	Subscribe(ctx context.Context, s *Subscriber) (created bool, err error)
}

// ContactForm is the posted contact form. Website is a honeypot that real
// visitors never see.
type ContactForm struct {
	Name    string `form:"name" validate:"required,min=2,max=100"`
	Email   string `form:"email" validate:"required,email,max=254"`
	Phone   string `form:"phone" validate:"omitempty,max=30"`
	Subject string `form:"subject" validate:"required,max=150"`
	Message string `form:"message" validate:"required,min=10,max=5000"`
	Website string `form:"website"`
}

type NewsletterForm struct {
	Email   string `form:"email" validate:"required,email,max=254"`
	Locale  string `form:"locale" validate:"omitempty,oneof=en ar"`
	Website string `form:"website"`
}

// Envelope carries the guard inputs of a posted form.
type Envelope struct {
	Session   *session.Session
	CSRFToken string
	ClientIP  string
}

type Deps struct {
	Gate    Gate
	Store   Store
	Audit   *audit.Logger
	Metrics *obs.Metrics
	Logger  *zap.Logger
}

// Service runs both funnels.
type Service struct {
	gate    Gate
	store   Store
	audit   *audit.Logger
	metrics *obs.Metrics
	logger  *zap.Logger

	ContactPolicy    guard.Policy
	NewsletterPolicy guard.Policy
	now              func() time.Time
}

func NewService(d Deps) (*Service, error) {
	if d.Gate == nil || d.Store == nil {
		return nil, errors.New("inquiry: gate and store are required")
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gate:             d.Gate,
		store:            d.Store,
		audit:            d.Audit,
		metrics:          d.Metrics,
		logger:           logger.Named("inquiry"),
		ContactPolicy:    guard.Policy{Bucket: "contact", Window: time.Hour, Max: 5},
		NewsletterPolicy: guard.Policy{Bucket: "newsletter", Window: time.Hour, Max: 3},
		now:              time.Now,
	}, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
	})
	return v
}

func fieldErrors(op string, form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Validation(op, map[string]string{"form": "Invalid submission."})
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "This field is required."
		case "email":
			fields[fe.Field()] = "Please enter a valid email address."
		case "min":
			fields[fe.Field()] = fmt.Sprintf("Must be at least %s characters.", fe.Param())
		case "max":
			fields[fe.Field()] = fmt.Sprintf("Must be at most %s characters.", fe.Param())
		default:
			fields[fe.Field()] = "Invalid value."
		}
	}
	return apperr.Validation(op, fields)
}

// Contact stores a contact message. A filled honeypot is accepted and
// dropped so bots get no signal.
func (s *Service) Contact(ctx context.Context, env Envelope, form ContactForm) (*ContactMessage, error) {
	const op = "inquiry.contact"
	if err := s.gate.Protect(ctx, env.Session, env.CSRFToken, env.ClientIP, s.ContactPolicy); err != nil {
		return nil, err
	}
	form = trimContact(form)
	if form.Website != "" {
		s.logger.Info("contact honeypot triggered", zap.String("ip", env.ClientIP))
		return &ContactMessage{}, nil
	}
	if err := fieldErrors(op, form); err != nil {
		return nil, err
	}
	m := &ContactMessage{
		Name:      form.Name,
		Email:     strings.ToLower(form.Email),
		Phone:     form.Phone,
		Subject:   form.Subject,
		Message:   form.Message,
		ClientIP:  env.ClientIP,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.SaveContact(ctx, m); err != nil {
		s.logger.Error("save contact message", zap.Error(err))
		return nil, apperr.Persistence(op, err)
	}
	s.metrics.ObserveInquiry("contact")
	_ = s.audit.Event(ctx, audit.InquiryReceived, zap.Int64("message_id", m.ID))
	return m, nil
}

// Subscribe adds an address to the newsletter. Subscribing twice succeeds
// without saying whether the address was already present.
func (s *Service) Subscribe(ctx context.Context, env Envelope, form NewsletterForm) (*Subscriber, error) {
	const op = "inquiry.subscribe"
	if err := s.gate.Protect(ctx, env.Session, env.CSRFToken, env.ClientIP, s.NewsletterPolicy); err != nil {
		return nil, err
	}
	form.Email = strings.ToLower(strings.TrimSpace(form.Email))
	form.Locale = strings.ToLower(strings.TrimSpace(form.Locale))
	if strings.TrimSpace(form.Website) != "" {
		return &Subscriber{}, nil
	}
	if err := fieldErrors(op, form); err != nil {
		return nil, err
	}
	if form.Locale == "" {
		form.Locale = "en"
	}
	sub := &Subscriber{Email: form.Email, Locale: form.Locale, ClientIP: env.ClientIP, CreatedAt: s.now().UTC()}
	created, err := s.store.Subscribe(ctx, sub)
	if err != nil {
		s.logger.Error("save subscriber", zap.Error(err))
		return nil, apperr.Persistence(op, err)
	}
	if created {
		s.metrics.ObserveInquiry("newsletter")
		_ = s.audit.Event(ctx, audit.NewsletterSignedUp, zap.Int64("subscriber_id", sub.ID))
	}
	return sub, nil
}

func trimContact(f ContactForm) ContactForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Subject = strings.TrimSpace(f.Subject)
	f.Message = strings.TrimSpace(f.Message)
	f.Website = strings.TrimSpace(f.Website)
	return f
}
