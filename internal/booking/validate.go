package booking

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"ffb.ae/internal/apperr"
)

const (
	// MaxHours caps a single visit.
	MaxHours = 12
	// MaxDaysAhead is how far into the future a visit can be booked.
	MaxDaysAhead = 90
)

var (
	halfHour = decimal.RequireFromString("0.5")
	maxHours = decimal.NewFromInt(MaxHours)

	phoneStrip = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	uaePhone   = regexp.MustCompile(`^(?:\+971|00971|0)(?:5[0-9]|[2-4679])[0-9]{7}$`)
)

// Form is the raw booking submission keyed by form field name. Anything the
// client posts that is not listed here, prices included, is never read.
type Form struct {
	ServiceID         string `form:"service_id" validate:"required"`
	BookingDate       string `form:"booking_date" validate:"required,datetime=2006-01-02"`
	BookingTime       string `form:"booking_time" validate:"required,datetime=15:04"`
	EstimatedDuration string `form:"estimated_duration" validate:"required"`
	Urgency           string `form:"urgency" validate:"required"`
	Emirate           string `form:"emirate" validate:"required"`
	Area              string `form:"area" validate:"required,max=100"`
	PropertyType      string `form:"property_type" validate:"required"`
	Address           string `form:"address" validate:"required,min=5,max=500"`
	IssueDescription  string `form:"issue_description" validate:"required,min=10,max=2000"`
	ClientName        string `form:"client_name" validate:"required,min=2,max=100"`
	ClientEmail       string `form:"client_email" validate:"required,email,max=254"`
	ClientPhone       string `form:"client_phone" validate:"required,uae_phone"`
	ContactMethod     string `form:"contact_method" validate:"required"`
	TermsAccepted     string `form:"terms_accepted" validate:"required"`
}

// FormFromValues reads every known field through get, trimming spaces.
func FormFromValues(get func(key string) string) Form {
	v := func(key string) string { return strings.TrimSpace(get(key)) }
	return Form{
		ServiceID:         v("service_id"),
		BookingDate:       v("booking_date"),
		BookingTime:       v("booking_time"),
		EstimatedDuration: v("estimated_duration"),
		Urgency:           v("urgency"),
		Emirate:           v("emirate"),
		Area:              v("area"),
		PropertyType:      v("property_type"),
		Address:           v("address"),
		IssueDescription:  v("issue_description"),
		ClientName:        v("client_name"),
		ClientEmail:       v("client_email"),
		ClientPhone:       v("client_phone"),
		ContactMethod:     v("contact_method"),
		TermsAccepted:     v("terms_accepted"),
	}
}

// Request is a fully validated booking.
type Request struct {
	ServiceID        int64
	Date             time.Time
	TimeSlot         string
	Hours            decimal.Decimal
	Urgency          Urgency
	Emirate          Emirate
	Area             string
	PropertyType     PropertyType
	Address          string
	IssueDescription string
	ClientName       string
	ClientEmail      string
	ClientPhone      string
	ContactMethod    ContactMethod
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("uae_phone", func(fl validator.FieldLevel) bool {
		return uaePhone.MatchString(phoneStrip.Replace(fl.Field().String()))
	})
	return v
}

// NormalizePhone strips separators and rewrites a valid UAE number to
// +971 form. The second result is false for numbers that do not validate.
func NormalizePhone(raw string) (string, bool) {
	p := phoneStrip.Replace(strings.TrimSpace(raw))
	if !uaePhone.MatchString(p) {
		return "", false
	}
	switch {
	case strings.HasPrefix(p, "+971"):
		return p, true
	case strings.HasPrefix(p, "00971"):
		return "+" + p[2:], true
	default:
		return "+971" + p[1:], true
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Please enter a valid email address."
	case "uae_phone":
		return "Please enter a valid UAE phone number."
	case "datetime":
		if fe.Param() == "15:04" {
			return "Please choose a valid time."
		}
		return "Please choose a valid date."
	case "min":
		return fmt.Sprintf("Must be at least %s characters.", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	default:
		return "Invalid value."
	}
}

// parseHours accepts a positive duration of at most MaxHours in half-hour
// steps. A non-empty message describes the problem.
func parseHours(raw string) (decimal.Decimal, string) {
	hours, err := decimal.NewFromString(strings.TrimSpace(raw))
	switch {
	case err != nil:
		return decimal.Decimal{}, "Please enter the duration in hours."
	case !hours.IsPositive():
		return decimal.Decimal{}, "Duration must be greater than zero."
	case hours.GreaterThan(maxHours):
		return decimal.Decimal{}, fmt.Sprintf("Duration can be at most %d hours.", MaxHours)
	case !hours.Mod(halfHour).IsZero():
		return decimal.Decimal{}, "Duration must be in half-hour steps."
	}
	return hours, ""
}

func acceptedTerms(v string) bool {
	switch strings.ToLower(v) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}

// check validates every field and returns the parsed request together with
// per-field messages.
func check(f Form, now time.Time) (Request, map[string]string) {
	errs := make(map[string]string)
	if err := validate.Struct(f); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			errs["form"] = "Invalid submission."
			return Request{}, errs
		}
		for _, fe := range fieldErrs {
			if _, seen := errs[fe.Field()]; !seen {
				errs[fe.Field()] = fieldMessage(fe)
			}
		}
	}
	fail := func(field, msg string) {
		if _, seen := errs[field]; !seen {
			errs[field] = msg
		}
	}

	var req Request
	req.Area = f.Area
	req.Address = f.Address
	req.IssueDescription = f.IssueDescription
	req.ClientName = f.ClientName
	req.ClientEmail = strings.ToLower(f.ClientEmail)
	req.TimeSlot = f.BookingTime

	if id, err := strconv.ParseInt(f.ServiceID, 10, 64); err != nil || id <= 0 {
		fail("service_id", "Please select a service.")
	} else {
		req.ServiceID = id
	}

	today := now.In(Dubai)
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, Dubai)
	if date, err := time.ParseInLocation("2006-01-02", f.BookingDate, Dubai); err == nil {
		switch {
		case date.Before(today):
			fail("booking_date", "Please choose a date that is not in the past.")
		case date.After(today.AddDate(0, 0, MaxDaysAhead)):
			fail("booking_date", fmt.Sprintf("Bookings can be made up to %d days ahead.", MaxDaysAhead))
		default:
			req.Date = date
		}
		if slot, err := time.ParseInLocation("2006-01-02 15:04", f.BookingDate+" "+f.BookingTime, Dubai); err == nil &&
			date.Equal(today) && !slot.After(now) {
			fail("booking_time", "Please choose a later time today.")
		}
	}

	if f.EstimatedDuration != "" {
		if hours, msg := parseHours(f.EstimatedDuration); msg != "" {
			fail("estimated_duration", msg)
		} else {
			req.Hours = hours
		}
	}

	if f.Urgency != "" {
		if u, err := ParseUrgency(f.Urgency); err != nil {
			fail("urgency", "Please choose regular, priority or emergency.")
		} else {
			req.Urgency = u
		}
	}
	if f.Emirate != "" {
		if e, err := ParseEmirate(f.Emirate); err != nil {
			fail("emirate", "Please choose an emirate.")
		} else {
			req.Emirate = e
		}
	}
	if f.PropertyType != "" {
		if p, err := ParsePropertyType(f.PropertyType); err != nil {
			fail("property_type", "Please choose a property type.")
		} else {
			req.PropertyType = p
		}
	}
	if f.ContactMethod != "" {
		if c, err := ParseContactMethod(f.ContactMethod); err != nil {
			fail("contact_method", "Please choose how we should contact you.")
		} else {
			req.ContactMethod = c
		}
	}
	if phone, ok := NormalizePhone(f.ClientPhone); ok {
		req.ClientPhone = phone
	}
	if f.TermsAccepted != "" && !acceptedTerms(f.TermsAccepted) {
		fail("terms_accepted", "Please accept the terms to continue.")
	}
	return req, errs
}

// Validate checks a complete submission.
func Validate(f Form, now time.Time) (*Request, error) {
	req, errs := check(f, now)
	if len(errs) > 0 {
		return nil, apperr.Validation("booking.validate", errs)
	}
	return &req, nil
}

// ValidateStep returns the messages for the fields that belong to step.
func ValidateStep(step Step, f Form, now time.Time) map[string]string {
	_, all := check(f, now)
	out := make(map[string]string)
	for _, field := range step.Fields() {
		if msg, ok := all[field]; ok {
			out[field] = msg
		}
	}
	return out
}
