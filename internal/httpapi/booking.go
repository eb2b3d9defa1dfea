package httpapi

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ffb.ae/internal/apperr"
	"ffb.ae/internal/booking"
	"ffb.ae/internal/guard"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling file parts to disk.
const multipartMemory = 8 << 20

// photoFields are the accepted names of the file input.
var photoFields = []string{"photos", "photos[]"}

// parseForm reads urlencoded and multipart bodies alike.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

func csrfFrom(r *http.Request) string {
	if v := r.PostFormValue(guard.CSRFField); v != "" {
		return v
	}
	return r.Header.Get(guard.CSRFHeader)
}

type quoteView struct {
	ServiceID   int64  `json:"service_id"`
	ServiceName string `json:"service_name"`
	BasePrice   string `json:"base_price"`
	HourlyRate  string `json:"hourly_rate"`
	Hours       string `json:"hours"`
	Urgency     string `json:"urgency"`
	Multiplier  string `json:"multiplier"`
	Subtotal    string `json:"subtotal"`
	Adjusted    string `json:"adjusted"`
	VAT         string `json:"vat"`
	Total       string `json:"total"`
	Currency    string `json:"currency"`
}

func viewQuote(id int64, name string, q booking.Quote) quoteView {
	return quoteView{
		ServiceID:   id,
		ServiceName: name,
		BasePrice:   q.BasePrice.StringFixed(2),
		HourlyRate:  q.HourlyRate.StringFixed(2),
		Hours:       q.Hours.String(),
		Urgency:     string(q.Urgency),
		Multiplier:  q.Multiplier.StringFixed(2),
		Subtotal:    q.Subtotal.StringFixed(2),
		Adjusted:    q.Adjusted.StringFixed(2),
		VAT:         q.VAT.StringFixed(2),
		Total:       q.Total.StringFixed(2),
		Currency:    "AED",
	}
}

// quote prices a prospective booking for the review step.
func (a *API) quote(w http.ResponseWriter, r *http.Request) {
	const op = "http.quote"
	if err := parseForm(r); err != nil {
		a.formError(w, r, op, err)
		return
	}
	id, err := strconv.ParseInt(strings.TrimSpace(r.PostFormValue("service_id")), 10, 64)
	if err != nil || id <= 0 {
		a.fail(w, r, op, apperr.Validation(op, map[string]string{"service_id": "Please choose a service."}))
		return
	}
	svc, q, err := a.bookings.Quote(r.Context(), id, r.PostFormValue("estimated_duration"), r.PostFormValue("urgency"))
	if err != nil {
		a.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"quote":   viewQuote(svc.ID, svc.NameEN, q),
	})
}

// wizardStep validates one page of the wizard and stores its fields in the
// session.
func (a *API) wizardStep(w http.ResponseWriter, r *http.Request) {
	const op = "http.booking_step"
	if err := parseForm(r); err != nil {
		a.formError(w, r, op, err)
		return
	}
	s := currentSession(r)
	if err := a.guard.Protect(r.Context(), s, csrfFrom(r), clientIP(r), a.wizPolicy); err != nil {
		a.fail(w, r, op, err)
		return
	}
	step, err := strconv.Atoi(r.PostFormValue("step"))
	if err != nil {
		a.fail(w, r, op, apperr.Validation(op, map[string]string{"step": "Unknown step."}))
		return
	}

	wiz := booking.LoadWizard(s)
	values := make(map[string]string)
	for _, f := range booking.Step(step).Fields() {
		values[f] = r.PostFormValue(f)
	}
	next, advErr := wiz.Advance(booking.Step(step), values, a.now())
	if err := wiz.Save(s); err != nil {
		a.fail(w, r, op, apperr.Persistence(op, err))
		return
	}
	a.saveSession(w, r, s)
	if advErr != nil {
		a.fail(w, r, op, advErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"next_step": int(next),
		"step_name": next.Name(),
		"ready":     wiz.Ready(),
	})
}

func collectPhotos(r *http.Request) []booking.Photo {
	if r.MultipartForm == nil {
		return nil
	}
	var out []booking.Photo
	for _, name := range photoFields {
		for _, fh := range r.MultipartForm.File[name] {
			out = append(out, photoFrom(fh))
		}
	}
	return out
}

func photoFrom(fh *multipart.FileHeader) booking.Photo {
	return booking.Photo{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}

// submitBooking is the final form post. The price is always computed on the
// server; any price fields in the body are ignored.
func (a *API) submitBooking(w http.ResponseWriter, r *http.Request) {
	const op = "http.booking_submit"
	if err := parseForm(r); err != nil {
		a.formError(w, r, op, err)
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	s := currentSession(r)
	res, err := a.bookings.Submit(r.Context(), booking.Submission{
		Session:   s,
		CSRFToken: csrfFrom(r),
		ClientIP:  clientIP(r),
		Form:      booking.FormFromValues(r.PostFormValue),
		Photos:    collectPhotos(r),
	})
	if err != nil {
		a.fail(w, r, op, err)
		return
	}

	booking.ResetWizard(s)
	a.saveSession(w, r, s)

	body := map[string]any{
		"success":           true,
		"booking_reference": res.Booking.Reference,
		"status":            res.Booking.Status,
		"total_price":       res.Booking.Quote.Total.StringFixed(2),
		"currency":          "AED",
	}
	if res.TrackingToken != "" {
		body["tracking_url"] = a.trackingURL(res.TrackingToken)
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *API) trackingURL(token string) string {
	base := strings.TrimRight(a.cfg.BaseURL, "/")
	return base + "/api/bookings/track?" + url.Values{"token": {token}}.Encode()
}

type trackView struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	ServiceName   string `json:"service_name"`
	ScheduledDate string `json:"scheduled_date"`
	TimeSlot      string `json:"time_slot"`
	Urgency       string `json:"urgency"`
	Total         string `json:"total_price"`
}

func (a *API) trackBooking(w http.ResponseWriter, r *http.Request) {
	const op = "http.booking_track"
	b, err := a.bookings.Track(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		a.fail(w, r, op, err)
		return
	}
	a.logger.Debug("booking tracked", zap.String("reference", b.Reference))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"booking": trackView{
			Reference:     b.Reference,
			Status:        string(b.Status),
			ServiceName:   b.ServiceName,
			ScheduledDate: b.ScheduledDate.Format("2006-01-02"),
			TimeSlot:      b.TimeSlot,
			Urgency:       string(b.Urgency),
			Total:         b.Quote.Total.StringFixed(2),
		},
	})
}
