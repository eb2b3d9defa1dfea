package httpapi

import (
	"net/http"

	"ffb.ae/internal/inquiry"
)

func (a *API) envelope(r *http.Request) inquiry.Envelope {
	return inquiry.Envelope{
		Session:   currentSession(r),
		CSRFToken: csrfFrom(r),
		ClientIP:  clientIP(r),
	}
}

func (a *API) submitContact(w http.ResponseWriter, r *http.Request) {
	const op = "http.contact"
	if err := parseForm(r); err != nil {
		a.formError(w, r, op, err)
		return
	}
	_, err := a.inquiries.Contact(r.Context(), a.envelope(r), inquiry.ContactForm{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Phone:   r.PostFormValue("phone"),
		Subject: r.PostFormValue("subject"),
		Message: r.PostFormValue("message"),
		Website: r.PostFormValue("website"),
	})
	if err != nil {
		a.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Thank you. We will get back to you shortly.",
	})
}

func (a *API) submitNewsletter(w http.ResponseWriter, r *http.Request) {
	const op = "http.newsletter"
	if err := parseForm(r); err != nil {
		a.formError(w, r, op, err)
		return
	}
	_, err := a.inquiries.Subscribe(r.Context(), a.envelope(r), inquiry.NewsletterForm{
		Email:   r.PostFormValue("email"),
		Locale:  r.PostFormValue("locale"),
		Website: r.PostFormValue("website"),
	})
	if err != nil {
		a.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "You are subscribed.",
	})
}
