package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ffb.ae/internal/catalog"
	"ffb.ae/internal/guard"
)

// csrfToken returns the session's token, creating the session on first use.
func (a *API) csrfToken(w http.ResponseWriter, r *http.Request) {
	s := currentSession(r)
	token, issued, err := guard.CSRFToken(s)
	if err != nil {
		a.fail(w, r, "http.csrf_token", err)
		return
	}
	if issued || s.IsNew() {
		a.saveSession(w, r, s)
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]any{"csrf_token": token})
}

type serviceView struct {
	catalog.Service
	BasePrice  string `json:"base_price"`
	HourlyRate string `json:"hourly_rate"`
}

func viewService(s catalog.Service) serviceView {
	return serviceView{
		Service:    s,
		BasePrice:  s.BasePrice.StringFixed(2),
		HourlyRate: s.HourlyRate.StringFixed(2),
	}
}

func (a *API) listServices(w http.ResponseWriter, r *http.Request) {
	list, err := a.catalog.ListServices(r.Context())
	if err != nil {
		a.fail(w, r, "http.list_services", err)
		return
	}
	out := make([]serviceView, 0, len(list))
	for _, s := range list {
		out = append(out, viewService(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": out})
}

func (a *API) getService(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusNotFound, "Service not found.")
		return
	}
	s, err := a.catalog.FindService(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "Service not found.")
		return
	}
	if err != nil {
		a.fail(w, r, "http.get_service", err)
		return
	}
	writeJSON(w, http.StatusOK, viewService(*s))
}

func queryLimit(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	list, err := a.catalog.ListProjects(r.Context(), queryLimit(r))
	if err != nil {
		a.fail(w, r, "http.list_projects", err)
		return
	}
	if list == nil {
		list = []catalog.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": list})
}

func (a *API) listTestimonials(w http.ResponseWriter, r *http.Request) {
	list, err := a.catalog.ListTestimonials(r.Context(), queryLimit(r))
	if err != nil {
		a.fail(w, r, "http.list_testimonials", err)
		return
	}
	if list == nil {
		list = []catalog.Testimonial{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"testimonials": list})
}
