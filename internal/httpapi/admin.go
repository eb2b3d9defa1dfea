package httpapi

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ffb.ae/internal/apperr"
	"ffb.ae/internal/auth"
	"ffb.ae/internal/booking"
	"ffb.ae/internal/guard"
)

const dashboardRecent = 20

var loginTemplate = template.Must(template.New("login").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Admin sign in</title></head>
<body>
<main>
  <h1>Sign in</h1>
  {{if .Error}}<p role="alert">{{.Error}}</p>{{end}}
  <form method="post" action="/admin/login">
    <input type="hidden" name="{{.Field}}" value="{{.Token}}">
    <label>Username <input name="username" value="{{.Username}}" autocomplete="username" required></label>
    <label>Password <input name="password" type="password" autocomplete="current-password" required></label>
    <button type="submit">Sign in</button>
  </form>
</main>
</body>
</html>
`))

type loginPage struct {
	Field    string
	Token    string
	Username string
	Error    string
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

func (a *API) renderLogin(w http.ResponseWriter, r *http.Request, code int, username, message string) {
	s := currentSession(r)
	token, issued, err := guard.CSRFToken(s)
	if err != nil {
		a.fail(w, r, "http.login_page", err)
		return
	}
	if issued || s.IsNew() {
		a.saveSession(w, r, s)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := loginTemplate.Execute(w, loginPage{Field: guard.CSRFField, Token: token, Username: username, Error: message}); err != nil {
		a.logger.Error("render login page", zap.Error(err))
	}
}

func (a *API) loginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := guard.CurrentAdmin(currentSession(r)); ok {
		http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
		return
	}
	a.renderLogin(w, r, http.StatusOK, "", "")
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	const op = "http.login"
	if err := parseForm(r); err != nil {
		a.formError(w, r, op, err)
		return
	}
	s := currentSession(r)
	username := r.PostFormValue("username")
	user, err := a.guard.Login(r.Context(), w, s, guard.LoginInput{
		Login:     username,
		Password:  r.PostFormValue("password"),
		CSRFToken: csrfFrom(r),
		IP:        clientIP(r),
	})
	if err != nil {
		if wantsJSON(r) {
			a.fail(w, r, op, err)
			return
		}
		e := classify(op, err)
		if e.Kind == apperr.KindLockout {
			setRetryAfter(w, e)
		}
		if statusFor(e.Kind) >= http.StatusInternalServerError {
			a.logger.Error("admin login failed", zap.Error(err))
		}
		a.renderLogin(w, r, statusFor(e.Kind), username, e.Message)
		return
	}

	if wantsJSON(r) {
		token, _, err := guard.CSRFToken(s)
		if err != nil {
			a.fail(w, r, op, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      true,
			"display_name": user.DisplayName,
			"csrf_token":   token,
			"redirect":     "/admin/dashboard",
		})
		return
	}
	http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
}

// logout expects the session's CSRF token in the query string so that a
// cross-site link cannot sign the admin out.
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	const op = "http.logout"
	s := currentSession(r)
	if err := a.guard.Logout(r.Context(), w, s, r.URL.Query().Get("token")); err != nil {
		a.fail(w, r, op, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

// requireAdmin rejects requests without a signed-in admin and ends sessions
// older than adminMaxAge.
func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := currentSession(r)
		admin, ok := guard.CurrentAdmin(s)
		if ok && !admin.LoginAt.IsZero() && a.now().Sub(admin.LoginAt) > a.adminMaxAge {
			if err := a.guard.DestroyAdminSession(r.Context(), w, s); err != nil {
				a.logger.Warn("end expired admin session", zap.Error(err))
			}
			ok = false
		}
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "Please sign in.")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithAdmin(r.Context(), admin)))
	})
}

func (a *API) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := a.backoffice.Dashboard(r.Context(), dashboardRecent)
	if err != nil {
		a.fail(w, r, "http.dashboard", err)
		return
	}
	admin, _ := auth.AdminFromContext(r.Context())
	token, _, _ := guard.CSRFToken(currentSession(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"admin":      admin.DisplayName,
		"csrf_token": token,
		"logout_url": "/admin/logout?token=" + token,
		"dashboard":  d,
	})
}

func (a *API) adminBooking(w http.ResponseWriter, r *http.Request) {
	b, err := a.backoffice.Find(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		a.fail(w, r, "http.admin_booking", err)
		return
	}
	next := make([]string, 0, 2)
	for _, st := range b.Status.Next() {
		next = append(next, string(st))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"booking":     b,
		"next_status": next,
	})
}

func (a *API) setBookingStatus(w http.ResponseWriter, r *http.Request) {
	const op = "http.booking_status"
	if err := parseForm(r); err != nil {
		a.formError(w, r, op, err)
		return
	}
	if err := a.guard.Protect(r.Context(), currentSession(r), csrfFrom(r), clientIP(r), a.adminPolicy); err != nil {
		a.fail(w, r, op, err)
		return
	}
	to, err := booking.ParseStatus(r.PostFormValue("status"))
	if err != nil {
		a.fail(w, r, op, apperr.Validation(op, map[string]string{"status": "Unknown status."}))
		return
	}
	b, err := a.backoffice.SetStatus(r.Context(), chi.URLParam(r, "reference"), to)
	if err != nil {
		a.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"reference": b.Reference,
		"status":    b.Status,
	})
}
