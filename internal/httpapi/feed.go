package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// bookingFeed streams booking activity to a signed-in admin as Server-Sent
// Events. The request timeout ends the stream; EventSource reconnects.
func (a *API) bookingFeed(w http.ResponseWriter, r *http.Request) {
	if a.feed == nil {
		writeError(w, r, http.StatusServiceUnavailable, "The activity feed is disabled.")
		return
	}
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := a.feed.Subscribe(r.Context())
	if _, err := fmt.Fprint(w, ": feed started\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		a.logger.Warn("feed flush unsupported", zap.Error(err))
		return
	}

	for evt := range ch {
		payload, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
