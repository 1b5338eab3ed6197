package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmlink/marketplace/internal/notify"
)

// NotificationsHandler serves the poll endpoint. Each request recomputes the
// projection; there is nothing to cache or lock.
type NotificationsHandler struct {
	Projector *notify.Projector
}

func (h *NotificationsHandler) Register(r *chi.Mux) {
	r.Get("/notifications", h.pending)
}

func (h *NotificationsHandler) pending(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireActor(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ns, err := h.Projector.Pending(ctx, viewer)
	if err != nil {
		writeErr(w, err)
		return
	}
	if ns == nil {
		ns = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, ns)
}
