package handler

import (
	"log/slog"
	"net/http"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// NotificationHandler serves the caller's in-app inbox.
type NotificationHandler struct {
	inbox  domain.NotificationStore
	logger *slog.Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(inbox domain.NotificationStore, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{inbox: inbox, logger: logger}
}

// List returns the caller's notifications, newest first.
// GET /api/notifications?limit=&offset=
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	items, err := h.inbox.ListForProfile(r.Context(), p.ID, parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list notifications", err)
		return
	}
	out := make([]notificationView, 0, len(items))
	for _, n := range items {
		out = append(out, notificationView{
			ID:        n.ID,
			Kind:      n.Kind,
			Title:     n.Title,
			Message:   n.Message,
			BattleID:  n.BattleID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
