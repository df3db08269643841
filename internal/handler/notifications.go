package handler

import "net/http"

func (h *Handler) myNotifications(w http.ResponseWriter, r *http.Request) {
	items, meta, err := h.Notifications.ListForUser(r.Context(), principal(r).UserID, pageParams(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Notifications retrieved successfully", items, &meta)
}

func (h *Handler) adminNotifications(w http.ResponseWriter, r *http.Request) {
	items, meta, err := h.Notifications.ListForAdmin(r.Context(), pageParams(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Notifications retrieved successfully", items, &meta)
}

// markNotificationRead acknowledges a notification. Admins acknowledge
// entries of the admin feed.
func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	owner := p.UserID
	if p.IsAdmin() {
		owner = ""
	}
	if err := h.Notifications.MarkRead(r.Context(), r.PathValue("id"), owner); err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Notification marked as read", nil, nil)
}
