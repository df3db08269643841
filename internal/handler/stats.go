package handler

import "net/http"

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	reply(w, r, http.StatusOK, "Dashboard stats retrieved successfully", h.Stats.Dashboard(r.Context()), nil)
}

func (h *Handler) resetStats(w http.ResponseWriter, r *http.Request) {
	res, err := h.Stats.Reset(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Product metrics reset successfully", res, nil)
}
