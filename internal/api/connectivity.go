package api

import "net/http"

// GetConnectivity returns the combined connectivity status.
func (h *Handler) GetConnectivity(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.gate.Status())
}

// SetOnline records a browser online/offline event.
func (h *Handler) SetOnline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Online *bool `json:"online"`
	}
	if err := decodeJSON(r, &body); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Online == nil {
		Error(w, http.StatusBadRequest, "online is required")
		return
	}
	h.online.Set(*body.Online)
	JSON(w, http.StatusOK, h.gate.Status())
}
