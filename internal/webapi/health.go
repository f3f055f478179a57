package webapi

import (
	"net/http"

	"roomclient/internal/room"
)

type healthHandler struct {
	client *room.RoomClient
}

func (h *healthHandler) Check(w http.ResponseWriter, r *http.Request) {
	state := h.client.State()
	status := http.StatusOK
	result := "ok"
	if state == room.StateClosed {
		status = http.StatusServiceUnavailable
		result = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"status": result,
		"checks": map[string]string{
			"room": state.String(),
		},
	})
}
