package webapi

import (
	"net/http"

	"roomclient/internal/room"
)

type debugHandler struct {
	client *room.RoomClient
}

// Room dumps the reactive store's current snapshot for operator debugging.
// It is intentionally unauthenticated-by-default since it carries no
// secrets beyond room membership; deployments that care should put it
// behind the same reverse proxy auth as the rest of the admin surface.
func (h *debugHandler) Room(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state": h.client.State().String(),
		"store": h.client.Store.Snapshot(),
	})
}
