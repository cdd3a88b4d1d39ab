package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/watchroom/server/pkg/rest"
)

// getRoom exposes a read-only snapshot of a live room.
func (c *controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")
	if roomId == "" {
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
		return
	}

	state, err := c.roomService.GetRoomState(r.Context(), roomId)
	if err != nil {
		c.logger.DebugContext(r.Context(), "failed to get room state", "room_id", roomId, "error", err)
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": state})
}
