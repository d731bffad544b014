package httpapi

import (
	"net/http"

	"github.com/google/uuid"
)

type checkinRequest struct {
	NodeID string         `json:"node_id"`
	Facts  map[string]any `json:"facts"`
}

type checkinResponse struct {
	Action string `json:"action"`
}

func (a *API) handleCheckin(w http.ResponseWriter, r *http.Request) {
	var req checkinRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	id, err := uuid.Parse(req.NodeID)
	if err != nil {
		respondError(w, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	action, err := a.Processor.Checkin(ctx, id, req.Facts)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, checkinResponse{Action: action})
}
