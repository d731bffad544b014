package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"rackd/internal/node"
)

type stageDoneRequest struct {
	NodeID string `json:"node_id"`
	Stage  string `json:"stage"`
}

func (a *API) handleStageDone(w http.ResponseWriter, r *http.Request) {
	var req stageDoneRequest
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

	n, err := a.Store.Get(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := node.StageDone(ctx, a.Store, n, req.Stage); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"node": toNodeView(n)})
}
