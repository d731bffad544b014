package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"rackd/internal/node"
)

type modifyMetadataRequest struct {
	NodeID    string         `json:"node_id"`
	Update    map[string]any `json:"update,omitempty"`
	NoReplace bool           `json:"no_replace,omitempty"`
	Clear     bool           `json:"clear,omitempty"`
}

func (a *API) handleModifyMetadata(w http.ResponseWriter, r *http.Request) {
	var req modifyMetadataRequest
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

	if err := node.ModifyMetadata(ctx, a.Store, a.Queue, n, req.Update, req.NoReplace, req.Clear); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"node": toNodeView(n)})
}
