package httpapi

import (
	"errors"
	"net/http"

	"rackd/internal/metrics"
	"rackd/internal/node"
)

type lookupRequest struct {
	Facts  map[string]any `json:"facts,omitempty"`
	HwInfo map[string]any `json:"hw_info,omitempty"`
}

type lookupResponse struct {
	Node    *nodeView `json:"node"`
	Created bool      `json:"created"`
}

func (a *API) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	n, created, err := a.Resolver.Lookup(ctx, req.Facts, req.HwInfo)
	if err != nil {
		var dup *node.DuplicateNodeError
		if errors.As(err, &dup) {
			metrics.LookupsTotal.WithLabelValues("duplicate").Inc()
		}
		respondError(w, err)
		return
	}

	if created {
		metrics.LookupsTotal.WithLabelValues("created").Inc()
	} else {
		metrics.LookupsTotal.WithLabelValues("matched").Inc()
	}

	respondJSON(w, http.StatusOK, lookupResponse{Node: toNodeView(n), Created: created})
}
