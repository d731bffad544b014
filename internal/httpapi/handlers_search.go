package httpapi

import (
	"net/http"
	"strings"

	"rackd/internal/node"
)

// handleSearch accepts a hostname regex (query param "hostname") and
// any number of hw_info.<key>=<value> query params, all ANDed.
func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hostname := q.Get("hostname")

	hwInfo := map[string]string{}
	for key, values := range q {
		const prefix = "hw_info."
		if !strings.HasPrefix(key, prefix) || len(values) == 0 {
			continue
		}
		hwInfo[strings.TrimPrefix(key, prefix)] = values[0]
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	nodes, err := node.Search(ctx, a.Store, a.Trace, hostname, hwInfo)
	if err != nil {
		respondError(w, err)
		return
	}

	views := make([]*nodeView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, toNodeView(n))
	}

	respondJSON(w, http.StatusOK, map[string]any{"nodes": views})
}
