package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"embedgate.io/internal/obs"
	"embedgate.io/internal/refresh"
	"embedgate.io/internal/refresh/remote"
)

type listRefreshesResponse struct {
	Items []refresh.Record `json:"items"`
	AsOf  time.Time        `json:"as_of"`
}

func (a *API) handleWorkspaceResource(w http.ResponseWriter, r *http.Request) {
	// /v1/workspaces/{ws}/datasets/{ds}/refreshes
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/workspaces/"), "/")
	if len(parts) != 4 || parts[0] == "" || parts[1] != "datasets" || parts[2] == "" || parts[3] != "refreshes" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	workspaceID, datasetID := parts[0], parts[2]

	switch r.Method {
	case http.MethodPost:
		a.requestRefresh(w, r, workspaceID, datasetID)
	case http.MethodGet:
		a.listRefreshes(w, r, workspaceID, datasetID)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) requestRefresh(w http.ResponseWriter, r *http.Request, workspaceID, datasetID string) {
	if a.coalescer == nil {
		writeError(w, r, http.StatusServiceUnavailable, "refresh disabled")
		return
	}

	res, err := a.coalescer.RequestRefresh(r.Context(), workspaceID, datasetID)
	if err != nil {
		handleRefreshError(w, r, err)
		return
	}

	obs.ObserveRefreshRequest(string(res.Status))
	a.audit(r.Context(), "refresh.request", map[string]any{
		"workspace_id": workspaceID,
		"dataset_id":   datasetID,
		"status":       string(res.Status),
	})

	writeJSON(w, http.StatusAccepted, res)
}

func (a *API) listRefreshes(w http.ResponseWriter, r *http.Request, workspaceID, datasetID string) {
	if a.coalescer == nil {
		writeError(w, r, http.StatusServiceUnavailable, "refresh disabled")
		return
	}
	items, err := a.coalescer.ListRefreshes(r.Context(), workspaceID, datasetID)
	if err != nil {
		handleRefreshError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listRefreshesResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func handleRefreshError(w http.ResponseWriter, r *http.Request, err error) {
	var statusErr *remote.StatusError
	switch {
	case errors.As(err, &statusErr):
		obs.ObserveRefreshRequest("upstream_error")
		writeError(w, r, http.StatusBadGateway, "upstream refresh failed")
	default:
		obs.ObserveRefreshRequest("error")
		writeError(w, r, http.StatusBadGateway, "refresh failed")
	}
}
