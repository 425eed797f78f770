package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"embedgate.io/internal/access"
	"embedgate.io/internal/auth"
	"embedgate.io/internal/obs"
)

type allowedPagesResponse struct {
	ReportID string            `json:"report_id"`
	Pages    []access.PageView `json:"pages"`
	AsOf     time.Time         `json:"as_of"`
}

func (a *API) handleReportResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/reports/")
	reportID, rest, _ := strings.Cut(path, "/")
	if reportID == "" || rest != "pages" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.listAllowedPages(w, r, reportID)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) listAllowedPages(w http.ResponseWriter, r *http.Request, reportID string) {
	if a.resolver == nil {
		writeError(w, r, http.StatusServiceUnavailable, "access resolution disabled")
		return
	}
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing identity")
		return
	}
	tenantID, ok := auth.TenantIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing identity")
		return
	}

	pages, err := a.resolver.ResolveAllowedPages(r.Context(), userID, tenantID, reportID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}

	obs.ObserveAccessResolution("allowed")
	a.audit(r.Context(), "access.pages.resolve", map[string]any{
		"report_id":  reportID,
		"page_count": len(pages),
	})

	writeJSON(w, http.StatusOK, allowedPagesResponse{
		ReportID: reportID,
		Pages:    pages,
		AsOf:     time.Now().UTC(),
	})
}

func handleAccessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, access.ErrInvalidInput):
		obs.ObserveAccessResolution("invalid")
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrForbidden):
		obs.ObserveAccessResolution("forbidden")
		writeError(w, r, http.StatusForbidden, "access denied")
	case errors.Is(err, access.ErrPagesNotSynced):
		obs.ObserveAccessResolution("not_synced")
		writeError(w, r, http.StatusNotFound, "report pages not synced")
	default:
		obs.ObserveAccessResolution("error")
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
