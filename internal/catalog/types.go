package catalog

import (
	"context"
	"errors"
	"sort"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("resource conflict")
	ErrInvalidInput = errors.New("invalid input")
)

// Report is an upstream report registered with the platform. UpstreamID is the
// provider-side identifier used by catalog sync and embed URLs.
type Report struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	UpstreamID  string    `json:"upstream_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Page is a single report page. Pages are soft-deactivated when they disappear
// upstream; they are never hard-deleted while grants may reference them.
type Page struct {
	ID          string    `json:"id"`
	ReportID    string    `json:"report_id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name,omitempty"`
	OrderIndex  int       `json:"order_index"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PageGroup is a named bundle of pages belonging to one report. Groups are the
// coarse-grained grant unit.
type PageGroup struct {
	ID        string    `json:"id"`
	ReportID  string    `json:"report_id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	PageIDs   []string  `json:"page_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reader supplies the read-only catalog snapshots the access resolver consumes.
type Reader interface {
	ListActivePages(ctx context.Context, reportID string) ([]Page, error)
	ListActiveGroups(ctx context.Context, reportID string) ([]PageGroup, error)
}

// SortPages orders pages by order index, then by ID. IDs are ULIDs, so the tie
// break preserves creation order.
func SortPages(pages []Page) {
	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].OrderIndex != pages[j].OrderIndex {
			return pages[i].OrderIndex < pages[j].OrderIndex
		}
		return pages[i].ID < pages[j].ID
	})
}
