package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"embedgate.io/internal/audit"
)

// SourcePage is a page as reported by the upstream BI provider.
type SourcePage struct {
	Name        string
	DisplayName string
	Order       int
}

// PageSource lists the pages of an upstream report. Implemented by the remote
// BI client.
type PageSource interface {
	ListReportPages(ctx context.Context, upstreamReportID string) ([]SourcePage, error)
}

// Store is the write surface catalog sync needs on top of Reader.
type Store interface {
	Reader
	GetReport(ctx context.Context, reportID string) (Report, error)
	ListPages(ctx context.Context, reportID string) ([]Page, error)
	AddPage(ctx context.Context, page Page) (Page, error)
	UpdatePage(ctx context.Context, page Page) error
	DeactivatePage(ctx context.Context, pageID string) error
}

// SyncResult summarizes one sync pass over a report.
type SyncResult struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Deactivated int `json:"deactivated"`
}

// Syncer reconciles stored pages with the upstream provider. Pages that
// disappear upstream are deactivated, never removed, so existing grants keep
// pointing at stable rows.
type Syncer struct {
	source PageSource
	store  Store
}

// NewSyncer constructs a Syncer.
func NewSyncer(source PageSource, store Store) (*Syncer, error) {
	if source == nil {
		return nil, errors.New("page source is required")
	}
	if store == nil {
		return nil, errors.New("catalog store is required")
	}
	return &Syncer{source: source, store: store}, nil
}

// SyncReport pulls the upstream page list for a report and upserts it.
func (s *Syncer) SyncReport(ctx context.Context, reportID string) (SyncResult, error) {
	reportID = strings.TrimSpace(reportID)
	if reportID == "" {
		return SyncResult{}, fmt.Errorf("%w: report_id is required", ErrInvalidInput)
	}
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return SyncResult{}, err
	}

	upstream, err := s.source.ListReportPages(ctx, report.UpstreamID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list upstream pages: %w", err)
	}
	existing, err := s.store.ListPages(ctx, reportID)
	if err != nil {
		return SyncResult{}, err
	}

	byName := make(map[string]Page, len(existing))
	for _, page := range existing {
		byName[page.Name] = page
	}

	var result SyncResult
	seen := make(map[string]struct{}, len(upstream))
	for _, src := range upstream {
		name := strings.TrimSpace(src.Name)
		if name == "" {
			continue
		}
		seen[name] = struct{}{}

		page, ok := byName[name]
		if !ok {
			if _, err := s.store.AddPage(ctx, Page{
				ReportID:    reportID,
				Name:        name,
				DisplayName: strings.TrimSpace(src.DisplayName),
				OrderIndex:  src.Order,
				Active:      true,
			}); err != nil {
				return result, fmt.Errorf("create page %s: %w", name, err)
			}
			result.Created++
			continue
		}
		if page.DisplayName == strings.TrimSpace(src.DisplayName) && page.OrderIndex == src.Order && page.Active {
			continue
		}
		page.DisplayName = strings.TrimSpace(src.DisplayName)
		page.OrderIndex = src.Order
		page.Active = true
		if err := s.store.UpdatePage(ctx, page); err != nil {
			return result, fmt.Errorf("update page %s: %w", name, err)
		}
		result.Updated++
	}

	for _, page := range existing {
		if _, ok := seen[page.Name]; ok || !page.Active {
			continue
		}
		if err := s.store.DeactivatePage(ctx, page.ID); err != nil {
			return result, fmt.Errorf("deactivate page %s: %w", page.Name, err)
		}
		result.Deactivated++
	}

	_ = audit.LogEvent(ctx, "catalog.sync", map[string]any{
		"report_id":   reportID,
		"created":     result.Created,
		"updated":     result.Updated,
		"deactivated": result.Deactivated,
	})
	return result, nil
}
