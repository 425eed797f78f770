package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"embedgate.io/internal/ids"
)

// MemoryStore implements Reader and Store with in-process concurrency safety.
// It backs tests, the smoke binary, and DSN-less dev mode.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*Report
	pages   map[string]*Page
	groups  map[string]*PageGroup
}

var (
	_ Reader = (*MemoryStore)(nil)
	_ Store  = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]*Report),
		pages:   make(map[string]*Page),
		groups:  make(map[string]*PageGroup),
	}
}

// AddReport registers a report and returns it with a generated ID.
func (s *MemoryStore) AddReport(ctx context.Context, workspaceID, upstreamID, name string) (Report, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Report{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	rep := &Report{
		ID:          ids.New(),
		WorkspaceID: strings.TrimSpace(workspaceID),
		UpstreamID:  strings.TrimSpace(upstreamID),
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.reports[rep.ID] = rep
	return *rep, nil
}

// GetReport returns a report by ID.
func (s *MemoryStore) GetReport(ctx context.Context, reportID string) (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rep, ok := s.reports[reportID]
	if !ok {
		return Report{}, ErrNotFound
	}
	return *rep, nil
}

// AddPage inserts a page and returns it with a generated ID.
func (s *MemoryStore) AddPage(ctx context.Context, page Page) (Page, error) {
	if strings.TrimSpace(page.ReportID) == "" || strings.TrimSpace(page.Name) == "" {
		return Page{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	page.ID = ids.New()
	page.CreatedAt = now
	page.UpdatedAt = now
	s.pages[page.ID] = &page
	return page, nil
}

// UpdatePage replaces the mutable fields of an existing page.
func (s *MemoryStore) UpdatePage(ctx context.Context, page Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.pages[page.ID]
	if !ok {
		return ErrNotFound
	}
	existing.DisplayName = page.DisplayName
	existing.OrderIndex = page.OrderIndex
	existing.Active = page.Active
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

// DeactivatePage soft-deletes a page.
func (s *MemoryStore) DeactivatePage(ctx context.Context, pageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[pageID]
	if !ok {
		return ErrNotFound
	}
	page.Active = false
	page.UpdatedAt = time.Now().UTC()
	return nil
}

// AddGroup inserts a page group and returns it with a generated ID.
func (s *MemoryStore) AddGroup(ctx context.Context, group PageGroup) (PageGroup, error) {
	if strings.TrimSpace(group.ReportID) == "" || strings.TrimSpace(group.Name) == "" {
		return PageGroup{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	group.ID = ids.New()
	group.CreatedAt = now
	group.UpdatedAt = now
	group.PageIDs = append([]string(nil), group.PageIDs...)
	s.groups[group.ID] = &group
	return group, nil
}

// ListPages returns every page of a report, active or not, in catalog order.
func (s *MemoryStore) ListPages(ctx context.Context, reportID string) ([]Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Page
	for _, page := range s.pages {
		if page.ReportID == reportID {
			result = append(result, *page)
		}
	}
	SortPages(result)
	return result, nil
}

func (s *MemoryStore) ListActivePages(ctx context.Context, reportID string) ([]Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Page
	for _, page := range s.pages {
		if page.ReportID == reportID && page.Active {
			result = append(result, *page)
		}
	}
	SortPages(result)
	return result, nil
}

func (s *MemoryStore) ListActiveGroups(ctx context.Context, reportID string) ([]PageGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []PageGroup
	for _, group := range s.groups {
		if group.ReportID == reportID && group.Active {
			out := *group
			out.PageIDs = append([]string(nil), group.PageIDs...)
			result = append(result, out)
		}
	}
	return result, nil
}
