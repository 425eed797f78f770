package grants

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Reader for tests, the smoke binary, and DSN-less dev
// mode. Grants are recorded per report so lookups never cross report scopes.
type MemoryStore struct {
	mu          sync.RWMutex
	assignments map[string][]GroupAssignment
	allowlists  map[string][]AllowlistEntry
}

var _ Reader = (*MemoryStore)(nil)

// NewMemoryStore creates an empty grant store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assignments: make(map[string][]GroupAssignment),
		allowlists:  make(map[string][]AllowlistEntry),
	}
}

func scopeKey(principal Principal, reportID string) string {
	return principal.String() + "@" + strings.TrimSpace(reportID)
}

// AssignGroup records a group assignment for a principal on a report.
func (s *MemoryStore) AssignGroup(principal Principal, reportID, groupID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scopeKey(principal, reportID)
	s.assignments[key] = append(s.assignments[key], GroupAssignment{
		PrincipalKind: principal.Kind,
		PrincipalID:   principal.ID,
		GroupID:       groupID,
		Active:        active,
		CreatedAt:     time.Now().UTC(),
	})
}

// Allow records an allowlist entry for a principal on a report.
func (s *MemoryStore) Allow(principal Principal, reportID, pageID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scopeKey(principal, reportID)
	s.allowlists[key] = append(s.allowlists[key], AllowlistEntry{
		PrincipalKind: principal.Kind,
		PrincipalID:   principal.ID,
		PageID:        pageID,
		Active:        active,
		CreatedAt:     time.Now().UTC(),
	})
}

// ClearAllowlist drops every allowlist entry for a principal on a report.
func (s *MemoryStore) ClearAllowlist(principal Principal, reportID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.allowlists, scopeKey(principal, reportID))
}

func (s *MemoryStore) ListActiveGroupAssignments(ctx context.Context, principal Principal, reportID string) ([]string, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []string
	for _, a := range s.assignments[scopeKey(principal, reportID)] {
		if a.Active {
			result = append(result, a.GroupID)
		}
	}
	return result, nil
}

func (s *MemoryStore) ListAllowlist(ctx context.Context, principal Principal, reportID string) ([]string, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []string
	for _, e := range s.allowlists[scopeKey(principal, reportID)] {
		if e.Active {
			result = append(result, e.PageID)
		}
	}
	return result, nil
}
