// Package access resolves which report pages a tenant/user pair may see.
//
// Grants come in two tiers. Page groups are the coarse unit: any active group
// assignment on a report fully shadows the principal's allowlist there.
// Allowlists are the fine unit, consulted only when no group assignment is
// active. The tenant tier gates everything; a user with personal grants is
// additionally constrained to them, while a user with none inherits the
// tenant's full scope.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"embedgate.io/internal/catalog"
	"embedgate.io/internal/grants"
)

var (
	// ErrPagesNotSynced means the report has no active pages in the catalog.
	// This is a precondition failure ("catalog not ready"), not a denial.
	ErrPagesNotSynced = errors.New("report pages not synced")

	// ErrForbidden is the uniform authorization denial. It is deliberately
	// identical for every empty-set cause so callers cannot probe whether the
	// tenant or the user is misconfigured.
	ErrForbidden = errors.New("access denied")

	ErrInvalidInput = errors.New("invalid input")
)

// PageView is one visible page, in catalog order.
type PageView struct {
	PageName    string `json:"page_name"`
	DisplayName string `json:"display_name"`
}

// EffectiveSource tags which grant tier produced an effective set.
type EffectiveSource int

const (
	SourceNone EffectiveSource = iota
	SourceGroups
	SourceAllowlist
)

// EffectiveSet is the resolved page scope of one principal on one report.
type EffectiveSet struct {
	Source  EffectiveSource
	PageIDs map[string]struct{}
}

// HasAssignment reports whether the principal has any personal grant on the
// report, group or allowlist.
func (s EffectiveSet) HasAssignment() bool { return s.Source != SourceNone }

// Effective computes a principal's page scope from its matched active groups
// and its allowlist entries. Groups shadow the allowlist entirely: when any
// matched group exists the allowlist is not consulted. Pure function; the
// precedence rules are testable here without any I/O.
func Effective(assignedGroups []catalog.PageGroup, allowlistPageIDs []string) EffectiveSet {
	if len(assignedGroups) > 0 {
		union := make(map[string]struct{})
		for _, group := range assignedGroups {
			for _, pageID := range group.PageIDs {
				union[pageID] = struct{}{}
			}
		}
		return EffectiveSet{Source: SourceGroups, PageIDs: union}
	}
	if len(allowlistPageIDs) > 0 {
		set := make(map[string]struct{}, len(allowlistPageIDs))
		for _, pageID := range allowlistPageIDs {
			set[pageID] = struct{}{}
		}
		return EffectiveSet{Source: SourceAllowlist, PageIDs: set}
	}
	return EffectiveSet{Source: SourceNone, PageIDs: map[string]struct{}{}}
}

// Resolver computes page visibility from catalog and grant snapshots. It is a
// pure read: safe for concurrent use, never mutates reader state, never
// retries. Grant edits landing between its reads are observed in either their
// old or new form; authorization here is eventually consistent by design.
type Resolver struct {
	catalog catalog.Reader
	grants  grants.Reader
}

// NewResolver constructs a Resolver.
func NewResolver(catalogReader catalog.Reader, grantReader grants.Reader) (*Resolver, error) {
	if catalogReader == nil {
		return nil, errors.New("catalog reader is required")
	}
	if grantReader == nil {
		return nil, errors.New("grant reader is required")
	}
	return &Resolver{catalog: catalogReader, grants: grantReader}, nil
}

// ResolveAllowedPages returns the pages the user may see on the report, in
// catalog order, with DisplayName falling back to PageName.
func (r *Resolver) ResolveAllowedPages(ctx context.Context, userID, tenantID, reportID string) ([]PageView, error) {
	userID = strings.TrimSpace(userID)
	tenantID = strings.TrimSpace(tenantID)
	reportID = strings.TrimSpace(reportID)
	if userID == "" || tenantID == "" || reportID == "" {
		return nil, fmt.Errorf("%w: user_id, tenant_id and report_id are required", ErrInvalidInput)
	}

	pages, err := r.catalog.ListActivePages(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("list report pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, ErrPagesNotSynced
	}
	activePageIDs := make(map[string]struct{}, len(pages))
	for _, page := range pages {
		activePageIDs[page.ID] = struct{}{}
	}

	groups, err := r.catalog.ListActiveGroups(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("list report groups: %w", err)
	}
	groupsByID := make(map[string]catalog.PageGroup, len(groups))
	for _, group := range groups {
		groupsByID[group.ID] = group
	}

	tenantSet, err := r.effectiveFor(ctx, grants.Tenant(tenantID), reportID, groupsByID)
	if err != nil {
		return nil, err
	}
	restrict(tenantSet, activePageIDs)
	if len(tenantSet.PageIDs) == 0 {
		return nil, ErrForbidden
	}

	userSet, err := r.effectiveFor(ctx, grants.User(userID), reportID, groupsByID)
	if err != nil {
		return nil, err
	}
	restrict(userSet, activePageIDs)

	final := tenantSet.PageIDs
	if userSet.HasAssignment() {
		// A user with any personal grant is constrained to it, never widened
		// beyond the tenant's own scope.
		final = intersect(tenantSet.PageIDs, userSet.PageIDs)
	}
	if len(final) == 0 {
		return nil, ErrForbidden
	}

	result := make([]PageView, 0, len(final))
	for _, page := range pages {
		if _, ok := final[page.ID]; !ok {
			continue
		}
		view := PageView{PageName: page.Name, DisplayName: page.DisplayName}
		if view.DisplayName == "" {
			view.DisplayName = page.Name
		}
		result = append(result, view)
	}
	return result, nil
}

// effectiveFor loads one principal's grants and folds them into an effective
// set. The allowlist is only read when no active group assignment matched; a
// group-assigned principal's allowlist cannot influence the outcome even at
// the I/O level.
func (r *Resolver) effectiveFor(ctx context.Context, principal grants.Principal, reportID string, groupsByID map[string]catalog.PageGroup) (EffectiveSet, error) {
	assignedIDs, err := r.grants.ListActiveGroupAssignments(ctx, principal, reportID)
	if err != nil {
		return EffectiveSet{}, fmt.Errorf("list %s group assignments: %w", principal.Kind, err)
	}
	var matched []catalog.PageGroup
	for _, groupID := range assignedIDs {
		if group, ok := groupsByID[groupID]; ok {
			matched = append(matched, group)
		}
	}
	if len(matched) > 0 {
		return Effective(matched, nil), nil
	}

	allowlist, err := r.grants.ListAllowlist(ctx, principal, reportID)
	if err != nil {
		return EffectiveSet{}, fmt.Errorf("list %s allowlist: %w", principal.Kind, err)
	}
	return Effective(nil, allowlist), nil
}

// restrict drops set members outside the report's active pages.
func restrict(set EffectiveSet, activePageIDs map[string]struct{}) {
	for pageID := range set.PageIDs {
		if _, ok := activePageIDs[pageID]; !ok {
			delete(set.PageIDs, pageID)
		}
	}
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}
