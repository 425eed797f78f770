package grants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidInput = errors.New("invalid input")

// PrincipalKind distinguishes the two grant tiers.
type PrincipalKind string

const (
	KindTenant PrincipalKind = "tenant"
	KindUser   PrincipalKind = "user"
)

// Principal identifies either a tenant or a user. Grant rules apply uniformly
// to both kinds; the resolver decides how the two tiers combine.
type Principal struct {
	Kind PrincipalKind
	ID   string
}

// Tenant builds a tenant principal.
func Tenant(id string) Principal { return Principal{Kind: KindTenant, ID: strings.TrimSpace(id)} }

// User builds a user principal.
func User(id string) Principal { return Principal{Kind: KindUser, ID: strings.TrimSpace(id)} }

// Validate reports whether the principal is well formed.
func (p Principal) Validate() error {
	if p.Kind != KindTenant && p.Kind != KindUser {
		return fmt.Errorf("%w: unknown principal kind %q", ErrInvalidInput, p.Kind)
	}
	if p.ID == "" {
		return fmt.Errorf("%w: principal id is required", ErrInvalidInput)
	}
	return nil
}

func (p Principal) String() string { return string(p.Kind) + ":" + p.ID }

// GroupAssignment links a principal to a page group. The assignment carries its
// own active flag, independent of the group's flag; both must hold for the
// assignment to count.
type GroupAssignment struct {
	PrincipalKind PrincipalKind `json:"principal_kind"`
	PrincipalID   string        `json:"principal_id"`
	GroupID       string        `json:"group_id"`
	Active        bool          `json:"active"`
	CreatedAt     time.Time     `json:"created_at"`
}

// AllowlistEntry links a principal directly to a page. Allowlists only take
// effect when the principal has no active group assignment on the report.
type AllowlistEntry struct {
	PrincipalKind PrincipalKind `json:"principal_kind"`
	PrincipalID   string        `json:"principal_id"`
	PageID        string        `json:"page_id"`
	Active        bool          `json:"active"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Reader supplies grant snapshots scoped to one report. Group assignments are
// returned as group IDs; the caller filters them against the active groups of
// the report.
type Reader interface {
	ListActiveGroupAssignments(ctx context.Context, principal Principal, reportID string) ([]string, error)
	ListAllowlist(ctx context.Context, principal Principal, reportID string) ([]string, error)
}
