package pg

import (
	"context"

	"embedgate.io/internal/grants"
)

// ListActiveGroupAssignments returns the group IDs actively assigned to the
// principal on a report. Whether each group is itself active is the resolver's
// concern; the assignment flag alone is filtered here.
func (s *Store) ListActiveGroupAssignments(ctx context.Context, principal grants.Principal, reportID string) ([]string, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select a.group_id
		from group_assignments a
		join page_groups g on g.id = a.group_id
		where a.principal_kind = $1 and a.principal_id = $2 and a.active and g.report_id = $3
		order by a.group_id
	`, string(principal.Kind), principal.ID, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var groupID string
		if err := rows.Scan(&groupID); err != nil {
			return nil, err
		}
		result = append(result, groupID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListAllowlist returns the page IDs directly allowlisted to the principal on
// a report.
func (s *Store) ListAllowlist(ctx context.Context, principal grants.Principal, reportID string) ([]string, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select al.page_id
		from page_allowlists al
		join pages p on p.id = al.page_id
		where al.principal_kind = $1 and al.principal_id = $2 and al.active and p.report_id = $3
		order by al.page_id
	`, string(principal.Kind), principal.ID, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var pageID string
		if err := rows.Scan(&pageID); err != nil {
			return nil, err
		}
		result = append(result, pageID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
