package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"embedgate.io/internal/catalog"
	"embedgate.io/internal/ids"
)

func (s *Store) GetReport(ctx context.Context, reportID string) (catalog.Report, error) {
	var rep catalog.Report
	err := s.db.QueryRowContext(ctx, `
		select id, workspace_id, upstream_id, name, created_at, updated_at
		from reports
		where id = $1
	`, reportID).Scan(&rep.ID, &rep.WorkspaceID, &rep.UpstreamID, &rep.Name, &rep.CreatedAt, &rep.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Report{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Report{}, err
	}
	return rep, nil
}

func (s *Store) ListPages(ctx context.Context, reportID string) ([]catalog.Page, error) {
	return s.listPages(ctx, reportID, false)
}

func (s *Store) ListActivePages(ctx context.Context, reportID string) ([]catalog.Page, error) {
	return s.listPages(ctx, reportID, true)
}

func (s *Store) listPages(ctx context.Context, reportID string, activeOnly bool) ([]catalog.Page, error) {
	query := `
		select id, report_id, name, display_name, order_index, active, created_at, updated_at
		from pages
		where report_id = $1`
	if activeOnly {
		query += ` and active`
	}
	query += ` order by order_index, id`

	rows, err := s.db.QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []catalog.Page
	for rows.Next() {
		var (
			page    catalog.Page
			display sql.NullString
		)
		if err := rows.Scan(&page.ID, &page.ReportID, &page.Name, &display, &page.OrderIndex, &page.Active, &page.CreatedAt, &page.UpdatedAt); err != nil {
			return nil, err
		}
		page.DisplayName = display.String
		result = append(result, page)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListActiveGroups(ctx context.Context, reportID string) ([]catalog.PageGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, report_id, name, active, created_at, updated_at
		from page_groups
		where report_id = $1 and active
		order by id
	`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []catalog.PageGroup
	index := make(map[string]int)
	for rows.Next() {
		var group catalog.PageGroup
		if err := rows.Scan(&group.ID, &group.ReportID, &group.Name, &group.Active, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, err
		}
		index[group.ID] = len(result)
		result = append(result, group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}

	memberRows, err := s.db.QueryContext(ctx, `
		select m.group_id, m.page_id
		from page_group_members m
		join page_groups g on g.id = m.group_id
		where g.report_id = $1 and g.active
	`, reportID)
	if err != nil {
		return nil, err
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var groupID, pageID string
		if err := memberRows.Scan(&groupID, &pageID); err != nil {
			return nil, err
		}
		if i, ok := index[groupID]; ok {
			result[i].PageIDs = append(result[i].PageIDs, pageID)
		}
	}
	if err := memberRows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) AddPage(ctx context.Context, page catalog.Page) (catalog.Page, error) {
	now := time.Now().UTC()
	page.ID = ids.New()
	page.CreatedAt = now
	page.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		insert into pages (id, report_id, name, display_name, order_index, active, created_at, updated_at)
		values ($1, $2, $3, nullif($4, ''), $5, $6, $7, $8)
	`, page.ID, page.ReportID, page.Name, page.DisplayName, page.OrderIndex, page.Active, page.CreatedAt, page.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return catalog.Page{}, catalog.ErrConflict
			case pgErrForeignKeyViolation:
				return catalog.Page{}, catalog.ErrNotFound
			}
		}
		return catalog.Page{}, err
	}
	return page, nil
}

func (s *Store) UpdatePage(ctx context.Context, page catalog.Page) error {
	res, err := s.db.ExecContext(ctx, `
		update pages
		set display_name = nullif($2, ''), order_index = $3, active = $4, updated_at = $5
		where id = $1
	`, page.ID, page.DisplayName, page.OrderIndex, page.Active, time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (s *Store) DeactivatePage(ctx context.Context, pageID string) error {
	res, err := s.db.ExecContext(ctx, `
		update pages set active = false, updated_at = $2 where id = $1
	`, pageID, time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return catalog.ErrNotFound
	}
	return nil
}
