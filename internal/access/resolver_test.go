package access

import (
	"context"
	"errors"
	"testing"

	"embedgate.io/internal/catalog"
	"embedgate.io/internal/grants"
)

type fixture struct {
	catalog  *catalog.MemoryStore
	grants   *grants.MemoryStore
	resolver *Resolver
	report   catalog.Report
	p1       catalog.Page
	p2       catalog.Page
	p3       catalog.Page
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	cstore := catalog.NewMemoryStore()
	gstore := grants.NewMemoryStore()

	report, err := cstore.AddReport(ctx, "ws-1", "up-rep-1", "Quarterly Sales")
	if err != nil {
		t.Fatalf("add report: %v", err)
	}

	addPage := func(name, display string, order int) catalog.Page {
		page, err := cstore.AddPage(ctx, catalog.Page{
			ReportID:    report.ID,
			Name:        name,
			DisplayName: display,
			OrderIndex:  order,
			Active:      true,
		})
		if err != nil {
			t.Fatalf("add page %s: %v", name, err)
		}
		return page
	}
	p1 := addPage("ReportSection1", "Overview", 0)
	p2 := addPage("ReportSection2", "", 1)
	p3 := addPage("ReportSection3", "Breakdown", 2)

	resolver, err := NewResolver(cstore, gstore)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return &fixture{catalog: cstore, grants: gstore, resolver: resolver, report: report, p1: p1, p2: p2, p3: p3}
}

func (f *fixture) addGroup(t *testing.T, name string, active bool, pageIDs ...string) catalog.PageGroup {
	t.Helper()
	group, err := f.catalog.AddGroup(context.Background(), catalog.PageGroup{
		ReportID: f.report.ID,
		Name:     name,
		Active:   active,
		PageIDs:  pageIDs,
	})
	if err != nil {
		t.Fatalf("add group %s: %v", name, err)
	}
	return group
}

func (f *fixture) resolve(t *testing.T) ([]PageView, error) {
	t.Helper()
	return f.resolver.ResolveAllowedPages(context.Background(), "user-1", "tenant-1", f.report.ID)
}

func pageNames(views []PageView) []string {
	names := make([]string, len(views))
	for i, v := range views {
		names[i] = v.PageName
	}
	return names
}

func assertNames(t *testing.T, views []PageView, want ...string) {
	t.Helper()
	got := pageNames(views)
	if len(got) != len(want) {
		t.Fatalf("got pages %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got pages %v, want %v", got, want)
		}
	}
}

func TestTenantAllowlistNoUserData(t *testing.T) {
	f := newFixture(t)
	f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, f.p1.ID, true)
	f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, f.p2.ID, true)

	views, err := f.resolve(t)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	assertNames(t, views, "ReportSection1", "ReportSection2")
}

func TestTenantGroupShadowsAllowlist(t *testing.T) {
	f := newFixture(t)
	group := f.addGroup(t, "Finance", true, f.p1.ID, f.p3.ID)
	f.grants.AssignGroup(grants.Tenant("tenant-1"), f.report.ID, group.ID, true)
	// Allowlist covering every page must be ignored entirely.
	f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, f.p1.ID, true)
	f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, f.p2.ID, true)
	f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, f.p3.ID, true)

	views, err := f.resolve(t)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	assertNames(t, views, "ReportSection1", "ReportSection3")
}

func TestGroupPrecedenceIgnoresAllowlistChanges(t *testing.T) {
	f := newFixture(t)
	group := f.addGroup(t, "Finance", true, f.p1.ID, f.p3.ID)
	f.grants.AssignGroup(grants.Tenant("tenant-1"), f.report.ID, group.ID, true)

	before, err := f.resolve(t)
	if err != nil {
		t.Fatalf("resolve before: %v", err)
	}

	f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, f.p2.ID, true)
	withAllowlist, err := f.resolve(t)
	if err != nil {
		t.Fatalf("resolve with allowlist: %v", err)
	}

	f.grants.ClearAllowlist(grants.Tenant("tenant-1"), f.report.ID)
	after, err := f.resolve(t)
	if err != nil {
		t.Fatalf("resolve after: %v", err)
	}

	for _, views := range [][]PageView{withAllowlist, after} {
		got := pageNames(views)
		want := pageNames(before)
		if len(got) != len(want) {
			t.Fatalf("allowlist changed a group-assigned result: %v vs %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("allowlist changed a group-assigned result: %v vs %v", got, want)
			}
		}
	}
}

func TestUserAllowlistIntersectsTenant(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{f.p1.ID, f.p2.ID, f.p3.ID} {
		f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, id, true)
	}
	f.grants.Allow(grants.User("user-1"), f.report.ID, f.p2.ID, true)

	views, err := f.resolve(t)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	assertNames(t, views, "ReportSection2")
}

func TestUserGroupIntersectsTenant(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{f.p1.ID, f.p2.ID} {
		f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, id, true)
	}
	group := f.addGroup(t, "Analysts", true, f.p2.ID, f.p3.ID)
	f.grants.AssignGroup(grants.User("user-1"), f.report.ID, group.ID, true)

	views, err := f.resolve(t)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	assertNames(t, views, "ReportSection2")
}

func TestEmptyIntersectionIsForbidden(t *testing.T) {
	f := newFixture(t)
	f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, f.p1.ID, true)
	f.grants.Allow(grants.User("user-1"), f.report.ID, f.p2.ID, true)

	if _, err := f.resolve(t); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestUserWithoutGrantsInheritsTenantScope(t *testing.T) {
	f := newFixture(t)
	f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, f.p3.ID, true)
	f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, f.p1.ID, true)

	views, err := f.resolve(t)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Full tenant scope, catalog order preserved.
	assertNames(t, views, "ReportSection1", "ReportSection3")
}

func TestTenantWithNoGrantsIsForbidden(t *testing.T) {
	f := newFixture(t)

	userReads := 0
	gstore := &countingGrants{inner: f.grants, onUser: func() { userReads++ }}
	resolver, err := NewResolver(f.catalog, gstore)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	if _, err := resolver.ResolveAllowedPages(context.Background(), "user-1", "tenant-1", f.report.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if userReads != 0 {
		t.Fatalf("user grants were read %d times before the tenant check failed", userReads)
	}
}

func TestUnsyncedReportIsNotFoundNotForbidden(t *testing.T) {
	f := newFixture(t)
	empty, err := f.catalog.AddReport(context.Background(), "ws-1", "up-rep-2", "Empty Report")
	if err != nil {
		t.Fatalf("add report: %v", err)
	}
	f.grants.Allow(grants.Tenant("tenant-1"), empty.ID, f.p1.ID, true)

	_, err = f.resolver.ResolveAllowedPages(context.Background(), "user-1", "tenant-1", empty.ID)
	if !errors.Is(err, ErrPagesNotSynced) {
		t.Fatalf("expected ErrPagesNotSynced, got %v", err)
	}
	if errors.Is(err, ErrForbidden) {
		t.Fatal("precondition failure must not read as a denial")
	}
}

func TestInactiveAssignmentFallsBackToAllowlist(t *testing.T) {
	f := newFixture(t)
	group := f.addGroup(t, "Finance", true, f.p1.ID, f.p3.ID)
	f.grants.AssignGroup(grants.Tenant("tenant-1"), f.report.ID, group.ID, false)
	f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, f.p2.ID, true)

	views, err := f.resolve(t)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	assertNames(t, views, "ReportSection2")
}

func TestInactiveGroupDoesNotCount(t *testing.T) {
	f := newFixture(t)
	group := f.addGroup(t, "Retired", false, f.p1.ID, f.p3.ID)
	f.grants.AssignGroup(grants.Tenant("tenant-1"), f.report.ID, group.ID, true)
	f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, f.p2.ID, true)

	views, err := f.resolve(t)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// The assignment points at an inactive group, so the allowlist applies.
	assertNames(t, views, "ReportSection2")
}

func TestUserAllowlistOfInactivePagesIsForbidden(t *testing.T) {
	f := newFixture(t)
	f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, f.p1.ID, true)

	// The user holds a grant, but only on a page that has been deactivated.
	// Having any personal grant means the user is constrained to it.
	gone, err := f.catalog.AddPage(context.Background(), catalog.Page{
		ReportID: f.report.ID,
		Name:     "ReportSection9",
		Active:   true,
	})
	if err != nil {
		t.Fatalf("add page: %v", err)
	}
	if err := f.catalog.DeactivatePage(context.Background(), gone.ID); err != nil {
		t.Fatalf("deactivate page: %v", err)
	}
	f.grants.Allow(grants.User("user-1"), f.report.ID, gone.ID, true)

	if _, err := f.resolve(t); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestDisplayNameFallsBackToPageName(t *testing.T) {
	f := newFixture(t)
	f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, f.p1.ID, true)
	f.grants.Allow(grants.Tenant("tenant-1"), f.report.ID, f.p2.ID, true)

	views, err := f.resolve(t)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if views[0].DisplayName != "Overview" {
		t.Fatalf("expected custom label, got %q", views[0].DisplayName)
	}
	if views[1].DisplayName != "ReportSection2" {
		t.Fatalf("expected page-name fallback, got %q", views[1].DisplayName)
	}
}

func TestResolveValidatesInput(t *testing.T) {
	f := newFixture(t)
	if _, err := f.resolver.ResolveAllowedPages(context.Background(), "", "tenant-1", f.report.ID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.resolver.ResolveAllowedPages(context.Background(), "user-1", "tenant-1", " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEffectiveTagging(t *testing.T) {
	groups := []catalog.PageGroup{
		{ID: "g1", PageIDs: []string{"a", "b"}},
		{ID: "g2", PageIDs: []string{"b", "c"}},
	}

	set := Effective(groups, []string{"z"})
	if set.Source != SourceGroups {
		t.Fatalf("expected group source, got %v", set.Source)
	}
	if len(set.PageIDs) != 3 {
		t.Fatalf("expected union of 3 pages, got %v", set.PageIDs)
	}

	set = Effective(nil, []string{"a", "c"})
	if set.Source != SourceAllowlist {
		t.Fatalf("expected allowlist source, got %v", set.Source)
	}
	if len(set.PageIDs) != 2 {
		t.Fatalf("expected 2 pages, got %v", set.PageIDs)
	}

	set = Effective(nil, nil)
	if set.Source != SourceNone || set.HasAssignment() {
		t.Fatalf("expected empty set with no assignment, got %+v", set)
	}
}

// countingGrants wraps a grants reader and reports user-tier reads.
type countingGrants struct {
	inner  grants.Reader
	onUser func()
}

func (c *countingGrants) ListActiveGroupAssignments(ctx context.Context, principal grants.Principal, reportID string) ([]string, error) {
	if principal.Kind == grants.KindUser && c.onUser != nil {
		c.onUser()
	}
	return c.inner.ListActiveGroupAssignments(ctx, principal, reportID)
}

func (c *countingGrants) ListAllowlist(ctx context.Context, principal grants.Principal, reportID string) ([]string, error) {
	if principal.Kind == grants.KindUser && c.onUser != nil {
		c.onUser()
	}
	return c.inner.ListAllowlist(ctx, principal, reportID)
}
