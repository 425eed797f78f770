package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"embedgate.io/internal/access"
	"embedgate.io/internal/catalog"
	"embedgate.io/internal/grants"
	"embedgate.io/internal/ids"
	"embedgate.io/internal/refresh"
)

type localUpstream struct{}

func (localUpstream) Refresh(ctx context.Context, workspaceID, datasetID string) (refresh.Handle, error) {
	return refresh.Handle{ID: ids.New(), RequestedAt: time.Now().UTC()}, nil
}

func (localUpstream) ListRefreshHistory(ctx context.Context, workspaceID, datasetID string) ([]refresh.Record, error) {
	return nil, nil
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cat := catalog.NewMemoryStore()
	rep, err := cat.AddReport(ctx, "ws-smoke", "up-smoke", "Smoke Report")
	if err != nil {
		log.Fatalf("add report: %v", err)
	}
	var pageIDs []string
	for i, name := range []string{"ReportSection1", "ReportSection2", "ReportSection3"} {
		p, err := cat.AddPage(ctx, catalog.Page{
			ReportID:   rep.ID,
			Name:       name,
			OrderIndex: i,
			Active:     true,
		})
		if err != nil {
			log.Fatalf("add page: %v", err)
		}
		pageIDs = append(pageIDs, p.ID)
	}
	grp, err := cat.AddGroup(ctx, catalog.PageGroup{
		ReportID: rep.ID,
		Name:     "viewers",
		Active:   true,
		PageIDs:  []string{pageIDs[0], pageIDs[2]},
	})
	if err != nil {
		log.Fatalf("add group: %v", err)
	}

	gr := grants.NewMemoryStore()
	gr.AssignGroup(grants.Tenant("acme"), rep.ID, grp.ID, true)
	// Allowlist entry that must be shadowed by the group assignment.
	gr.Allow(grants.Tenant("acme"), rep.ID, pageIDs[1], true)
	gr.Allow(grants.User("bob"), rep.ID, pageIDs[0], true)

	resolver, err := access.NewResolver(cat, gr)
	if err != nil {
		log.Fatalf("new resolver: %v", err)
	}

	pages, err := resolver.ResolveAllowedPages(ctx, "alice", "acme", rep.ID)
	if err != nil {
		log.Fatalf("resolve for alice: %v", err)
	}
	if len(pages) != 2 || pages[0].PageName != "ReportSection1" || pages[1].PageName != "ReportSection3" {
		log.Fatalf("unexpected pages for alice: %+v", pages)
	}

	pages, err = resolver.ResolveAllowedPages(ctx, "bob", "acme", rep.ID)
	if err != nil {
		log.Fatalf("resolve for bob: %v", err)
	}
	if len(pages) != 1 || pages[0].PageName != "ReportSection1" {
		log.Fatalf("unexpected pages for bob: %+v", pages)
	}

	coalescer, err := refresh.NewCoalescer(localUpstream{}, refresh.WithWindow(2*time.Second))
	if err != nil {
		log.Fatalf("new coalescer: %v", err)
	}
	defer coalescer.Close()

	res, err := coalescer.RequestRefresh(ctx, "ws-smoke", "ds-smoke")
	if err != nil {
		log.Fatalf("first refresh: %v", err)
	}
	if res.Status != refresh.StatusQueued {
		log.Fatalf("expected queued, got %s", res.Status)
	}

	time.Sleep(100 * time.Millisecond)
	res, err = coalescer.RequestRefresh(ctx, "ws-smoke", "ds-smoke")
	if err != nil {
		log.Fatalf("second refresh: %v", err)
	}
	if res.Status != refresh.StatusScheduled {
		log.Fatalf("expected scheduled, got %s", res.Status)
	}
	res2, err := coalescer.RequestRefresh(ctx, "ws-smoke", "ds-smoke")
	if err != nil {
		log.Fatalf("third refresh: %v", err)
	}
	if res2.Status != refresh.StatusScheduled || !res2.ScheduledAt.Equal(res.ScheduledAt) {
		log.Fatalf("burst was not coalesced: %+v vs %+v", res, res2)
	}

	fmt.Printf("✅ embedgate smoke test passed: report=%s\n", rep.ID)
}
