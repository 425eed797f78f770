package catalog

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStorePageLifecycle(t *testing.T) {
	store := NewMemoryStore()
	rep, err := store.AddReport(context.Background(), "ws-1", "up-1", "Sales")
	if err != nil {
		t.Fatalf("add report: %v", err)
	}

	p2, err := store.AddPage(context.Background(), Page{ReportID: rep.ID, Name: "ReportSection2", OrderIndex: 1, Active: true})
	if err != nil {
		t.Fatalf("add page: %v", err)
	}
	p1, err := store.AddPage(context.Background(), Page{ReportID: rep.ID, Name: "ReportSection1", OrderIndex: 0, Active: true})
	if err != nil {
		t.Fatalf("add page: %v", err)
	}

	pages, err := store.ListActivePages(context.Background(), rep.ID)
	if err != nil {
		t.Fatalf("list active pages: %v", err)
	}
	if len(pages) != 2 || pages[0].ID != p1.ID || pages[1].ID != p2.ID {
		t.Fatalf("pages not in catalog order: %+v", pages)
	}

	if err := store.DeactivatePage(context.Background(), p1.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	pages, _ = store.ListActivePages(context.Background(), rep.ID)
	if len(pages) != 1 || pages[0].ID != p2.ID {
		t.Fatalf("expected only active page, got %+v", pages)
	}
	all, _ := store.ListPages(context.Background(), rep.ID)
	if len(all) != 2 {
		t.Fatalf("soft delete must keep the row, got %d pages", len(all))
	}
}

func TestMemoryStoreValidation(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.AddReport(context.Background(), "ws-1", "up-1", "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := store.AddPage(context.Background(), Page{Name: "p"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := store.GetReport(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.UpdatePage(context.Background(), Page{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreGroupCopiesMembers(t *testing.T) {
	store := NewMemoryStore()
	rep, _ := store.AddReport(context.Background(), "ws-1", "up-1", "Sales")
	members := []string{"p-1", "p-2"}
	grp, err := store.AddGroup(context.Background(), PageGroup{ReportID: rep.ID, Name: "viewers", Active: true, PageIDs: members})
	if err != nil {
		t.Fatalf("add group: %v", err)
	}
	members[0] = "mutated"

	groups, err := store.ListActiveGroups(context.Background(), rep.ID)
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != grp.ID {
		t.Fatalf("unexpected groups: %+v", groups)
	}
	if groups[0].PageIDs[0] != "p-1" {
		t.Fatalf("group members aliased caller slice: %+v", groups[0].PageIDs)
	}
}
