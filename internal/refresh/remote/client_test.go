package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRefreshParsesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if r.URL.Path != "/v1.0/workspaces/w1/datasets/d1/refreshes" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Fatalf("unexpected auth header %q", got)
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"req-9","requested_at":"2025-06-01T12:00:00Z"}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "token-1")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	handle, err := client.Refresh(context.Background(), "w1", "d1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if handle.ID != "req-9" {
		t.Fatalf("unexpected handle id %q", handle.ID)
	}
}

func TestRefreshFallsBackToHeaderID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "hdr-42")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	handle, err := client.Refresh(context.Background(), "w1", "d1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if handle.ID != "hdr-42" {
		t.Fatalf("unexpected handle id %q", handle.ID)
	}
	if handle.RequestedAt.IsZero() {
		t.Fatal("expected requested_at to be filled")
	}
}

func TestRefreshMapsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many refreshes", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "token-1")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Refresh(context.Background(), "w1", "d1")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Status != http.StatusTooManyRequests {
		t.Fatalf("unexpected status %d", statusErr.Status)
	}
}

func TestListRefreshHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("unexpected method %s", r.Method)
		}
		_, _ = w.Write([]byte(`{"value":[{"id":"r1","status":"Completed"},{"id":"r2","status":"Failed"}]}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "token-1")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	records, err := client.ListRefreshHistory(context.Background(), "w1", "d1")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(records) != 2 || records[0].ID != "r1" || records[1].Status != "Failed" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestListReportPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1.0/reports/up-rep-1/pages" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"value":[{"name":"ReportSection1","displayName":"Overview","order":0},{"name":"ReportSection2","order":1}]}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "token-1")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	pages, err := client.ListReportPages(context.Background(), "up-rep-1")
	if err != nil {
		t.Fatalf("list pages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].DisplayName != "Overview" || pages[1].Name != "ReportSection2" {
		t.Fatalf("unexpected pages: %+v", pages)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("  ", "token"); err == nil {
		t.Fatal("expected error for empty base url")
	}
}
