package refresh

import (
	"context"
	"time"
)

// Handle identifies one accepted upstream refresh.
type Handle struct {
	ID          string    `json:"id"`
	RequestedAt time.Time `json:"requested_at"`
}

// Record is one entry of the upstream refresh history.
type Record struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// Upstream performs the actual refresh calls against the BI provider.
type Upstream interface {
	Refresh(ctx context.Context, workspaceID, datasetID string) (Handle, error)
	ListRefreshHistory(ctx context.Context, workspaceID, datasetID string) ([]Record, error)
}

// Status is the coalescer's decision for one request.
type Status string

const (
	// StatusQueued: the upstream call ran immediately.
	StatusQueued Status = "queued"
	// StatusScheduled: a deferred run is pending for this key.
	StatusScheduled Status = "scheduled"
	// StatusRunning: an upstream call is in flight; the request was folded
	// into the pending flag.
	StatusRunning Status = "running"
)

// Result describes what the coalescer did with a request.
type Result struct {
	Status        Status    `json:"status"`
	Refresh       *Handle   `json:"refresh,omitempty"`
	Pending       bool      `json:"pending,omitempty"`
	ScheduledAt   time.Time `json:"scheduled_at,omitzero"`
	ScheduledInMs int64     `json:"scheduled_in_ms,omitempty"`
}

// Event is a refresh lifecycle transition, published for observability.
type Event struct {
	WorkspaceID string    `json:"workspace_id"`
	DatasetID   string    `json:"dataset_id"`
	Kind        string    `json:"kind"`
	At          time.Time `json:"at"`
}

// Event kinds.
const (
	EventQueued    = "queued"
	EventScheduled = "scheduled"
	EventCompleted = "completed"
	EventFailed    = "failed"
)
