package ports

import (
	"context"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
)

// SnapshotStore persists workflow documents between requests.
type SnapshotStore interface {
	// Save persists the snapshot for a workflow id, replacing any previous one.
	Save(ctx context.Context, workflowID string, snap *domain.Snapshot) error

	// Load retrieves the snapshot of a workflow.
	// Returns domain.ErrWorkflowNotFound if the workflow does not exist.
	Load(ctx context.Context, workflowID string) (*domain.Snapshot, error)

	// Delete removes a workflow. Deleting a missing workflow is not an error.
	Delete(ctx context.Context, workflowID string) error

	// List returns the ids of all stored workflows.
	List(ctx context.Context) ([]string, error)
}
