package store

import (
	"context"
	"errors"

	"github.com/agent-haymaker/haymaker/internal/model"
)

// ErrNotFound is returned when a deployment record does not exist.
var ErrNotFound = errors.New("deployment not found")

// ErrInvalidTransition is returned when a requested status is not reachable
// from the record's current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// ListFilter narrows List results. Empty fields match everything; set fields
// are combined conjunctively.
type ListFilter struct {
	WorkloadName string
	Status       string
}

// RecordUpdate is a partial update to a deployment record. Nil fields are
// left untouched.
type RecordUpdate struct {
	Status *string
	Phase  *string
	Error  *string
}

// Store is the durable deployment record store: the single source of truth
// for lifecycle status. Implementations must serialize concurrent writers to
// the same deployment id while letting writers to distinct ids proceed.
type Store interface {
	// Create allocates a new unique deployment id and writes the initial
	// record with status deploying.
	Create(ctx context.Context, workloadName string, cfg model.DeploymentConfig) (*model.DeploymentRecord, error)

	// Get returns the record for a deployment id.
	Get(ctx context.Context, deploymentID string) (*model.DeploymentRecord, error)

	// Update applies a partial update, enforcing status-transition legality,
	// and returns the updated record.
	Update(ctx context.Context, deploymentID string, upd RecordUpdate) (*model.DeploymentRecord, error)

	// AdoptID rekeys a record to the canonical deployment id returned by the
	// workload's deploy.
	AdoptID(ctx context.Context, oldID, newID string) error

	// List returns records matching filter, most recently created first,
	// capped at limit.
	List(ctx context.Context, filter ListFilter, limit int) ([]*model.DeploymentRecord, error)

	Close() error
}
