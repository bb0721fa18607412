package workload

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/agent-haymaker/haymaker/internal/credentials"
	"github.com/agent-haymaker/haymaker/internal/model"
)

// ErrDeploymentNotFound is returned by workload implementations when a
// deployment id is unknown to them.
var ErrDeploymentNotFound = errors.New("deployment not found")

// DeploymentState is the universal live-state object returned by every
// workload, regardless of what it actually provisions. It is what makes
// workload-agnostic lifecycle commands possible.
type DeploymentState struct {
	DeploymentID string         `json:"deployment_id"`
	WorkloadName string         `json:"workload_name"`
	Status       string         `json:"status"`
	Phase        string         `json:"phase,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	StoppedAt    *time.Time     `json:"stopped_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// Workload is the capability contract every workload implementation must
// satisfy. The orchestrator drives all lifecycle operations through this
// interface and never reaches into implementation internals.
//
// Deploy may block on external I/O for an unbounded duration; implementations
// must honor ctx cancellation. Stop and Start return false when the requested
// transition is already in effect.
type Workload interface {
	// Name returns the workload's unique registry name.
	Name() string

	// Deploy starts a new deployment and returns its canonical deployment id.
	Deploy(ctx context.Context, cfg model.DeploymentConfig) (string, error)

	// GetStatus reports live state for a deployment.
	GetStatus(ctx context.Context, deploymentID string) (*DeploymentState, error)

	// Stop gracefully halts a running deployment. The deployment can be
	// resumed later with Start.
	Stop(ctx context.Context, deploymentID string) (bool, error)

	// Start resumes a stopped deployment under its existing id.
	Start(ctx context.Context, deploymentID string) (bool, error)

	// Cleanup deletes all resources belonging to a deployment. Partial
	// failure is reported through the CleanupReport, not the error return.
	Cleanup(ctx context.Context, deploymentID string) (*model.CleanupReport, error)

	// GetLogs opens a log stream for a deployment. With follow set, the
	// stream is unbounded and terminates only through ctx cancellation or
	// Close; otherwise it ends after the most recent lines entries.
	GetLogs(ctx context.Context, deploymentID string, follow bool, lines int) (LogStream, error)

	// ValidateConfig checks a deployment config before any side effects.
	// A non-empty slice of human-readable messages means the config is
	// rejected.
	ValidateConfig(ctx context.Context, cfg model.DeploymentConfig) ([]string, error)

	// ListDeployments reports live state for every deployment this workload
	// knows about.
	ListDeployments(ctx context.Context) ([]DeploymentState, error)
}

// Env carries the platform services injected into a workload at construction
// time: credential resolution, structured logging, and a scratch directory the
// workload may use for local state.
type Env struct {
	Credentials credentials.Provider
	Logger      *slog.Logger
	DataDir     string
}

// Factory constructs a workload instance bound to platform services. Install
// sources declare one of these as their entrypoint; the registry checks
// contract satisfaction at registration time, not per call.
type Factory func(env Env) (Workload, error)
