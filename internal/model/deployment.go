package model

import (
	"sort"
	"time"
)

// Deployment status constants.
const (
	StatusDeploying = "deploying"
	StatusRunning   = "running"
	StatusStopping  = "stopping"
	StatusStopped   = "stopped"
	StatusCleaning  = "cleaning"
	StatusCleaned   = "cleaned"
	StatusFailed    = "failed"
)

// validTransitions maps each status to the set of statuses it may transition to.
// The stopping→running edge is the rollback taken when a workload's stop fails.
// The failed→cleaning edge is the sole legal exit from failed, so partially
// created resources can still be reclaimed.
var validTransitions = map[string]map[string]bool{
	StatusDeploying: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusStopping: true,
		StatusCleaning: true,
		StatusFailed:   true,
	},
	StatusStopping: {
		StatusStopped: true,
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusStopped: {
		StatusRunning:  true,
		StatusCleaning: true,
	},
	StatusCleaning: {
		StatusCleaned: true,
	},
	StatusFailed: {
		StatusCleaning: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// LegalSources returns every status from which `to` is reachable, sorted.
// Used by the store to guard transitions with a single conditional update.
func LegalSources(to string) []string {
	var sources []string
	for from, targets := range validTransitions {
		if targets[to] {
			sources = append(sources, from)
		}
	}
	sort.Strings(sources)
	return sources
}

// TerminalStatus reports whether a status has no outgoing edges.
func TerminalStatus(status string) bool {
	return len(validTransitions[status]) == 0
}

// DeploymentRecord is the durable lifecycle record for one deployment.
// The record store is the single source of truth for Status; Phase is
// informational free text supplied by the workload.
type DeploymentRecord struct {
	DeploymentID string            `json:"deployment_id"`
	WorkloadName string            `json:"workload_name"`
	Status       string            `json:"status"`
	Phase        string            `json:"phase,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// DeploymentConfig is the ephemeral input for starting a new deployment.
// WorkloadConfig is an open mapping whose schema belongs to the target
// workload, not the core.
type DeploymentConfig struct {
	WorkloadName   string            `json:"workload_name"`
	DurationHours  *int              `json:"duration_hours,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	WorkloadConfig map[string]any    `json:"workload_config,omitempty"`
}

// CleanupReport summarizes a cleanup run. Partial failure is communicated
// through Errors rather than an error return, because cleanup is best-effort
// and must never leave a deployment stuck mid-cleanup.
type CleanupReport struct {
	DeploymentID     string   `json:"deployment_id"`
	ResourcesDeleted int      `json:"resources_deleted"`
	ResourcesFailed  int      `json:"resources_failed"`
	Details          []string `json:"details,omitempty"`
	Errors           []string `json:"errors,omitempty"`
	DurationSeconds  float64  `json:"duration_seconds"`
}

// TargetRequirement names an environment a workload needs access to and the
// roles it requires there.
type TargetRequirement struct {
	TargetType    string   `json:"target_type" yaml:"type"`
	RequiredRoles []string `json:"required_roles" yaml:"roles"`
}

// WorkloadDescriptor is the immutable metadata identifying one installable
// workload package. Replaced wholesale on re-install.
type WorkloadDescriptor struct {
	Name            string              `json:"name" yaml:"name"`
	Version         string              `json:"version" yaml:"version"`
	Description     string              `json:"description,omitempty" yaml:"description"`
	Entrypoint      string              `json:"entrypoint" yaml:"entrypoint"`
	RequiredTargets []TargetRequirement `json:"required_targets,omitempty" yaml:"targets"`
}
