package model

import "github.com/oklog/ulid/v2"

// deploymentIDPrefix distinguishes platform-generated ids from workload-returned ones.
const deploymentIDPrefix = "dep-"

// NewDeploymentID generates a new globally unique deployment identifier.
// ULIDs are lexicographically sortable by creation time, which keeps
// most-recent-first listings cheap.
func NewDeploymentID() string {
	return deploymentIDPrefix + ulid.Make().String()
}
