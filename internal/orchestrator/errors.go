package orchestrator

import (
	"fmt"
	"strings"
)

// ValidationError carries the human-readable field errors a workload returned
// from ValidateConfig. Deploy fails with this before any record is created.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid deployment config: %s", strings.Join(e.Errors, "; "))
}

// ExecError wraps a failure raised by a workload implementation during a
// lifecycle operation. The core never retries; callers see the cause via
// Unwrap.
type ExecError struct {
	Workload string
	Op       string
	Err      error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("workload %s: %s: %v", e.Workload, e.Op, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }
