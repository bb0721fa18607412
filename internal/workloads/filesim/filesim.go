// Package filesim provides the built-in file-sim workload: a reference
// implementation of the full capability contract that provisions nothing
// external. Each deployment is a JSON state file and an append-only log file
// under the platform data directory, which makes it suitable for exercising
// the lifecycle end to end on any machine.
package filesim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/agent-haymaker/haymaker/internal/model"
	"github.com/agent-haymaker/haymaker/internal/workload"
)

// WorkloadName is the registry name of the built-in workload.
const WorkloadName = "file-sim"

const maxWorkers = 1000

// Descriptor describes the built-in workload for the registry catalog.
func Descriptor() model.WorkloadDescriptor {
	return model.WorkloadDescriptor{
		Name:        WorkloadName,
		Version:     "1.0.0",
		Description: "Simulated workload backed by local state files; deploys worker agents that exist only on disk.",
		Entrypoint:  "builtin:file-sim",
	}
}

// FileSim simulates a fleet of worker agents using local files.
type FileSim struct {
	mu    sync.Mutex
	env   workload.Env
	dir   string
	nowFn func() time.Time
}

// New is the workload factory registered for the builtin entrypoint.
func New(env workload.Env) (workload.Workload, error) {
	dir := filepath.Join(env.DataDir, WorkloadName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileSim{env: env, dir: dir, nowFn: time.Now}, nil
}

func (f *FileSim) Name() string { return WorkloadName }

// ValidateConfig rejects configs before Deploy touches the filesystem.
func (f *FileSim) ValidateConfig(_ context.Context, cfg model.DeploymentConfig) ([]string, error) {
	var msgs []string

	workers, ok := intConfig(cfg.WorkloadConfig, "workers")
	if ok && (workers < 1 || workers > maxWorkers) {
		msgs = append(msgs, fmt.Sprintf("workers must be between 1 and %d, got %d", maxWorkers, workers))
	}

	if cfg.DurationHours != nil && *cfg.DurationHours < 1 {
		msgs = append(msgs, fmt.Sprintf("duration_hours must be positive, got %d", *cfg.DurationHours))
	}

	if v, present := cfg.WorkloadConfig["credential"]; present {
		if _, isStr := v.(string); !isStr {
			msgs = append(msgs, "credential must be a string")
		}
	}

	return msgs, nil
}

// Deploy creates the state and log files for a new simulated fleet and
// returns the canonical deployment id.
func (f *FileSim) Deploy(ctx context.Context, cfg model.DeploymentConfig) (string, error) {
	workers, ok := intConfig(cfg.WorkloadConfig, "workers")
	if !ok {
		workers = 1
	}

	// An optional named credential is resolved through the platform chain;
	// resolution failure aborts the deploy before any file is written.
	var authenticated bool
	if name, ok := cfg.WorkloadConfig["credential"].(string); ok && name != "" {
		if _, err := f.env.Credentials.Get(ctx, name); err != nil {
			return "", fmt.Errorf("resolve credential %q: %w", name, err)
		}
		authenticated = true
	}

	id := "sim-" + strings.ToLower(ulid.Make().String())
	now := f.nowFn()

	state := workload.DeploymentState{
		DeploymentID: id,
		WorkloadName: WorkloadName,
		Status:       "running",
		Phase:        fmt.Sprintf("running %d workers", workers),
		StartedAt:    &now,
		Config:       cfg.WorkloadConfig,
		Metadata: map[string]any{
			"workers":       workers,
			"authenticated": authenticated,
		},
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.writeState(&state); err != nil {
		return "", err
	}
	if err := f.appendLog(id,
		fmt.Sprintf("deployment %s created", id),
		fmt.Sprintf("provisioning %d workers", workers),
		"all workers running",
	); err != nil {
		return "", err
	}

	f.env.Logger.Info("simulated fleet deployed", "deployment_id", id, "workers", workers)
	return id, nil
}

func (f *FileSim) GetStatus(_ context.Context, deploymentID string) (*workload.DeploymentState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readState(deploymentID)
}

// Stop marks a running fleet stopped. Already-stopped fleets are a no-op.
func (f *FileSim) Stop(_ context.Context, deploymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.readState(deploymentID)
	if err != nil {
		return false, err
	}
	if state.Status != "running" {
		return false, nil
	}

	now := f.nowFn()
	state.Status = "stopped"
	state.Phase = "workers halted"
	state.StoppedAt = &now
	if err := f.writeState(state); err != nil {
		return false, err
	}
	if err := f.appendLog(deploymentID, "all workers stopped"); err != nil {
		return false, err
	}
	return true, nil
}

// Start resumes a stopped fleet under its existing id.
func (f *FileSim) Start(_ context.Context, deploymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.readState(deploymentID)
	if err != nil {
		return false, err
	}
	if state.Status == "running" {
		return false, nil
	}

	workers, _ := intConfig(state.Config, "workers")
	if workers == 0 {
		workers = 1
	}
	state.Status = "running"
	state.Phase = fmt.Sprintf("running %d workers", workers)
	state.StoppedAt = nil
	if err := f.writeState(state); err != nil {
		return false, err
	}
	if err := f.appendLog(deploymentID, "all workers resumed"); err != nil {
		return false, err
	}
	return true, nil
}

// Cleanup removes the state and log files. Each file is counted in the
// report; a file that cannot be removed is a reported failure, not an error.
func (f *FileSim) Cleanup(_ context.Context, deploymentID string) (*model.CleanupReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.readState(deploymentID); err != nil {
		return nil, err
	}

	report := &model.CleanupReport{DeploymentID: deploymentID}
	start := f.nowFn()

	for _, path := range []string{f.statePath(deploymentID), f.logPath(deploymentID)} {
		err := os.Remove(path)
		switch {
		case err == nil:
			report.ResourcesDeleted++
			report.Details = append(report.Details, "removed "+filepath.Base(path))
		case errors.Is(err, os.ErrNotExist):
			// A fleet with no log file has nothing to remove there.
		default:
			report.ResourcesFailed++
			report.Errors = append(report.Errors, err.Error())
		}
	}

	report.DurationSeconds = time.Since(start).Seconds()
	return report, nil
}

// ListDeployments reports every fleet with a state file on disk.
func (f *FileSim) ListDeployments(_ context.Context) ([]workload.DeploymentState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read state dir: %w", err)
	}

	var states []workload.DeploymentState
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		state, err := f.readState(strings.TrimSuffix(name, ".json"))
		if err != nil {
			f.env.Logger.Warn("skipping unreadable state file", "file", name, "error", err)
			continue
		}
		states = append(states, *state)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].DeploymentID < states[j].DeploymentID
	})
	return states, nil
}

func (f *FileSim) statePath(id string) string { return filepath.Join(f.dir, id+".json") }
func (f *FileSim) logPath(id string) string   { return filepath.Join(f.dir, id+".log") }

func (f *FileSim) readState(id string) (*workload.DeploymentState, error) {
	data, err := os.ReadFile(f.statePath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", id, workload.ErrDeploymentNotFound)
	}
	if err != nil {
		return nil, err
	}
	var state workload.DeploymentState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", id, err)
	}
	return &state, nil
}

func (f *FileSim) writeState(state *workload.DeploymentState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.statePath(state.DeploymentID), data, 0o644)
}

func (f *FileSim) appendLog(id string, lines ...string) error {
	file, err := os.OpenFile(f.logPath(id), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()
	ts := f.nowFn().UTC().Format(time.RFC3339)
	for _, line := range lines {
		if _, err := fmt.Fprintf(file, "%s %s\n", ts, line); err != nil {
			return err
		}
	}
	return nil
}

// intConfig reads an integer config value, accepting the numeric types that
// survive a JSON round trip.
func intConfig(cfg map[string]any, key string) (int, bool) {
	switch v := cfg[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
