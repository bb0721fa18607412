// Package orchestrator dispatches lifecycle operations to workload
// implementations: it validates input, resolves the workload through the
// registry, invokes the capability method, and persists the resulting state
// transition in the record store. Every operation follows that shape.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agent-haymaker/haymaker/internal/model"
	"github.com/agent-haymaker/haymaker/internal/store"
	"github.com/agent-haymaker/haymaker/internal/workload"
)

// DefaultListLimit caps List results when the caller does not.
const DefaultListLimit = 20

// Resolver resolves a workload name to a live implementation instance.
type Resolver interface {
	Resolve(name string) (workload.Workload, error)
}

// StatusResult is the outcome of a status query. When the workload cannot be
// reached for a live refresh, Stale is set and Record carries the
// last-persisted state instead of failing the whole call.
type StatusResult struct {
	Record *model.DeploymentRecord   `json:"record"`
	Live   *workload.DeploymentState `json:"live,omitempty"`
	Stale  bool                      `json:"stale"`
}

// Orchestrator routes lifecycle commands to workloads and owns all writes to
// the deployment record store. Workload implementations never mutate the
// store directly.
type Orchestrator struct {
	resolver Resolver
	store    store.Store
	logger   *slog.Logger
}

// New creates an orchestrator over the given registry and record store.
func New(resolver Resolver, st store.Store, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		store:    st,
		logger:   logger,
	}
}

// Deploy starts a new deployment of the named workload. The config is
// validated before any record is created; a validation failure has no side
// effects. On workload failure the record moves to failed and is retained
// for forensic status and logs inspection. A new deployment id is allocated
// on every call; idempotence across identical configs is a workload
// responsibility.
func (o *Orchestrator) Deploy(ctx context.Context, cfg model.DeploymentConfig) (*model.DeploymentRecord, error) {
	wl, err := o.resolver.Resolve(cfg.WorkloadName)
	if err != nil {
		return nil, err
	}

	msgs, err := wl.ValidateConfig(ctx, cfg)
	if err != nil {
		return nil, &ExecError{Workload: cfg.WorkloadName, Op: "validate_config", Err: err}
	}
	if len(msgs) > 0 {
		return nil, &ValidationError{Errors: msgs}
	}

	rec, err := o.store.Create(ctx, cfg.WorkloadName, cfg)
	if err != nil {
		return nil, fmt.Errorf("create deployment record: %w", err)
	}

	o.logger.Info("deploying workload",
		"workload", cfg.WorkloadName,
		"deployment_id", rec.DeploymentID,
	)

	deployedID, err := wl.Deploy(ctx, cfg)
	if err != nil {
		o.transition(ctx, rec.DeploymentID, model.StatusFailed, err.Error())
		return nil, &ExecError{Workload: cfg.WorkloadName, Op: "deploy", Err: err}
	}

	// The workload-returned id is the canonical identifier from here on.
	id := rec.DeploymentID
	if deployedID != "" && deployedID != id {
		if adoptErr := o.store.AdoptID(ctx, id, deployedID); adoptErr != nil {
			o.logger.Error("failed to adopt workload deployment id",
				"deployment_id", id, "workload_id", deployedID, "error", adoptErr)
		} else {
			id = deployedID
		}
	}

	running := model.StatusRunning
	updated, err := o.store.Update(ctx, id, store.RecordUpdate{Status: &running})
	if err != nil {
		return nil, fmt.Errorf("persist running status: %w", err)
	}
	return updated, nil
}

// Status reads the persisted record and refreshes it with the workload's
// live state. If the workload cannot be reached the last-persisted record is
// returned with Stale set rather than failing the call.
func (o *Orchestrator) Status(ctx context.Context, deploymentID string) (*StatusResult, error) {
	rec, err := o.store.Get(ctx, deploymentID)
	if err != nil {
		return nil, err
	}

	wl, err := o.resolver.Resolve(rec.WorkloadName)
	if err != nil {
		o.logger.Warn("status falling back to persisted record",
			"deployment_id", deploymentID, "error", err)
		return &StatusResult{Record: rec, Stale: true}, nil
	}

	state, err := wl.GetStatus(ctx, deploymentID)
	if err != nil {
		o.logger.Warn("live status refresh failed",
			"deployment_id", deploymentID, "workload", rec.WorkloadName, "error", err)
		return &StatusResult{Record: rec, Stale: true}, nil
	}

	// Persist the refreshed phase; the status enum stays store-owned.
	if state.Phase != "" && state.Phase != rec.Phase {
		updated, err := o.store.Update(ctx, deploymentID, store.RecordUpdate{Phase: &state.Phase})
		if err != nil {
			o.logger.Error("persist refreshed phase", "deployment_id", deploymentID, "error", err)
		} else {
			rec = updated
		}
	}

	return &StatusResult{Record: rec, Live: state}, nil
}

// Stop halts a running deployment. Returns false with no error when the
// deployment is already stopped or cleaned (idempotent no-op). On workload
// failure the record rolls back to running and the error is surfaced.
func (o *Orchestrator) Stop(ctx context.Context, deploymentID string) (bool, error) {
	rec, err := o.store.Get(ctx, deploymentID)
	if err != nil {
		return false, err
	}

	switch rec.Status {
	case model.StatusStopped, model.StatusCleaned:
		return false, nil
	}

	stopping := model.StatusStopping
	if _, err := o.store.Update(ctx, deploymentID, store.RecordUpdate{Status: &stopping}); err != nil {
		return false, err
	}

	wl, err := o.resolver.Resolve(rec.WorkloadName)
	if err != nil {
		o.transition(ctx, deploymentID, model.StatusRunning, "")
		return false, err
	}

	ok, err := wl.Stop(ctx, deploymentID)
	if err != nil {
		o.transition(ctx, deploymentID, model.StatusRunning, "")
		return false, &ExecError{Workload: rec.WorkloadName, Op: "stop", Err: err}
	}
	if !ok {
		o.transition(ctx, deploymentID, model.StatusRunning, "")
		return false, nil
	}

	stopped := model.StatusStopped
	if _, err := o.store.Update(ctx, deploymentID, store.RecordUpdate{Status: &stopped}); err != nil {
		return false, fmt.Errorf("persist stopped status: %w", err)
	}

	o.logger.Info("deployment stopped", "deployment_id", deploymentID)
	return true, nil
}

// Start resumes a stopped deployment. Returns false with no error when the
// deployment is already running.
func (o *Orchestrator) Start(ctx context.Context, deploymentID string) (bool, error) {
	rec, err := o.store.Get(ctx, deploymentID)
	if err != nil {
		return false, err
	}

	if rec.Status == model.StatusRunning {
		return false, nil
	}
	if rec.Status != model.StatusStopped {
		return false, fmt.Errorf("%s -> %s: %w", rec.Status, model.StatusRunning, store.ErrInvalidTransition)
	}

	wl, err := o.resolver.Resolve(rec.WorkloadName)
	if err != nil {
		return false, err
	}

	ok, err := wl.Start(ctx, deploymentID)
	if err != nil {
		return false, &ExecError{Workload: rec.WorkloadName, Op: "start", Err: err}
	}
	if !ok {
		return false, nil
	}

	running := model.StatusRunning
	if _, err := o.store.Update(ctx, deploymentID, store.RecordUpdate{Status: &running}); err != nil {
		return false, fmt.Errorf("persist running status: %w", err)
	}

	o.logger.Info("deployment started", "deployment_id", deploymentID)
	return true, nil
}

// Cleanup deletes all resources for a deployment. With dryRun set it returns
// a preview without mutating any state or invoking the workload. A real run
// always leaves the record cleaned, even when the workload call partially
// fails; the report's error list carries the partial-failure signal.
func (o *Orchestrator) Cleanup(ctx context.Context, deploymentID string, dryRun bool) (*model.CleanupReport, error) {
	rec, err := o.store.Get(ctx, deploymentID)
	if err != nil {
		return nil, err
	}

	if dryRun {
		return &model.CleanupReport{
			DeploymentID: deploymentID,
			Details: []string{
				fmt.Sprintf("would clean up deployment %s (workload %s, status %s)",
					deploymentID, rec.WorkloadName, rec.Status),
			},
		}, nil
	}

	wl, err := o.resolver.Resolve(rec.WorkloadName)
	if err != nil {
		return nil, err
	}

	cleaning := model.StatusCleaning
	if _, err := o.store.Update(ctx, deploymentID, store.RecordUpdate{Status: &cleaning}); err != nil {
		return nil, err
	}

	start := time.Now()
	report, err := wl.Cleanup(ctx, deploymentID)
	if err != nil {
		// Best-effort: the failure is reported, never thrown, so the record
		// cannot get stuck mid-cleanup.
		report = &model.CleanupReport{
			DeploymentID: deploymentID,
			Errors:       []string{err.Error()},
		}
	}
	if report.DeploymentID == "" {
		report.DeploymentID = deploymentID
	}
	if report.DurationSeconds == 0 {
		report.DurationSeconds = time.Since(start).Seconds()
	}

	o.transition(ctx, deploymentID, model.StatusCleaned, "")

	o.logger.Info("deployment cleaned",
		"deployment_id", deploymentID,
		"resources_deleted", report.ResourcesDeleted,
		"errors", len(report.Errors),
	)
	return report, nil
}

// List returns deployment records matching filter, most recent first.
// No workload interaction happens here.
func (o *Orchestrator) List(ctx context.Context, filter store.ListFilter, limit int) ([]*model.DeploymentRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return o.store.List(ctx, filter, limit)
}

// transition moves a record to status, logging instead of failing when the
// store write itself errors; callers on these paths are already surfacing a
// more interesting error.
func (o *Orchestrator) transition(ctx context.Context, deploymentID, status, errMsg string) {
	upd := store.RecordUpdate{Status: &status}
	if errMsg != "" {
		upd.Error = &errMsg
	}
	if _, err := o.store.Update(ctx, deploymentID, upd); err != nil {
		o.logger.Error("failed to persist status transition",
			"deployment_id", deploymentID, "status", status, "error", err)
	}
}
