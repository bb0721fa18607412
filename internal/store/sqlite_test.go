package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/agent-haymaker/haymaker/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newFileTestStore opens a store on a real file so concurrency tests exercise
// the multi-connection WAL path, the same shape as concurrent CLI invocations.
func newFileTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "haymaker.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strptr(s string) *string { return &s }

func makeTestConfig() model.DeploymentConfig {
	return model.DeploymentConfig{
		WorkloadName: "m365-knowledge-worker",
		Tags:         map[string]string{"team": "red", "env": "lab"},
		WorkloadConfig: map[string]any{
			"workers": 25,
		},
	}
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, "m365-knowledge-worker", makeTestConfig())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Status != model.StatusDeploying {
		t.Errorf("Status = %q, want deploying", rec.Status)
	}
	if rec.DeploymentID == "" {
		t.Fatal("empty deployment id")
	}

	got, err := s.Get(ctx, rec.DeploymentID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.WorkloadName != "m365-knowledge-worker" {
		t.Errorf("WorkloadName = %q", got.WorkloadName)
	}
	if got.Tags["team"] != "red" || got.Tags["env"] != "lab" {
		t.Errorf("Tags = %v", got.Tags)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "dep-nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatusLegalEdge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, "wl", model.DeploymentConfig{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Update(ctx, rec.DeploymentID, RecordUpdate{
		Status: strptr(model.StatusRunning),
		Phase:  strptr("generating activity"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Status != model.StatusRunning {
		t.Errorf("Status = %q, want running", got.Status)
	}
	if got.Phase != "generating activity" {
		t.Errorf("Phase = %q", got.Phase)
	}
	if !got.UpdatedAt.After(rec.UpdatedAt) && !got.UpdatedAt.Equal(rec.UpdatedAt) {
		t.Errorf("UpdatedAt went backwards: %v -> %v", rec.UpdatedAt, got.UpdatedAt)
	}
}

func TestUpdateStatusIllegalEdge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, "wl", model.DeploymentConfig{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// deploying -> stopped is not a legal edge.
	_, err = s.Update(ctx, rec.DeploymentID, RecordUpdate{Status: strptr(model.StatusStopped)})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Update error = %v, want ErrInvalidTransition", err)
	}

	// The record must be untouched.
	got, err := s.Get(ctx, rec.DeploymentID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.StatusDeploying {
		t.Errorf("Status = %q after rejected update, want deploying", got.Status)
	}
}

func TestUpdatePhaseOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, "wl", model.DeploymentConfig{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Update(ctx, rec.DeploymentID, RecordUpdate{Phase: strptr("provisioning users")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Status != model.StatusDeploying {
		t.Errorf("Status changed by phase-only update: %q", got.Status)
	}
	if got.Phase != "provisioning users" {
		t.Errorf("Phase = %q", got.Phase)
	}
}

func TestUpdateNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update(context.Background(), "dep-missing", RecordUpdate{
		Status: strptr(model.StatusRunning),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update error = %v, want ErrNotFound", err)
	}
}

func TestFailedToCleaningIsLegal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, "wl", model.DeploymentConfig{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Update(ctx, rec.DeploymentID, RecordUpdate{Status: strptr(model.StatusFailed)}); err != nil {
		t.Fatalf("to failed: %v", err)
	}
	if _, err := s.Update(ctx, rec.DeploymentID, RecordUpdate{Status: strptr(model.StatusCleaning)}); err != nil {
		t.Fatalf("failed -> cleaning: %v", err)
	}
	got, err := s.Update(ctx, rec.DeploymentID, RecordUpdate{Status: strptr(model.StatusCleaned)})
	if err != nil {
		t.Fatalf("cleaning -> cleaned: %v", err)
	}
	if got.Status != model.StatusCleaned {
		t.Errorf("Status = %q, want cleaned", got.Status)
	}
}

func TestAdoptID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, "wl", model.DeploymentConfig{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.AdoptID(ctx, rec.DeploymentID, "dep-001"); err != nil {
		t.Fatalf("AdoptID: %v", err)
	}

	if _, err := s.Get(ctx, rec.DeploymentID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old id still resolves: %v", err)
	}
	got, err := s.Get(ctx, "dep-001")
	if err != nil {
		t.Fatalf("Get new id: %v", err)
	}
	if got.WorkloadName != "wl" {
		t.Errorf("WorkloadName = %q", got.WorkloadName)
	}
}

func TestAdoptIDCollision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "wl", model.DeploymentConfig{})
	if err != nil {
		t.Fatalf("Create a: %v", err)
	}
	b, err := s.Create(ctx, "wl", model.DeploymentConfig{})
	if err != nil {
		t.Fatalf("Create b: %v", err)
	}

	if err := s.AdoptID(ctx, a.DeploymentID, b.DeploymentID); err == nil {
		t.Error("expected collision error adopting an existing id")
	}
}

func TestAdoptIDNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.AdoptID(context.Background(), "dep-missing", "dep-new")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("AdoptID error = %v, want ErrNotFound", err)
	}
}

func TestAdoptIDSameIDNoOp(t *testing.T) {
	s := newTestStore(t)

	if err := s.AdoptID(context.Background(), "dep-x", "dep-x"); err != nil {
		t.Errorf("same-id adopt should be a no-op, got %v", err)
	}
}

func TestListFiltersAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		name := "workload-a"
		if i%2 == 1 {
			name = "workload-b"
		}
		rec, err := s.Create(ctx, name, model.DeploymentConfig{})
		if err != nil {
			t.Fatalf("Create[%d]: %v", i, err)
		}
		ids = append(ids, rec.DeploymentID)
		time.Sleep(2 * time.Millisecond)
	}

	// Move one workload-a deployment to running.
	if _, err := s.Update(ctx, ids[0], RecordUpdate{Status: strptr(model.StatusRunning)}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all, err := s.List(ctx, ListFilter{}, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("len(all) = %d, want 5", len(all))
	}
	// Most recently created first.
	if all[0].DeploymentID != ids[4] || all[4].DeploymentID != ids[0] {
		t.Errorf("list order wrong: first=%s last=%s", all[0].DeploymentID, all[4].DeploymentID)
	}

	byName, err := s.List(ctx, ListFilter{WorkloadName: "workload-b"}, 10)
	if err != nil {
		t.Fatalf("List by name: %v", err)
	}
	if len(byName) != 2 {
		t.Errorf("len(byName) = %d, want 2", len(byName))
	}

	// Conjunctive filter: workload-a AND running.
	both, err := s.List(ctx, ListFilter{WorkloadName: "workload-a", Status: model.StatusRunning}, 10)
	if err != nil {
		t.Fatalf("List conjunctive: %v", err)
	}
	if len(both) != 1 || both[0].DeploymentID != ids[0] {
		t.Errorf("conjunctive filter = %v", both)
	}

	limited, err := s.List(ctx, ListFilter{}, 2)
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len(limited) = %d, want 2", len(limited))
	}
}

func TestConcurrentCreatesDistinctIDs(t *testing.T) {
	s := newFileTestStore(t)
	ctx := context.Background()
	const n = 50

	var mu sync.Mutex
	ids := make(map[string]bool)
	errs := make(chan error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := s.Create(ctx, fmt.Sprintf("wl-%d", i%3), model.DeploymentConfig{})
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			ids[rec.DeploymentID] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Create: %v", err)
	}
	if len(ids) != n {
		t.Errorf("distinct ids = %d, want %d (collision or record loss)", len(ids), n)
	}

	all, err := s.List(ctx, ListFilter{}, n+1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != n {
		t.Errorf("persisted records = %d, want %d", len(all), n)
	}
}

func TestConcurrentUpdatesSameRecordTakeEdgeOnce(t *testing.T) {
	s := newFileTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, "wl", model.DeploymentConfig{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Update(ctx, rec.DeploymentID, RecordUpdate{Status: strptr(model.StatusRunning)}); err != nil {
		t.Fatalf("to running: %v", err)
	}

	// Many writers race to take running -> stopping; the CAS guard lets
	// exactly one through.
	const n = 10
	wins := make(chan bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, rec.DeploymentID, RecordUpdate{Status: strptr(model.StatusStopping)})
			wins <- err == nil
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for won := range wins {
		if won {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}

	got, err := s.Get(ctx, rec.DeploymentID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.StatusStopping {
		t.Errorf("Status = %q, want stopping", got.Status)
	}
}
