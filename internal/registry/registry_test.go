package registry_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/agent-haymaker/haymaker/internal/model"
	"github.com/agent-haymaker/haymaker/internal/registry"
	"github.com/agent-haymaker/haymaker/internal/workload"
)

type fakeWorkload struct {
	name string
}

func (f *fakeWorkload) Name() string { return f.name }

func (f *fakeWorkload) Deploy(context.Context, model.DeploymentConfig) (string, error) {
	return "dep-fake", nil
}

func (f *fakeWorkload) GetStatus(context.Context, string) (*workload.DeploymentState, error) {
	return &workload.DeploymentState{WorkloadName: f.name}, nil
}

func (f *fakeWorkload) Stop(context.Context, string) (bool, error)  { return true, nil }
func (f *fakeWorkload) Start(context.Context, string) (bool, error) { return true, nil }

func (f *fakeWorkload) Cleanup(context.Context, string) (*model.CleanupReport, error) {
	return &model.CleanupReport{}, nil
}

func (f *fakeWorkload) GetLogs(context.Context, string, bool, int) (workload.LogStream, error) {
	return workload.NewSliceStream(nil), nil
}

func (f *fakeWorkload) ValidateConfig(context.Context, model.DeploymentConfig) ([]string, error) {
	return nil, nil
}

func (f *fakeWorkload) ListDeployments(context.Context) ([]workload.DeploymentState, error) {
	return nil, nil
}

func simBuiltin() registry.Builtin {
	return registry.Builtin{
		Descriptor: model.WorkloadDescriptor{
			Name:       "file-sim",
			Version:    "0.1.0",
			Entrypoint: "file-sim",
		},
		Factory: func(workload.Env) (workload.Workload, error) {
			return &fakeWorkload{name: "file-sim"}, nil
		},
	}
}

func newTestRegistry(t *testing.T, catalogPath string) *registry.Registry {
	t.Helper()
	if catalogPath == "" {
		catalogPath = filepath.Join(t.TempDir(), "workloads.json")
	}
	r, err := registry.New(workload.Env{}, catalogPath, []registry.Builtin{simBuiltin()})
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	return r
}

func writePackage(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, workload.ManifestFilename), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return dir
}

func TestResolveBuiltin(t *testing.T) {
	r := newTestRegistry(t, "")

	wl, err := r.Resolve("file-sim")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if wl.Name() != "file-sim" {
		t.Errorf("Name = %q", wl.Name())
	}
}

func TestResolveUnknown(t *testing.T) {
	r := newTestRegistry(t, "")

	_, err := r.Resolve("no-such-workload")
	if !errors.Is(err, registry.ErrUnknownWorkload) {
		t.Errorf("Resolve error = %v, want ErrUnknownWorkload", err)
	}
}

func TestDescribe(t *testing.T) {
	r := newTestRegistry(t, "")

	desc, err := r.Describe("file-sim")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if desc.Version != "0.1.0" {
		t.Errorf("Version = %q", desc.Version)
	}

	if _, err := r.Describe("missing"); !errors.Is(err, registry.ErrUnknownWorkload) {
		t.Errorf("Describe missing error = %v, want ErrUnknownWorkload", err)
	}
}

func TestInstallFromPath(t *testing.T) {
	catalogPath := filepath.Join(t.TempDir(), "workloads.json")
	r := newTestRegistry(t, catalogPath)

	pkg := writePackage(t, `
name: sim-lab
version: 2.0.0
entrypoint: file-sim
`)

	desc, err := r.Install(context.Background(), pkg)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if desc.Name != "sim-lab" {
		t.Errorf("Name = %q", desc.Name)
	}

	// The installed name resolves to the entrypoint's factory.
	wl, err := r.Resolve("sim-lab")
	if err != nil {
		t.Fatalf("Resolve installed: %v", err)
	}
	if wl.Name() != "file-sim" {
		t.Errorf("resolved instance Name = %q", wl.Name())
	}

	// Install survives process restart via the catalog.
	r2, err := registry.New(workload.Env{}, catalogPath, []registry.Builtin{simBuiltin()})
	if err != nil {
		t.Fatalf("registry.New (restart): %v", err)
	}
	if _, err := r2.Describe("sim-lab"); err != nil {
		t.Errorf("installed workload lost across restart: %v", err)
	}
}

func TestInstallReplacesWholesale(t *testing.T) {
	r := newTestRegistry(t, "")

	pkg1 := writePackage(t, "name: sim-lab\nversion: 1.0.0\nentrypoint: file-sim\n")
	if _, err := r.Install(context.Background(), pkg1); err != nil {
		t.Fatalf("first install: %v", err)
	}

	pkg2 := writePackage(t, "name: sim-lab\nversion: 1.1.0\nentrypoint: file-sim\n")
	if _, err := r.Install(context.Background(), pkg2); err != nil {
		t.Fatalf("re-install: %v", err)
	}

	desc, err := r.Describe("sim-lab")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if desc.Version != "1.1.0" {
		t.Errorf("Version = %q, want replaced descriptor 1.1.0", desc.Version)
	}
}

func TestInstallUnresolvableEntrypoint(t *testing.T) {
	r := newTestRegistry(t, "")
	before := len(r.List())

	pkg := writePackage(t, "name: bad\nversion: 1.0.0\nentrypoint: not-compiled-in\n")

	_, err := r.Install(context.Background(), pkg)
	var ierr *registry.InstallError
	if !errors.As(err, &ierr) {
		t.Fatalf("Install error = %v, want InstallError", err)
	}

	// No partial registration.
	if got := len(r.List()); got != before {
		t.Errorf("registry size changed on failed install: %d -> %d", before, got)
	}
}

func TestInstallMissingManifest(t *testing.T) {
	r := newTestRegistry(t, "")

	_, err := r.Install(context.Background(), t.TempDir())
	var ierr *registry.InstallError
	if !errors.As(err, &ierr) {
		t.Fatalf("Install error = %v, want InstallError", err)
	}
}

func TestInstallUnreachableSource(t *testing.T) {
	r := newTestRegistry(t, "")

	_, err := r.Install(context.Background(), "/no/such/path")
	var ierr *registry.InstallError
	if !errors.As(err, &ierr) {
		t.Fatalf("Install error = %v, want InstallError", err)
	}
}

func TestInstallBuiltinCollision(t *testing.T) {
	alt := registry.Builtin{
		Descriptor: model.WorkloadDescriptor{Name: "alt-sim", Version: "0.1.0", Entrypoint: "alt-sim"},
		Factory: func(workload.Env) (workload.Workload, error) {
			return &fakeWorkload{name: "alt-sim"}, nil
		},
	}
	r, err := registry.New(workload.Env{}, filepath.Join(t.TempDir(), "workloads.json"),
		[]registry.Builtin{simBuiltin(), alt})
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	// Same name as a builtin but a different entrypoint: incompatible.
	pkg := writePackage(t, "name: file-sim\nversion: 9.0.0\nentrypoint: alt-sim\n")

	_, err = r.Install(context.Background(), pkg)
	var ierr *registry.InstallError
	if !errors.As(err, &ierr) {
		t.Fatalf("Install error = %v, want InstallError", err)
	}

	desc, err := r.Describe("file-sim")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if desc.Version != "0.1.0" {
		t.Errorf("builtin descriptor mutated by rejected install: %+v", desc)
	}
}

func TestListNameSorted(t *testing.T) {
	r := newTestRegistry(t, "")

	for _, name := range []string{"zeta", "alpha"} {
		pkg := writePackage(t, "name: "+name+"\nversion: 1.0.0\nentrypoint: file-sim\n")
		if _, err := r.Install(context.Background(), pkg); err != nil {
			t.Fatalf("install %s: %v", name, err)
		}
	}

	descs := r.List()
	if len(descs) != 3 {
		t.Fatalf("len = %d, want 3", len(descs))
	}
	if descs[0].Name != "alpha" || descs[1].Name != "file-sim" || descs[2].Name != "zeta" {
		t.Errorf("order = %s, %s, %s", descs[0].Name, descs[1].Name, descs[2].Name)
	}
}
