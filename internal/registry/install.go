package registry

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/agent-haymaker/haymaker/internal/model"
	"github.com/agent-haymaker/haymaker/internal/workload"
)

// cloneTimeout bounds how long a git clone may take during install.
const cloneTimeout = 120 * time.Second

// Install fetches a workload package from source (a git repository URL or a
// local directory), validates its manifest, and registers the descriptor
// under its declared name. Re-installing an existing name replaces the
// descriptor wholesale; a failure at any step leaves the registry unchanged.
func (r *Registry) Install(ctx context.Context, source string) (*model.WorkloadDescriptor, error) {
	dir := source
	if isGitSource(source) {
		tmp, err := os.MkdirTemp("", "haymaker-install-*")
		if err != nil {
			return nil, &InstallError{Source: source, Err: fmt.Errorf("create temp dir: %w", err)}
		}
		defer os.RemoveAll(tmp)

		if err := gitClone(ctx, source, tmp); err != nil {
			return nil, &InstallError{Source: source, Err: err}
		}
		dir = tmp
	} else {
		info, err := os.Stat(source)
		if err != nil {
			return nil, &InstallError{Source: source, Err: fmt.Errorf("source unreachable: %w", err)}
		}
		if !info.IsDir() {
			return nil, &InstallError{Source: source, Err: fmt.Errorf("source is not a directory")}
		}
	}

	desc, err := workload.LoadManifest(dir)
	if err != nil {
		return nil, &InstallError{Source: source, Err: err}
	}

	if err := r.register(source, desc); err != nil {
		return nil, err
	}
	return desc, nil
}

// isGitSource reports whether source names a remote repository rather than a
// local path.
func isGitSource(source string) bool {
	return strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "http://") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasSuffix(source, ".git")
}

func gitClone(ctx context.Context, url, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, cloneTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", url, dest)
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("git clone timed out after %s", cloneTimeout)
	}
	if err != nil {
		return fmt.Errorf("git clone failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
