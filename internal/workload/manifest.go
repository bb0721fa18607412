package workload

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/agent-haymaker/haymaker/internal/model"
)

// ManifestFilename is the descriptor file every workload package must carry
// at its root.
const ManifestFilename = "workload.yaml"

// LoadManifest reads and validates the workload manifest in dir.
func LoadManifest(dir string) (*model.WorkloadDescriptor, error) {
	path := filepath.Join(dir, ManifestFilename)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var desc model.WorkloadDescriptor
	if err := yaml.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	if desc.Name == "" {
		return nil, fmt.Errorf("manifest %s: name is required", path)
	}
	if desc.Version == "" {
		return nil, fmt.Errorf("manifest %s: version is required", path)
	}
	if desc.Entrypoint == "" {
		return nil, fmt.Errorf("manifest %s: entrypoint is required", path)
	}

	return &desc, nil
}
