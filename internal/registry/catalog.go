package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/agent-haymaker/haymaker/internal/model"
)

// catalog persists installed workload descriptors as a single JSON file.
// Saves are atomic: write to a temp file, then rename over the old catalog.
type catalog struct {
	path string
}

func (c *catalog) load() (map[string]model.WorkloadDescriptor, error) {
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]model.WorkloadDescriptor{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", c.path, err)
	}

	var descs map[string]model.WorkloadDescriptor
	if err := json.Unmarshal(raw, &descs); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", c.path, err)
	}
	if descs == nil {
		descs = map[string]model.WorkloadDescriptor{}
	}
	return descs, nil
}

func (c *catalog) save(descs map[string]model.WorkloadDescriptor) error {
	raw, err := json.MarshalIndent(descs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close catalog: %w", err)
	}

	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}
