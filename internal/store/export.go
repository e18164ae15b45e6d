// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// ExportYAML writes one run to <dir>/<run id>.yaml and returns the path.
func (s *Store) ExportYAML(ctx context.Context, runID string) (string, error) {
	result, err := s.Get(ctx, runID)
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}

	path := filepath.Join(s.dir, runID+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ExportJSON writes one run to <dir>/<run id>.json and returns the path.
func (s *Store) ExportJSON(ctx context.Context, runID string) (string, error) {
	result, err := s.Get(ctx, runID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}

	path := filepath.Join(s.dir, runID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
