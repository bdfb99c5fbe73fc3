// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/stageflow/stageflow/pkg/registry"
)

// NewRegistry loads every template document from the directory, freezes the
// registry and returns it. A broken or empty template directory aborts
// startup; serving traffic without templates is never useful.
func NewRegistry(logger *slog.Logger, templatesPath string) (*registry.Registry, error) {
	reg := registry.NewRegistry(logger)

	loaded, err := reg.LoadDirectory(templatesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow templates: %w", err)
	}

	if loaded == 0 {
		return nil, fmt.Errorf("no workflow templates found in %s", templatesPath)
	}

	reg.Freeze()

	return reg, nil
}
