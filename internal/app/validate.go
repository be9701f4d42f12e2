package app

import (
	"context"

	"github.com/vk/burstflow/internal/validator"
)

// Validate loads the workflow at path and runs every structural check
// against the registry's current snapshot.
func (a *App) Validate(ctx context.Context, path string) ([]validator.Issue, error) {
	wf, err := LoadWorkflow(path)
	if err != nil {
		return nil, err
	}
	return validator.Validate(wf, a.registry.Snapshot()), nil
}
