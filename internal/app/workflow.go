package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vk/burstflow/internal/workflow"
)

// LoadWorkflow reads and decodes a persisted workflow JSON file.
func LoadWorkflow(path string) (*workflow.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow: %w", err)
	}
	var wf workflow.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parsing workflow: %w", err)
	}
	return &wf, nil
}
