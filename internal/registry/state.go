package registry

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

// readStateFile loads plugins_state.json: a mapping plugin_id -> "inactive".
// Absence of a key means active. A missing or corrupt file is treated as
// empty and, if corrupt, logged rather than failing discovery.
func readStateFile(path string, logger *slog.Logger) map[string]string {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]string{}
	}
	var state map[string]string
	if err := json.Unmarshal(data, &state); err != nil {
		logger.Warn("plugin state file is corrupt, treating as empty", "path", path, "error", err)
		return map[string]string{}
	}
	return state
}

// writeStateFile persists the mapping atomically via write-then-rename.
func writeStateFile(path string, state map[string]string) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".plugins_state-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
