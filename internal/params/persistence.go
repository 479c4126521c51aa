package params

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Store persists a Registry's runtime-mutable values as one atomically
// written JSON file (spec.md §6), grounded in param_persistence.py.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore returns a Store writing to path (e.g.
// "~/.config/robot-buddy/params.json" with "~" already expanded by the
// caller).
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Load applies saved values from disk onto reg. Unknown params and a
// missing file are silently skipped; boot_only params and values that
// fail validation are skipped with a warning.
func (s *Store) Load(reg *Registry) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("params: failed to read persisted file", "path", s.path, "err", err)
		}
		return
	}

	var saved map[string]any
	if err := json.Unmarshal(data, &saved); err != nil {
		s.logger.Warn("params: failed to parse persisted file", "path", s.path, "err", err)
		return
	}

	applied := 0
	for name, value := range saved {
		if _, ok := reg.Get(name); !ok {
			continue
		}
		if err := reg.Set(name, value); err != nil {
			s.logger.Warn("params: skipped persisted value", "name", name, "value", value, "err", err)
			continue
		}
		applied++
	}
	s.logger.Info("params: loaded persisted values", "count", applied, "path", s.path)
}

// OnChange is a params.ChangeFunc that upserts one value into the JSON
// file via a temp-file-plus-rename atomic write.
func (s *Store) OnChange(name string, value any) {
	if err := s.upsert(name, value); err != nil {
		s.logger.Warn("params: failed to persist change", "name", name, "value", value, "err", err)
	}
}

func (s *Store) upsert(name string, value any) error {
	existing := make(map[string]any)
	if data, err := os.ReadFile(s.path); err == nil {
		_ = json.Unmarshal(data, &existing) // overwrite corrupt file
	}
	existing[name] = value

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("params: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".params_*")
	if err != nil {
		return fmt.Errorf("params: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(existing); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("params: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("params: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("params: rename into place: %w", err)
	}
	return nil
}
