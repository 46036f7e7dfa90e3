// Package config persists which storage engine a data directory was opened
// with, so later runs cannot silently reinterpret the directory's files
// with a different backend.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dd0wney/kvs/pkg/engine"
)

// fileName is the small JSON config file: a single object locking the
// chosen engine for a data directory.
const fileName = "config.json"

// Engine identifies which storage backend a data directory was opened with.
type Engine string

const (
	// KVS is the built-in log-structured/LSM engine.
	KVS Engine = "kvs"
	// Sled is the third-party-adapter engine.
	Sled Engine = "sled"
)

// lockFile is the on-disk shape of config.json.
type lockFile struct {
	Engine Engine `json:"engine"`
}

// EnsureEngine enforces the engine lock: on a fresh data directory, it
// persists requested and returns it; on an existing directory, it compares
// the persisted choice against requested and returns
// engine.ErrEngineMismatch if they disagree.
func EnsureEngine(dir string, requested Engine) (Engine, error) {
	path := filepath.Join(dir, fileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("config: read %s: %w", path, err)
		}
		return requested, persist(dir, path, requested)
	}

	var lf lockFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return "", fmt.Errorf("config: parse %s: %w", path, err)
	}
	if lf.Engine != requested {
		return "", &engine.Error{
			Op:    "EnsureEngine",
			Cause: fmt.Errorf("%w: data directory was created with %q, requested %q", engine.ErrEngineMismatch, lf.Engine, requested),
		}
	}
	return lf.Engine, nil
}

func persist(dir, path string, e Engine) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", dir, err)
	}
	body, err := json.Marshal(lockFile{Engine: e})
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, body, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
