// Package file provides file-based persistence for workflows, environments and execution logs.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	workflowsDir    = "workflows"
	environmentsDir = "environments"
	executionsDir   = "executions"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Every record is one JSON document under root.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) path(dir, id string) string {
	return filepath.Join(fp.root, dir, filepath.Base(id)+".json")
}

// write stores value atomically through a temporary file.
func (fp *Persistence) write(dir, id string, value any) error {
	if err := os.MkdirAll(filepath.Join(fp.root, dir), 0o750); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	target := fp.path(dir, id)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}

	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to rename %s: %w", id, err)
	}

	return nil
}

// read loads a record; missing files report fs.ErrNotExist.
func (fp *Persistence) read(dir, id string, value any) error {
	data, err := os.ReadFile(fp.path(dir, id))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}

	return nil
}

// ids lists the record ids stored in dir.
func (fp *Persistence) ids(dir string) ([]string, error) {
	files, err := fs.Glob(os.DirFS(filepath.Join(fp.root, dir)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, strings.TrimSuffix(f, ".json"))
	}

	return ids, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
