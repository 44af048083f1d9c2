// Package file persists workflow snapshots as JSON or YAML documents on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Format selects the on-disk encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrEmptyID is returned when an operation receives an empty workflow id.
var ErrEmptyID = errors.New("workflow id cannot be empty")

// Store implements ports.SnapshotStore using the local filesystem.
// Each workflow is one file named <id>.<format> in BasePath.
type Store struct {
	BasePath string
	Format   Format
}

// New creates a Store. An empty basePath defaults to ".workflow/snapshots";
// an unknown format falls back to JSON.
func New(basePath string, format Format) *Store {
	if basePath == "" {
		basePath = filepath.Join(".workflow", "snapshots")
	}
	if format != FormatYAML {
		format = FormatJSON
	}
	return &Store{BasePath: basePath, Format: format}
}

func (s *Store) path(workflowID string) string {
	return filepath.Join(s.BasePath, workflowID+"."+string(s.Format))
}

func (s *Store) encode(snap *domain.Snapshot) ([]byte, error) {
	if s.Format == FormatYAML {
		return yaml.Marshal(snap)
	}
	return json.MarshalIndent(snap, "", "  ")
}

func (s *Store) decode(data []byte, snap *domain.Snapshot) error {
	if s.Format == FormatYAML {
		return yaml.Unmarshal(data, snap)
	}
	return json.Unmarshal(data, snap)
}

// Save writes the snapshot atomically: temp file, fsync, rename.
func (s *Store) Save(ctx context.Context, workflowID string, snap *domain.Snapshot) error {
	if workflowID == "" {
		return ErrEmptyID
	}
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure snapshot directory: %w", err)
	}

	data, err := s.encode(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// 1. Temp file in the same directory so the rename stays on one filesystem
	tmp, err := os.CreateTemp(s.BasePath, "tmp-"+workflowID+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	// 2. Write and sync
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 3. Rename. Windows refuses to rename over an existing file.
	dest := s.path(workflowID)
	if _, err := os.Stat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to replace snapshot file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads a snapshot.
func (s *Store) Load(ctx context.Context, workflowID string) (*domain.Snapshot, error) {
	if workflowID == "" {
		return nil, ErrEmptyID
	}
	data, err := os.ReadFile(s.path(workflowID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	snap := domain.NewSnapshot()
	if err := s.decode(data, snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Delete removes the snapshot file.
func (s *Store) Delete(ctx context.Context, workflowID string) error {
	if workflowID == "" {
		return ErrEmptyID
	}
	if err := os.Remove(s.path(workflowID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot file: %w", err)
	}
	return nil
}

// List returns the ids of the snapshots in BasePath, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	ext := "." + string(s.Format)
	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "tmp-") || filepath.Ext(name) != ext {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ext))
	}
	sort.Strings(ids)
	return ids, nil
}
