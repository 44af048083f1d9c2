package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/delta5-hq/d5-sub001/internal/logging"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a workflow.
const DefaultLockTTL = 30 * time.Second

// Executor runs one request against an in-memory document.
// *workflow.Engine satisfies it.
type Executor interface {
	Execute(ctx context.Context, req domain.Request) (*domain.Response, error)
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes load, execute and save cycles per workflow id.
// Unused locks are garbage collected through reference counting.
type Manager struct {
	store ports.SnapshotStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given snapshot store.
func NewManager(store ports.SnapshotStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) acquire(workflowID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[workflowID]
	if !ok {
		entry = &lockEntry{}
		m.locks[workflowID] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(workflowID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[workflowID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, workflowID)
	}
}

// Load retrieves a stored workflow.
func (m *Manager) Load(ctx context.Context, workflowID string) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := m.WithLock(ctx, workflowID, func(ctx context.Context) error {
		var err error
		snap, err = m.store.Load(ctx, workflowID)
		return err
	})
	return snap, err
}

// Save persists a workflow.
func (m *Manager) Save(ctx context.Context, workflowID string, snap *domain.Snapshot) error {
	return m.WithLock(ctx, workflowID, func(ctx context.Context) error {
		return m.store.Save(ctx, workflowID, snap)
	})
}

// Delete removes a workflow from the store.
func (m *Manager) Delete(ctx context.Context, workflowID string) error {
	return m.WithLock(ctx, workflowID, func(ctx context.Context) error {
		return m.store.Delete(ctx, workflowID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying snapshot store.
func (m *Manager) Store() ports.SnapshotStore {
	return m.store
}

// Execute runs req against the stored document of req.WorkflowID and saves
// the mutated maps back, all under the workflow lock.
//
// When the request already carries workflow nodes they win over the stored
// document. A workflow that does not exist yet starts empty.
func (m *Manager) Execute(ctx context.Context, exec Executor, req domain.Request) (*domain.Response, error) {
	if req.WorkflowID == "" {
		return exec.Execute(ctx, req)
	}

	var resp *domain.Response
	err := m.WithLock(ctx, req.WorkflowID, func(ctx context.Context) error {
		// 1. Load
		if len(req.WorkflowNodes) == 0 {
			snap, err := m.store.Load(ctx, req.WorkflowID)
			switch {
			case errors.Is(err, domain.ErrWorkflowNotFound):
				m.logger.Debug("starting new workflow", "workflow_id", req.WorkflowID)
			case err != nil:
				return fmt.Errorf("failed to load workflow: %w", err)
			default:
				req.WorkflowNodes = snap.Nodes
				req.WorkflowEdges = snap.Edges
				req.WorkflowFiles = snap.Files
			}
		}

		// 2. Execute
		var err error
		resp, err = exec.Execute(ctx, req)
		if err != nil {
			return err
		}

		// 3. Save
		snap := &domain.Snapshot{
			Nodes: resp.WorkflowNodes,
			Edges: resp.WorkflowEdges,
			Files: resp.WorkflowFiles,
		}
		if err := m.store.Save(ctx, req.WorkflowID, snap); err != nil {
			return fmt.Errorf("failed to save workflow: %w", err)
		}
		return nil
	})
	return resp, err
}

// WithLock executes fn while holding the lock for the workflow.
func (m *Manager) WithLock(ctx context.Context, workflowID string, fn func(context.Context) error) error {
	entry := m.acquire(workflowID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(workflowID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, workflowID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"workflow_id", workflowID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
