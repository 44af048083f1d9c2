package ports

import (
	"context"
	"testing"
	"time"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract verifies that a SnapshotStore implementation
// adheres to the interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	workflowID := "contract-" + time.Now().Format("20060102150405")

	sample := func() *domain.Snapshot {
		snap := domain.NewSnapshot()
		snap.Nodes["root"] = &domain.Node{ID: "root", Title: "/steps", Children: []string{"a"}}
		snap.Nodes["a"] = &domain.Node{ID: "a", Title: "#1 /chatgpt hello", Parent: "root", Prompts: []string{}}
		snap.Edges["e"] = &domain.Edge{ID: "e", Start: "root", End: "a", Title: "leads to"}
		snap.Files["f"] = "attachment"
		return snap
	}

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, workflowID, sample()))

		loaded, err := store.Load(ctx, workflowID)
		require.NoError(t, err)
		require.Contains(t, loaded.Nodes, "a")
		assert.Equal(t, "#1 /chatgpt hello", loaded.Nodes["a"].Title)
		assert.Equal(t, "root", loaded.Nodes["a"].Parent)
		assert.Equal(t, []string{"a"}, loaded.Nodes["root"].Children)
		assert.Equal(t, "leads to", loaded.Edges["e"].Title)
		assert.Equal(t, "attachment", loaded.Files["f"])
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, workflowID)
		require.NoError(t, err)
		loaded.Nodes["a"].Title = "mutated"

		again, err := store.Load(ctx, workflowID)
		require.NoError(t, err)
		assert.Equal(t, "#1 /chatgpt hello", again.Nodes["a"].Title)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+workflowID)
		assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	})

	t.Run("List", func(t *testing.T) {
		other := workflowID + "-2"
		require.NoError(t, store.Save(ctx, other, sample()))
		defer func() { _ = store.Delete(ctx, other) }()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, workflowID)
		assert.Contains(t, ids, other)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, workflowID))
		_, err := store.Load(ctx, workflowID)
		assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
		assert.NoError(t, store.Delete(ctx, workflowID))
	})
}
