package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
)

type nopStore struct{}

func (nopStore) Save(context.Context, string, *domain.Snapshot) error { return nil }
func (nopStore) Load(context.Context, string) (*domain.Snapshot, error) {
	return nil, domain.ErrWorkflowNotFound
}
func (nopStore) Delete(context.Context, string) error { return nil }
func (nopStore) List(context.Context) ([]string, error) { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(nopStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("workflow-%d", i)
		_ = mgr.Save(ctx, id, domain.NewSnapshot())
		_ = mgr.Delete(ctx, id)
	}

	if n := len(mgr.locks); n != 0 {
		t.Errorf("memory leak detected: %d locks remaining after Delete", n)
	}
}
