// Package tests holds reusable contract suites for port implementations.
package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/delta5-hq/d5-sub001/pkg/ports"
)

// LockerContractTest verifies that a DistributedLocker provides mutual exclusion per key.
func LockerContractTest(t *testing.T, locker ports.DistributedLocker) {
	t.Helper()
	ctx := context.Background()

	// 1. Lock and unlock
	t.Run("Lock_Unlock", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, "contract-a", time.Second)
		if err != nil {
			t.Fatalf("unexpected error acquiring lock: %v", err)
		}
		if err := unlock(ctx); err != nil {
			t.Fatalf("unexpected error releasing lock: %v", err)
		}
	})

	// 2. A held lock blocks until the context is done
	t.Run("Lock_Held", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, "contract-b", 5*time.Second)
		if err != nil {
			t.Fatalf("unexpected error acquiring lock: %v", err)
		}
		defer func() { _ = unlock(ctx) }()

		short, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
		defer cancel()
		if _, err := locker.Lock(short, "contract-b", time.Second); err == nil {
			t.Error("expected error while the lock is held, got nil")
		}
	})

	// 3. Independent keys do not contend
	t.Run("Lock_IndependentKeys", func(t *testing.T) {
		u1, err := locker.Lock(ctx, "contract-c1", time.Second)
		if err != nil {
			t.Fatalf("lock c1: %v", err)
		}
		defer func() { _ = u1(ctx) }()

		short, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		u2, err := locker.Lock(short, "contract-c2", time.Second)
		if err != nil {
			t.Fatalf("lock c2 should not block on c1: %v", err)
		}
		_ = u2(ctx)
	})

	// 4. Mutual exclusion under contention
	t.Run("Lock_Exclusive", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			holders int32
			overlap int32
		)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				wait, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				unlock, err := locker.Lock(wait, "contract-d", 2*time.Second)
				if err != nil {
					t.Errorf("lock: %v", err)
					return
				}
				if atomic.AddInt32(&holders, 1) > 1 {
					atomic.StoreInt32(&overlap, 1)
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&holders, -1)
				_ = unlock(ctx)
			}()
		}
		wg.Wait()
		if overlap != 0 {
			t.Error("two holders observed the same lock at once")
		}
	})
}
