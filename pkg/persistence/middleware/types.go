package middleware

import "github.com/delta5-hq/d5-sub001/pkg/ports"

// Middleware allows wrapping a SnapshotStore to add behavior.
type Middleware func(ports.SnapshotStore) ports.SnapshotStore

// Chain applies middlewares so the first one is the outermost.
func Chain(store ports.SnapshotStore, mws ...Middleware) ports.SnapshotStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// Unwrap returns the innermost store below any middleware.
func Unwrap(store ports.SnapshotStore) ports.SnapshotStore {
	for {
		w, ok := store.(interface{ Unwrap() ports.SnapshotStore })
		if !ok {
			return store
		}
		store = w.Unwrap()
	}
}
