package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/ports"
)

// Mask replaces redacted file contents.
const Mask = "***"

type redactMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware masks the content of workflow files whose id matches
// any of the patterns before they reach the store. The caller's snapshot is
// left untouched.
func NewRedactMiddleware(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &redactMiddleware{next: next, patterns: compiled}
	}, nil
}

func (m *redactMiddleware) Unwrap() ports.SnapshotStore { return m.next }

func (m *redactMiddleware) Save(ctx context.Context, workflowID string, snap *domain.Snapshot) error {
	masked := *snap
	masked.Files = make(map[string]string, len(snap.Files))
	for id, content := range snap.Files {
		if m.matches(id) {
			content = Mask
		}
		masked.Files[id] = content
	}
	return m.next.Save(ctx, workflowID, &masked)
}

func (m *redactMiddleware) matches(id string) bool {
	for _, p := range m.patterns {
		if p.MatchString(id) {
			return true
		}
	}
	return false
}

func (m *redactMiddleware) Load(ctx context.Context, workflowID string) (*domain.Snapshot, error) {
	return m.next.Load(ctx, workflowID)
}

func (m *redactMiddleware) Delete(ctx context.Context, workflowID string) error {
	return m.next.Delete(ctx, workflowID)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
