// Package ids provides the id generators used for new and cloned nodes.
// Generators only need to avoid collisions; callers re-check against the
// document and draw again when an id is already taken.
package ids

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces candidate ids.
type Generator interface {
	New() string
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func() string

// New calls f.
func (f GeneratorFunc) New() string { return f() }

// UUID generates random, dash-free v4 uuids.
type UUID struct{}

// New returns a fresh uuid without dashes.
func (UUID) New() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Sequence generates "<prefix><n>" ids from a process-local counter.
// Safe for concurrent use. Useful for deterministic tests and debugging.
type Sequence struct {
	Prefix string
	n      atomic.Int64
}

// NewSequence creates a sequence generator.
func NewSequence(prefix string) *Sequence {
	return &Sequence{Prefix: prefix}
}

// New returns the next id in the sequence.
func (s *Sequence) New() string {
	return fmt.Sprintf("%s%d", s.Prefix, s.n.Add(1))
}

// Fresh draws from gen until taken reports false.
func Fresh(gen Generator, taken func(string) bool) string {
	for {
		id := gen.New()
		if id != "" && !taken(id) {
			return id
		}
	}
}
