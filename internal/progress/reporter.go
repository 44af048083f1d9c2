// Package progress tracks in-flight work as a tree of scoped counters.
//
// A Scope is created with Child, counts labels with Add/Remove and is
// detached with Dispose. All methods are safe for concurrent use and every
// method on a nil *Scope is a no-op, so callers without a reporter pass nil.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/delta5-hq/d5-sub001/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// Reporter owns the scope tree.
type Reporter struct {
	mu       sync.Mutex
	root     *Scope
	logger   *slog.Logger
	gauge    *prometheus.GaugeVec
	interval time.Duration
}

// Option configures the Reporter.
type Option func(*Reporter)

// WithLogger sets the logger used by the periodic dump.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reporter) {
		r.logger = l
	}
}

// WithInterval sets the period of the debug dump started by Start.
// Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithRegisterer exports the in-flight count of every scope as the gauge
// workflow_inflight_operations{scope}. An already registered gauge is reused.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Reporter) {
		gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "workflow_inflight_operations",
			Help: "Number of operations currently running, per progress scope.",
		}, []string{"scope"})
		if err := reg.Register(gauge); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				r.logger.Warn("progress gauge not registered", "err", err)
				return
			}
			existing, ok := are.ExistingCollector.(*prometheus.GaugeVec)
			if !ok {
				return
			}
			gauge = existing
		}
		r.gauge = gauge
	}
}

// New creates a reporter with a root scope named "root".
func New(opts ...Option) *Reporter {
	r := &Reporter{
		logger:   logging.NewNop(),
		interval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.root = &Scope{r: r, name: "root", path: "root", counts: make(map[string]int)}
	return r
}

// Root returns the root scope. It is nil for a nil reporter.
func (r *Reporter) Root() *Scope {
	if r == nil {
		return nil
	}
	return r.root
}

// Start dumps the tree at debug level every interval while work is in flight.
// It returns immediately; the dump stops when ctx is done.
func (r *Reporter) Start(ctx context.Context) {
	if r == nil || r.interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if r.Inflight() > 0 {
					r.logger.Debug("progress", "tree", r.Dump())
				}
			}
		}
	}()
}

// Entry is a point-in-time copy of one scope.
type Entry struct {
	Name     string
	Counts   map[string]int
	Children []Entry
}

// Snapshot copies the scope tree.
func (r *Reporter) Snapshot() Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root.entryLocked()
}

// Inflight returns the sum of all counters in the tree.
func (r *Reporter) Inflight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root.totalLocked()
}

// Dump renders the tree, one scope per line, children indented:
//
//	root
//	  runCommand chat=1
func (r *Reporter) Dump() string {
	var b strings.Builder
	writeEntry(&b, r.Snapshot(), 0)
	return strings.TrimRight(b.String(), "\n")
}

func writeEntry(b *strings.Builder, e Entry, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(e.Name)
	labels := make([]string, 0, len(e.Counts))
	for l := range e.Counts {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Fprintf(b, " %s=%d", l, e.Counts[l])
	}
	b.WriteByte('\n')
	for _, c := range e.Children {
		writeEntry(b, c, depth+1)
	}
}

// Scope is one node of the progress tree.
type Scope struct {
	r        *Reporter
	name     string
	path     string
	parent   *Scope
	children []*Scope
	counts   map[string]int
	disposed bool
}

// Child attaches a new scope below s.
func (s *Scope) Child(name string) *Scope {
	if s == nil {
		return nil
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	c := &Scope{
		r:      s.r,
		name:   name,
		path:   s.path + "/" + name,
		parent: s,
		counts: make(map[string]int),
	}
	if !s.disposed {
		s.children = append(s.children, c)
	}
	return c
}

// Add counts one in-flight unit under label.
func (s *Scope) Add(label string) {
	if s == nil {
		return
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if s.disposed {
		return
	}
	s.counts[label]++
	if s.r.gauge != nil {
		s.r.gauge.WithLabelValues(s.path).Inc()
	}
}

// Remove releases one unit of label. Removing an absent label is a no-op.
func (s *Scope) Remove(label string) {
	if s == nil {
		return
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if s.counts[label] == 0 {
		return
	}
	s.counts[label]--
	if s.counts[label] == 0 {
		delete(s.counts, label)
	}
	if s.r.gauge != nil {
		s.r.gauge.WithLabelValues(s.path).Dec()
	}
}

// Dispose detaches s and its children from the tree, releasing their counts.
func (s *Scope) Dispose() {
	if s == nil {
		return
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if s.parent != nil {
		kept := s.parent.children[:0]
		for _, c := range s.parent.children {
			if c != s {
				kept = append(kept, c)
			}
		}
		s.parent.children = kept
	}
	s.disposeLocked()
}

func (s *Scope) disposeLocked() {
	if s.disposed {
		return
	}
	s.disposed = true
	for _, c := range s.children {
		c.disposeLocked()
	}
	s.children = nil
	if s.r.gauge != nil {
		for _, n := range s.counts {
			s.r.gauge.WithLabelValues(s.path).Sub(float64(n))
		}
	}
	s.counts = make(map[string]int)
}

func (s *Scope) entryLocked() Entry {
	e := Entry{Name: s.name, Counts: make(map[string]int, len(s.counts))}
	for l, n := range s.counts {
		e.Counts[l] = n
	}
	for _, c := range s.children {
		e.Children = append(e.Children, c.entryLocked())
	}
	return e
}

func (s *Scope) totalLocked() int {
	n := 0
	for _, v := range s.counts {
		n += v
	}
	for _, c := range s.children {
		n += c.totalLocked()
	}
	return n
}
