package progress_test

import (
	"sync"
	"testing"

	"github.com/delta5-hq/d5-sub001/internal/progress"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, reg *prometheus.Registry, scope string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "workflow_inflight_operations" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "scope" && l.GetValue() == scope {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return 0
}

func TestScopeLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := progress.New(progress.WithRegisterer(reg))

	run := r.Root().Child("runCommand")
	run.Add("chat")
	post := run.Child("postProcess")
	post.Add("n1")
	post.Add("n1")

	assert.Equal(t, 3, r.Inflight())
	assert.Equal(t, "root\n  runCommand chat=1\n    postProcess n1=2", r.Dump())
	assert.Equal(t, float64(2), gaugeValue(t, reg, "root/runCommand/postProcess"))

	post.Remove("n1")
	post.Remove("missing")
	snap := r.Snapshot()
	require.Len(t, snap.Children, 1)
	assert.Equal(t, map[string]int{"n1": 1}, snap.Children[0].Children[0].Counts)

	run.Dispose()
	assert.Equal(t, 0, r.Inflight())
	assert.Equal(t, "root", r.Dump())
	assert.Equal(t, float64(0), gaugeValue(t, reg, "root/runCommand/postProcess"))
	assert.Equal(t, float64(0), gaugeValue(t, reg, "root/runCommand"))

	post.Add("late")
	assert.Equal(t, 0, r.Inflight())
}

func TestNilScope(t *testing.T) {
	var r *progress.Reporter
	s := r.Root()
	assert.Nil(t, s)
	assert.NotPanics(t, func() {
		c := s.Child("x")
		c.Add("a")
		c.Remove("a")
		c.Dispose()
	})
}

func TestConcurrentUnits(t *testing.T) {
	r := progress.New()
	scope := r.Root().Child("parallel")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scope.Add("leaf")
			scope.Remove("leaf")
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.Inflight())
}

func TestRegistererReusesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := progress.New(progress.WithRegisterer(reg))
	b := progress.New(progress.WithRegisterer(reg))

	a.Root().Add("x")
	b.Root().Add("y")
	assert.Equal(t, float64(2), gaugeValue(t, reg, "root"))
}
