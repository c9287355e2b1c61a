package control

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistryCountersAndGauges(t *testing.T) {
	mr := NewMetricsRegistry()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				mr.Inc("tasks_completed")
			}
		}()
	}
	wg.Wait()
	mr.Set("workers", 4)

	assert.EqualValues(t, 8000, mr.Counter("tasks_completed"))
	assert.Zero(t, mr.Counter("missing"))
	snap := mr.GetSnapshot()
	assert.EqualValues(t, 8000, snap["tasks_completed"])
	assert.Equal(t, 4, snap["workers"])
}

func TestMetricsRegistryNilIsInert(t *testing.T) {
	var mr *MetricsRegistry
	mr.Inc("x")
	mr.Set("y", 1)
	assert.Zero(t, mr.Counter("x"))
}
