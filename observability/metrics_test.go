package observability

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetrics_SnapshotReflectsCounters(t *testing.T) {
	req := require.New(t)
	m := NewMetrics()

	m.IncrConnections()
	m.IncrConnections()
	m.IncrMessagesSent()
	m.IncrDeliveriesDropped()

	snapshot := m.Snapshot()

	req.EqualValues(2, snapshot["connections"])
	req.EqualValues(1, snapshot["messages_sent"])
	req.EqualValues(1, snapshot["deliveries_dropped"])
	req.EqualValues(0, snapshot["messages_rejected"])
}

func TestMetrics_ConcurrentIncrements(t *testing.T) {
	req := require.New(t)
	m := NewMetrics()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.IncrTypingSignals()
			}
		}()
	}
	wg.Wait()

	req.EqualValues(5000, m.Snapshot()["typing_signals"])
}
