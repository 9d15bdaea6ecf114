package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pramitgaha/map-error/lib/stable/memmgr"
	"github.com/pramitgaha/map-error/lib/state"
	"github.com/pramitgaha/map-error/rpc/common"
)

// serverMetrics holds the metrics of one server. A private set keeps servers in the
// same process (tests) apart.
type serverMetrics struct {
	set *metrics.Set
}

func newServerMetrics() *serverMetrics {
	return &serverMetrics{set: metrics.NewSet()}
}

// observe records one handled request
func (m *serverMetrics) observe(shardId uint64, msgType common.MessageType, start time.Time, failed bool) {
	labels := fmt.Sprintf(`{shard="%d",type=%q}`, shardId, msgType.String())
	m.set.GetOrCreateCounter("smap_rpc_requests_total" + labels).Inc()
	m.set.GetOrCreateHistogram("smap_rpc_request_duration_seconds" + labels).UpdateDuration(start)
	if failed {
		m.set.GetOrCreateCounter("smap_rpc_errors_total" + labels).Inc()
	}
}

// rejected records a request that never reached a shard
func (m *serverMetrics) rejected(reason string) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`smap_rpc_rejected_total{reason=%q}`, reason)).Inc()
}

// watchState exports the gauges of the durable map
func (m *serverMetrics) watchState(st *state.State) {
	m.set.NewGauge("smap_map_length", func() float64 {
		return float64(st.DB().Len())
	})
	m.set.NewGauge("smap_physical_pages", func() float64 {
		return float64(st.MemoryStats().PhysicalPages)
	})
	m.set.NewGauge("smap_allocated_buckets", func() float64 {
		return float64(st.MemoryStats().AllocatedBuckets)
	})
	for _, id := range []memmgr.MemoryID{memmgr.UpgradesMemoryID, memmgr.MapMemoryID} {
		m.set.NewGauge(`smap_memory_pages{memory="`+strconv.Itoa(int(id))+`"}`, func() float64 {
			return float64(st.MemoryStats().MemoryPages[id])
		})
	}
	m.set.NewGauge("smap_starts", func() float64 {
		return float64(st.Stats().Starts)
	})
}

// handler serves the metrics in the prometheus text format
func (m *serverMetrics) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m.set.WritePrometheus(w)
		metrics.WriteProcessMetrics(w)
	})
}
