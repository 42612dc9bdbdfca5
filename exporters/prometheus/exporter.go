// Package prometheus exports journeyd metrics in the Prometheus text format.
package prometheus

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/opjourney/opjourney/internal/store"
	"github.com/opjourney/opjourney/pkg/journey"
	"github.com/opjourney/opjourney/pkg/mirror"
)

// Exporter serves Prometheus-compatible metrics for a journeyd process.
// The journey aggregate is rendered by hand so every stage gets its
// ops/sum/min/max/avg series; process metrics are gathered from a private
// registry and appended.
type Exporter struct {
	observer  *journey.Observer // nil when tracking is disabled
	store     *store.Store
	mirror    *mirror.Mirror // nil when read mirroring is not configured
	startTime time.Time
	registry  *promclient.Registry
}

// NewExporter creates a Prometheus exporter. observer and m may be nil.
func NewExporter(obs *journey.Observer, s *store.Store, m *mirror.Mirror) *Exporter {
	e := &Exporter{
		observer:  obs,
		store:     s,
		mirror:    m,
		startTime: time.Now(),
		registry:  promclient.NewRegistry(),
	}

	e.registry.MustRegister(promclient.NewGaugeFunc(
		promclient.GaugeOpts{
			Name: "journeyd_process_cpu_percent",
			Help: "Process host CPU utilization percentage",
		},
		func() float64 {
			percents, err := cpu.Percent(0, false)
			if err != nil || len(percents) == 0 {
				return 0
			}
			return percents[0]
		},
	))
	e.registry.MustRegister(promclient.NewGaugeFunc(
		promclient.GaugeOpts{
			Name: "journeyd_process_memory_used_bytes",
			Help: "Host memory currently in use",
		},
		func() float64 {
			vmem, err := mem.VirtualMemory()
			if err != nil {
				return 0
			}
			return float64(vmem.Used)
		},
	))

	return e
}

// ServeHTTP serves Prometheus-compatible metrics at /metrics
func (e *Exporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	if e.observer != nil {
		fmt.Fprintf(w, "# HELP journeyd_operations_total Operations finished since process start\n")
		fmt.Fprintf(w, "# TYPE journeyd_operations_total counter\n")
		fmt.Fprintf(w, "journeyd_operations_total %d\n", e.observer.TotalOps())

		fmt.Fprintf(w, "\n# HELP journeyd_stage_operations_total Operations that spent time in each stage\n")
		fmt.Fprintf(w, "# TYPE journeyd_stage_operations_total counter\n")
		for s := journey.StageRunning; s < journey.StageDestroyed; s++ {
			ops, _, _, _, ok := e.observer.StageSummary(s)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "journeyd_stage_operations_total{stage=\"%s\"} %d\n", s, ops)
		}

		fmt.Fprintf(w, "\n# HELP journeyd_stage_duration_seconds_sum Cumulative time spent in each stage\n")
		fmt.Fprintf(w, "# TYPE journeyd_stage_duration_seconds_sum counter\n")
		for s := journey.StageRunning; s < journey.StageDestroyed; s++ {
			_, sum, _, _, ok := e.observer.StageSummary(s)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "journeyd_stage_duration_seconds_sum{stage=\"%s\"} %.6f\n", s, sum.Seconds())
		}

		fmt.Fprintf(w, "\n# HELP journeyd_stage_duration_seconds_min Shortest stage visit observed\n")
		fmt.Fprintf(w, "# TYPE journeyd_stage_duration_seconds_min gauge\n")
		for s := journey.StageRunning; s < journey.StageDestroyed; s++ {
			_, _, min, _, ok := e.observer.StageSummary(s)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "journeyd_stage_duration_seconds_min{stage=\"%s\"} %.6f\n", s, min.Seconds())
		}

		fmt.Fprintf(w, "\n# HELP journeyd_stage_duration_seconds_max Longest stage visit observed\n")
		fmt.Fprintf(w, "# TYPE journeyd_stage_duration_seconds_max gauge\n")
		for s := journey.StageRunning; s < journey.StageDestroyed; s++ {
			_, _, _, max, ok := e.observer.StageSummary(s)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "journeyd_stage_duration_seconds_max{stage=\"%s\"} %.6f\n", s, max.Seconds())
		}

		fmt.Fprintf(w, "\n# HELP journeyd_stage_duration_seconds_avg Mean stage visit duration\n")
		fmt.Fprintf(w, "# TYPE journeyd_stage_duration_seconds_avg gauge\n")
		for s := journey.StageRunning; s < journey.StageDestroyed; s++ {
			ops, sum, _, _, ok := e.observer.StageSummary(s)
			if !ok || ops == 0 {
				continue
			}
			avg := sum / time.Duration(ops)
			fmt.Fprintf(w, "journeyd_stage_duration_seconds_avg{stage=\"%s\"} %.6f\n", s, avg.Seconds())
		}
	}

	fmt.Fprintf(w, "\n# HELP journeyd_databases_total Number of known databases\n")
	fmt.Fprintf(w, "# TYPE journeyd_databases_total gauge\n")
	fmt.Fprintf(w, "journeyd_databases_total %d\n", len(e.store.DatabaseNames()))

	fmt.Fprintf(w, "\n# HELP journeyd_op_time Current logical clock value\n")
	fmt.Fprintf(w, "# TYPE journeyd_op_time gauge\n")
	fmt.Fprintf(w, "journeyd_op_time %d\n", e.store.OpTime())

	fmt.Fprintf(w, "\n# HELP journeyd_committed_op_time Logical clock value made durable by the journal\n")
	fmt.Fprintf(w, "# TYPE journeyd_committed_op_time gauge\n")
	fmt.Fprintf(w, "journeyd_committed_op_time %d\n", e.store.CommittedOpTime())

	if e.mirror != nil {
		sent, dropped, failed := e.mirror.Stats()
		fmt.Fprintf(w, "\n# HELP journeyd_mirrored_reads_total Mirrored read requests by outcome\n")
		fmt.Fprintf(w, "# TYPE journeyd_mirrored_reads_total counter\n")
		fmt.Fprintf(w, "journeyd_mirrored_reads_total{outcome=\"sent\"} %d\n", sent)
		fmt.Fprintf(w, "journeyd_mirrored_reads_total{outcome=\"dropped\"} %d\n", dropped)
		fmt.Fprintf(w, "journeyd_mirrored_reads_total{outcome=\"failed\"} %d\n", failed)
	}

	fmt.Fprintf(w, "\n# HELP journeyd_uptime_seconds Process uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE journeyd_uptime_seconds gauge\n")
	fmt.Fprintf(w, "journeyd_uptime_seconds %.0f\n", time.Since(e.startTime).Seconds())

	// Append the registry-backed process metrics.
	fmt.Fprintf(w, "\n")
	metricFamilies, err := e.registry.Gather()
	if err != nil {
		fmt.Fprintf(w, "# Error gathering Prometheus metrics: %v\n", err)
		return
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metricFamilies {
		if err := encoder.Encode(mf); err != nil {
			fmt.Fprintf(w, "# Error encoding metric %s: %v\n", mf.GetName(), err)
		}
	}
	w.Write(buf.Bytes())
}
