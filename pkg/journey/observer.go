package journey

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/opjourney/opjourney/pkg/doc"
)

// stageStats holds the aggregate for one stage. Every field is updated
// independently; readers never block writers.
type stageStats struct {
	ops atomic.Int64
	sum atomic.Int64 // nanoseconds
	min atomic.Int64 // nanoseconds, math.MaxInt64 until first capture
	max atomic.Int64 // nanoseconds, math.MinInt64 until first capture
}

// Observer accumulates per-stage duration statistics over every operation
// completed in this process. It only grows; data is never removed or reset.
// Capture may be called concurrently from any number of finishing
// operations without coordination.
type Observer struct {
	totalOps atomic.Int64
	stats    [StageDestroyed]stageStats
}

// NewObserver creates the process-wide aggregate with empty counters.
func NewObserver() *Observer {
	o := &Observer{}
	for s := range o.stats {
		o.stats[s].min.Store(math.MaxInt64)
		o.stats[s].max.Store(math.MinInt64)
	}
	return o
}

// Capture folds a finished Journey's profile into the aggregate. The Journey
// must have reached the terminal stage, and must be captured exactly once.
func (o *Observer) Capture(j *Journey) {
	if j.current.stage != StageDestroyed {
		panic(fmt.Sprintf("journey captured while still in stage %q", j.current.stage))
	}

	for s := range o.stats {
		d := int64(j.profile[s])
		if d == 0 {
			continue
		}
		st := &o.stats[s]
		st.ops.Add(1)
		st.sum.Add(d)

		// Optimistic retry: a retry only happens when another writer has
		// already advanced the bound, so the loop cannot spin against a
		// stalled peer.
		for {
			max := st.max.Load()
			if d <= max || st.max.CompareAndSwap(max, d) {
				break
			}
		}
		for {
			min := st.min.Load()
			if d >= min || st.min.CompareAndSwap(min, d) {
				break
			}
		}
	}

	o.totalOps.Add(1)
}

// TotalOps returns the number of operations captured so far.
func (o *Observer) TotalOps() int64 {
	return o.totalOps.Load()
}

// StageSummary returns the aggregate for one stage. ok is false while no
// operation has recorded time in that stage.
func (o *Observer) StageSummary(s Stage) (ops int64, sum, min, max time.Duration, ok bool) {
	if s >= StageDestroyed {
		return 0, 0, 0, 0, false
	}
	st := &o.stats[s]
	ops = st.ops.Load()
	if ops == 0 {
		return 0, 0, 0, 0, false
	}
	return ops, time.Duration(st.sum.Load()), time.Duration(st.min.Load()),
		time.Duration(st.max.Load()), true
}

// Append renders the aggregate as a document: one nested {min, max, avg}
// object per stage seen so far, the total operation count, and a "stable"
// flag reporting whether any capture raced the snapshot. The snapshot is
// best-effort: the fields are read independently, with no cross-field
// atomicity, and "stable" is advisory rather than a consistency guarantee.
func (o *Observer) Append(b *doc.Builder) {
	ops := o.totalOps.Load()
	for s := StageRunning; s < StageDestroyed; s++ {
		st := &o.stats[s]
		n := st.ops.Load()
		if n == 0 {
			continue
		}
		stage := b.Object(s.String())
		stage.Duration("min", time.Duration(st.min.Load()))
		stage.Duration("max", time.Duration(st.max.Load()))
		stage.Duration("avg", time.Duration(st.sum.Load()/n))
	}
	b.Int("operations", ops)
	b.Bool("stable", ops == o.totalOps.Load())
}
