// Package journey tracks how much wall-clock time an in-flight operation
// spends in each named stage of its processing, and aggregates every
// completed operation's per-stage durations into process-wide running
// statistics.
//
// A Journey belongs to exactly one operation and is driven only by the
// goroutine executing that operation; it needs no internal locking. The
// Observer is the process-wide sink: many finishing operations report into
// it concurrently through lock-free atomics.
package journey

import (
	"sync/atomic"
	"time"

	"github.com/opjourney/opjourney/pkg/doc"
)

// DiagnosticLogMessage is the message attached to the per-operation record
// emitted at teardown.
const DiagnosticLogMessage = "Operation reached the end of its journey"

// trackingEnabled is the process-wide switch. When off, no Journey is ever
// created and every instrumentation call site is a no-op.
var trackingEnabled atomic.Bool

// SetTrackingEnabled flips the process-wide tracking switch. Intended to be
// called once, from configuration loading at process startup.
func SetTrackingEnabled(enabled bool) {
	trackingEnabled.Store(enabled)
}

// TrackingEnabled reports whether operation journey tracking is active.
func TrackingEnabled() bool {
	return trackingEnabled.Load()
}

// nowFn is swapped in tests for a deterministic clock. time.Now carries a
// monotonic reading on every platform the Go runtime supports, so elapsed
// time computed through it is immune to wall-clock adjustments.
var nowFn = time.Now

type stageState struct {
	stage   Stage
	entered time.Time
}

// Journey times one operation's passage through its processing stages.
// It has exactly one writer: the goroutine driving the operation.
type Journey struct {
	created time.Time

	// The current stage and when it was entered.
	current stageState

	// Elapsed time accumulated per stage. StageDestroyed is a transition
	// target, never a bucket.
	profile [StageDestroyed]time.Duration
}

// New creates a Journey with the clock started in the given stage.
func New(initial Stage) *Journey {
	now := nowFn()
	return &Journey{
		created: now,
		current: stageState{stage: initial, entered: now},
	}
}

// EnterStage closes the bucket of the current stage and opens the new one.
// Entering the stage that is already current is a no-op. Only the owning
// goroutine may call this.
func (j *Journey) EnterStage(s Stage) {
	old := j.current.stage
	if old == s {
		return
	}
	now := nowFn()
	j.profile[old] += now.Sub(j.current.entered)
	j.current = stageState{stage: s, entered: now}
}

// BeginStage enters s and returns the closure restoring the stage that was
// active before the call. Intended for defer, so the restore runs on every
// exit path:
//
//	defer j.BeginStage(StageEgress)()
func (j *Journey) BeginStage(s Stage) func() {
	old := j.current.stage
	j.EnterStage(s)
	return func() { j.EnterStage(old) }
}

// CurrentStage returns the active stage.
func (j *Journey) CurrentStage() Stage {
	return j.current.stage
}

// StageDuration returns the elapsed time accumulated in s so far.
func (j *Journey) StageDuration(s Stage) time.Duration {
	if s == StageDestroyed {
		return 0
	}
	return j.profile[s]
}

// Elapsed returns the total wall-clock time since the Journey was created.
func (j *Journey) Elapsed() time.Duration {
	return nowFn().Sub(j.created)
}

// Finish closes the last open bucket by entering the terminal stage. After
// this the profile is complete; the Journey must be handed to the Observer
// exactly once and then dropped.
func (j *Journey) Finish() {
	j.EnterStage(StageDestroyed)
}

// Append renders every stage with a nonzero recorded duration, then an
// "other" bucket holding elapsed time not attributed to any tracked stage.
func (j *Journey) Append(b *doc.Builder) {
	var sum time.Duration
	for s := StageRunning; s < StageDestroyed; s++ {
		if d := j.profile[s]; d != 0 {
			b.Duration(s.String(), d)
			sum += d
		}
	}
	b.Duration("other", j.Elapsed()-sum)
}
