// Package ops ties journey tracking to its host objects: the per-request
// Operation handle and the process-wide ServiceContext. The helpers here are
// the instrumentation call sites; every one of them collapses to a no-op
// when tracking is disabled.
package ops

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/opjourney/opjourney/pkg/doc"
	"github.com/opjourney/opjourney/pkg/journey"
)

// Operation is the handle for one in-flight operation. At most one Journey
// is attached to it, for the operation's lifetime, and only the goroutine
// that created the Operation may drive it.
type Operation struct {
	id       uuid.UUID
	svc      *ServiceContext
	ownerGID int64
	journey  *journey.Journey
}

// NewOperation creates an operation handle owned by the calling goroutine.
func (sc *ServiceContext) NewOperation() *Operation {
	return &Operation{
		id:       uuid.New(),
		svc:      sc,
		ownerGID: curGID(),
	}
}

// ID returns the operation's identifier.
func (op *Operation) ID() uuid.UUID {
	return op.id
}

// Service returns the process-wide context the operation belongs to.
func (op *Operation) Service() *ServiceContext {
	return op.svc
}

// assertOwned faults when a goroutine other than the owner touches journey
// state. The Journey is single-writer by construction; a violation is a bug
// in the caller, not a runtime condition to tolerate.
func (op *Operation) assertOwned() {
	if gid := curGID(); gid != op.ownerGID {
		panic(fmt.Sprintf("operation %s driven from goroutine %d, owned by goroutine %d",
			op.id, gid, op.ownerGID))
	}
}

// EnableTracking attaches a Journey starting in the running stage. Enabling
// twice on the same operation is a programming error and panics. No-op when
// tracking is disabled.
func EnableTracking(op *Operation) {
	if !journey.TrackingEnabled() {
		return
	}
	op.assertOwned()
	if op.journey != nil {
		panic(fmt.Sprintf("journey tracking enabled twice on operation %s", op.id))
	}
	op.journey = journey.New(journey.StageRunning)
}

// JourneyOf returns the operation's Journey, or nil when tracking is
// disabled or none was enabled. Owning goroutine only.
func JourneyOf(op *Operation) *journey.Journey {
	op.assertOwned()
	return op.journey
}

// MustJourneyOf is JourneyOf for call sites where the Journey is known to
// exist; a missing Journey there is a caller bug.
func MustJourneyOf(op *Operation) *journey.Journey {
	j := JourneyOf(op)
	if j == nil {
		panic(fmt.Sprintf("operation %s has no journey attached", op.id))
	}
	return j
}

// EnterStage switches the operation's Journey to s. No-op when tracking is
// disabled, op is nil, or no Journey is attached.
func EnterStage(op *Operation, s journey.Stage) {
	if op == nil || !journey.TrackingEnabled() {
		return
	}
	if j := JourneyOf(op); j != nil {
		j.EnterStage(s)
	}
}

// BeginStage enters s and returns the closure restoring the prior stage,
// for defer. When tracking is disabled the returned closure does nothing.
func BeginStage(op *Operation, s journey.Stage) func() {
	if op == nil || !journey.TrackingEnabled() {
		return func() {}
	}
	j := JourneyOf(op)
	if j == nil {
		return func() {}
	}
	return j.BeginStage(s)
}

// Finish tears the Journey down: the last open bucket is finalized, the
// completed profile is captured by the process Observer exactly once, and
// the per-operation record goes to the diagnostic channel at debug level.
// The Journey is detached; calling Finish again is a no-op.
func Finish(op *Operation) {
	if op == nil || op.journey == nil {
		return
	}
	op.assertOwned()
	j := op.journey
	op.journey = nil

	j.Finish()
	if obs := op.svc.Observer(); obs != nil {
		obs.Capture(j)
	}

	b := doc.NewBuilder()
	j.Append(b)
	op.svc.Logger().Debug(journey.DiagnosticLogMessage, map[string]interface{}{
		"operation": op.id.String(),
		"summary":   b,
	})
}

type ctxKey struct{}

// WithOperation stores the operation in the request context so middleware
// and handlers on the same goroutine chain can reach it.
func WithOperation(ctx context.Context, op *Operation) context.Context {
	return context.WithValue(ctx, ctxKey{}, op)
}

// FromContext returns the operation stored in ctx, or nil.
func FromContext(ctx context.Context) *Operation {
	op, _ := ctx.Value(ctxKey{}).(*Operation)
	return op
}
