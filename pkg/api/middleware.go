package api

import (
	"net/http"
	"strconv"

	"github.com/opjourney/opjourney/internal/store"
	"github.com/opjourney/opjourney/pkg/journey"
	"github.com/opjourney/opjourney/pkg/ops"
)

// OpTimeHeader gossips the logical optime between processes: responses
// carry the optime of the write they observed, and requests may replay it
// to fold a peer's clock into ours.
const OpTimeHeader = "X-Journey-OpTime"

// OperationMiddleware gives every request an Operation with journey
// tracking enabled and finishes it once the response is written. The
// Operation rides the request context; everything downstream runs on the
// owning goroutine.
func OperationMiddleware(svc *ops.ServiceContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op := svc.NewOperation()
			ops.EnableTracking(op)
			defer ops.Finish(op)

			next.ServeHTTP(w, r.WithContext(ops.WithOperation(r.Context(), op)))
			ops.EnterStage(op, journey.StageReleased)
		})
	}
}

// OpTimeGossipMiddleware folds a gossiped optime from the request into the
// local logical clock before the handler runs.
func OpTimeGossipMiddleware(s *store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := r.Header.Get(OpTimeHeader); raw != "" {
				if t, err := strconv.ParseInt(raw, 10, 64); err == nil {
					s.AdvanceOpTime(t)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
