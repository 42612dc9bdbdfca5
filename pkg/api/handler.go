// Package api exposes the journeyd document store over HTTP. The handlers
// double as the instrumented workload: each one drives its request's
// journey through the processing stages it actually performs.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/opjourney/opjourney/internal/store"
	"github.com/opjourney/opjourney/pkg/doc"
	"github.com/opjourney/opjourney/pkg/journey"
	"github.com/opjourney/opjourney/pkg/logging"
	"github.com/opjourney/opjourney/pkg/mirror"
	"github.com/opjourney/opjourney/pkg/ops"
)

const maxDocumentBytes = 1 << 20

// Handler handles journeyd API requests.
type Handler struct {
	svc    *ops.ServiceContext
	store  *store.Store
	mirror *mirror.Mirror // nil when read mirroring is not configured
	log    *logging.Logger
}

// NewHandler creates the API handler.
func NewHandler(svc *ops.ServiceContext, s *store.Store, m *mirror.Mirror, log *logging.Logger) *Handler {
	return &Handler{
		svc:    svc,
		store:  s,
		mirror: m,
		log:    log.WithComponent("api"),
	}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Document routes
	r.HandleFunc("/dbs/{db}/docs/{key}", h.PutDocument).Methods("PUT")
	r.HandleFunc("/dbs/{db}/docs/{key}", h.GetDocument).Methods("GET")
	r.HandleFunc("/dbs/{db}/docs/{key}", h.DeleteDocument).Methods("DELETE")
	r.HandleFunc("/dbs/{db}/docs", h.ListDocuments).Methods("GET")
	r.HandleFunc("/dbs", h.ListDatabases).Methods("GET")

	// Diagnostics routes
	r.HandleFunc("/diagnostics/journey", h.JourneySummary).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
}

// PutDocument stores one document:
// PUT /dbs/{db}/docs/{key}?writeConcern=local|majority
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	op := ops.FromContext(r.Context())
	vars := mux.Vars(r)

	concern, err := store.ParseConcern(r.URL.Query().Get("writeConcern"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes+1))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read body: %v", err), http.StatusBadRequest)
		return
	}
	if len(body) > maxDocumentBytes {
		http.Error(w, "document too large", http.StatusRequestEntityTooLarge)
		return
	}
	if !json.Valid(body) {
		http.Error(w, "document must be valid JSON", http.StatusBadRequest)
		return
	}

	done := ops.BeginStage(op, journey.StageAcquireDbLock)
	db := h.store.Database(vars["db"])
	release := db.Acquire(store.ModeWrite)
	done()

	done = ops.BeginStage(op, journey.StageComputeAndGossipOpTime)
	opTime := h.store.NextOpTime()
	w.Header().Set(OpTimeHeader, strconv.FormatInt(opTime, 10))
	done()

	document := db.PutLocked(vars["key"], body, opTime)
	release()

	done = ops.BeginStage(op, journey.StageWaitForWriteConcern)
	err = h.store.WaitForWriteConcern(r.Context(), concern, opTime)
	done()
	if err != nil {
		http.Error(w, fmt.Sprintf("write concern %q not satisfied: %v", concern, err),
			http.StatusServiceUnavailable)
		return
	}

	h.writeJSON(op, w, http.StatusOK, document)
}

// GetDocument returns one document:
// GET /dbs/{db}/docs/{key}?readConcern=local|majority
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	op := ops.FromContext(r.Context())
	vars := mux.Vars(r)

	done := ops.BeginStage(op, journey.StageExtractReadConcern)
	concern, err := store.ParseConcern(r.URL.Query().Get("readConcern"))
	done()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	done = ops.BeginStage(op, journey.StageWaitForReadConcern)
	err = h.store.WaitForReadConcern(r.Context(), concern)
	done()
	if err != nil {
		http.Error(w, fmt.Sprintf("read concern %q not satisfied: %v", concern, err),
			http.StatusServiceUnavailable)
		return
	}

	done = ops.BeginStage(op, journey.StageAcquireDbLock)
	db := h.store.Database(vars["db"])
	release := db.Acquire(store.ModeRead)
	done()
	document, ok := db.GetLocked(vars["key"])
	release()

	if h.mirror != nil {
		done = ops.BeginStage(op, journey.StageReadMirroring)
		h.mirror.Submit(r.Method, r.URL.Path)
		done()
	}

	if !ok {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}
	h.writeJSON(op, w, http.StatusOK, document)
}

// DeleteDocument removes one document.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	op := ops.FromContext(r.Context())
	vars := mux.Vars(r)

	done := ops.BeginStage(op, journey.StageAcquireDbLock)
	db := h.store.Database(vars["db"])
	release := db.Acquire(store.ModeWrite)
	done()

	done = ops.BeginStage(op, journey.StageComputeAndGossipOpTime)
	opTime := h.store.NextOpTime()
	w.Header().Set(OpTimeHeader, strconv.FormatInt(opTime, 10))
	done()

	deleted := db.DeleteLocked(vars["key"])
	release()

	if !deleted {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}
	h.writeJSON(op, w, http.StatusOK, map[string]string{"deleted": vars["key"]})
}

// ListDocuments returns all documents of a database sorted by key.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	op := ops.FromContext(r.Context())
	vars := mux.Vars(r)

	done := ops.BeginStage(op, journey.StageExtractReadConcern)
	concern, err := store.ParseConcern(r.URL.Query().Get("readConcern"))
	done()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	done = ops.BeginStage(op, journey.StageWaitForReadConcern)
	err = h.store.WaitForReadConcern(r.Context(), concern)
	done()
	if err != nil {
		http.Error(w, fmt.Sprintf("read concern %q not satisfied: %v", concern, err),
			http.StatusServiceUnavailable)
		return
	}

	done = ops.BeginStage(op, journey.StageAcquireDbLock)
	db := h.store.Database(vars["db"])
	release := db.Acquire(store.ModeRead)
	done()
	docs := db.ListLocked()
	release()

	h.writeJSON(op, w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

// ListDatabases returns the known database names.
func (h *Handler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	op := ops.FromContext(r.Context())
	names := h.store.DatabaseNames()
	h.writeJSON(op, w, http.StatusOK, map[string]interface{}{
		"databases": names,
		"count":     len(names),
	})
}

// JourneySummary renders the process-wide journey aggregate. This is the
// on-demand diagnostics surface; the summary is best-effort consistent and
// says so through its "stable" field.
func (h *Handler) JourneySummary(w http.ResponseWriter, r *http.Request) {
	op := ops.FromContext(r.Context())

	obs := h.svc.Observer()
	if obs == nil {
		http.Error(w, "journey tracking is disabled", http.StatusNotFound)
		return
	}

	b := doc.NewBuilder()
	obs.Append(b)
	h.writeJSON(op, w, http.StatusOK, b)
}

// Health reports liveness plus the committed optime.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	op := ops.FromContext(r.Context())
	h.writeJSON(op, w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"op_time":           h.store.OpTime(),
		"committed_op_time": h.store.CommittedOpTime(),
	})
}

// writeJSON renders the response body under the egress stage.
func (h *Handler) writeJSON(op *ops.Operation, w http.ResponseWriter, code int, v interface{}) {
	done := ops.BeginStage(op, journey.StageEgress)
	defer done()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}
