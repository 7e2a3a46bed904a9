package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/leapmeta/internal/engine"
	"github.com/leapstack-labs/leapmeta/internal/ui/notifier"
	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// Handlers provides the HTTP handlers of the API.
type Handlers struct {
	store    core.Store
	notifier *notifier.Notifier
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store core.Store, notify *notifier.Notifier, logger *slog.Logger) *Handlers {
	return &Handlers{store: store, notifier: notify, logger: logger}
}

// Routes registers the API routes. timeout bounds every request except the
// event stream; zero disables it.
func (h *Handlers) Routes(router chi.Router, timeout time.Duration) {
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Get("/api/events", h.Events)

	router.Route("/api/runs", func(r chi.Router) {
		if timeout > 0 {
			r.Use(middleware.Timeout(timeout))
		}
		r.Get("/", h.ListRuns)                             // Recent runs
		r.Get("/{runID}", h.GetRun)                        // Run details ("latest" allowed)
		r.Get("/{runID}/entities", h.ListEntities)         // Entities, ?type= filter
		r.Get("/{runID}/entities/{entityID}", h.GetEntity) // Change event of one entity
		r.Get("/{runID}/edges", h.ListEdges)               // All lineage edges
		r.Get("/{runID}/lineage/{entityID}", h.Lineage)    // ?direction=&depth=
	})
}

// ListRuns returns recent runs, newest first. ?limit= defaults to 20.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	runs, err := h.store.ListRuns(limit)
	if err != nil {
		h.internalError(w, err)
		return
	}
	views := make([]engine.RunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, engine.NewRunView(run))
	}
	writeJSON(w, http.StatusOK, views)
}

// GetRun returns one run.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, engine.NewRunView(run))
}

// ListEntities returns the entities of a run.
func (h *Handlers) ListEntities(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	records, err := h.store.ListEntities(run.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	typ := core.EntityType(strings.ToUpper(r.URL.Query().Get("type")))
	writeJSON(w, http.StatusOK, engine.NewEntityViews(records, typ))
}

// GetEntity returns the stored change event of one entity.
func (h *Handlers) GetEntity(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	id, err := pathParam(r, "entityID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := h.store.GetEntity(run.ID, core.EntityID(id))
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		h.internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rec.Payload)
}

// ListEdges returns the lineage edges of a run.
func (h *Handlers) ListEdges(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	edges, err := h.store.ListEdges(run.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if edges == nil {
		edges = []core.LineageEdge{}
	}
	writeJSON(w, http.StatusOK, edges)
}

// Lineage returns the upstream and downstream entities of one entity.
// The entity is addressed by ID or unambiguous name.
func (h *Handlers) Lineage(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	ref, err := pathParam(r, "entityID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	depth, err := intParam(r, "depth", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	dir := engine.Direction(r.URL.Query().Get("direction"))
	switch dir {
	case "":
		dir = engine.DirectionBoth
	case engine.DirectionBoth, engine.DirectionUpstream, engine.DirectionDownstream:
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown direction %q", dir))
		return
	}

	g, err := engine.LoadGraph(h.store, run.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	node, err := engine.FindEntity(g, ref)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, engine.NewLineageView(g, node, dir, depth))
}

// Events streams the IDs of finished runs as Server-Sent Events.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-updates:
			if _, err := fmt.Fprintf(w, "event: run\ndata: %s\n\n", id); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// run resolves the {runID} parameter, writing an error response on failure.
func (h *Handlers) run(w http.ResponseWriter, r *http.Request) (*core.Run, bool) {
	run, err := engine.ResolveRun(h.store, chi.URLParam(r, "runID"))
	if errors.Is(err, core.ErrNotFound) || errors.Is(err, engine.ErrNoRuns) {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	if err != nil {
		h.internalError(w, err)
		return nil, false
	}
	return run, true
}

func (h *Handlers) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err)
}

func pathParam(r *http.Request, name string) (string, error) {
	return url.PathUnescape(chi.URLParam(r, name))
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
