package www

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"nodeconsole/engine"
	"nodeconsole/model"
	"nodeconsole/node"
	"nodeconsole/nodeapi"
	"nodeconsole/store"
	"nodeconsole/tasks"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeActionError maps engine and upstream failures onto HTTP statuses. A
// client error from upstream keeps its code; anything else is a bad gateway.
func writeActionError(w http.ResponseWriter, err error) {
	var se *nodeapi.StatusError
	switch {
	case errors.Is(err, node.ErrEmptyName), errors.Is(err, tasks.ErrInvalidTask):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrNotRegistered), errors.Is(err, node.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &se) && se.Code >= 400 && se.Code < 500:
		writeError(w, se.Code, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// --- Snapshot view ---

func (h *Handlers) apiNode(w http.ResponseWriter, r *http.Request) {
	full := h.engine.FullNode()
	resp := map[string]any{
		"node_config":        h.engine.NodeConfig(),
		"full_node":          full,
		"stable_node_config": h.engine.StableNodeConfig(),
	}
	if full != nil {
		resp["trust_level"] = model.TrustLevel(full.TrustIndex)
	}
	writeJSON(w, resp)
}

func (h *Handlers) apiStatus(w http.ResponseWriter, r *http.Request) {
	push := h.engine.PushStatus()
	if push == nil {
		push = []engine.PushStatusEvent{}
	}
	outbox, err := h.engine.OutboxStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{
		"flags":                h.engine.Flags(),
		"push":                 push,
		"has_network_activity": h.engine.HasNetworkActivity(),
		"outbox":               outbox,
		"snapshot_seq":         h.engine.SnapshotSeq(),
		"sse_clients":          h.eventHub.Clients(),
	})
}

func (h *Handlers) apiNetworkActivity(w http.ResponseWriter, r *http.Request) {
	data, ok := h.engine.NetworkActivity()
	writeJSON(w, struct {
		Data      model.NetworkActivityData `json:"data"`
		IsLoading bool                      `json:"is_loading"`
	}{Data: data, IsLoading: !ok})
}

// --- Node actions ---

func (h *Handlers) apiRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.engine.Register(r.Context(), req.Name); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "ok", "node_config": h.engine.NodeConfig()})
}

func (h *Handlers) apiStartNode(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.StartNode(r.Context()); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "ok", "node_config": h.engine.NodeConfig()})
}

func (h *Handlers) apiStopNode(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.StopNode(r.Context()); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "ok", "node_config": h.engine.NodeConfig()})
}

func (h *Handlers) apiRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Refresh(r.Context()); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// --- Submitted tasks ---

func (h *Handlers) apiSubmittedTasks(w http.ResponseWriter, r *http.Request) {
	view := h.engine.SubmittedTasks()
	if view.Tasks == nil {
		view.Tasks = []model.Task{}
	}
	writeJSON(w, view)
}

func (h *Handlers) apiReloadTasks(w http.ResponseWriter, r *http.Request) {
	if _, err := h.engine.ReloadTasks(r.Context()); err != nil {
		writeActionError(w, err)
		return
	}
	h.apiSubmittedTasks(w, r)
}

func (h *Handlers) apiSubmitTask(w http.ResponseWriter, r *http.Request) {
	var p model.SubmitTaskPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.engine.SubmitTask(r.Context(), p)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, resp)
}

// --- Journal ---

func (h *Handlers) apiHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	kind := r.URL.Query().Get("kind")
	switch kind {
	case "", store.KindNodeConfig, store.KindFullNode, store.KindLastTask:
	default:
		writeError(w, http.StatusBadRequest, "unknown kind "+strconv.Quote(kind))
		return
	}

	entries, err := h.engine.History(kind, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []*store.SnapshotEntry{}
	}
	writeJSON(w, entries)
}

func (h *Handlers) apiExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.engine.ExportWorkbook(&buf); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="nodeconsole.xlsx"`)
	w.Write(buf.Bytes())
}
