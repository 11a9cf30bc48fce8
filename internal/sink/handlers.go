package sink

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// GitHub caps webhook payloads at 25 MB.
const maxPayloadBytes = 25 << 20

var errMissingEvent = errors.New("missing X-GitHub-Event header")

type Handlers struct {
	secret  []byte
	metrics *Metrics
}

func NewHandlers(secret string, metrics *Metrics) *Handlers {
	return &Handlers{secret: []byte(secret), metrics: metrics}
}

type workflowRunEvent struct {
	Action      string `json:"action"`
	WorkflowRun struct {
		ID         int64  `json:"id"`
		Name       string `json:"name"`
		Status     string `json:"status"`
		Conclusion string `json:"conclusion"`
		HeadBranch string `json:"head_branch"`
	} `json:"workflow_run"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// POST /events
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	event := r.Header.Get("X-GitHub-Event")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(body) > maxPayloadBytes {
		h.metrics.Deliveries.WithLabelValues(event, "too_large").Inc()
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if len(h.secret) > 0 {
		if err := VerifySignature(h.secret, body, r.Header.Get(SignatureHeader)); err != nil {
			h.metrics.Deliveries.WithLabelValues(event, "unauthorized").Inc()
			slog.Warn("rejected webhook delivery", "event", event, "delivery", r.Header.Get("X-GitHub-Delivery"), "error", err)
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
	}

	switch event {
	case "ping":
		h.metrics.Deliveries.WithLabelValues(event, "ok").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
	case "workflow_run":
		var ev workflowRunEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			h.metrics.Deliveries.WithLabelValues(event, "invalid").Inc()
			writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
			return
		}
		h.metrics.WorkflowRuns.WithLabelValues(
			ev.Repository.FullName,
			ev.WorkflowRun.Name,
			ev.Action,
			ev.WorkflowRun.Conclusion,
		).Inc()
		h.metrics.Deliveries.WithLabelValues(event, "ok").Inc()
		slog.Info("workflow run event",
			"repository", ev.Repository.FullName,
			"workflow", ev.WorkflowRun.Name,
			"run_id", ev.WorkflowRun.ID,
			"action", ev.Action,
			"conclusion", ev.WorkflowRun.Conclusion,
		)
		writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
	case "":
		h.metrics.Deliveries.WithLabelValues(event, "invalid").Inc()
		writeError(w, http.StatusBadRequest, errMissingEvent.Error())
	default:
		h.metrics.Deliveries.WithLabelValues(event, "ignored").Inc()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored"})
	}
}

// GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
