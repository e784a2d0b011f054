package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/querytalk/querytalk/internal/config"
	"github.com/querytalk/querytalk/internal/pipeline"
)

type queryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

type tokenUsagePayload struct {
	Total  int `json:"total"`
	Intent int `json:"intent"`
	Query  int `json:"query"`
	Answer int `json:"answer"`
}

type queryResponse struct {
	SessionID         string            `json:"session_id"`
	Intent            string            `json:"intent"`
	Query             string            `json:"query,omitempty"`
	Result            [][]any           `json:"result,omitempty"`
	Insights          string            `json:"insights"`
	Degraded          bool              `json:"degraded,omitempty"`
	TokenUsage        tokenUsagePayload `json:"token_usage"`
	ConversationCount int               `json:"conversation_count"`
}

func handleQuery(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON", false, nil)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "question is required", false, nil)
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	resp, err := deps.Pipeline.Ask(r.Context(), sessionID, req.Question)
	if err != nil {
		writePipelineError(cfg, deps, w, r, err)
		return
	}

	payload := queryResponse{
		SessionID: resp.SessionID,
		Intent:    string(resp.Intent),
		Query:     resp.Query,
		Insights:  resp.Insights,
		Degraded:  resp.Degraded,
		TokenUsage: tokenUsagePayload{
			Total:  resp.Usage.Total(),
			Intent: resp.Usage.Intent,
			Query:  resp.Usage.Query,
			Answer: resp.Usage.Answer,
		},
		ConversationCount: resp.ConversationCount,
	}
	if len(resp.Columns) > 0 {
		// Header row first, then data rows.
		header := make([]any, len(resp.Columns))
		for i, column := range resp.Columns {
			header[i] = column
		}
		payload.Result = append([][]any{header}, resp.Rows...)
	}
	writeJSON(w, http.StatusOK, payload)
}

func writePipelineError(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request, err error) {
	perr, ok := pipeline.AsError(err)
	if !ok {
		writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL", "unexpected failure", true, nil)
		return
	}

	status := http.StatusInternalServerError
	switch perr.Kind {
	case pipeline.KindIntentClassification, pipeline.KindSafetyViolation:
		status = http.StatusBadRequest
	case pipeline.KindSQLGeneration:
		status = http.StatusBadGateway
	case pipeline.KindSchemaUnavailable:
		status = http.StatusServiceUnavailable
	case pipeline.KindExecution:
		if perr.Reason == pipeline.ReasonTimeout {
			status = http.StatusGatewayTimeout
		} else {
			status = http.StatusBadGateway
		}
	}

	extra := map[string]any{}
	if perr.Reason != "" {
		extra["reason"] = string(perr.Reason)
	}
	if cfg.Observability.DebugError {
		if cause := perr.Unwrap(); cause != nil {
			extra["cause"] = cause.Error()
		}
	}
	if len(extra) == 0 {
		extra = nil
	}
	if deps.Logger != nil && status >= 500 {
		deps.Logger.ErrorContext(r.Context(), "query_failed", "kind", string(perr.Kind), "error", perr.Error())
	}
	writeError(r.Context(), w, status, string(perr.Kind), perr.Message, status >= 500, extra)
}
