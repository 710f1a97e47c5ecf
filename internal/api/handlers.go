// Package api exposes the advisor over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/docs"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/history"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/index"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/pipeline"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/rag"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/ratelimit"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/tools"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/track"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/validate"
)

const maxQueryBodySize = 1 << 20 // 1MB

// AppDeps holds everything the HTTP layer needs.
type AppDeps struct {
	Answer    pipeline.Handler
	Index     *index.Store
	Processor *docs.Processor
	DocsDir   string
	History   *history.Store // optional; if nil, interactions are not persisted
	Tracker   *track.Tracker
	Limiter   *ratelimit.Limiter
	Token     string // optional; if empty, endpoints are unauthenticated
}

// NewAppHandler builds the router. /health stays open; everything else
// sits behind bearer auth when a token is configured.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/query", handleQuery(deps))
		r.Post("/reindex", handleReindex(deps))
		r.Get("/status", handleStatus(deps))
		r.Get("/history", handleHistory(deps))
		r.Get("/history/export", handleHistoryExport(deps))
		r.Post("/tools/review", handleToolReview(deps))
		r.Post("/tools/optimize", handleToolOptimize(deps))
		r.Post("/tools/limits", handleToolLimits(deps))
	})

	return r
}

type queryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

func handleQuery(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodySize)
		defer r.Body.Close()

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.SessionID == "" {
			req.SessionID = r.Header.Get("X-Session-ID")
		}

		started := time.Now()
		result, err := deps.Answer(r.Context(), pipeline.Request{
			SessionID: req.SessionID,
			Question:  req.Question,
		})
		if err != nil {
			writeAnswerError(w, err)
			return
		}

		if deps.History != nil {
			saveInteraction(deps.History, req.Question, result, time.Since(started))
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleReindex(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chunks, err := deps.Processor.ProcessDir(deps.DocsDir)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "processing documents: %v", err)
			return
		}
		if err := deps.Index.Rebuild(r.Context(), chunks, deps.DocsDir); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "rebuilding index: %v", err)
			return
		}
		info, err := deps.Index.Info()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading index info: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func handleStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status := map[string]any{}
		if info, err := deps.Index.Info(); err == nil {
			status["index"] = info
		} else {
			status["index"] = map[string]string{"error": err.Error()}
		}
		if deps.Tracker != nil {
			status["usage"] = deps.Tracker.Snapshot()
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func handleHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.History == nil {
			httpError(w, http.StatusNotFound, "invalid_request_error", "history is not enabled")
			return
		}
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid limit %q", v)
				return
			}
			if n > 500 {
				n = 500
			}
			limit = n
		}

		items, err := deps.History.Recent(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading history: %v", err)
			return
		}
		if items == nil {
			items = []history.Interaction{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func handleHistoryExport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.History == nil {
			httpError(w, http.StatusNotFound, "invalid_request_error", "history is not enabled")
			return
		}
		format, err := history.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		items, err := deps.History.Recent(500)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading history: %v", err)
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		if err := history.Export(w, items, format); err != nil {
			// Headers are already out; nothing useful left to send.
			return
		}
	}
}

type toolRequest struct {
	SessionID  string `json:"session_id"`
	Code       string `json:"code,omitempty"`
	Query      string `json:"query,omitempty"`
	Operations string `json:"operations,omitempty"`
}

func handleToolReview(deps AppDeps) http.HandlerFunc {
	return runTool(deps, func(req toolRequest) (string, error) {
		code, err := validate.Code(req.Code)
		if err != nil {
			return "", err
		}
		return tools.ReviewApexCode(code), nil
	})
}

func handleToolOptimize(deps AppDeps) http.HandlerFunc {
	return runTool(deps, func(req toolRequest) (string, error) {
		query, err := validate.SOQL(req.Query)
		if err != nil {
			return "", err
		}
		return tools.OptimizeSOQLQuery(query), nil
	})
}

func handleToolLimits(deps AppDeps) http.HandlerFunc {
	return runTool(deps, func(req toolRequest) (string, error) {
		return tools.CalculateGovernorLimits(req.Operations), nil
	})
}

func runTool(deps AppDeps, run func(toolRequest) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodySize)
		defer r.Body.Close()

		var req toolRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		session := req.SessionID
		if session == "" {
			session = "default"
		}
		if deps.Limiter != nil {
			if err := deps.Limiter.Allow(session, ratelimit.KindToolCall); err != nil {
				writeAnswerError(w, err)
				return
			}
		}

		report, err := run(req)
		if err != nil {
			writeAnswerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"report": report})
	}
}

func saveInteraction(store *history.Store, question string, result *rag.Result, elapsed time.Duration) {
	sources := "[]"
	if b, err := json.Marshal(result.Sources); err == nil && result.Sources != nil {
		sources = string(b)
	}
	_ = store.Save(history.Interaction{
		ID:         uuid.New().String(),
		CreatedAt:  time.Now().UTC(),
		Question:   question,
		Answer:     result.Answer,
		Intent:     result.Intent,
		ToolUsed:   result.ToolUsed,
		Sources:    sources,
		ResponseMs: elapsed.Milliseconds(),
	})
}

func writeAnswerError(w http.ResponseWriter, err error) {
	var vErr *validate.ValidationError
	if errors.As(err, &vErr) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", vErr.Reason)
		return
	}
	var rlErr *ratelimit.RateLimitError
	if errors.As(err, &rlErr) {
		w.Header().Set("Retry-After", strconv.Itoa(int(rlErr.RetryAfter.Seconds())+1))
		httpError(w, http.StatusTooManyRequests, "rate_limit_error", "%s", rlErr.Error())
		return
	}
	if errors.Is(err, index.ErrIndexNotFound) {
		httpError(w, http.StatusServiceUnavailable, "api_error", "index not built: %v", err)
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		httpError(w, http.StatusGatewayTimeout, "api_error", "%v", err)
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
