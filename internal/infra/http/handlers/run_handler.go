package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xavierca1/prospect-agent/internal/entity"
	"github.com/xavierca1/prospect-agent/internal/usecase"
)

// RunHandler exposes stage runs to operators. Runs are synchronous; the
// response carries the run summaries.
type RunHandler struct {
	Pipeline *usecase.Pipeline
}

func NewRunHandler(p *usecase.Pipeline) *RunHandler {
	return &RunHandler{Pipeline: p}
}

type RunResponse struct {
	Summaries []*usecase.Summary `json:"summaries"`
	Error     string             `json:"error,omitempty"`
}

// RunStage handles POST /runs/{stage}.
func (h *RunHandler) RunStage(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRunRequest(w, r)
	if !ok {
		return
	}
	req.Stage = chi.URLParam(r, "stage")

	stage, in, verrs := usecase.ValidateRunRequest(req)
	if len(verrs) > 0 {
		writeValidationErrors(w, verrs)
		return
	}

	summary, err := h.Pipeline.RunStage(r.Context(), stage, in)
	var summaries []*usecase.Summary
	if summary != nil {
		summaries = append(summaries, summary)
	}
	h.respond(w, summaries, err)
}

// RunAll handles POST /runs: every configured stage in order.
func (h *RunHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRunRequest(w, r)
	if !ok {
		return
	}
	in, verrs := usecase.ValidateRunLimit(req.Limit)
	if len(verrs) > 0 {
		writeValidationErrors(w, verrs)
		return
	}

	summaries, err := h.Pipeline.RunAll(r.Context(), in)
	h.respond(w, summaries, err)
}

// Reclaim handles POST /reclaim.
func (h *RunHandler) Reclaim(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Pipeline.RunStage(r.Context(), entity.StageReclaim, usecase.RunInput{})
	var summaries []*usecase.Summary
	if summary != nil {
		summaries = append(summaries, summary)
	}
	h.respond(w, summaries, err)
}

func (h *RunHandler) respond(w http.ResponseWriter, summaries []*usecase.Summary, err error) {
	if summaries == nil {
		summaries = []*usecase.Summary{}
	}
	if err == nil {
		writeJSON(w, http.StatusOK, RunResponse{Summaries: summaries})
		return
	}

	status := http.StatusInternalServerError
	var domainErr *usecase.DomainError
	switch {
	case errors.As(err, &domainErr) && domainErr.Code == "unknown_stage":
		status = http.StatusNotFound
	case usecase.IsConfigError(err):
		status = http.StatusUnprocessableEntity
	default:
		log.Printf("❌ [http] run failed: %v", err)
	}
	writeJSON(w, status, RunResponse{Summaries: summaries, Error: err.Error()})
}

// decodeRunRequest reads the optional JSON body; ?limit= is accepted too.
func decodeRunRequest(w http.ResponseWriter, r *http.Request) (usecase.RunRequest, bool) {
	var req usecase.RunRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
			return req, false
		}
	}
	if req.Limit == "" {
		req.Limit = r.URL.Query().Get("limit")
	}
	return req, true
}

func writeValidationErrors(w http.ResponseWriter, verrs []usecase.ValidationError) {
	fields := make(map[string]string, len(verrs))
	for _, v := range verrs {
		fields[v.Field] = v.Message
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "VALIDATION_FAILED",
		Message: verrs[0].Error(),
		Fields:  fields,
	})
}
