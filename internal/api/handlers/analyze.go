package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wonny/mizan/internal/brain"
	"github.com/wonny/mizan/internal/contracts"
	"github.com/wonny/mizan/pkg/logger"
)

// MaxBatchSize caps company_inputs on the batch endpoint
const MaxBatchSize = 25

// Analyzer runs decision pipelines
type Analyzer interface {
	Run(ctx context.Context, query string) (*contracts.PipelineResponse, error)
	RunBatch(ctx context.Context, queries []string, concurrency int) ([]brain.BatchResult, error)
}

// AnalyzeHandler handles pipeline API endpoints
// ⭐ SSOT: 분석 API 핸들러는 여기서만
type AnalyzeHandler struct {
	analyzer    Analyzer
	concurrency int
	logger      *logger.Logger
}

// NewAnalyzeHandler creates a new analyze handler
func NewAnalyzeHandler(analyzer Analyzer, concurrency int, log *logger.Logger) *AnalyzeHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AnalyzeHandler{
		analyzer:    analyzer,
		concurrency: concurrency,
		logger:      log,
	}
}

// AnalyzeRequest is the single-run request body
type AnalyzeRequest struct {
	CompanyInput string `json:"company_input"`
}

// BatchRequest is the batch request body
type BatchRequest struct {
	CompanyInputs []string `json:"company_inputs"`
}

// BatchResponse wraps batch results in input order
type BatchResponse struct {
	Results []brain.BatchResult `json:"results"`
	Count   int                 `json:"count"`
}

// Analyze runs one pipeline.
// POST /api/analyze
// An ERROR pipeline is still a 200: the halt is the answer, not a server fault.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	query := strings.TrimSpace(req.CompanyInput)
	if query == "" {
		respondError(w, http.StatusBadRequest, "company_input is required")
		return
	}

	resp, err := h.analyzer.Run(r.Context(), query)
	if err != nil {
		h.logger.WithError(err).Warn("Analyze request abandoned")
		respondError(w, http.StatusServiceUnavailable, "Request cancelled")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// AnalyzeBatch runs independent pipelines for several inputs.
// POST /api/analyze/batch
func (h *AnalyzeHandler) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	queries := make([]string, 0, len(req.CompanyInputs))
	for _, q := range req.CompanyInputs {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		respondError(w, http.StatusBadRequest, "company_inputs must contain at least one entry")
		return
	}
	if len(queries) > MaxBatchSize {
		respondError(w, http.StatusBadRequest, "too many company_inputs")
		return
	}

	results, err := h.analyzer.RunBatch(r.Context(), queries, h.concurrency)
	if err != nil {
		h.logger.WithError(err).Warn("Batch request abandoned")
		respondError(w, http.StatusServiceUnavailable, "Request cancelled")
		return
	}

	respondJSON(w, http.StatusOK, BatchResponse{Results: results, Count: len(results)})
}
