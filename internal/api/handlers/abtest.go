package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/careerforge/console/internal/abtest"
	"github.com/careerforge/console/internal/contracts"
	"github.com/careerforge/console/pkg/logger"
	"github.com/careerforge/console/pkg/redis"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// ABTestService is what the handlers need from the evaluation runner
type ABTestService interface {
	Tests(ctx context.Context) ([]string, error)
	Variants(ctx context.Context, testName string) ([]contracts.VariantPerformance, error)
	LatestEvaluation(ctx context.Context, testName string) (*contracts.EvaluationRecord, error)
	History(ctx context.Context, testName string, limit int) ([]contracts.EvaluationRecord, error)
	SetOverride(ctx context.Context, testName, variantID string, active bool) error
	EvaluateTest(ctx context.Context, testName string, opts abtest.Options) (*contracts.EvaluationRecord, error)
}

// TriggerLimiter throttles manual evaluations across instances
type TriggerLimiter interface {
	Allow(ctx context.Context, cfg redis.RateLimitConfig) (bool, int, error)
}

// ABTestHandler handles A/B test API endpoints
// ⭐ SSOT: A/B 테스트 API 핸들러는 이 구조체에서만
type ABTestHandler struct {
	service  ABTestService
	limiter  TriggerLimiter
	validate *validator.Validate
	logger   *logger.Logger
}

// NewABTestHandler creates a new A/B test handler
func NewABTestHandler(service ABTestService, limiter TriggerLimiter, log *logger.Logger) *ABTestHandler {
	return &ABTestHandler{
		service:  service,
		limiter:  limiter,
		validate: newValidator(),
		logger:   log.Component("abtest_api"),
	}
}

// VariantView is a variant with its derived rates; nil rate means undefined
type VariantView struct {
	contracts.VariantPerformance
	OpenRate  *float64 `json:"open_rate"`
	ClickRate *float64 `json:"click_rate"`
}

func newVariantView(v contracts.VariantPerformance) VariantView {
	view := VariantView{VariantPerformance: v}
	if rate, ok := v.OpenRate(); ok {
		view.OpenRate = &rate
	}
	if rate, ok := v.ClickRate(); ok {
		view.ClickRate = &rate
	}
	return view
}

// EvaluationView adds the dashboard status line to a record
type EvaluationView struct {
	*contracts.EvaluationRecord
	Status string `json:"status"`
}

func newEvaluationView(r *contracts.EvaluationRecord) *EvaluationView {
	if r == nil {
		return nil
	}
	return &EvaluationView{EvaluationRecord: r, Status: r.Status()}
}

// TestDetail is the response of GET /api/abtests/{name}
type TestDetail struct {
	TestName         string          `json:"test_name"`
	Variants         []VariantView   `json:"variants"`
	LatestEvaluation *EvaluationView `json:"latest_evaluation"`
}

// ListTests returns every test name
// GET /api/abtests
func (h *ABTestHandler) ListTests(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.Tests(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list tests")
		respondError(w, http.StatusInternalServerError, "Failed to list tests")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tests": names,
		"count": len(names),
	})
}

// GetTest returns variants with rates and the latest evaluation
// GET /api/abtests/{name}
func (h *ABTestHandler) GetTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["name"]

	variants, err := h.service.Variants(ctx, name)
	if err != nil {
		h.respondServiceError(w, err, "Failed to load variants")
		return
	}

	latest, err := h.service.LatestEvaluation(ctx, name)
	if err != nil {
		h.respondServiceError(w, err, "Failed to load latest evaluation")
		return
	}

	detail := TestDetail{
		TestName:         name,
		Variants:         make([]VariantView, 0, len(variants)),
		LatestEvaluation: newEvaluationView(latest),
	}
	for _, v := range variants {
		detail.Variants = append(detail.Variants, newVariantView(v))
	}

	respondJSON(w, http.StatusOK, detail)
}

// EvaluateRequest is the optional body of a manual evaluation
type EvaluateRequest struct {
	DryRun bool `json:"dry_run"`
}

// Evaluate runs the selector for one test now
// POST /api/abtests/{name}/evaluate
func (h *ABTestHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["name"]

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	allowed, remaining, err := h.limiter.Allow(ctx, redis.ManualEvaluateRateLimit(name))
	if err != nil {
		h.logger.WithError(err).Warn("Rate limiter unavailable, allowing request")
	} else if !allowed {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		respondError(w, http.StatusTooManyRequests, "Too many manual evaluations for this test")
		return
	}

	record, err := h.service.EvaluateTest(ctx, name, abtest.Options{
		Trigger: contracts.TriggerManual,
		DryRun:  req.DryRun,
	})
	if err != nil {
		h.respondServiceError(w, err, "Evaluation failed")
		return
	}

	respondJSON(w, http.StatusOK, newEvaluationView(record))
}

// ListEvaluations returns evaluation history, newest first
// GET /api/abtests/{name}/evaluations?limit=
func (h *ABTestHandler) ListEvaluations(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	records, err := h.service.History(r.Context(), name, limit)
	if err != nil {
		h.respondServiceError(w, err, "Failed to load evaluations")
		return
	}

	views := make([]*EvaluationView, 0, len(records))
	for i := range records {
		views = append(views, newEvaluationView(&records[i]))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"test_name":   name,
		"evaluations": views,
		"count":       len(views),
	})
}

// OverrideRequest toggles the manual override flag
type OverrideRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// SetOverride pins or unpins a variant
// PUT /api/abtests/{name}/variants/{id}/override
func (h *ABTestHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, variantID := vars["name"], vars["id"]

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidation(w, err)
		return
	}

	if err := h.service.SetOverride(r.Context(), name, variantID, *req.Active); err != nil {
		h.respondServiceError(w, err, "Failed to update override")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"test_name":              name,
		"variant_id":             variantID,
		"manual_override_active": *req.Active,
	})
}

// CounterPair is the sends/opens of one variant
type CounterPair struct {
	Sends int64 `json:"sends" validate:"gt=0"`
	Opens int64 `json:"opens" validate:"gte=0,ltefield=Sends"`
}

// SignificanceRequest is the body of the stateless calculator
type SignificanceRequest struct {
	A CounterPair `json:"a" validate:"required"`
	B CounterPair `json:"b" validate:"required"`
}

// SignificanceResponse carries the verdict plus both open rates
type SignificanceResponse struct {
	contracts.SignificanceVerdict
	OpenRateA float64 `json:"open_rate_a"`
	OpenRateB float64 `json:"open_rate_b"`
}

// Significance runs the z-test on two counter pairs
// POST /api/significance
func (h *ABTestHandler) Significance(w http.ResponseWriter, r *http.Request) {
	var req SignificanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidation(w, err)
		return
	}

	a := contracts.VariantPerformance{VariantID: "A", SendsCount: req.A.Sends, OpensCount: req.A.Opens}
	b := contracts.VariantPerformance{VariantID: "B", SendsCount: req.B.Sends, OpensCount: req.B.Opens}

	verdict, err := abtest.Evaluate(a, b)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rateA, _ := a.OpenRate()
	rateB, _ := b.OpenRate()

	respondJSON(w, http.StatusOK, SignificanceResponse{
		SignificanceVerdict: verdict,
		OpenRateA:           rateA,
		OpenRateB:           rateB,
	})
}

// respondServiceError maps service errors onto status codes
func (h *ABTestHandler) respondServiceError(w http.ResponseWriter, err error, message string) {
	var invalid *contracts.InvalidInputError

	switch {
	case errors.Is(err, contracts.ErrTestNotFound):
		respondError(w, http.StatusNotFound, "A/B test not found")
	case errors.Is(err, contracts.ErrVariantNotFound):
		respondError(w, http.StatusNotFound, "Variant not found")
	case errors.Is(err, abtest.ErrEvaluationInProgress):
		respondError(w, http.StatusConflict, "Evaluation already in progress")
	case errors.As(err, &invalid):
		h.logger.WithError(err).Warn("Variant data violates counter invariants")
		respondError(w, http.StatusUnprocessableEntity, invalid.Error())
	default:
		h.logger.WithError(err).Error(message)
		respondError(w, http.StatusInternalServerError, message)
	}
}
