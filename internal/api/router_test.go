package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/careerforge/console/internal/abtest"
	"github.com/careerforge/console/internal/api/handlers"
	"github.com/careerforge/console/internal/contracts"
	"github.com/careerforge/console/pkg/logger"
	"github.com/careerforge/console/pkg/redis"
)

type emptyService struct{}

func (emptyService) Tests(context.Context) ([]string, error) { return []string{}, nil }
func (emptyService) Variants(context.Context, string) ([]contracts.VariantPerformance, error) {
	return nil, contracts.ErrTestNotFound
}
func (emptyService) LatestEvaluation(context.Context, string) (*contracts.EvaluationRecord, error) {
	return nil, nil
}
func (emptyService) History(context.Context, string, int) ([]contracts.EvaluationRecord, error) {
	return nil, nil
}
func (emptyService) SetOverride(context.Context, string, string, bool) error { return nil }
func (emptyService) EvaluateTest(_ context.Context, name string, opts abtest.Options) (*contracts.EvaluationRecord, error) {
	return &contracts.EvaluationRecord{TestName: name, Reason: contracts.ReasonSingleVariant, Trigger: opts.Trigger}, nil
}

type allowAll struct{}

func (allowAll) Allow(context.Context, redis.RateLimitConfig) (bool, int, error) { return true, 0, nil }

func newRouter() http.Handler {
	h := handlers.NewABTestHandler(emptyService{}, allowAll{}, logger.Nop())
	return NewRouter(h, nil, logger.Nop())
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, logger.ServiceName, body["service"])
}

func TestRoutes(t *testing.T) {
	router := newRouter()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/api/abtests", http.StatusOK},
		{"GET", "/api/abtests/unknown", http.StatusNotFound},
		{"GET", "/api/abtests/x/evaluations", http.StatusOK},
		{"POST", "/api/abtests/x/evaluate", http.StatusOK},
		{"DELETE", "/api/abtests/x", http.StatusMethodNotAllowed},
		{"GET", "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.want, rec.Code, "%s %s", tt.method, tt.path)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
	r.Use(recoveryMiddleware(logger.Nop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClientRateLimit(t *testing.T) {
	handler := clientRateLimit(rate.Every(time.Hour), 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest("POST", "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:5000"))
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5002"))

	// separate bucket per address
	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:5000"))
}

func TestClientLimiters_EvictIdle(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	limiters := newClientLimiters(rate.Every(time.Hour), 1)
	limiters.now = func() time.Time { return now }

	first := limiters.get("10.0.0.1")
	assert.Same(t, first, limiters.get("10.0.0.1"))

	now = now.Add(limiterIdleTTL + time.Second)
	limiters.get("10.0.0.2")
	assert.NotContains(t, limiters.clients, "10.0.0.1")
}
