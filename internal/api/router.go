package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/careerforge/console/internal/api/handlers"
	"github.com/careerforge/console/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(abtestHandler *handlers.ABTestHandler, feed http.Handler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()
	log = log.Component("api")

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Dashboard feed
	if feed != nil {
		r.Handle("/ws/abtests", feed).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// A/B test endpoints
	api.HandleFunc("/abtests", abtestHandler.ListTests).Methods("GET")
	api.HandleFunc("/abtests/{name}", abtestHandler.GetTest).Methods("GET")
	api.HandleFunc("/abtests/{name}/evaluations", abtestHandler.ListEvaluations).Methods("GET")
	api.HandleFunc("/abtests/{name}/variants/{id}/override", abtestHandler.SetOverride).Methods("PUT")
	api.Handle("/abtests/{name}/evaluate",
		clientRateLimit(manualTriggerRate, manualTriggerBurst)(http.HandlerFunc(abtestHandler.Evaluate)),
	).Methods("POST")

	// Calculator
	api.HandleFunc("/significance", abtestHandler.Significance).Methods("POST")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": logger.ServiceName,
	})
}

// statusRecorder captures the status code for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes through so /ws/abtests can upgrade behind the middleware
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
