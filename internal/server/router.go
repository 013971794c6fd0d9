package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/api/handlers"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/internal/metrics"
)

// Handlers bundles the request handlers mounted by NewRouter. Health is
// required; any other nil handler leaves its routes unregistered.
type Handlers struct {
	Dispatch *handlers.DispatchHandler
	Agents   *handlers.AgentsHandler
	Weights  *handlers.WeightsHandler
	Health   *handlers.HealthHandler
}

// NewRouter builds the routing mux for the public API.
func NewRouter(h Handlers, collector *metrics.Collector, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health.HandleHealth)
	mux.HandleFunc("GET /ready", h.Health.HandleReady)

	if h.Dispatch != nil {
		mux.HandleFunc("POST /v1/dispatch", h.Dispatch.HandleDispatch)
	}
	if h.Agents != nil {
		mux.HandleFunc("POST /v1/agents", h.Agents.HandleRegister)
		mux.HandleFunc("GET /v1/agents", h.Agents.HandleList)
		mux.HandleFunc("GET /v1/agents/{name}", h.Agents.HandleGet)
		mux.HandleFunc("GET /v1/select", h.Agents.HandleSelect)
	}
	if h.Weights != nil {
		mux.HandleFunc("POST /v1/weights/reinforce", h.Weights.HandleReinforce)
		mux.HandleFunc("POST /v1/weights/decay", h.Weights.HandleDecay)
		mux.HandleFunc("POST /v1/weights/transfer", h.Weights.HandleTransfer)
	}

	var handler http.Handler = mux
	handler = instrument(handler, collector)
	handler = recovery(handler, logger)
	return handler
}

// instrument records request count and latency per route pattern. The
// matched pattern is used instead of the raw path to keep metric
// cardinality bounded.
func instrument(next http.Handler, collector *metrics.Collector) http.Handler {
	if collector == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := handlers.NewResponseWriter(w)
		next.ServeHTTP(rw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		collector.RecordHTTPRequest(r.Method, path, rw.StatusCode, time.Since(start))
	})
}

// recovery converts handler panics into a 500 so one bad request cannot
// take down the server.
func recovery(next http.Handler, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("handler panic",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
