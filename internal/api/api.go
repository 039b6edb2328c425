// Package api serves the pipeline trigger, health and metrics
// endpoints.
package api

import (
	"net/http"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/riftdata/pipeline/internal/tracing"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Waker is the runner slice the trigger endpoint needs.
type Waker interface {
	Wake()
}

// Server exposes the HTTP surface of the pipeline process.
type Server struct {
	runner   Waker
	gatherer prometheus.Gatherer
	log      *zap.Logger
}

// NewServer builds the HTTP surface over the runner and the metrics
// registry.
func NewServer(runner Waker, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	return &Server{
		runner:   runner,
		gatherer: gatherer,
		log:      log.Named("api"),
	}
}

// Handler routes the trigger, health and metrics endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/pipelines/player_collection", s.handleTrigger)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

type triggerResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// handleTrigger queues an immediate pipeline cycle. The task id only
// labels the acknowledgement; cycles triggered while one is already
// running coalesce.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.StartSpan(r.Context(), tracing.Tracer("http"),
		"POST /pipelines/player_collection",
		attribute.String("http.method", r.Method))
	defer span.End()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	taskID := uuid.New().String()
	s.runner.Wake()
	s.log.Info("pipeline cycle queued", zap.String("task_id", taskID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(triggerResponse{TaskID: taskID, Status: "queued"}); err != nil {
		s.log.Warn("trigger response write failed", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
