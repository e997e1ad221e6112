// Package api exposes the gateway's HTTP surface: the flat /orchestrate
// contract, the canonical envelope endpoints, and the health and metrics
// probes. All orchestration endpoints sit behind API key auth.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mcp-gateway/internal/common/config"
	"mcp-gateway/internal/common/logger"
	"mcp-gateway/internal/envelope"
	"mcp-gateway/internal/orchestrator"
)

const serviceName = "mcp-gateway"

type Server struct {
	coordinator *orchestrator.Coordinator
	logger      logger.Logger
}

func NewServer(coordinator *orchestrator.Coordinator, log logger.Logger) *Server {
	return &Server{
		coordinator: coordinator,
		logger:      log.With(map[string]interface{}{"component": "api"}),
	}
}

// Routes assembles the chi router. Health and metrics stay public; everything
// else requires a valid API key.
func (s *Server) Routes(cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogging(s.logger))
	r.Use(RequestMetrics)
	r.Use(chimiddleware.Timeout(config.GetDuration(cfg.Server.RequestTimeout)))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(cfg.Auth.APIKeys))
		r.Post("/orchestrate", s.handleOrchestrate)
		r.Post("/canonical/message", s.handleCanonical)
		r.Post("/canonical/voice", s.handleCanonical)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleOrchestrate serves the flat contract used by channel adapters that do
// not speak the canonical envelope.
func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	var thin envelope.ThinRequest
	if err := json.NewDecoder(r.Body).Decode(&thin); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"detail": "Request body is not valid JSON",
		})
		return
	}
	if thin.Text == "" || thin.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"detail": "Fields 'text' and 'user_id' are required",
		})
		return
	}

	res, ge := s.coordinator.HandleThin(r.Context(), &thin)
	if ge != nil {
		writeJSON(w, ge.HTTPStatus, map[string]interface{}{
			"detail":    ge.Message,
			"code":      ge.Code,
			"retryable": ge.Retryable,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCanonical serves the envelope endpoints. The response is always a
// canonical envelope; the HTTP status mirrors its response code.
func (s *Server) handleCanonical(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"detail": "Failed to read request body",
		})
		return
	}

	resp := s.coordinator.HandleEnvelope(r.Context(), raw)
	writeJSON(w, resp.Response.Code, resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
