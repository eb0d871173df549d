// Package server exposes the carrier webhook endpoints and the
// operational surface over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shipstack/courier/internal/dispatch"
	"github.com/shipstack/courier/internal/ingest"
	"github.com/shipstack/courier/internal/service"
	"github.com/shipstack/courier/pkg/courier"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// maxWebhookBody bounds inbound payload size.
const maxWebhookBody = 1 << 20

// Server is the HTTP server for the courier service.
type Server struct {
	port     int
	pipeline *ingest.Pipeline
	svc      *service.Service
	logger   *otelzap.Logger
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance.
func New(cfg Config, pipeline *ingest.Pipeline, svc *service.Service, logger *otelzap.Logger) *Server {
	return &Server{
		port:     cfg.Port,
		pipeline: pipeline,
		svc:      svc,
		logger:   logger,
	}
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhooks/{carrier}", s.handleCarrierWebhook)

	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/test", s.handleTestSubscription)
		r.Get("/deliveries", s.handleListDeliveries)
	})

	return r
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// webhookAck is the body every carrier endpoint returns.
type webhookAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

var carrierTypes = map[string]courier.CourierType{
	"shiprocket": courier.TypeShiprocket,
	"delhivery":  courier.TypeDelhivery,
	"bluedart":   courier.TypeBlueDart,
	"dtdc":       courier.TypeDTDC,
	"custom":     courier.TypeCustom,
}

func (s *Server) handleCarrierWebhook(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "carrier")
	t, ok := carrierTypes[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, webhookAck{Success: false, Message: "unknown carrier"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, webhookAck{Success: false, Message: "unreadable body"})
		return
	}

	result := s.pipeline.Handle(r.Context(), t, payload, r.Header)
	writeJSON(w, result.HTTPStatus, webhookAck{Success: result.Success, Message: result.Message})
}

type testSubscriptionRequest struct {
	URL    string `json:"url"`
	Secret string `json:"secret"`
}

func (s *Server) handleTestSubscription(w http.ResponseWriter, r *http.Request) {
	var req testSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, webhookAck{Success: false, Message: "malformed body"})
		return
	}
	result, err := s.svc.TestWebhookUrl(r.Context(), req.URL, req.Secret)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, webhookAck{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant")
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, webhookAck{Success: false, Message: "tenant is required"})
		return
	}
	filter := dispatch.DeliveryFilter{
		SubscriptionID: r.URL.Query().Get("subscription"),
		Status:         dispatch.DeliveryStatus(r.URL.Query().Get("status")),
		Limit:          100,
	}
	deliveries, err := s.svc.GetWebhookDeliveries(r.Context(), tenantID, filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, webhookAck{Success: false, Message: "lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, deliveries)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
