package rest

import (
	"log/slog"
	"net/http"
	"time"

	"fieldcheck/internal/metrics"
	"fieldcheck/internal/service"
	"fieldcheck/internal/transport/rest/handler"
	"fieldcheck/internal/transport/ws"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Container holds all dependencies for the router
type Container struct {
	TemplateService   *service.TemplateService
	InspectionService *service.InspectionService
	WSHub             *ws.Hub
	Metrics           *metrics.Metrics
	AllowedOrigins    string
	Logger            *slog.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Initialize handlers
	templateHandler := handler.NewTemplateHandler(c.TemplateService)
	inspectionHandler := handler.NewInspectionHandler(c.InspectionService)
	wsHandler := ws.NewHandler(c.WSHub, c.InspectionService, logger)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.AllowedOrigins))
	r.Use(loggingMiddleware(logger))

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Templates
	v1.HandleFunc("/templates", templateHandler.Create).Methods("POST", "OPTIONS")
	v1.HandleFunc("/templates", templateHandler.List).Methods("GET", "OPTIONS")
	v1.HandleFunc("/templates/validate", templateHandler.Validate).Methods("POST", "OPTIONS")
	v1.HandleFunc("/templates/{id}", templateHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/templates/{id}", templateHandler.Update).Methods("PUT", "OPTIONS")
	v1.HandleFunc("/templates/{id}/publish", templateHandler.Publish).Methods("POST", "OPTIONS")
	v1.HandleFunc("/templates/{id}/versions", templateHandler.Versions).Methods("GET", "OPTIONS")
	v1.HandleFunc("/templates/{id}/versions/{version}", templateHandler.Version).Methods("GET", "OPTIONS")

	// Inspections
	v1.HandleFunc("/templates/{id}/inspections", inspectionHandler.ListByTemplate).Methods("GET", "OPTIONS")
	v1.HandleFunc("/inspections", inspectionHandler.Start).Methods("POST", "OPTIONS")
	v1.HandleFunc("/inspections/{id}", inspectionHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/inspections/{id}/answers", inspectionHandler.SubmitAnswer).Methods("POST", "OPTIONS")
	v1.HandleFunc("/inspections/{id}/progress", inspectionHandler.Progress).Methods("GET", "OPTIONS")
	v1.HandleFunc("/inspections/{id}/questions", inspectionHandler.Questions).Methods("GET", "OPTIONS")
	v1.HandleFunc("/inspections/{id}/subchecklists", inspectionHandler.SubChecklists).Methods("GET", "OPTIONS")
	v1.HandleFunc("/inspections/{id}/subchecklists/{questionId}", inspectionHandler.StartSubChecklist).Methods("POST", "OPTIONS")
	v1.HandleFunc("/inspections/{id}/complete", inspectionHandler.Complete).Methods("POST", "OPTIONS")
	v1.HandleFunc("/inspections/{id}/report", inspectionHandler.Report).Methods("GET", "OPTIONS")
	v1.HandleFunc("/inspections/{id}/evidence", inspectionHandler.UploadEvidence).Methods("POST", "OPTIONS")

	// WebSocket routes
	v1.HandleFunc("/ws/inspections/{id}", wsHandler.InspectionWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	if c.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(c.Metrics.Registry, promhttp.HandlerOpts{})).Methods("GET")
	}

	return r
}

func corsMiddleware(allowedOrigins string) mux.MiddlewareFunc {
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// upgraded connections need the original writer
			if r.Header.Get("Upgrade") != "" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)))
		})
	}
}
