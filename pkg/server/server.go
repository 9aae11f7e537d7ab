package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"sla-status-tracking/pkg/config"
	"sla-status-tracking/pkg/handlers"
)

func NewRouter(handler *handlers.Handler, logger *logrus.Logger) *mux.Router {
	router := mux.NewRouter()

	// API routes
	router.HandleFunc("/conversations/{id}/sla", handler.PutAssignment).Methods("PUT")
	router.HandleFunc("/conversations/{id}/snapshot", handler.PutSnapshot).Methods("PUT")
	router.HandleFunc("/conversations/{id}/sla-status", handler.GetSLAStatus).Methods("GET")
	router.HandleFunc("/conversations/{id}/summary", handler.Summarize).Methods("POST")
	router.HandleFunc("/conversations/{id}", handler.DeleteConversation).Methods("DELETE")
	router.HandleFunc("/sla/evaluate", handler.Evaluate).Methods("POST")
	router.HandleFunc("/reports/conversations/summary", handler.FilterReportSummary).Methods("POST")
	router.HandleFunc("/reports/conversations/rows", handler.FilterReportRows).Methods("POST")
	router.HandleFunc("/reports/keys", handler.FilterReportKeys).Methods("POST")
	router.HandleFunc("/health", handler.Health).Methods("GET")
	router.HandleFunc("/status", handler.Status).Methods("GET")

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.Use(loggingMiddleware(logger))

	return router
}

func NewHTTPServer(config *config.Config, handler *handlers.Handler, logger *logrus.Logger) *http.Server {
	return &http.Server{
		Addr:         ":" + config.Port,
		Handler:      NewRouter(handler, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // summary generation can be slow
		IdleTimeout:  60 * time.Second,
	}
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Debug("HTTP request processed")
		})
	}
}
