// Package dashboard exposes the trading day's status over HTTP: a JSON
// snapshot of today's TradeRecord, a liveness probe, and Prometheus
// metrics, behind a chi.Mux with RequestID/RealIP/Recoverer/Compress
// middleware, constant-time token auth (X-Auth-Token header or token
// query parameter), and graceful Shutdown.
package dashboard

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/eliywilner/spxspread/internal/core/traderecord"
	"github.com/eliywilner/spxspread/internal/storage"
)

// Config configures the dashboard server.
type Config struct {
	Port      int
	AuthToken string
}

// Server serves /status, /healthz, and /metrics.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	storage   storage.Interface
	logger    *logrus.Logger
	port      int
	authToken string
}

// NewServer constructs a Server backed by storage for today's record.
func NewServer(cfg Config, store storage.Interface, logger *logrus.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		storage:   store,
		logger:    logger,
		port:      cfg.Port,
		authToken: cfg.AuthToken,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLoggerMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(middleware.Compress(5))

	// Liveness and metrics are always public.
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	if s.authToken != "" {
		s.router.Route("/", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/status", s.handleStatus)
			r.Get("/status/{date}", s.handleStatusForDate)
		})
	} else {
		s.router.Get("/status", s.handleStatus)
		s.router.Get("/status/{date}", s.handleStatusForDate)
	}
}

func (s *Server) requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loggedURL := redactTokenFromURL(r.URL)
		logEntry := s.logger.WithFields(logrus.Fields{
			"method":    r.Method,
			"url":       loggedURL.String(),
			"remote_ip": r.RemoteAddr,
		})

		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)

		logEntry.WithFields(logrus.Fields{
			"status":   wrapped.Status(),
			"bytes":    wrapped.BytesWritten(),
			"duration": time.Since(start),
		}).Info("http request")
	})
}

func redactTokenFromURL(original *url.URL) *url.URL {
	logged := &url.URL{
		Scheme:   original.Scheme,
		Host:     original.Host,
		Path:     original.Path,
		RawQuery: original.RawQuery,
		Fragment: original.Fragment,
	}
	if original.RawQuery != "" {
		values := original.Query()
		if values.Has("token") {
			values.Set("token", "[REDACTED]")
			logged.RawQuery = values.Encode()
		}
	}
	return logged
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if !s.isValidToken(token) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) isValidToken(token string) bool {
	if len(token) != len(s.authToken) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) == 1
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Infof("starting dashboard server on port %d", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.storage.RecordForDate(time.Now())
	if !ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "no record for today yet"})
		return
	}
	s.writeRecord(w, rec)
}

func (s *Server) handleStatusForDate(w http.ResponseWriter, r *http.Request) {
	dateParam := chi.URLParam(r, "date")
	date, err := time.Parse("2006-01-02", dateParam)
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	rec, ok := s.storage.RecordForDate(date)
	if !ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "no record for " + dateParam})
		return
	}
	s.writeRecord(w, rec)
}

func (s *Server) writeRecord(w http.ResponseWriter, rec traderecord.TradeRecord) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		s.logger.WithError(err).Error("failed to encode trade record")
	}
}
