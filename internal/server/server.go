// Package server receives object store notifications over HTTP, as sent by
// S3-compatible stores with webhook targets, and serves index lookups.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sh3r4rd/object_index/internal/handler"
	"github.com/sh3r4rd/object_index/internal/indexer"
	"github.com/sh3r4rd/object_index/internal/model"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-Id"

	maxEventBytes = 1 << 20
)

type ctxKey struct{}

// Server serves the notification receiver and record lookups.
type Server struct {
	idx      *indexer.Indexer
	policy   handler.ErrorPolicy
	lg       *zap.Logger
	timeout  time.Duration
	gatherer prometheus.Gatherer
}

// New returns a server handling notifications with idx. A zero timeout
// leaves request contexts without a deadline.
func New(
	idx *indexer.Indexer,
	policy handler.ErrorPolicy,
	timeout time.Duration,
	gatherer prometheus.Gatherer,
	lg *zap.Logger,
) *Server {
	return &Server{
		idx:      idx,
		policy:   policy,
		lg:       lg,
		timeout:  timeout,
		gatherer: gatherer,
	}
}

// Router returns the HTTP handler with every route registered.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.UseEncodedPath()
	r.Use(s.requestID)

	r.HandleFunc("/events", s.handleEvents).Methods(http.MethodPost)
	r.HandleFunc("/records/{filename:.+}", s.handleGetRecord).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		lg := s.lg.With(zap.String("request_id", id))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, lg)))
	})
}

func (s *Server) logger(ctx context.Context) *zap.Logger {
	if lg, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return lg
	}
	return s.lg
}

func (s *Server) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	lg := s.logger(r.Context())

	var event events.S3Event
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err := dec.Decode(&event); err != nil {
		lg.Warn("malformed notification body", zap.Error(err))
		writeError(w, http.StatusBadRequest, model.ErrorCodeBadRequest, "malformed notification body")
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	lg = lg.With(zap.Int("records", len(event.Records)))
	if err := s.policy.Resolve(lg, s.idx.Handle(ctx, event)); err != nil {
		writeError(w, http.StatusInternalServerError, model.ErrorCodeInternal, "notification not indexed")
		return
	}

	writeJSON(w, http.StatusAccepted, model.EventsResponse{
		RequestID: w.Header().Get(RequestIDHeader),
		Records:   len(event.Records),
	})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	lg := s.logger(r.Context())

	filename, err := url.PathUnescape(mux.Vars(r)["filename"])
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrorCodeBadRequest, "malformed filename")
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	rec, ok, err := s.idx.Lookup(ctx, filename)
	if err != nil {
		lg.Error("lookup failed", zap.String("filename", filename), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, model.ErrorCodeInternal, "lookup failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, model.ErrorCodeNotFound, "no record for "+filename)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}
