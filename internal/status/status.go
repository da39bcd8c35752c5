// Package status — служебный HTTP: живость процесса и актуальный текст
// закэшированных ростеров. Только чтение.
package status

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
)

// Documents — источник текстов (doccache.Cache).
type Documents interface {
	Peek(ctx context.Context, id string) (string, bool, error)
	Len() int
}

type Server struct {
	docs Documents
	log  *slog.Logger
}

func New(docs Documents, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{docs: docs, log: log}
}

// Handler — маршруты статуса с журналом запросов.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.healthz)
	r.Methods(http.MethodGet).Path("/documents/{id}").HandlerFunc(s.document)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.log.Debug("status request", "method", r.Method, "url", r.URL.Path, "status", m.Code, "took", m.Duration)
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Documents", strconv.Itoa(s.docs.Len()))
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) document(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	text, ok, err := s.docs.Peek(r.Context(), id)
	if err != nil {
		s.log.Warn("peek document", "err", err, "document_id", id)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(text)); err != nil {
		s.log.Warn("write document", "err", err)
	}
}

// Run слушает addr до отмены ctx.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("status server started", "addr", addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
