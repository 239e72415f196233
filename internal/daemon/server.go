package daemon

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tscribe/internal/api"
	"tscribe/internal/config"
	"tscribe/internal/logging"
	"tscribe/internal/transcript"
)

// apiServer exposes the job service over HTTP.
type apiServer struct {
	logger  *slog.Logger
	service *api.JobService
	token   string
	server  *http.Server
}

func newAPIServer(logger *slog.Logger, cfg *config.Config, service *api.JobService) *apiServer {
	s := &apiServer{
		logger:  logging.NewComponentLogger(logger, "api-server"),
		service: service,
		token:   cfg.Paths.APIToken,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/jobs", s.auth(s.handleSubmit))
	mux.HandleFunc("GET /api/jobs", s.auth(s.handleList))
	mux.HandleFunc("GET /api/jobs/{id}", s.auth(s.handleGet))
	mux.HandleFunc("DELETE /api/jobs/{id}", s.auth(s.handleDelete))
	mux.HandleFunc("GET /api/jobs/{id}/download/{format}", s.auth(s.handleDownload))

	s.server = &http.Server{
		Addr:              cfg.Paths.APIBind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// listenAndServe blocks until the listener fails or Shutdown is called. The
// bound address is reported through addrCh so tests can bind to port 0.
func (s *apiServer) listenAndServe(addrCh chan<- string) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		if addrCh != nil {
			close(addrCh)
		}
		return err
	}
	if addrCh != nil {
		addrCh <- listener.Addr().String()
	}
	s.logger.Info("api listening", logging.String("addr", listener.Addr().String()))
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *apiServer) shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// auth enforces the bearer token when one is configured.
func (s *apiServer) auth(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		provided, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(provided), []byte(s.token)) != 1 {
			s.writeError(w, http.StatusUnauthorized, errors.New("missing or invalid token"))
			return
		}
		next(w, r)
	}
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL      string `json:"url"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	view, err := s.service.Submit(r.Context(), req.URL, req.Language)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, view)
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, errors.New("limit must be an integer"))
			return
		}
		limit = parsed
	}
	views, err := s.service.List(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if views == nil {
		views = []*api.JobView{}
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	format, ok := transcript.ParseFormat(r.PathValue("format"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, errors.New("unsupported format, expected one of: "+strings.Join(transcript.Formats(), ", ")))
		return
	}
	result, err := s.service.Result(r.Context(), r.PathValue("id"), format)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(result.Content))
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, api.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, api.ErrNotReady):
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, api.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		s.logger.Error("request failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("writing response failed", logging.Error(err))
	}
}
