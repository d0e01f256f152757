// Package server exposes the scorer, the analysis pipeline and the history over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spigell/ats-checker/internal/ai"
	"github.com/spigell/ats-checker/internal/analysis"
	"github.com/spigell/ats-checker/internal/ats"
	"github.com/spigell/ats-checker/internal/history"
	"github.com/spigell/ats-checker/internal/security"
	"go.uber.org/zap"
)

// multipartOverhead is allowed on top of the file limit for form fields and boundaries.
const multipartOverhead = 1 << 20

const defaultListLimit = 50

// Analyzer is the pipeline the server drives.
type Analyzer interface {
	Score(ctx context.Context, filename string, data []byte) (*ats.Result, error)
	Analyze(ctx context.Context, up analysis.Upload) (*analysis.Report, error)
}

// History is the read side of the execution store.
type History interface {
	Get(ctx context.Context, id string) (*history.Execution, error)
	List(ctx context.Context, f history.ListFilter) ([]history.Execution, error)
}

// HistoryAccess controls who may call the execution endpoints.
type HistoryAccess string

const (
	// HistoryOff leaves the execution endpoints unregistered.
	HistoryOff HistoryAccess = "off"
	// HistoryLoopback serves them only to clients connecting from a loopback address.
	HistoryLoopback HistoryAccess = "loopback"
	// HistoryPublic serves them to everyone.
	HistoryPublic HistoryAccess = "public"
)

// ParseHistoryAccess maps a config value to a HistoryAccess. Empty means off.
func ParseHistoryAccess(v string) (HistoryAccess, error) {
	switch a := HistoryAccess(strings.ToLower(strings.TrimSpace(v))); a {
	case "", HistoryOff:
		return HistoryOff, nil
	case HistoryLoopback, HistoryPublic:
		return a, nil
	default:
		return "", fmt.Errorf("unknown history access %q (want off, loopback or public)", v)
	}
}

// Config holds listener settings.
type Config struct {
	Addr           string
	MaxUploadBytes int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// HistoryAccess defaults to HistoryOff.
	HistoryAccess HistoryAccess
}

type ctxKey int

const peerKey ctxKey = iota

// Server is the HTTP front end.
type Server struct {
	cfg      Config
	analyzer Analyzer
	history  History
	logger   *zap.Logger
	router   chi.Router
}

// New builds the router. The execution endpoints answer 404 when history is nil
// or cfg.HistoryAccess is off.
func New(cfg Config, analyzer Analyzer, hist History, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = security.DefaultMaxUploadBytes
	}

	s := &Server{cfg: cfg, analyzer: analyzer, history: hist, logger: logger}

	r := chi.NewRouter()
	r.Use(rememberPeer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequestSize(cfg.MaxUploadBytes + multipartOverhead))
		r.Post("/ats", s.score)
		r.Post("/analyze", s.analyze)
		if hist == nil || cfg.HistoryAccess == "" || cfg.HistoryAccess == HistoryOff {
			return
		}
		r.Group(func(r chi.Router) {
			if cfg.HistoryAccess != HistoryPublic {
				r.Use(s.loopbackOnly)
			}
			r.Get("/executions", s.listExecutions)
			r.Get("/executions/export", s.exportExecutions)
			r.Get("/executions/{id}", s.getExecution)
			r.Get("/executions/{id}/pdf", s.executionPDF)
		})
	})

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

// rememberPeer records the socket address before RealIP rewrites RemoteAddr from headers.
func rememberPeer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), peerKey, r.RemoteAddr)))
	})
}

func (s *Server) loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		peer, _ := r.Context().Value(peerKey).(string)
		host, _, err := net.SplitHostPort(peer)
		if err != nil {
			host = peer
		}
		if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
			s.logger.Warn("history request refused", zap.String("peer", peer), zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusForbidden, errorBody{Error: "execution history is only served on loopback"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) score(w http.ResponseWriter, r *http.Request) {
	filename, data, err := s.readUpload(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.analyzer.Score(r.Context(), filename, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	filename, data, err := s.readUpload(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.analyzer.Analyze(r.Context(), analysis.Upload{
		Filename:       filename,
		Data:           data,
		JobDescription: r.FormValue("jobdesc"),
		Email:          r.FormValue("email"),
		Occupation:     r.FormValue("occupation"),
		Name:           r.FormValue("name"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	executions, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, executions)
}

func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	execution, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, execution)
}

func (s *Server) executionPDF(w http.ResponseWriter, r *http.Request) {
	execution, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := history.WritePDF(&buf, *execution); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "ats_report_"+execution.ID+".pdf"))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) exportExecutions(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}

	var (
		contentType string
		write       func(io.Writer, []history.Execution) error
	)
	switch format {
	case "csv":
		contentType, write = "text/csv; charset=utf-8", history.WriteCSV
	case "xlsx":
		contentType, write = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", history.WriteXLSX
	default:
		s.writeError(w, r, &analysis.ValidationError{Err: fmt.Errorf("unknown export format %q", format)})
		return
	}

	executions, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	who := "all"
	if filter.Email != "" {
		who = filter.Email
	}
	name := fmt.Sprintf("executions_%s_%s.%s", who, time.Now().UTC().Format("20060102_150405"), format)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := write(w, executions); err != nil {
		s.logger.Error("export failed", zap.String("format", format), zap.Error(err))
	}
}

func (s *Server) readUpload(r *http.Request) (string, []byte, error) {
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", nil, &analysis.ValidationError{Err: security.ErrTooLarge}
		}
		return "", nil, &analysis.ValidationError{Err: fmt.Errorf("parse form: %w", err)}
	}

	file, header, err := r.FormFile("cv")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil, &analysis.ValidationError{Err: security.ErrNoFile}
	}
	if err != nil {
		return "", nil, &analysis.ValidationError{Err: err}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return header.Filename, data, nil
}

func listFilter(r *http.Request) (history.ListFilter, error) {
	q := r.URL.Query()
	filter := history.ListFilter{Email: q.Get("email"), Limit: defaultListLimit}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, &analysis.ValidationError{Err: fmt.Errorf("invalid limit %q", raw)}
		}
		filter.Limit = limit
	}
	return filter, nil
}

type errorBody struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	var verr *analysis.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrSuspicious):
		return http.StatusConflict
	case errors.Is(err, analysis.ErrLimitReached):
		return http.StatusTooManyRequests
	case errors.Is(err, ai.ErrNoFeedback):
		return http.StatusBadGateway
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
