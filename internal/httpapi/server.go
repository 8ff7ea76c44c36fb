package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joelkehle/patrol-report/internal/compose"
	"github.com/joelkehle/patrol-report/internal/observability"
	"github.com/joelkehle/patrol-report/internal/reminder"
	"github.com/joelkehle/patrol-report/internal/report"
	"github.com/joelkehle/patrol-report/internal/share"
	"github.com/joelkehle/patrol-report/internal/wizard"
)

type ReportPDFRenderer interface {
	Render(ctx context.Context, data report.Data, g report.Generated) ([]byte, error)
}

type ReminderStatus interface {
	Status() (reminder.Status, error)
}

// Config wires the server's collaborators. Sessions and Composer are
// required; the rest may be left zero.
type Config struct {
	Sessions    *wizard.SessionStore
	Composer    *compose.Composer
	Reminder    ReminderStatus
	PDFRenderer ReportPDFRenderer
	Metrics     *observability.Metrics
	Gatherer    prometheus.Gatherer
	// GenerateRatePerMin caps generation requests per client. Zero disables
	// the limit.
	GenerateRatePerMin int
	WebDir             string
}

type Server struct {
	sessions *wizard.SessionStore
	composer *compose.Composer
	reminder ReminderStatus
	pdf      ReportPDFRenderer
	metrics  *observability.Metrics
	limiter  *clientLimiter
	webDir   string
}

func NewServer(cfg Config) http.Handler {
	s := &Server{
		sessions: cfg.Sessions,
		composer: cfg.Composer,
		reminder: cfg.Reminder,
		pdf:      cfg.PDFRenderer,
		metrics:  cfg.Metrics,
		webDir:   cfg.WebDir,
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetricsForTesting()
	}
	if cfg.GenerateRatePerMin > 0 {
		s.limiter = newClientLimiter(cfg.GenerateRatePerMin)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /v1/sessions/{token}", s.handleGetSession)
	mux.HandleFunc("DELETE /v1/sessions/{token}", s.handleDiscardSession)
	mux.HandleFunc("PATCH /v1/sessions/{token}/data", s.handlePatchData)
	mux.HandleFunc("PUT /v1/sessions/{token}/engines/{id}", s.handleSetEngine)
	mux.HandleFunc("PUT /v1/sessions/{token}/generators/{id}", s.handleUpdateGenerator)
	mux.HandleFunc("GET /v1/sessions/{token}/steps/{step}", s.handleStep)
	mux.HandleFunc("GET /v1/sessions/{token}/alerts", s.handleAlerts)
	mux.HandleFunc("POST /v1/sessions/{token}/next", s.handleNext)
	mux.HandleFunc("POST /v1/sessions/{token}/prev", s.handlePrev)
	mux.HandleFunc("POST /v1/sessions/{token}/jockey/confirm", s.handleJockey(true))
	mux.HandleFunc("POST /v1/sessions/{token}/jockey/decline", s.handleJockey(false))
	mux.HandleFunc("POST /v1/sessions/{token}/generate", s.handleGenerate)
	mux.HandleFunc("GET /v1/sessions/{token}/report", s.handleReportText)
	mux.HandleFunc("GET /v1/sessions/{token}/report.pdf", s.handleReportPDF)
	mux.HandleFunc("GET /v1/sessions/{token}/report.xlsx", s.handleReportXLSX)
	mux.HandleFunc("GET /v1/sessions/{token}/share", s.handleShare)
	mux.HandleFunc("GET /v1/reminder", s.handleReminder)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if cfg.Gatherer != nil {
		metrics := promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})
		mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
			s.metrics.SessionsActive.Set(float64(s.sessions.Len()))
			metrics.ServeHTTP(w, r)
		})
	}
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, 1<<20))
}

// session resolves the {token} path value, writing a 404 when unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*wizard.Session, bool) {
	sess, err := s.sessions.Get(r.PathValue("token"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if s.webDir == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	if r.URL.Path == "/" || r.URL.Path == "/index.html" {
		http.ServeFile(w, r, filepath.Join(s.webDir, "index.html"))
		return
	}
	rel := strings.TrimPrefix(filepath.Clean(r.URL.Path), "/")
	if _, err := fs.Stat(os.DirFS(s.webDir), rel); err == nil {
		http.ServeFile(w, r, filepath.Join(s.webDir, rel))
		return
	}
	http.NotFound(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"generator": s.composer.Available(),
		"sessions":  s.sessions.Len(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.metrics.SessionsActive.Set(float64(s.sessions.Len()))
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Discard(r.PathValue("token")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.metrics.SessionsActive.Set(float64(s.sessions.Len()))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePatchData(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	blob, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err = sess.With(func(c *wizard.Controller) error {
		return c.Edit(func(d *report.Data) error { return d.Merge(blob) })
	})
	if err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleSetEngine(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "engine id must be a number")
		return
	}
	var req struct {
		IsUp *bool `json:"isUp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsUp == nil {
		writeError(w, http.StatusBadRequest, "isUp is required")
		return
	}
	err = sess.With(func(c *wizard.Controller) error {
		return c.Edit(func(d *report.Data) error { return d.SetEngine(id, *req.IsUp) })
	})
	if err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleUpdateGenerator(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "generator id must be a number")
		return
	}
	var patch report.GeneratorPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid generator edit")
		return
	}
	err = sess.With(func(c *wizard.Controller) error {
		return c.Edit(func(d *report.Data) error { return d.UpdateGenerator(id, patch) })
	})
	if err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func writeEditError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, report.ErrUnknownEntry):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, report.ErrInvalidEdit):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	step, err := strconv.Atoi(r.PathValue("step"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "step must be a number")
		return
	}
	missing, known := report.MissingFields(sess.Snapshot().Data, step)
	if !known {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown step %d", step))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"step":     step,
		"title":    report.StepTitle(step),
		"complete": len(missing) == 0,
		"missing":  missing,
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": report.DeriveAlerts(sess.Snapshot().Data)})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var (
		outcome wizard.Outcome
		missing []string
	)
	err := sess.With(func(c *wizard.Controller) error {
		if !c.CanAdvance() {
			missing, _ = report.MissingFields(c.Data(), c.Step())
			return errStepIncomplete
		}
		outcome = c.Next()
		return nil
	})
	if errors.Is(err, errStepIncomplete) {
		s.metrics.StepAdvances.WithLabelValues("blocked").Inc()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "current step is incomplete",
			"missing": missing,
		})
		return
	}
	s.metrics.StepAdvances.WithLabelValues(string(outcome)).Inc()
	if outcome == wizard.OutcomeGenerate {
		s.generate(w, r, sess)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outcome": outcome,
		"session": sess.Snapshot(),
	})
}

func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	_ = sess.With(func(c *wizard.Controller) error {
		c.Prev()
		return nil
	})
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleJockey(confirm bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(w, r)
		if !ok {
			return
		}
		err := sess.With(func(c *wizard.Controller) error {
			if confirm {
				return c.ConfirmJockey()
			}
			return c.DeclineJockey()
		})
		if err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.generate(w, r, sess)
}

var errStepIncomplete = errors.New("step incomplete")

func (s *Server) generate(w http.ResponseWriter, r *http.Request, sess *wizard.Session) {
	if s.limiter != nil && !s.limiter.Allow(clientKey(r)) {
		s.metrics.RateLimited.Inc()
		writeError(w, http.StatusTooManyRequests, "too many report requests, try again shortly")
		return
	}
	data, err := sess.BeginGeneration()
	if errors.Is(err, wizard.ErrReportIncomplete) {
		snap := sess.Snapshot()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   err.Error(),
			"missing": snap.Missing,
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	// A started generation runs to completion even if the client goes away.
	g, err := s.composer.Generate(context.WithoutCancel(r.Context()), data)
	if err != nil {
		sess.EndGeneration(nil)
		status := http.StatusBadGateway
		if errors.Is(err, compose.ErrMissingCredential) {
			status = http.StatusServiceUnavailable
		}
		log.Printf("generate report failed token=%s err=%v", sess.Token, err)
		writeError(w, status, compose.FallbackMessage)
		return
	}
	sess.EndGeneration(&g)
	log.Printf("report generated token=%s report=%s alerts=%d", sess.Token, g.ID, len(g.Alerts))
	writeJSON(w, http.StatusOK, map[string]any{
		"outcome":   wizard.OutcomeGenerate,
		"report":    g,
		"share_url": share.WhatsAppURL(g.Text),
	})
}

// lastReport resolves the session's generated report and the record it was
// generated from, writing a 404 when there is none yet.
func (s *Server) lastReport(w http.ResponseWriter, r *http.Request) (string, report.Data, report.Generated, bool) {
	sess, ok := s.session(w, r)
	if !ok {
		return "", report.Data{}, report.Generated{}, false
	}
	data, g, ok := sess.LastReportData()
	if !ok {
		writeError(w, http.StatusNotFound, "report not ready")
		return "", report.Data{}, report.Generated{}, false
	}
	return sess.Token, data, g, true
}

func (s *Server) handleReportText(w http.ResponseWriter, r *http.Request) {
	_, _, g, ok := s.lastReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(g.Text))
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	if s.pdf == nil {
		writeError(w, http.StatusServiceUnavailable, "pdf renderer unavailable")
		return
	}
	token, data, g, ok := s.lastReport(w, r)
	if !ok {
		return
	}
	pdf, err := s.pdf.Render(r.Context(), data, g)
	if err != nil {
		log.Printf("render report pdf failed token=%s report=%s err=%v", token, g.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to render pdf")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", share.Filename(g, "pdf")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) handleReportXLSX(w http.ResponseWriter, r *http.Request) {
	token, data, g, ok := s.lastReport(w, r)
	if !ok {
		return
	}
	blob, err := share.ExportXLSX(data, g)
	if err != nil {
		log.Printf("export report xlsx failed token=%s report=%s err=%v", token, g.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to export workbook")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", share.Filename(g, "xlsx")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	_, _, g, ok := s.lastReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": share.WhatsAppURL(g.Text)})
}

func (s *Server) handleReminder(w http.ResponseWriter, r *http.Request) {
	if s.reminder == nil {
		writeError(w, http.StatusServiceUnavailable, "reminders disabled")
		return
	}
	st, err := s.reminder.Status()
	if err != nil {
		log.Printf("reminder status failed err=%v", err)
		writeError(w, http.StatusInternalServerError, "failed to read reminder state")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
