package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/nao1215/vectorize/internal/crawler"
	"github.com/nao1215/vectorize/internal/pipeline"
	"github.com/nao1215/vectorize/internal/plot"
	"github.com/nao1215/vectorize/internal/report"
	"github.com/nao1215/vectorize/internal/session"
)

// CrawlRequest is the body of POST /api/sessions/{id}/crawl.
type CrawlRequest struct {
	URL        string `json:"url"`
	MaxPages   *int   `json:"max_pages,omitempty"`
	SameDomain *bool  `json:"same_domain,omitempty"`
}

// SessionResponse is returned when a session is opened.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// CrawlResponse is returned by a crawl.
type CrawlResponse struct {
	Status string `json:"status"`
	Pages  int    `json:"pages"`
}

// VectorizeResponse is returned by vectorize.
type VectorizeResponse struct {
	Status   string `json:"status"`
	Embedded int    `json:"embedded"`
	Degraded int    `json:"degraded"`
}

// VisualizeResponse holds the figures keyed by "pca_2d", "umap_3d" and so on.
type VisualizeResponse struct {
	Status  string                  `json:"status"`
	Figures map[string]*plot.Figure `json:"figures"`
}

// errNoRun is returned for a session that has not crawled yet.
var errNoRun = errors.New("nothing crawled in this session yet")

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.store.Create()
	s.respondWithJSON(w, http.StatusCreated, SessionResponse{SessionID: sess.ID})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.store.Delete(chi.URLParam(r, "id")) {
		s.respondWithError(w, http.StatusNotFound, session.ErrNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req CrawlRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := crawler.ParseSeed(req.URL); err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxPages := s.defaultMaxPages
	if req.MaxPages != nil {
		maxPages = *req.MaxPages
	}
	if maxPages < 1 || maxPages > s.maxPagesLimit {
		s.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("max_pages must be between 1 and %d", s.maxPagesLimit))
		return
	}
	sameDomain := true
	if req.SameDomain != nil {
		sameDomain = *req.SameDomain
	}

	var pages int
	err := sess.Do(func(*session.Run) (*session.Run, error) {
		run := session.NewRun(req.URL)
		step := pipeline.NewCrawlStep(s.newCrawler(req.URL, maxPages, sameDomain))
		err := s.execute(r, run, step)
		pages = len(run.Records)
		return run, err
	})
	if err != nil {
		s.respondWithStepError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, CrawlResponse{Status: report.StatusSuccess, Pages: pages})
}

func (s *Server) handleVectorize(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var resp VectorizeResponse
	err := sess.Do(func(run *session.Run) (*session.Run, error) {
		if run == nil {
			return nil, errNoRun
		}
		err := s.execute(r, run, pipeline.NewEmbedStep(s.embedder))
		resp = VectorizeResponse{
			Status:   report.StatusSuccess,
			Embedded: len(run.Embedded),
			Degraded: run.Degraded(),
		}
		return nil, err
	})
	if err != nil {
		s.respondWithStepError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVisualize(w http.ResponseWriter, r *http.Request) {
	figures, ok := s.figures(w, r)
	if !ok {
		return
	}
	s.respondWithJSON(w, http.StatusOK, VisualizeResponse{Status: report.StatusSuccess, Figures: figures})
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	figures, ok := s.figures(w, r)
	if !ok {
		return
	}

	figs := make([]*plot.Figure, 0, len(figures))
	for _, key := range slices.Sorted(maps.Keys(figures)) {
		figs = append(figs, figures[key])
	}

	var buf bytes.Buffer
	if err := plot.RenderHTML(&buf, figs...); err != nil {
		s.logger.Error("failed to render plot page", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "could not render plot")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var export *report.Export
	err := sess.View(func(run *session.Run) error {
		if run == nil {
			return errNoRun
		}
		export = report.NewExport(run.Target, run.Records)
		return nil
	})
	if err != nil {
		s.respondWithStepError(w, err)
		return
	}

	var (
		buf         bytes.Buffer
		writer      report.Writer
		contentType string
	)
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writer, contentType = report.NewJSONWriter(&buf), "application/json"
	case "csv":
		writer, contentType = report.NewCSVWriter(&buf), "text/csv; charset=utf-8"
	case "markdown", "md":
		writer, contentType = report.NewMarkdownWriter(&buf), "text/markdown; charset=utf-8"
	default:
		s.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q: use json, csv or markdown", format))
		return
	}

	if _, err := writer.Write(export); err != nil {
		s.logger.Error("failed to write export", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "could not write export")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// figures returns the session's figures, building them first if needed.
func (s *Server) figures(w http.ResponseWriter, r *http.Request) (map[string]*plot.Figure, bool) {
	sess, ok := s.session(w, r)
	if !ok {
		return nil, false
	}

	var figures map[string]*plot.Figure
	err := sess.Do(func(run *session.Run) (*session.Run, error) {
		if run == nil {
			return nil, errNoRun
		}
		if len(run.Figures) == 0 {
			opts := append(slices.Clone(s.visualizeOpts), pipeline.WithVisualizeLogger(s.logger))
			step := pipeline.NewVisualizeStep(s.reducer, opts...)
			if err := s.execute(r, run, step); err != nil && len(run.Figures) == 0 {
				return nil, err
			}
		}
		figures = run.Figures
		return nil, nil
	})
	if err != nil {
		s.respondWithStepError(w, err)
		return nil, false
	}
	return figures, true
}

// execute runs one step through a pipeline so that failures are logged
// and recorded in the run.
func (s *Server) execute(r *http.Request, run *session.Run, step pipeline.Step) error {
	return pipeline.New([]pipeline.Step{step}, pipeline.WithLogger(s.logger)).Execute(r.Context(), run)
}

// session resolves the {id} path parameter, writing 404 when unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondWithError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return sess, true
}

// respondWithStepError maps pipeline and session errors to status codes.
func (s *Server) respondWithStepError(w http.ResponseWriter, err error) {
	var seedErr *crawler.InvalidSeedError
	switch {
	case errors.Is(err, session.ErrBusy):
		s.respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errNoRun), errors.Is(err, pipeline.ErrNoRecords), errors.Is(err, pipeline.ErrNoEmbeddings):
		s.respondWithError(w, http.StatusConflict, err.Error())
	case errors.As(err, &seedErr):
		s.respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"status": "error", "error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		code = http.StatusInternalServerError
		response = []byte(`{"status":"error","error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
