package web

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/ArticleImport/internal/core"
	"github.com/JonMunkholm/ArticleImport/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"commits": s.service.LimiterStatus(),
	})
}

// handleSchema lists the target fields with labels, types and required flags.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"fields":     core.TargetSchema,
		"transforms": core.Transforms,
	})
}

func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := s.service.Branches(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, branches)
}

// handleTemplate downloads the import template. Query: format=csv|xlsx.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	format := core.TemplateFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = core.TemplateCSV
	}

	var buf bytes.Buffer
	if err := core.WriteTemplate(&buf, format); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	contentType := "text/csv; charset=utf-8"
	if format == core.TemplateXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", core.TemplateFileName(format)))
	w.Write(buf.Bytes())
}

// handleImportHistory returns recent commit runs. Query: limit.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", store.DefaultHistoryLimit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if s.history == nil {
		writeJSON(w, http.StatusOK, []core.ImportRun{})
		return
	}

	runs, err := s.history.ListImportRuns(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []core.ImportRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleQueueStatus reports commit slot usage.
func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}
