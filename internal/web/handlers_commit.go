package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/ArticleImport/internal/core"
	"github.com/JonMunkholm/ArticleImport/internal/logging"
	"github.com/JonMunkholm/ArticleImport/internal/web/templates"
)

// CommitResultResponse is the JSON shape of a finished commit run.
type CommitResultResponse struct {
	Outcome core.CommitOutcome `json:"outcome"`
	Summary string             `json:"summary"`
	Result  *core.CommitResult `json:"result"`
	Error   string             `json:"error,omitempty"`
	Code    string             `json:"code,omitempty"`
}

// handleStartCommit starts the commit in the background. The body is an
// optional core.Selection; an empty body imports all rows.
func (s *Server) handleStartCommit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sel := core.Selection{Mode: core.SelectAll}
	if r.ContentLength != 0 {
		if !s.decodeJSON(w, r, &sel) {
			return
		}
	}

	if err := s.service.StartCommit(r.Context(), id, sel); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.ForSession(r.Context(), id).Info("commit accepted", "mode", sel.Mode, "selected", len(sel.Rows))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":   "started",
		"progress": "/api/imports/" + id + "/progress",
		"result":   "/api/imports/" + id + "/result",
	})
}

// handleCommitProgress streams commit progress via Server-Sent Events.
// Supports resumption via the lastEventId query parameter; the event id is
// the number of rows attempted.
func (s *Server) handleCommitProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID := -1
	if lastEventIDStr != "" {
		if n, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = n
		}
	}

	progressCh, err := s.service.SubscribeProgress(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, fmt.Errorf("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				s.writeCompleteEvent(w, r, id)
				flusher.Flush()
				return
			}

			if progress.Attempted <= lastEventID {
				continue
			}
			lastEventID = progress.Attempted

			data, _ := json.Marshal(struct {
				core.CommitProgress
				Percent int `json:"percent"`
			}{progress, progress.Percent()})
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Attempted, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// writeCompleteEvent sends the final result once the progress channel closes.
func (s *Server) writeCompleteEvent(w http.ResponseWriter, r *http.Request, id string) {
	result, err := s.service.CommitResult(r.Context(), id)
	data, _ := json.Marshal(resultResponse(result, err))
	fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
}

// handleCommitResult waits for the commit to finish and returns its result.
// HTMX clients receive a notice fragment instead of JSON.
func (s *Server) handleCommitResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.CommitResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil && result == nil {
		s.respondError(w, r, err)
		return
	}

	resp := resultResponse(result, err)
	if isHTMX(r) {
		level, title := noticeFor(resp.Outcome, err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if rerr := templates.Notice(level, title, resp.Summary).Render(r.Context(), w); rerr != nil {
			logging.FromContext(r.Context()).Error("render notice", "error", rerr)
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelCommit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.CancelCommit(id); err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.ForSession(r.Context(), id).Info("commit cancel requested")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func resultResponse(result *core.CommitResult, err error) CommitResultResponse {
	resp := CommitResultResponse{Result: result}
	if result != nil {
		resp.Outcome = result.Outcome()
		resp.Summary = core.CommitSummary(result)
	}
	if err != nil {
		msg := core.MapError(err)
		resp.Error = msg.Message
		resp.Code = msg.Code
	}
	return resp
}

// noticeFor picks the notice level and title for a finished run.
func noticeFor(outcome core.CommitOutcome, err error) (level, title string) {
	if err != nil {
		return "info", "Import stopped"
	}
	switch outcome {
	case core.OutcomeComplete:
		return "success", "Import complete"
	case core.OutcomeNothing:
		return "info", "Nothing imported"
	case core.OutcomePartial:
		return "error", "Import partially complete"
	default:
		return "error", "Import failed"
	}
}
