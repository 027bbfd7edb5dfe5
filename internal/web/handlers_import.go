package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/ArticleImport/internal/core"
	"github.com/JonMunkholm/ArticleImport/internal/logging"
)

// multipartOverhead leaves room for form boundaries and headers on top of
// the file size limit.
const multipartOverhead = 1 << 20

// mappingRequest is the body of PUT /api/imports/{id}/mappings.
type mappingRequest struct {
	Source    string         `json:"source" validate:"required"`
	Target    string         `json:"target" validate:"required"`
	Transform core.Transform `json:"transform"`
}

// handleStartImport accepts a multipart upload in the "file" field, parses
// it and opens an import session.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, &core.ParseError{Kind: core.ParseTooLarge, Err: err})
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondErrorStatus(w, r, errors.New("no file provided"), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	view, err := s.service.StartSession(r.Context(), header.Filename, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDiscardImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.DiscardSession(id); err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.ForSession(r.Context(), id).Info("import session discarded")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateMapping(w http.ResponseWriter, r *http.Request) {
	var req mappingRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	view, err := s.service.UpdateMapping(chi.URLParam(r, "id"), req.Source, req.Target, req.Transform)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRemoveMapping(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.RemoveMapping(chi.URLParam(r, "id"), chi.URLParam(r, "source"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSetConfiguration(w http.ResponseWriter, r *http.Request) {
	var cfg core.ImportConfiguration
	if !s.decodeJSON(w, r, &cfg) {
		return
	}

	view, err := s.service.SetConfiguration(r.Context(), chi.URLParam(r, "id"), cfg)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Validate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handlePreview returns a page of rows.
// Query: filter (all|valid|errors|warnings|duplicates), offset, limit.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter, err := core.ParsePreviewFilter(q.Get("filter"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", core.DefaultPreviewLimit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp, err := s.service.Preview(chi.URLParam(r, "id"), filter, offset, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeJSON reads a JSON body into v and checks its validate tags. On
// failure it writes a 400 response and returns false.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: decode body: %v", errBadRequest, err))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}

// intParam parses a non-negative integer query parameter.
func intParam(r *http.Request, name string, defaultVal int) (int, error) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, name)
	}
	return i, nil
}
