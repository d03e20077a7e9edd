// Package api serves the HTTP control interface of a mounted overlay and
// provides a client for it.
//
// All bodies are JSON. Mutations answer with
//
//	{"status": "success"|"error", "message": "..."}
//
// and list_translations with {"translations": [[original, translated], ...]}.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/dendrascience/transfs/store"
	"github.com/dendrascience/transfs/translation"
	"github.com/dendrascience/transfs/version"
)

var logger = log.WithField("component", "api")

// RequestIDHeader carries the id assigned to every request.
const RequestIDHeader = "X-Request-ID"

// Response messages.
const (
	msgAdded           = "Translation added successfully"
	msgRemoved         = "Translation removed successfully"
	msgBackup          = "Backup created successfully"
	msgMissingAdd      = "Missing 'original' or 'translated' in request"
	msgMissingOriginal = "Missing 'original' in request"
	msgMissingQuery    = "Missing query parameter"
	msgInvalidJSON     = "Invalid JSON in request"
	msgNotFound        = "Translation not found"
	msgAddFailed       = "Failed to add translation"
	msgRemoveFailed    = "Failed to remove translation"
	msgBackupFailed    = "Failed to create backup"
	msgNoBackupDir     = "No backup directory configured"
)

// Translator is the set of table operations the control interface exposes.
// *translation.Manager implements it.
type Translator interface {
	Add(original, translated string) error
	Remove(original string) error
	List() []store.Entry
	Lookup(original string) (string, bool, error)
	Originals(translated string) ([]string, error)
	Backup() (string, error)
}

type (
	// StatusResponse is the reply to every mutation and every error.
	StatusResponse struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Path    string `json:"path,omitempty"`
	}

	// ListResponse is the reply to list_translations.
	ListResponse struct {
		Translations [][2]string `json:"translations"`
	}

	// LookupResponse is the reply to translation.
	LookupResponse struct {
		Original   string `json:"original"`
		Translated string `json:"translated"`
	}

	// ReverseResponse is the reply to reverse_translation.
	ReverseResponse struct {
		Translated string   `json:"translated"`
		Originals  []string `json:"originals"`
	}

	// HealthResponse is the reply to healthz.
	HealthResponse struct {
		Status       string `json:"status"`
		Translations int    `json:"translations"`
	}

	addRequest struct {
		Original   *string `json:"original"`
		Translated *string `json:"translated"`
	}

	removeRequest struct {
		Original *string `json:"original"`
	}
)

// Server is the control interface handler.
type Server struct {
	t   Translator
	mux *http.ServeMux
}

// NewServer returns a handler serving t.
func NewServer(t Translator) *Server {
	s := &Server{t: t, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /add_translation", s.handleAdd)
	s.mux.HandleFunc("POST /remove_translation", s.handleRemove)
	s.mux.HandleFunc("GET /list_translations", s.handleList)
	s.mux.HandleFunc("GET /translation", s.handleLookup)
	s.mux.HandleFunc("GET /reverse_translation", s.handleReverse)
	s.mux.HandleFunc("POST /backup", s.handleBackup)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /version", s.handleVersion)
	return s
}

// ServeHTTP tags the request with an id, logs it and dispatches it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	s.mux.ServeHTTP(rec, r)

	logger.WithFields(log.Fields{
		"request_id": id,
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     rec.status,
		"duration":   time.Since(start),
	}).Info("handled request")
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if req.Original == nil || req.Translated == nil {
		writeStatus(w, http.StatusBadRequest, msgMissingAdd)
		return
	}

	err := s.t.Add(*req.Original, *req.Translated)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, StatusResponse{Status: "success", Message: msgAdded})
	case errors.Is(err, translation.ErrInvalidPath):
		writeStatus(w, http.StatusBadRequest, err.Error())
	default:
		writeStatus(w, http.StatusInternalServerError, msgAddFailed)
	}
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if req.Original == nil {
		writeStatus(w, http.StatusBadRequest, msgMissingOriginal)
		return
	}

	err := s.t.Remove(*req.Original)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, StatusResponse{Status: "success", Message: msgRemoved})
	case errors.Is(err, store.ErrNotFound):
		writeStatus(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, translation.ErrInvalidPath):
		writeStatus(w, http.StatusBadRequest, err.Error())
	default:
		writeStatus(w, http.StatusInternalServerError, msgRemoveFailed)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entries := s.t.List()
	resp := ListResponse{Translations: make([][2]string, 0, len(entries))}
	for _, e := range entries {
		resp.Translations = append(resp.Translations, [2]string{e.Original, e.Translated})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	original := r.URL.Query().Get("original")
	if original == "" {
		writeStatus(w, http.StatusBadRequest, msgMissingQuery)
		return
	}
	translated, ok, err := s.t.Lookup(original)
	switch {
	case err != nil:
		writeStatus(w, http.StatusBadRequest, err.Error())
	case !ok:
		writeStatus(w, http.StatusNotFound, msgNotFound)
	default:
		writeJSON(w, http.StatusOK, LookupResponse{Original: original, Translated: translated})
	}
}

func (s *Server) handleReverse(w http.ResponseWriter, r *http.Request) {
	translated := r.URL.Query().Get("translated")
	if translated == "" {
		writeStatus(w, http.StatusBadRequest, msgMissingQuery)
		return
	}
	originals, err := s.t.Originals(translated)
	switch {
	case err != nil:
		writeStatus(w, http.StatusBadRequest, err.Error())
	case len(originals) == 0:
		writeStatus(w, http.StatusNotFound, msgNotFound)
	default:
		writeJSON(w, http.StatusOK, ReverseResponse{Translated: translated, Originals: originals})
	}
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	p, err := s.t.Backup()
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, StatusResponse{Status: "success", Message: msgBackup, Path: p})
	case errors.Is(err, translation.ErrNoBackupDir):
		writeStatus(w, http.StatusConflict, msgNoBackupDir)
	default:
		logger.WithError(err).Error("backup request failed")
		writeStatus(w, http.StatusInternalServerError, msgBackupFailed)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Translations: len(s.t.List())})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.GetInfo())
}

func writeStatus(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, StatusResponse{Status: "error", Message: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Warn("failed to write response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
