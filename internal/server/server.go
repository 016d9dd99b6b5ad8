package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"readit/internal/app"
	"readit/internal/extract"
	"readit/internal/ratelimit"
	"readit/internal/util"
	"readit/pkg/tts"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Limiter        *ratelimit.FixedWindowLimiter
	MaxUploadBytes int64
}

// Server exposes HTTP endpoints for the reading assistant.
type Server struct {
	app            *app.App
	limiter        *ratelimit.FixedWindowLimiter
	mux            *http.ServeMux
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires an app")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 * 1024 * 1024
	}
	s := &Server{
		app:            cfg.App,
		limiter:        cfg.Limiter,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("readit", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/upload", s.handleUpload)
	s.mux.HandleFunc("/api/voices", s.handleVoices)
	s.mux.Handle("/api/tts", s.withBudget("tts", s.handleTTS))
	s.mux.Handle("/api/ask", s.withBudget("ask", s.handleAsk))
	s.mux.HandleFunc("/api/session/", s.handleSession)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withBudget gates provider-cost endpoints behind the rate limiter.
func (s *Server) withBudget(key string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	result, err := s.app.UploadDocument(r.Context(), header.Filename, file, header.Size)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"voices":  tts.SupportedVoices,
		"default": tts.DefaultVoice,
	})
}

type ttsRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

// handleTTS synthesizes (or serves from cache) audio for a text snippet and
// streams the WAV artifact back.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req ttsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	path, err := s.app.SynthesizeSpeech(r.Context(), req.Text, req.VoiceID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}

type askRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Context   string `json:"context"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" ||
		strings.TrimSpace(req.Question) == "" ||
		strings.TrimSpace(req.Context) == "" {
		writeError(w, http.StatusBadRequest, "session_id, question and context are required")
		return
	}
	answer := s.app.Ask(r.Context(), req.Question, req.Context)
	writeJSON(w, http.StatusOK, map[string]string{"response": answer})
}

// /api/session/{id} plus the bookmark, offline and document sub-resources.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/session/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "bookmark":
			s.handleBookmark(w, r, id)
		case "offline":
			s.handleOffline(w, r, id)
		case "document":
			s.handleDocument(w, r, id)
		default:
			notFound(w, "not found")
		}
		return
	}
	switch r.Method {
	case http.MethodGet:
		session, err := s.app.GetSession(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session.Summary())
	case http.MethodPut:
		var fields map[string]any
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&fields); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		session, err := s.app.UpdateSession(id, fields)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session.Summary())
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleBookmark(w http.ResponseWriter, r *http.Request, sessionID string) {
	switch r.Method {
	case http.MethodPost:
		var in app.BookmarkInput
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		bookmark, err := s.app.AddBookmark(sessionID, in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, bookmark)
	case http.MethodGet:
		bookmarks, err := s.app.ListBookmarks(sessionID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": bookmarks,
			"count": len(bookmarks),
		})
	case http.MethodDelete:
		bookmarkID := strings.TrimSpace(r.URL.Query().Get("bookmark_id"))
		if bookmarkID == "" {
			writeError(w, http.StatusBadRequest, "bookmark_id is required")
			return
		}
		if err := s.app.DeleteBookmark(bookmarkID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleOffline(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.limiter != nil && !s.limiter.Allow("tts") {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	count, err := s.app.PrepareOffline(r.Context(), sessionID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"cached_segments": count,
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	url, filename, err := s.app.DocumentURL(r.Context(), sessionID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url":      url,
		"filename": filename,
	})
}

// writeAppError maps application errors onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	var unsupported *extract.UnsupportedFormatError
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		notFound(w, "session not found")
	case errors.As(err, &unsupported):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrValidation),
		errors.Is(err, extract.ErrDecode),
		errors.Is(err, extract.ErrExtraction),
		errors.Is(err, tts.ErrInvalidVoice):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tts.ErrSynthesis):
		writeError(w, http.StatusBadGateway, "speech synthesis failed")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCode(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCode(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "session not found":
		return "SESSION_NOT_FOUND"
	case message == "rate limit exceeded":
		return "RATE_LIMIT_EXCEEDED"
	case strings.Contains(message, "file is required"):
		return "DOCUMENT_FILE_REQUIRED"
	case strings.Contains(message, "unsupported"):
		return "DOCUMENT_UNSUPPORTED_FORMAT"
	case message == "invalid form data":
		return "DOCUMENT_INVALID_UPLOAD_FORM"
	case message == "invalid json body":
		return "REQUEST_INVALID_BODY"
	case strings.Contains(message, "invalid voice"):
		return "TTS_INVALID_VOICE"
	case message == "speech synthesis failed":
		return "TTS_PROVIDER_FAILED"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "RATE_LIMIT_EXCEEDED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
