package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/matozai/scribe/internal/auth"
	"github.com/matozai/scribe/internal/blob"
	"github.com/matozai/scribe/internal/session"
)

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing user")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	in, err := decodeCreateInput(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.sessions.Create(r.Context(), userID, in)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

func decodeCreateInput(r *http.Request) (session.CreateInput, error) {
	var in session.CreateInput

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var body struct {
			Text     string  `json:"text"`
			Duration float64 `json:"duration"`
			Script   string  `json:"script"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return in, fmt.Errorf("decode body: %w", err)
		}
		in.Text = body.Text
		in.Duration = body.Duration
		in.Script = session.Script(body.Script)
		return in, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return in, fmt.Errorf("parse form: %w", err)
	}

	in.Text = r.FormValue("text")
	in.Script = session.Script(r.FormValue("script"))
	if raw := r.FormValue("duration"); raw != "" {
		duration, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return in, fmt.Errorf("duration must be a number, got %q", raw)
		}
		in.Duration = duration
	}

	file, header, err := r.FormFile("audioBlob")
	switch {
	case err == nil:
		defer func() { _ = file.Close() }()
		data, err := io.ReadAll(file)
		if err != nil {
			return in, fmt.Errorf("read audio: %w", err)
		}
		in.AudioData = data
		in.AudioName = header.Filename
	case errors.Is(err, http.ErrMissingFile):
		// Text-only session.
	default:
		return in, fmt.Errorf("audio part: %w", err)
	}

	return in, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	q := r.URL.Query()
	query := session.ListQuery{
		SortBy: session.SortField(q.Get("sortBy")),
		Order:  session.SortOrder(q.Get("order")),
	}
	query.Page, _ = strconv.Atoi(q.Get("page"))
	query.Limit, _ = strconv.Atoi(q.Get("limit"))

	page, err := s.sessions.List(r.Context(), userID, query)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	stats, err := s.sessions.Stats(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	sess, err := s.sessions.Get(r.Context(), userID, id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var body struct {
		Text   *string `json:"text"`
		Script *string `json:"script"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode body: %v", err))
		return
	}

	in := session.UpdateInput{Text: body.Text}
	if body.Script != nil {
		script := session.Script(*body.Script)
		in.Script = &script
	}

	sess, err := s.sessions.Update(r.Context(), userID, id, in)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := s.sessions.Remove(r.Context(), userID, id); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Session deleted successfully"})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	data, contentType, err := s.sessions.GetAudio(r.Context(), userID, id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
}

func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid session id")
		return "", false
	}
	return id, true
}

// writeError maps service errors onto HTTP statuses. Anything without a
// sentinel is a 500 and gets logged; sentinel errors are the caller's
// problem and are not.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var maxBytes *http.MaxBytesError

	switch {
	case errors.Is(err, session.ErrInvalid):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, session.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.As(err, &maxBytes):
		writeJSONError(w, http.StatusRequestEntityTooLarge, "upload too large")
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
