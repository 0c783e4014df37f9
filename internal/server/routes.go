package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/personaflow/internal/engine"
	"github.com/lazypower/personaflow/internal/persona"
	"github.com/lazypower/personaflow/internal/store"
)

func decodeEvent(w http.ResponseWriter, r *http.Request) (engine.Event, bool) {
	var ev engine.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return ev, false
	}
	return ev, true
}

func (s *Server) handleRequestHook(w http.ResponseWriter, r *http.Request) {
	ev, ok := decodeEvent(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.BeforeRequest(r.Context(), ev))
}

func (s *Server) handleResponseHook(w http.ResponseWriter, r *http.Request) {
	ev, ok := decodeEvent(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("sync") == "true" {
		ctx, cancel := context.WithTimeout(r.Context(), s.hookTimeout)
		defer cancel()
		writeJSON(w, http.StatusOK, s.engine.AfterResponse(ctx, ev))
		return
	}

	// The host has already replied to the user; finish off the request path.
	reqID := middleware.GetReqID(r.Context())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.hookTimeout)
		defer cancel()
		out := s.engine.AfterResponse(ctx, ev)
		s.log.Debug("response hook done", "request_id", reqID, "event_id", out.EventID,
			"count", out.Count, "triggered", out.Triggered, "merged", out.Merged)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type impressionView struct {
	UserID        string  `json:"user_id"`
	Name          string  `json:"name"`
	Relationship  *string `json:"relationship"`
	Impression    *string `json:"impression"`
	DialogueCount int     `json:"dialogue_count"`
	UpdatedAt     int64   `json:"updated_at"`
}

func (s *Server) handleListImpressions(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.Impressions(r.Context())
	if err != nil {
		s.log.Error("list impressions", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]impressionView, 0, len(list))
	for _, imp := range list {
		views = append(views, impressionView{
			UserID:        imp.UserID,
			Name:          imp.Name,
			Relationship:  imp.Relationship,
			Impression:    imp.Impression,
			DialogueCount: imp.DialogueCount,
			UpdatedAt:     imp.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"impressions": views,
		"report":      persona.FormatReport(list),
	})
}

func (s *Server) handleDeleteImpression(w http.ResponseWriter, r *http.Request) {
	userID, err := pathParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	err = s.engine.DeleteImpression(r.Context(), userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "no record for user "+userID)
	case err != nil:
		s.log.Error("delete impression", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "user_id": userID})
	}
}

func (s *Server) handleDynamicPersona(w http.ResponseWriter, r *http.Request) {
	id := s.engine.PersonaID()
	if id == "" {
		writeError(w, http.StatusNotFound, "personas_name is not configured")
		return
	}

	prompt, ok, err := s.engine.DynamicPrompt(r.Context())
	if err != nil {
		s.log.Error("dynamic persona", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no dynamic prompt for "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"persona_id": id, "system_prompt": prompt})
}

// pathParam returns the decoded URL parameter. chi matches on RawPath when
// the request carried escapes, leaving the parameter still encoded.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}
