package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-go-golems/rehearsal/pkg/followup"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type followUpQuestionCreate struct {
	FollowUpQuestion string `json:"follow_up_question"`
}

type responseCreate struct {
	ExpectedResponse  string                   `json:"expected_response"`
	FollowUpQuestions []followUpQuestionCreate `json:"follow_up_questions"`
}

func (s *Server) handleCreateResponse(w http.ResponseWriter, r *http.Request) {
	var req responseCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	questions := make([]string, 0, len(req.FollowUpQuestions))
	for _, q := range req.FollowUpQuestions {
		questions = append(questions, q.FollowUpQuestion)
	}

	created, err := s.store.Create(r.Context(), req.ExpectedResponse, questions)
	if errors.Is(err, followup.ErrEmptyResponse) {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Could not store response")
		jsonError(w, "failed to store response", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "responseID"), 10, 64)
	if err != nil {
		jsonError(w, "response id must be an integer", http.StatusBadRequest)
		return
	}

	resp, err := s.store.Get(r.Context(), id)
	if errors.Is(err, followup.ErrNotFound) {
		jsonError(w, "Response not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("response_id", id).Msg("Could not load response")
		jsonError(w, "failed to load response", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"detail": msg})
}
