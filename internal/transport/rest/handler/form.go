package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"formrunner/internal/model"
	"formrunner/internal/service"
)

// FormHandler handles the form runner endpoints
type FormHandler struct {
	runner *service.RunnerService
	tokens *service.SessionTokenService
}

// NewFormHandler creates a new form handler
func NewFormHandler(runner *service.RunnerService, tokens *service.SessionTokenService) *FormHandler {
	return &FormHandler{
		runner: runner,
		tokens: tokens,
	}
}

// Open handles POST /v1/forms/{quizId}/open
func (h *FormHandler) Open(w http.ResponseWriter, r *http.Request) {
	quizID, ok := quizIDVar(w, r)
	if !ok {
		return
	}

	state, err := h.runner.Open(r.Context(), quizID)
	if err != nil {
		writeRunnerError(w, err)
		return
	}

	token, err := h.tokens.Issue(quizID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue session token")
		return
	}

	writeJSON(w, http.StatusOK, &model.OpenResponse{
		Token: token,
		State: state,
	})
}

// State handles GET /v1/forms/{quizId}
func (h *FormHandler) State(w http.ResponseWriter, r *http.Request) {
	quizID, ok := quizIDVar(w, r)
	if !ok {
		return
	}

	state, err := h.runner.State(r.Context(), quizID)
	if err != nil {
		writeRunnerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// Answer handles POST /v1/forms/{quizId}/answers
func (h *FormHandler) Answer(w http.ResponseWriter, r *http.Request) {
	quizID, ok := quizIDVar(w, r)
	if !ok {
		return
	}

	var req model.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.runner.RecordAnswer(r.Context(), quizID, &req)
	if err != nil {
		writeRunnerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// Next handles POST /v1/forms/{quizId}/next
func (h *FormHandler) Next(w http.ResponseWriter, r *http.Request) {
	quizID, ok := quizIDVar(w, r)
	if !ok {
		return
	}

	state, err := h.runner.Next(r.Context(), quizID)
	if err != nil {
		writeRunnerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// Back handles POST /v1/forms/{quizId}/back
func (h *FormHandler) Back(w http.ResponseWriter, r *http.Request) {
	quizID, ok := quizIDVar(w, r)
	if !ok {
		return
	}

	state, err := h.runner.Back(r.Context(), quizID)
	if err != nil {
		writeRunnerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// Finalize handles POST /v1/forms/{quizId}/finalize
func (h *FormHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	quizID, ok := quizIDVar(w, r)
	if !ok {
		return
	}

	var req model.FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.runner.Finalize(r.Context(), quizID, &req)
	if err != nil {
		writeRunnerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// Journal handles GET /v1/forms/{quizId}/journal
func (h *FormHandler) Journal(w http.ResponseWriter, r *http.Request) {
	quizID, ok := quizIDVar(w, r)
	if !ok {
		return
	}

	entries, err := h.runner.Journal(r.Context(), quizID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func quizIDVar(w http.ResponseWriter, r *http.Request) (int64, bool) {
	quizID, err := strconv.ParseInt(mux.Vars(r)["quizId"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid quiz id")
		return 0, false
	}
	return quizID, true
}

// writeRunnerError maps service errors onto HTTP statuses
func writeRunnerError(w http.ResponseWriter, err error) {
	var ue *service.UpstreamError
	switch {
	case errors.Is(err, service.ErrQuestionNotFound),
		errors.Is(err, service.ErrOptionNotFound),
		errors.Is(err, service.ErrAnswerKindMismatch),
		errors.Is(err, service.ErrInvalidEmail):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrInterviewOver),
		errors.Is(err, service.ErrNoActiveQuestion),
		errors.Is(err, service.ErrNotAtFinalization):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &ue):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
