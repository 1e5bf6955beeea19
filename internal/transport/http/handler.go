package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"classroom-activity-service/internal/app"
	"classroom-activity-service/internal/domain"
)

// Handler exposes the activity use cases over HTTP. Authentication is an
// external collaborator: the identity proxy in front of this service
// asserts the caller through the X-User-Id and X-User-Role headers.
type Handler struct {
	service *app.ActivityService
}

func NewHandler(service *app.ActivityService) *Handler {
	return &Handler{service: service}
}

// Register mounts all activity routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/activities", h.createActivity)
	mux.HandleFunc("GET /api/activities", h.listActivities)
	mux.HandleFunc("GET /api/activities/{id}", h.getActivity)
	mux.HandleFunc("DELETE /api/activities/{id}", h.deleteActivity)
	mux.HandleFunc("POST /api/activities/{id}/open", h.transition(h.service.OpenActivity))
	mux.HandleFunc("POST /api/activities/{id}/close", h.transition(h.service.CloseActivity))
	mux.HandleFunc("POST /api/activities/{id}/start", h.transition(h.service.StartActivity))
	mux.HandleFunc("POST /api/activities/{id}/hide", h.transition(h.service.HideActivity))
	mux.HandleFunc("POST /api/activities/{id}/show", h.transition(h.service.ShowActivity))
	mux.HandleFunc("GET /api/activities/{id}/questions", h.getProgress)
	mux.HandleFunc("GET /api/activities/{id}/questions/{pos}", h.getQuestion)
	mux.HandleFunc("POST /api/activities/{id}/questions/{pos}", h.submitAnswer)
	mux.HandleFunc("GET /api/activities/{id}/results", h.getResults)
	mux.HandleFunc("GET /api/activities/{id}/progression", h.getProgression)
}

type createActivityRequest struct {
	RosterID            string  `json:"rosterId"`
	QuizID              string  `json:"quizId"`
	Duration            int     `json:"duration"`
	ShuffleQuestions    bool    `json:"shuffleQuestions"`
	ShufflePropositions bool    `json:"shufflePropositions"`
	Seed                *uint32 `json:"seed,omitempty"`
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req createActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput("malformed request body"))
		return
	}

	activity, err := h.service.CreateActivity(r.Context(), app.CreateActivityParams{
		OwnerID:             caller.id,
		RosterID:            req.RosterID,
		QuizID:              req.QuizID,
		Duration:            req.Duration,
		ShuffleQuestions:    req.ShuffleQuestions,
		ShufflePropositions: req.ShufflePropositions,
		Seed:                req.Seed,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	activities, err := h.service.ListActivities(r.Context(), caller.id, caller.role, app.ListOptions{
		RosterID:  r.URL.Query().Get("roster_id"),
		OwnedOnly: r.URL.Query().Get("owned") == "true",
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(activities),
		"activities": activities,
	})
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.service.GetActivity(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteActivity(r.Context(), r.PathValue("id"), caller.id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transition(op func(ctx context.Context, activityID, callerID string) (domain.Activity, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := h.caller(w, r)
		if !ok {
			return
		}
		activity, err := op(r.Context(), r.PathValue("id"), caller.id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, activity)
	}
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	progress, err := h.service.GetProgress(r.Context(), r.PathValue("id"), caller.id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) getQuestion(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	position, err := strconv.Atoi(r.PathValue("pos"))
	if err != nil {
		writeError(w, domain.ErrInvalidInput("question position must be an integer"))
		return
	}
	view, err := h.service.GetQuestion(r.Context(), r.PathValue("id"), caller.id, position)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type submitAnswerRequest struct {
	Answer json.RawMessage `json:"answer"`
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	position, err := strconv.Atoi(r.PathValue("pos"))
	if err != nil {
		writeError(w, domain.ErrInvalidInput("question position must be an integer"))
		return
	}

	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput("malformed request body"))
		return
	}

	activityID := r.PathValue("id")
	view, err := h.service.GetQuestion(r.Context(), activityID, caller.id, position)
	if err != nil {
		writeError(w, err)
		return
	}

	answer, err := h.service.SubmitAnswer(r.Context(), activityID, caller.id, view.ID, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answerId":  answer.ID,
		"answer":    answer.Value,
		"isCorrect": answer.IsCorrect,
	})
}

func (h *Handler) getResults(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	results, err := h.service.GetResults(r.Context(), r.PathValue("id"), caller.id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) getProgression(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	results, err := h.service.GetProgression(r.Context(), r.PathValue("id"), caller.id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

type callerIdentity struct {
	id   string
	role domain.Role
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (callerIdentity, bool) {
	id := r.Header.Get("X-User-Id")
	if id == "" {
		writeError(w, domain.ErrUnauthorized("missing caller identity"))
		return callerIdentity{}, false
	}
	role := domain.Role(r.Header.Get("X-User-Role"))
	if role != domain.RoleTeacher && role != domain.RoleStudent {
		role = domain.RoleStudent
	}
	return callerIdentity{id: id, role: role}, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := domain.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case domain.CodeUnauthorized:
		status = http.StatusForbidden
	case domain.CodeInvalidState, domain.CodeInvalidInput:
		status = http.StatusBadRequest
	case domain.CodeNotFound:
		status = http.StatusNotFound
	}
	if code == domain.CodeStorageFailure {
		log.Printf("storage failure: %v", err)
	}
	writeJSON(w, status, map[string]string{
		"message": err.Error(),
		"error":   string(code),
	})
}
