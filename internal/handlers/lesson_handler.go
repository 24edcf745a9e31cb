package handlers

import (
	"net/http"

	"trainingtracker/internal/models"
	"trainingtracker/internal/service"
	"trainingtracker/internal/utils"
)

// LessonHandler handles lesson and module progress HTTP requests
type LessonHandler struct {
	progressService *service.ProgressService
}

// NewLessonHandler creates a new lesson handler
func NewLessonHandler(progressService *service.ProgressService) *LessonHandler {
	return &LessonHandler{progressService: progressService}
}

// ViewLesson records that the caller opened a lesson
func (h *LessonHandler) ViewLesson(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}

	lessonID, err := utils.ParseID("lesson_id", r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	view, err := h.progressService.RecordLessonView(r.Context(), identity, lessonID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// CompleteLesson marks a lesson complete and reports the resulting module status
func (h *LessonHandler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}

	lessonID, err := utils.ParseID("lesson_id", r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	completion, err := h.progressService.CompleteLesson(r.Context(), identity, lessonID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, completion)
}

// ModuleProgress shows the caller's progress in one module
func (h *LessonHandler) ModuleProgress(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}

	moduleID, err := utils.ParseID("module_id", r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	view, err := h.progressService.GetModuleProgress(r.Context(), identity, moduleID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// MyProgress lists every module the caller has started
func (h *LessonHandler) MyProgress(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}

	list, err := h.progressService.ListProgress(r.Context(), identity)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	if list == nil {
		list = []models.ModuleProgressWithTitle{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"modules": list})
}
