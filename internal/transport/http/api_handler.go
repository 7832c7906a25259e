package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"careerprep/internal/app"
	"careerprep/internal/coverletter"
	"careerprep/internal/domain"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// APIHandler serves the JSON endpoints for history, stats and cover letters.
type APIHandler struct {
	quiz     *app.QuizService
	letters  *app.CoverLetterService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewAPIHandler(quiz *app.QuizService, letters *app.CoverLetterService, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		quiz:     quiz,
		letters:  letters,
		validate: validator.New(),
		logger:   logger,
	}
}

type createLetterRequest struct {
	UserID  string `json:"userId" validate:"required"`
	Content string `json:"content" validate:"max=20000"`
}

type draftRequest struct {
	Content string `json:"content" validate:"max=20000"`
}

type modeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=preview edit"`
}

// Register mounts the handler's routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /users/{userId}/stats", h.stats)
	mux.HandleFunc("GET /users/{userId}/assessments", h.assessments)
	mux.HandleFunc("POST /cover-letters", h.createLetter)
	mux.HandleFunc("GET /cover-letters/{id}", h.openLetter)
	mux.HandleFunc("PUT /cover-letters/{id}/draft", h.editLetter)
	mux.HandleFunc("PUT /cover-letters/{id}/mode", h.setMode)
	mux.HandleFunc("GET /cover-letters/{id}/preview", h.preview)
	mux.HandleFunc("POST /cover-letters/{id}/save", h.saveLetter)
	mux.HandleFunc("GET /cover-letters/{id}/pdf", h.exportLetter)
}

func (h *APIHandler) stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.quiz.Stats(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *APIHandler) assessments(w http.ResponseWriter, r *http.Request) {
	records, err := h.quiz.History(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if records == nil {
		records = []domain.AssessmentRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *APIHandler) createLetter(w http.ResponseWriter, r *http.Request) {
	var req createLetterRequest
	if !h.decode(w, r, &req) {
		return
	}
	letter, err := h.letters.Create(r.Context(), req.UserID, req.Content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, letter)
}

func (h *APIHandler) openLetter(w http.ResponseWriter, r *http.Request) {
	draft, err := h.letters.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *APIHandler) editLetter(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if !h.decode(w, r, &req) {
		return
	}
	draft, err := h.letters.Edit(r.Context(), r.PathValue("id"), req.Content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *APIHandler) setMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !h.decode(w, r, &req) {
		return
	}
	draft, err := h.letters.SetMode(r.Context(), r.PathValue("id"), coverletter.Mode(req.Mode))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *APIHandler) preview(w http.ResponseWriter, r *http.Request) {
	page, err := h.letters.Preview(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

func (h *APIHandler) saveLetter(w http.ResponseWriter, r *http.Request) {
	letter, err := h.letters.Save(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, letter)
}

func (h *APIHandler) exportLetter(w http.ResponseWriter, r *http.Request) {
	doc, err := h.letters.Export(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrCoverLetterNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidMode), errors.Is(err, domain.ErrInvalidOption), errors.Is(err, domain.ErrNoAnswer):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotActive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGeneration), errors.Is(err, domain.ErrRender):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorPayload{Message: message})
}
