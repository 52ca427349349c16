package dialog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"medical-triage/internal/catalog"
	"medical-triage/internal/platform/web"
	"medical-triage/internal/story"
	"medical-triage/internal/symptom"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type StartRequest struct {
	Text string `json:"text"`
}

type AnswerRequest struct {
	DialogID string `json:"dialogId"`
	Key      string `json:"key"`
	Answer   string `json:"answer"`
}

type SaveRequest struct {
	DialogID string `json:"dialogId"`
	UserID   string `json:"userId"`
}

type ExtractResponse struct {
	Instances []symptom.Observation `json:"instances"`
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid request")
		return
	}

	state, err := h.svc.Start(r.Context(), req.Text)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid request")
		return
	}

	state, err := h.svc.Next(r.Context(), req.DialogID, req.Key, req.Answer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid request")
		return
	}

	st, err := h.svc.Save(r.Context(), req.DialogID, req.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, st)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.Get(r.Context(), chi.URLParam(r, "dialogID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid request")
		return
	}

	obs, err := h.svc.Extract(r.Context(), req.Text)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, ExtractResponse{Instances: obs})
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		web.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		web.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, story.ErrAlreadyArchived):
		web.WriteError(w, http.StatusConflict, err.Error())
	default:
		web.InternalError(w, r, err)
	}
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/dialog/start", h.Start)
	r.Post("/dialog/answer", h.Answer)
	r.Post("/dialog/save", h.Save)
	r.Get("/dialog/{dialogID}", h.Get)
	r.Post("/symptoms/extract", h.Extract)
}
