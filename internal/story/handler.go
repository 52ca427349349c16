package story

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"medical-triage/internal/platform/web"
)

type Handler struct {
	archive Archiver
}

func NewHandler(archive Archiver) *Handler {
	return &Handler{archive: archive}
}

func (h *Handler) GetStory(w http.ResponseWriter, r *http.Request) {
	dialogID := chi.URLParam(r, "dialogID")

	st, err := h.archive.GetByDialogID(r.Context(), dialogID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			web.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		web.InternalError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) ListUserStories(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		web.WriteError(w, http.StatusBadRequest, "userId is required")
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			web.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	stories, err := h.archive.ListByUser(r.Context(), userID, limit)
	if err != nil {
		web.InternalError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, stories)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/stories", h.ListUserStories)
	r.Get("/stories/{dialogID}", h.GetStory)
}
