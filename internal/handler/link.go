package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finbridge/plaid-link-go/internal/httputil"
	"github.com/finbridge/plaid-link-go/internal/middleware"
	"github.com/finbridge/plaid-link-go/internal/service"
)

type LinkHandler struct {
	sessions *service.LinkSessionService
}

func NewLinkHandler(sessions *service.LinkSessionService) *LinkHandler {
	return &LinkHandler{sessions: sessions}
}

func (h *LinkHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/token", h.CreateToken)
	r.Get("/sessions/{sessionID}", h.GetSession)
	return r
}

// CreateToken starts a Link flow for the authenticated user.
func (h *LinkHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	result, err := h.sessions.StartSession(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetSession lets the client poll a flow it started.
func (h *LinkHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.sessions.GetSession(r.Context(), userID, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, formatLinkSession(session))
}
