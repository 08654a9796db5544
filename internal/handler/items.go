package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finbridge/plaid-link-go/internal/httputil"
	"github.com/finbridge/plaid-link-go/internal/middleware"
	"github.com/finbridge/plaid-link-go/internal/service"
)

type ItemsHandler struct {
	items    *service.ItemService
	deletion *service.ItemDeletionService
}

func NewItemsHandler(items *service.ItemService, deletion *service.ItemDeletionService) *ItemsHandler {
	return &ItemsHandler{
		items:    items,
		deletion: deletion,
	}
}

func (h *ItemsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/status", h.Status)
	r.Get("/deletion-info", h.DeletionInfo)
	r.Delete("/{itemID}", h.Delete)
	return r
}

func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	items, err := h.items.ListItems(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	formatted := make([]map[string]any, 0, len(items))
	for _, item := range items {
		formatted = append(formatted, formatItem(item))
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": formatted})
}

func (h *ItemsHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	status, err := h.items.ConnectStatus(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *ItemsHandler) DeletionInfo(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	info, err := h.deletion.GetDeletionInfo(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	itemID := chi.URLParam(r, "itemID")

	if err := h.deletion.DeleteItemWithRateLimit(r.Context(), userID, itemID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
