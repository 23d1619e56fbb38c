package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"empires-server/internal/catalog"
	"empires-server/internal/middleware"
	"empires-server/internal/queue"
	"empires-server/internal/shared/errors"
	"empires-server/internal/shared/response"
)

type QueueHandler struct {
	engine *queue.Engine
}

func NewQueueHandler(engine *queue.Engine) *QueueHandler {
	return &QueueHandler{engine: engine}
}

type enqueueRequest struct {
	Key catalog.Key `json:"key"`
}

// Enqueue admits a build, production or research request onto a base's queue.
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "enqueue")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	coord := r.PathValue("coord")
	if coord == "" {
		response.Error(w, r, logger, errors.Validation("base coordinate is required"))
		return
	}

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}
	if req.Key == "" {
		response.Error(w, r, logger, errors.Validation("key is required"))
		return
	}

	item, err := h.engine.Enqueue(ctx, claims.EmpireID, claims.UserID, coord, req.Key)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusCreated, item)
}

// List serves a base's open queue items, oldest first.
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "list_queue")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	coord := r.PathValue("coord")
	if coord == "" {
		response.Error(w, r, logger, errors.Validation("base coordinate is required"))
		return
	}

	items, err := h.engine.OpenItems(ctx, coord)
	if err != nil {
		response.Error(w, r, logger, errors.WrapInternal("failed to load queue items", err))
		return
	}

	if items == nil {
		items = []queue.Item{}
	}

	response.Success(w, http.StatusOK, items)
}

// Cancel removes one of the caller's queue items.
func (h *QueueHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "cancel_queue_item")

	if r.Method != http.MethodDelete {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	itemID := r.PathValue("id")
	if itemID == "" {
		response.Error(w, r, logger, errors.Validation("queue item ID is required"))
		return
	}

	if err := h.engine.Cancel(ctx, claims.EmpireID, itemID); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
