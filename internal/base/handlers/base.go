package handlers

import (
	"log/slog"
	"net/http"

	"empires-server/internal/base"
	"empires-server/internal/fleet"
	"empires-server/internal/middleware"
	"empires-server/internal/shared/errors"
	"empires-server/internal/shared/response"
)

type BaseHandler struct {
	bases  *base.Service
	fleets *fleet.Service
}

func NewBaseHandler(bases *base.Service, fleets *fleet.Service) *BaseHandler {
	return &BaseHandler{bases: bases, fleets: fleets}
}

// GetDashboard serves the full per-base picture for its owner.
func (h *BaseHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_base_dashboard")

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

	dashboard, err := h.bases.GetDashboard(ctx, claims.EmpireID, coord)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, dashboard)
}

// GetFleet serves the fleet stationed at an owned base.
func (h *BaseHandler) GetFleet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_base_fleet")

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

	f, err := h.fleets.GetByBase(ctx, claims.EmpireID, coord)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, f)
}
