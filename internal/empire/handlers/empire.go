package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"empires-server/internal/auth"
	"empires-server/internal/empire"
	"empires-server/internal/middleware"
	"empires-server/internal/shared/cookies"
	"empires-server/internal/shared/errors"
	"empires-server/internal/shared/response"
)

type EmpireHandler struct {
	service *empire.Service
}

func NewEmpireHandler(service *empire.Service) *EmpireHandler {
	return &EmpireHandler{service: service}
}

type registerRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Register founds an empire for a user and issues the session cookie.
func (h *EmpireHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "register_empire")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}
	if req.UserID == "" {
		response.Error(w, r, logger, errors.Validation("user_id is required"))
		return
	}

	e, err := h.service.Register(ctx, req.UserID, req.Name)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	token, err := auth.GenerateJWT(e.ID, e.UserID, e.Name)
	if err != nil {
		response.Error(w, r, logger, errors.WrapInternal("failed to issue session token", err))
		return
	}
	cookies.SetAuthCookie(w, token)

	response.Success(w, http.StatusCreated, e)
}

// Login re-issues the session cookie for an existing empire.
func (h *EmpireHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "login")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}
	if req.UserID == "" {
		response.Error(w, r, logger, errors.Validation("user_id is required"))
		return
	}

	e, err := h.service.GetByUserID(ctx, req.UserID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	token, err := auth.GenerateJWT(e.ID, e.UserID, e.Name)
	if err != nil {
		response.Error(w, r, logger, errors.WrapInternal("failed to issue session token", err))
		return
	}
	cookies.SetAuthCookie(w, token)

	response.Success(w, http.StatusOK, e)
}

// Logout clears the session cookie.
func (h *EmpireHandler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "logout")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	cookies.ClearAuthCookie(w)
	response.Success(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the authenticated empire with its bases.
func (h *EmpireHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_empire")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	overview, err := h.service.GetOverview(ctx, claims.EmpireID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, overview)
}

// Transactions returns the empire's recent credit transactions.
func (h *EmpireHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "list_transactions")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			response.Error(w, r, logger, errors.Validation("invalid limit"))
			return
		}
		limit = parsed
	}

	txs, err := h.service.Transactions(ctx, claims.EmpireID, limit)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, txs)
}
