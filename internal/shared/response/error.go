package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"empires-server/internal/shared/errors"
)

// ErrorResponse represents the JSON error response sent to clients
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Code    int            `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// Error logs an error and sends a JSON error response to the client
// This should be the only place where errors are logged in the application
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	errorType := errors.GetType(err)
	statusCode := mapErrorTypeToStatusCode(errorType)

	logError(logger, r, err, errorType, statusCode)

	sendErrorResponse(w, errorType, err.Error(), statusCode, errors.GetDetails(err))
}

// mapErrorTypeToStatusCode maps error types to HTTP status codes
func mapErrorTypeToStatusCode(errorType errors.ErrorType) int {
	switch errorType {
	case errors.ErrorTypeNotFound:
		return http.StatusNotFound
	case errors.ErrorTypeNotOwner:
		return http.StatusForbidden
	case errors.ErrorTypeValidation, errors.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case errors.ErrorTypeTechRequirements,
		errors.ErrorTypeInsufficientResources,
		errors.ErrorTypeInsufficientEnergy,
		errors.ErrorTypeInsufficientPopulation,
		errors.ErrorTypeInsufficientArea,
		errors.ErrorTypeNoCapacity:
		return http.StatusUnprocessableEntity
	case errors.ErrorTypeAlreadyInProgress, errors.ErrorTypeConflict:
		return http.StatusConflict
	case errors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrorTypeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case errors.ErrorTypeInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// logError logs the error with appropriate level and context
func logError(logger *slog.Logger, r *http.Request, err error, errorType errors.ErrorType, statusCode int) {
	logCtx := logger.With(
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"error_type", errorType,
		"status_code", statusCode,
	)

	switch errorType {
	case errors.ErrorTypeNotFound,
		errors.ErrorTypeValidation,
		errors.ErrorTypeInvalidRequest,
		errors.ErrorTypeTechRequirements,
		errors.ErrorTypeInsufficientResources,
		errors.ErrorTypeInsufficientEnergy,
		errors.ErrorTypeInsufficientPopulation,
		errors.ErrorTypeInsufficientArea,
		errors.ErrorTypeNoCapacity:
		// Admission refusals are a normal part of play, log at debug level
		logCtx.Debug("Request refused", "error", err)
	case errors.ErrorTypeAlreadyInProgress, errors.ErrorTypeConflict:
		logCtx.Info("Conflict error", "error", err)
	case errors.ErrorTypeUnauthorized, errors.ErrorTypeNotOwner:
		logCtx.Warn("Authorization error", "error", err)
	case errors.ErrorTypeInternal:
		fallthrough
	default:
		logCtx.Error("Internal server error", "error", err)
	}
}

// sendErrorResponse sends a JSON error response to the client
func sendErrorResponse(w http.ResponseWriter, errorType errors.ErrorType, message string, statusCode int, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   string(errorType),
		Message: message,
		Code:    statusCode,
		Details: details,
	}

	// If JSON encoding fails, there's not much we can do at this point
	// The status code has already been sent
	_ = json.NewEncoder(w).Encode(response)
}

// Success sends a JSON success response to the client
func Success(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
