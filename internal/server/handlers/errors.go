package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/maruel/buyandsell/internal/errors"
	"github.com/maruel/buyandsell/internal/storage"
)

// storageError maps storage sentinels to API errors. notFound builds the 404
// for the entity being accessed.
func storageError(err error, notFound func() *apierrors.APIError) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if notFound != nil {
			return notFound().Wrap(err)
		}
		return apierrors.NotFound("Resource").Wrap(err)
	case errors.Is(err, storage.ErrInvalid):
		return apierrors.BadRequest(err.Error())
	case errors.Is(err, storage.ErrConflict):
		return apierrors.Conflict(err.Error())
	case errors.Is(err, storage.ErrForbidden):
		return apierrors.Forbidden("Only the author may do this")
	case errors.Is(err, storage.ErrInvalidCredentials):
		return apierrors.NewAPIError(http.StatusUnauthorized, apierrors.ErrUnauthorized, "Invalid credentials")
	case errors.Is(err, storage.ErrTooLarge):
		return apierrors.NewAPIError(http.StatusRequestEntityTooLarge, apierrors.ErrPayloadTooLarge, err.Error())
	default:
		return apierrors.InternalWithError("Storage error", err)
	}
}

// writeErrorResponse writes err as the standard JSON error body. The wrapped
// cause of a server error is logged, not sent.
func writeErrorResponse(ctx context.Context, w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	errorCode := apierrors.ErrInternal
	message := "Internal server error"
	var details map[string]any

	var ewsErr apierrors.ErrorWithStatus
	if errors.As(err, &ewsErr) {
		statusCode = ewsErr.StatusCode()
		errorCode = ewsErr.Code()
		message = ewsErr.Error()
		details = ewsErr.Details()
	}
	if statusCode >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Handler error", "err", err, "statusCode", statusCode, "code", errorCode)
		if ewsErr != nil {
			message = ewsErr.Message()
		}
	}

	response := map[string]any{
		"error": map[string]any{"code": errorCode, "message": message},
	}
	if len(details) > 0 {
		response["details"] = details
	}
	writeJSON(w, statusCode, response)
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}
