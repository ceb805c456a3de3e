// Provides the generic adapters between typed handler functions and net/http.

package server

import (
	"bytes"
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	apierrors "github.com/maruel/buyandsell/internal/errors"
	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/buyandsell/internal/server/dto"
)

// Wrap wraps a handler function to work as an http.Handler.
// The function must have signature: func(context.Context, *In) (*Out, error)
// where In can be unmarshalled from JSON and Out is a struct.
// Path and query parameters are bound to struct fields tagged with
// `path:"name"` and `query:"name"`.
//
// Example:
//
//	type GetOfferRequest struct {
//	    ID ksid.ID `json:"-" path:"id"`
//	}
//
//	func (h *OfferHandler) Get(ctx context.Context, req *GetOfferRequest) (*Response, error)
func Wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error)) http.Handler {
	return wrap(http.StatusOK, func(ctx context.Context, _ *models.User, in PtrIn) (*Out, error) {
		return fn(ctx, in)
	}, false)
}

// WrapCreated is Wrap answering 201 Created on success.
func WrapCreated[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error)) http.Handler {
	return wrap(http.StatusCreated, func(ctx context.Context, _ *models.User, in PtrIn) (*Out, error) {
		return fn(ctx, in)
	}, false)
}

// WrapAuth wraps a handler requiring an authenticated user.
// The function must have signature: func(context.Context, *models.User, *In) (*Out, error).
// The user is set by the Authenticate middleware.
func WrapAuth[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, *models.User, PtrIn) (*Out, error)) http.Handler {
	return wrap(http.StatusOK, fn, true)
}

// WrapAuthCreated is WrapAuth answering 201 Created on success.
func WrapAuthCreated[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, *models.User, PtrIn) (*Out, error)) http.Handler {
	return wrap(http.StatusCreated, fn, true)
}

// WrapAuthNoContent is WrapAuth answering 204 No Content, discarding the
// output.
func WrapAuthNoContent[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, *models.User, PtrIn) (*Out, error)) http.Handler {
	return wrap(http.StatusNoContent, fn, true)
}

// WrapAuthRaw guards a raw handler, for requests that are not JSON such as
// multipart uploads.
func WrapAuthRaw(fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := models.UserFromContext(r.Context()); !ok {
			writeAPIError(r.Context(), w, apierrors.Unauthorized())
			return
		}
		fn(w, r)
	})
}

func wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](status int, fn func(context.Context, *models.User, PtrIn) (*Out, error), requireUser bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user, ok := models.UserFromContext(ctx)
		if requireUser && !ok {
			writeAPIError(ctx, w, apierrors.Unauthorized())
			return
		}

		input := new(In)
		if !readAndDecodeBody(ctx, w, r, input) {
			return
		}
		if err := populatePathParams(r, input); err != nil {
			writeAPIError(ctx, w, err)
			return
		}
		if err := populateQueryParams(r, input); err != nil {
			writeAPIError(ctx, w, err)
			return
		}
		if err := PtrIn(input).Validate(); err != nil {
			handleValidationError(ctx, w, err)
			return
		}

		output, err := fn(ctx, user, PtrIn(input))
		writeJSONResponse(ctx, w, status, output, err)
	})
}

// readAndDecodeBody reads the request body and decodes JSON into input.
// Returns false if an error occurred and was written to the response.
func readAndDecodeBody[In any](ctx context.Context, w http.ResponseWriter, r *http.Request, input *In) bool {
	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeAPIError(ctx, w, apierrors.PayloadTooLarge(maxBytesErr.Limit))
			return false
		}
		slog.ErrorContext(ctx, "Failed to read request body", "err", err)
		writeAPIError(ctx, w, apierrors.BadRequest("Failed to read request body"))
		return false
	}

	if len(bytes.TrimSpace(body)) > 0 {
		d := json.NewDecoder(bytes.NewReader(body))
		d.DisallowUnknownFields()
		if err := d.Decode(input); err != nil {
			slog.WarnContext(ctx, "Failed to decode request body", "err", err)
			writeAPIError(ctx, w, apierrors.BadRequest("Invalid request body").Wrap(err))
			return false
		}
	}
	return true
}

// writeJSONResponse writes a JSON response or error response.
func writeJSONResponse[Out any](ctx context.Context, w http.ResponseWriter, status int, output *Out, err error) {
	if err != nil {
		writeAPIError(ctx, w, err)
		return
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(output); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}

// writeAPIError writes err as a JSON error. Errors not implementing
// ErrorWithStatus become 500. Server errors never expose their wrapped cause;
// it is logged instead.
func writeAPIError(ctx context.Context, w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	errorCode := apierrors.ErrInternal
	details := make(map[string]any)

	var ewsErr apierrors.ErrorWithStatus
	if errors.As(err, &ewsErr) {
		statusCode = ewsErr.StatusCode()
		errorCode = ewsErr.Code()
		if d := ewsErr.Details(); d != nil {
			details = d
		}
	}

	message := err.Error()
	if statusCode >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Handler error", "err", err, "statusCode", statusCode, "code", errorCode)
		message = "Internal server error"
		if ewsErr != nil {
			message = ewsErr.Message()
		}
	} else {
		slog.InfoContext(ctx, "Request rejected", "err", err, "statusCode", statusCode, "code", errorCode)
	}
	writeErrorResponseWithCode(w, statusCode, errorCode, message, details)
}

// handleValidationError handles a validation error from a request's Validate method.
func handleValidationError(ctx context.Context, w http.ResponseWriter, err error) {
	var ewsErr apierrors.ErrorWithStatus
	if !errors.As(err, &ewsErr) {
		err = apierrors.BadRequest(err.Error())
	}
	writeAPIError(ctx, w, err)
}

// populatePathParams extracts path parameters from the request and populates
// struct fields tagged with `path:"paramName"`.
func populatePathParams(r *http.Request, input any) error {
	return populateTagged(input, "path", r.PathValue)
}

// populateQueryParams extracts query parameters from the request and populates
// struct fields tagged with `query:"paramName"`.
func populateQueryParams(r *http.Request, input any) error {
	return populateTagged(input, "query", r.URL.Query().Get)
}

func populateTagged(input any, tagName string, lookup func(string) string) error {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return nil
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return nil
	}

	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get(tagName)
		if tag == "" {
			continue
		}
		paramValue := lookup(tag)
		if paramValue == "" {
			continue
		}
		if err := setField(elem.Field(i), paramValue); err != nil {
			return apierrors.InvalidFormat(tag, err)
		}
	}
	return nil
}

// setField assigns s to v. TextUnmarshaler wins over the kind so that IDs
// declared as integers decode from their string form.
func setField(v reflect.Value, s string) error {
	if v.CanAddr() {
		if u, ok := v.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(s))
		}
	}
	//nolint:exhaustive // Only string and int are supported.
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		v.SetInt(n)
	default:
		return fmt.Errorf("unsupported parameter type %s", v.Type())
	}
	return nil
}

// writeErrorResponseWithCode writes a detailed error response as JSON with code and details.
func writeErrorResponseWithCode(w http.ResponseWriter, statusCode int, code apierrors.ErrorCode, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}

	if len(details) > 0 {
		response["details"] = details
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode error response", "err", err)
	}
}
