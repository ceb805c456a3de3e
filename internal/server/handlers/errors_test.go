package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apierrors "github.com/maruel/buyandsell/internal/errors"
	"github.com/maruel/buyandsell/internal/storage"
)

func TestStorageError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("offer x: %w", storage.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: title too short", storage.ErrInvalid), http.StatusBadRequest},
		{storage.ErrConflict, http.StatusConflict},
		{storage.ErrForbidden, http.StatusForbidden},
		{storage.ErrInvalidCredentials, http.StatusUnauthorized},
		{storage.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		var ews apierrors.ErrorWithStatus
		if !errors.As(storageError(tt.err, nil), &ews) || ews.StatusCode() != tt.status {
			t.Errorf("storageError(%v) = %v, want %d", tt.err, ews, tt.status)
		}
	}
}

func TestWriteErrorResponseHidesCause(t *testing.T) {
	cause := errors.New("open /srv/data/uploads/x.png: no space left on device")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"storage", storageError(cause, nil), "Storage error"},
		{"plain", cause, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeErrorResponse(t.Context(), w, tt.err)
			if w.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d", w.Code)
			}
			if strings.Contains(w.Body.String(), "/srv/") {
				t.Errorf("body leaks the cause: %s", w.Body)
			}
			var e struct {
				Error struct {
					Code    apierrors.ErrorCode `json:"code"`
					Message string              `json:"message"`
				} `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
				t.Fatal(err)
			}
			if e.Error.Code != apierrors.ErrInternal || e.Error.Message != tt.want {
				t.Errorf("got %+v, want message %q", e.Error, tt.want)
			}
		})
	}
}

func TestWriteErrorResponseClientError(t *testing.T) {
	w := httptest.NewRecorder()
	writeErrorResponse(t.Context(), w, apierrors.Forbidden("Cannot change another user's avatar"))
	if w.Code != http.StatusForbidden || !strings.Contains(w.Body.String(), "another user") {
		t.Errorf("got %d %s", w.Code, w.Body)
	}
}
