package errors

import (
	"errors"
	"io"
	"net/http"
	"testing"
)

func TestAPIError(t *testing.T) {
	err := InvalidFormat("price", io.ErrUnexpectedEOF)
	if err.StatusCode() != http.StatusBadRequest || err.Code() != ErrInvalidFormat {
		t.Errorf("got %d %s", err.StatusCode(), err.Code())
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("wrapped error lost")
	}
	if got, want := err.Error(), "Invalid format for field: price: unexpected EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got, want := err.Message(), "Invalid format for field: price"; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}

	var ews ErrorWithStatus
	if !errors.As(error(OfferNotFound("42")), &ews) {
		t.Fatal("APIError does not implement ErrorWithStatus")
	}
	if ews.StatusCode() != http.StatusNotFound || ews.Details()["id"] != "42" {
		t.Errorf("got %d %v", ews.StatusCode(), ews.Details())
	}
}

func TestWithDetails(t *testing.T) {
	err := (&APIError{}).WithDetail("a", 1).WithDetails(map[string]any{"b": 2})
	if len(err.Details()) != 2 {
		t.Errorf("details = %v", err.Details())
	}
	if d := PayloadTooLarge(10).Details()["limit"]; d != int64(10) {
		t.Errorf("limit = %v", d)
	}
}
