package dto

import (
	"errors"
	"testing"

	apierrors "github.com/maruel/buyandsell/internal/errors"
	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/ksid"
)

func TestValidate(t *testing.T) {
	title := "A new title"
	bogus := models.OfferType("rent")
	tests := []struct {
		name string
		req  Validatable
		code apierrors.ErrorCode
	}{
		{"register ok", &RegisterRequest{Email: "a@b.c", Password: "secret", Name: "A"}, ""},
		{"register no email", &RegisterRequest{Password: "secret", Name: "A"}, apierrors.ErrMissingField},
		{"register bad email", &RegisterRequest{Email: "nope", Password: "secret", Name: "A"}, apierrors.ErrInvalidFormat},
		{"register bad type", &RegisterRequest{Email: "a@b.c", Password: "secret", Name: "A", Type: "admin"}, apierrors.ErrInvalidFormat},
		{"login no password", &LoginRequest{Email: "a@b.c"}, apierrors.ErrMissingField},
		{"category no name", &CreateCategoryRequest{}, apierrors.ErrMissingField},
		{"list negative", &ListOffersRequest{Limit: -1}, apierrors.ErrValidationFailed},
		{"get no id", &GetOfferRequest{}, apierrors.ErrMissingField},
		{"create no categories", &CreateOfferRequest{Title: "t", Description: "d", Type: models.OfferTypeSell}, apierrors.ErrMissingField},
		{"create bad type", &CreateOfferRequest{Title: "t", Description: "d", Type: "rent", Categories: []ksid.ID{1}}, apierrors.ErrInvalidFormat},
		{"update empty", &UpdateOfferRequest{ID: 1}, apierrors.ErrValidationFailed},
		{"update ok", &UpdateOfferRequest{ID: 1, Title: &title}, ""},
		{"update bad type", &UpdateOfferRequest{ID: 1, Type: &bogus}, apierrors.ErrInvalidFormat},
		{"update empty categories", &UpdateOfferRequest{ID: 1, Categories: []ksid.ID{}}, apierrors.ErrMissingField},
		{"comment no text", &CreateCommentRequest{OfferID: 1}, apierrors.ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.code == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			var apiErr *apierrors.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Validate() = %v, want an APIError", err)
			}
			if apiErr.Code() != tt.code {
				t.Errorf("code = %s, want %s", apiErr.Code(), tt.code)
			}
		})
	}
}
