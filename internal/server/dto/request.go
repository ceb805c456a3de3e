package dto

import (
	"net/mail"

	apierrors "github.com/maruel/buyandsell/internal/errors"
	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/ksid"
)

// --- Health ---

// HealthRequest is the request type for health check (empty).
type HealthRequest struct{}

// Validate is a no-op for HealthRequest.
func (r *HealthRequest) Validate() error {
	return nil
}

// --- Users ---

// RegisterRequest is a request to register a new user.
type RegisterRequest struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Name     string          `json:"name"`
	Type     models.UserType `json:"type,omitempty" jsonschema:"enum=simple,enum=pro"`
}

// Validate validates the register request fields.
func (r *RegisterRequest) Validate() error {
	if r.Email == "" {
		return apierrors.MissingField("email")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return apierrors.InvalidFormat("email", err)
	}
	if r.Password == "" {
		return apierrors.MissingField("password")
	}
	if r.Name == "" {
		return apierrors.MissingField("name")
	}
	if r.Type != "" {
		if err := r.Type.Validate(); err != nil {
			return apierrors.InvalidFormat("type", err)
		}
	}
	return nil
}

// LoginRequest is a request to log in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate validates the login request fields.
func (r *LoginRequest) Validate() error {
	if r.Email == "" {
		return apierrors.MissingField("email")
	}
	if r.Password == "" {
		return apierrors.MissingField("password")
	}
	return nil
}

// GetMeRequest is a request to get current user info.
type GetMeRequest struct{}

// Validate is a no-op for GetMeRequest.
func (r *GetMeRequest) Validate() error {
	return nil
}

// --- Categories ---

// ListCategoriesRequest is a request to list all categories.
type ListCategoriesRequest struct{}

// Validate is a no-op for ListCategoriesRequest.
func (r *ListCategoriesRequest) Validate() error {
	return nil
}

// CreateCategoryRequest is a request to create a category.
type CreateCategoryRequest struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Validate validates the create category request fields.
func (r *CreateCategoryRequest) Validate() error {
	if r.Name == "" {
		return apierrors.MissingField("name")
	}
	return nil
}

// --- Offers ---

// ListOffersRequest is a request to list offers, newest first.
type ListOffersRequest struct {
	Limit    int     `json:"-" query:"limit"`
	Offset   int     `json:"-" query:"offset"`
	Category ksid.ID `json:"-" query:"category"`
}

// Validate validates the list offers request fields.
func (r *ListOffersRequest) Validate() error {
	if r.Limit < 0 {
		return apierrors.BadRequest("limit must not be negative")
	}
	if r.Offset < 0 {
		return apierrors.BadRequest("offset must not be negative")
	}
	return nil
}

// GetOfferRequest is a request to get one offer.
type GetOfferRequest struct {
	ID ksid.ID `json:"-" path:"id"`
}

// Validate validates the get offer request fields.
func (r *GetOfferRequest) Validate() error {
	if r.ID.IsZero() {
		return apierrors.MissingField("id")
	}
	return nil
}

// CreateOfferRequest is a request to publish an offer.
type CreateOfferRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Image       string           `json:"image,omitempty"`
	Type        models.OfferType `json:"type" jsonschema:"enum=buy,enum=sell"`
	Price       int              `json:"price"`
	Categories  []ksid.ID        `json:"categories"`
}

// Validate validates the create offer request fields.
func (r *CreateOfferRequest) Validate() error {
	if r.Title == "" {
		return apierrors.MissingField("title")
	}
	if r.Description == "" {
		return apierrors.MissingField("description")
	}
	if r.Type == "" {
		return apierrors.MissingField("type")
	}
	if err := r.Type.Validate(); err != nil {
		return apierrors.InvalidFormat("type", err)
	}
	if len(r.Categories) == 0 {
		return apierrors.MissingField("categories")
	}
	return nil
}

// UpdateOfferRequest is a request to modify an offer. Omitted fields are kept.
type UpdateOfferRequest struct {
	ID          ksid.ID           `json:"-" path:"id"`
	Title       *string           `json:"title,omitempty"`
	Description *string           `json:"description,omitempty"`
	Image       *string           `json:"image,omitempty"`
	Type        *models.OfferType `json:"type,omitempty" jsonschema:"enum=buy,enum=sell"`
	Price       *int              `json:"price,omitempty"`
	Categories  []ksid.ID         `json:"categories,omitempty"`
}

// Validate validates the update offer request fields.
func (r *UpdateOfferRequest) Validate() error {
	if r.ID.IsZero() {
		return apierrors.MissingField("id")
	}
	if r.Title == nil && r.Description == nil && r.Image == nil && r.Type == nil && r.Price == nil && r.Categories == nil {
		return apierrors.BadRequest("No field to update")
	}
	if r.Type != nil {
		if err := r.Type.Validate(); err != nil {
			return apierrors.InvalidFormat("type", err)
		}
	}
	if r.Categories != nil && len(r.Categories) == 0 {
		return apierrors.MissingField("categories")
	}
	return nil
}

// DeleteOfferRequest is a request to delete an offer.
type DeleteOfferRequest struct {
	ID ksid.ID `json:"-" path:"id"`
}

// Validate validates the delete offer request fields.
func (r *DeleteOfferRequest) Validate() error {
	if r.ID.IsZero() {
		return apierrors.MissingField("id")
	}
	return nil
}

// --- Comments ---

// ListCommentsRequest is a request to list the comments of an offer.
type ListCommentsRequest struct {
	OfferID ksid.ID `json:"-" path:"id"`
	Limit   int     `json:"-" query:"limit"`
}

// Validate validates the list comments request fields.
func (r *ListCommentsRequest) Validate() error {
	if r.OfferID.IsZero() {
		return apierrors.MissingField("id")
	}
	if r.Limit < 0 {
		return apierrors.BadRequest("limit must not be negative")
	}
	return nil
}

// CreateCommentRequest is a request to comment on an offer.
type CreateCommentRequest struct {
	OfferID ksid.ID `json:"-" path:"id"`
	Text    string  `json:"text"`
}

// Validate validates the create comment request fields.
func (r *CreateCommentRequest) Validate() error {
	if r.OfferID.IsZero() {
		return apierrors.MissingField("id")
	}
	if r.Text == "" {
		return apierrors.MissingField("text")
	}
	return nil
}
