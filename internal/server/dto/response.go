package dto

import (
	"time"

	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/ksid"
)

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// --- Users ---

// UserResponse is the public view of a user. It never carries credentials.
type UserResponse struct {
	ID         ksid.ID         `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	AvatarPath string          `json:"avatarPath"`
	Type       models.UserType `json:"type"`
}

// NewUserResponse converts u.
func NewUserResponse(u *models.User) *UserResponse {
	return &UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, AvatarPath: u.AvatarPath, Type: u.Type}
}

// LoginResponse is a response from logging in.
type LoginResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// --- Categories ---

// CategoryResponse is a category.
type CategoryResponse struct {
	ID    ksid.ID `json:"id"`
	Name  string  `json:"name"`
	Image string  `json:"image,omitempty"`
}

// NewCategoryResponse converts c.
func NewCategoryResponse(c *models.Category) *CategoryResponse {
	return &CategoryResponse{ID: c.ID, Name: c.Name, Image: c.Image}
}

// ListCategoriesResponse is a response containing all categories.
type ListCategoriesResponse struct {
	Categories []*CategoryResponse `json:"categories"`
}

// --- Offers ---

// OfferResponse is an offer with its categories and author resolved.
type OfferResponse struct {
	ID           ksid.ID             `json:"id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Image        string              `json:"image"`
	Type         models.OfferType    `json:"type"`
	Price        int                 `json:"price"`
	Categories   []*CategoryResponse `json:"categories"`
	Author       *UserResponse       `json:"author,omitempty"`
	CommentCount int                 `json:"commentCount"`
	Created      time.Time           `json:"created"`
	Modified     time.Time           `json:"modified"`
}

// ListOffersResponse is a page of offers.
type ListOffersResponse struct {
	Offers []*OfferResponse `json:"offers"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// DeleteOfferResponse is the empty response of a deletion.
type DeleteOfferResponse struct{}

// --- Comments ---

// CommentResponse is a comment with its author resolved.
type CommentResponse struct {
	ID      ksid.ID       `json:"id"`
	OfferID ksid.ID       `json:"offerId"`
	Author  *UserResponse `json:"author,omitempty"`
	Text    string        `json:"text"`
	Created time.Time     `json:"created"`
}

// ListCommentsResponse is a response containing the comments of an offer.
type ListCommentsResponse struct {
	Comments []*CommentResponse `json:"comments"`
}
