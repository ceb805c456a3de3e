// Package models defines the core data structures used throughout the application.
package models

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/maruel/ksid"
)

// Field limits for offers and comments.
const (
	MinTitleLength       = 10
	MaxTitleLength       = 100
	MinDescriptionLength = 50
	MaxDescriptionLength = 1000
	MinPrice             = 100
	MaxPrice             = 100000
	MinCommentLength     = 5
	MaxCommentLength     = 1024
	MinNameLength        = 1
	MaxNameLength        = 50
	MinPasswordLength    = 6
	MaxPasswordLength    = 12
)

// DefaultAvatarPath is assigned to users who never uploaded an avatar.
const DefaultAvatarPath = "default-avatar.jpg"

// UserType distinguishes regular and professional sellers.
type UserType string

const (
	// UserTypeSimple is a regular user.
	UserTypeSimple UserType = "simple"
	// UserTypePro is a professional seller.
	UserTypePro UserType = "pro"
)

// Validate reports whether t is a known user type.
func (t UserType) Validate() error {
	switch t {
	case UserTypeSimple, UserTypePro:
		return nil
	default:
		return fmt.Errorf("unknown user type %q", t)
	}
}

// OfferType defines whether the author buys or sells.
type OfferType string

const (
	// OfferTypeBuy is a request to buy.
	OfferTypeBuy OfferType = "buy"
	// OfferTypeSell is an item for sale.
	OfferTypeSell OfferType = "sell"
)

// Validate reports whether t is a known offer type.
func (t OfferType) Validate() error {
	switch t {
	case OfferTypeBuy, OfferTypeSell:
		return nil
	default:
		return fmt.Errorf("unknown offer type %q", t)
	}
}

// User represents a registered user.
type User struct {
	ID         ksid.ID   `json:"id" jsonschema:"description=Unique user identifier"`
	Email      string    `json:"email" jsonschema:"description=Login email, unique"`
	Name       string    `json:"name" jsonschema:"description=Display name"`
	AvatarPath string    `json:"avatarPath" jsonschema:"description=Avatar file name in the upload directory"`
	Type       UserType  `json:"type" jsonschema:"description=simple or pro"`
	Created    time.Time `json:"created"`
	Modified   time.Time `json:"modified"`
}

// Validate checks the user fields.
func (u *User) Validate() error {
	if u.ID.IsZero() {
		return errors.New("id is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("invalid email %q: %w", u.Email, err)
	}
	if n := utf8.RuneCountInString(u.Name); n < MinNameLength || n > MaxNameLength {
		return fmt.Errorf("name must be %d to %d characters", MinNameLength, MaxNameLength)
	}
	return u.Type.Validate()
}

// Category groups offers.
type Category struct {
	ID    ksid.ID `json:"id" jsonschema:"description=Unique category identifier"`
	Name  string  `json:"name" jsonschema:"description=Unique category name"`
	Image string  `json:"image,omitempty"`
}

// Clone returns a copy of the category.
func (c *Category) Clone() *Category {
	n := *c
	return &n
}

// GetID returns the category ID.
func (c *Category) GetID() ksid.ID {
	return c.ID
}

// Validate checks the category fields.
func (c *Category) Validate() error {
	if c.ID.IsZero() {
		return errors.New("id is required")
	}
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// Offer is a classified ad.
type Offer struct {
	ID           ksid.ID   `json:"id" jsonschema:"description=Unique offer identifier"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Image        string    `json:"image"`
	Type         OfferType `json:"type" jsonschema:"description=buy or sell"`
	Price        int       `json:"price"`
	Categories   []ksid.ID `json:"categories"`
	AuthorID     ksid.ID   `json:"authorId"`
	CommentCount int       `json:"commentCount"`
	Created      time.Time `json:"created"`
	Modified     time.Time `json:"modified"`
}

// Clone returns a deep copy of the offer.
func (o *Offer) Clone() *Offer {
	n := *o
	n.Categories = slices.Clone(o.Categories)
	return &n
}

// GetID returns the offer ID.
func (o *Offer) GetID() ksid.ID {
	return o.ID
}

// Validate checks the offer fields.
func (o *Offer) Validate() error {
	if o.ID.IsZero() {
		return errors.New("id is required")
	}
	if n := utf8.RuneCountInString(o.Title); n < MinTitleLength || n > MaxTitleLength {
		return fmt.Errorf("title must be %d to %d characters", MinTitleLength, MaxTitleLength)
	}
	if n := utf8.RuneCountInString(o.Description); n < MinDescriptionLength || n > MaxDescriptionLength {
		return fmt.Errorf("description must be %d to %d characters", MinDescriptionLength, MaxDescriptionLength)
	}
	if err := o.Type.Validate(); err != nil {
		return err
	}
	if o.Price < MinPrice || o.Price > MaxPrice {
		return fmt.Errorf("price must be between %d and %d", MinPrice, MaxPrice)
	}
	if len(o.Categories) == 0 {
		return errors.New("at least one category is required")
	}
	if o.AuthorID.IsZero() {
		return errors.New("author is required")
	}
	return nil
}

// Comment is a message left on an offer.
type Comment struct {
	ID       ksid.ID   `json:"id" jsonschema:"description=Unique comment identifier"`
	OfferID  ksid.ID   `json:"offerId"`
	AuthorID ksid.ID   `json:"authorId"`
	Text     string    `json:"text"`
	Created  time.Time `json:"created"`
}

// Clone returns a copy of the comment.
func (c *Comment) Clone() *Comment {
	n := *c
	return &n
}

// GetID returns the comment ID.
func (c *Comment) GetID() ksid.ID {
	return c.ID
}

// Validate checks the comment fields.
func (c *Comment) Validate() error {
	if c.ID.IsZero() {
		return errors.New("id is required")
	}
	if c.OfferID.IsZero() || c.AuthorID.IsZero() {
		return errors.New("offer and author are required")
	}
	if n := utf8.RuneCountInString(c.Text); n < MinCommentLength || n > MaxCommentLength {
		return fmt.Errorf("text must be %d to %d characters", MinCommentLength, MaxCommentLength)
	}
	return nil
}

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// UserKey is the context key for the authenticated user.
	UserKey ContextKey = "user"
)

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(UserKey).(*User)
	return u, ok
}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, UserKey, u)
}
