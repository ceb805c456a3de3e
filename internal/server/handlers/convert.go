package handlers

import (
	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/buyandsell/internal/server/dto"
	"github.com/maruel/buyandsell/internal/storage"
)

// offerToResponse resolves the categories and author of o. Dangling
// references are dropped rather than failing the request.
func offerToResponse(store *storage.Store, o *models.Offer) *dto.OfferResponse {
	resp := &dto.OfferResponse{
		ID:           o.ID,
		Title:        o.Title,
		Description:  o.Description,
		Image:        o.Image,
		Type:         o.Type,
		Price:        o.Price,
		Categories:   make([]*dto.CategoryResponse, 0, len(o.Categories)),
		CommentCount: o.CommentCount,
		Created:      o.Created,
		Modified:     o.Modified,
	}
	for _, id := range o.Categories {
		if c, err := store.Categories.Get(id); err == nil {
			resp.Categories = append(resp.Categories, dto.NewCategoryResponse(c))
		}
	}
	if u, err := store.Users.Get(o.AuthorID); err == nil {
		resp.Author = dto.NewUserResponse(u)
	}
	return resp
}

func commentToResponse(store *storage.Store, c *models.Comment) *dto.CommentResponse {
	resp := &dto.CommentResponse{ID: c.ID, OfferID: c.OfferID, Text: c.Text, Created: c.Created}
	if u, err := store.Users.Get(c.AuthorID); err == nil {
		resp.Author = dto.NewUserResponse(u)
	}
	return resp
}
