package handlers

import (
	"context"

	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/buyandsell/internal/server/dto"
	"github.com/maruel/buyandsell/internal/storage"
)

// CommentHandler handles comment requests.
type CommentHandler struct {
	store *storage.Store
}

// NewCommentHandler creates a new comment handler.
func NewCommentHandler(store *storage.Store) *CommentHandler {
	return &CommentHandler{store: store}
}

// List returns the comments on an offer, newest first.
func (h *CommentHandler) List(ctx context.Context, req *dto.ListCommentsRequest) (*dto.ListCommentsResponse, error) {
	if _, err := h.store.Offers.Get(req.OfferID); err != nil {
		return nil, storageError(err, offerNotFound(req.OfferID))
	}
	comments := h.store.Comments.ListByOffer(req.OfferID, req.Limit)
	out := make([]*dto.CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, commentToResponse(h.store, c))
	}
	return &dto.ListCommentsResponse{Comments: out}, nil
}

// Create adds a comment by user.
func (h *CommentHandler) Create(ctx context.Context, user *models.User, req *dto.CreateCommentRequest) (*dto.CommentResponse, error) {
	c, err := h.store.Comments.Create(req.OfferID, user.ID, req.Text)
	if err != nil {
		return nil, storageError(err, offerNotFound(req.OfferID))
	}
	return commentToResponse(h.store, c), nil
}
