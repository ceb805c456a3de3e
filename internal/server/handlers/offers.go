package handlers

import (
	"context"
	"log/slog"

	apierrors "github.com/maruel/buyandsell/internal/errors"
	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/buyandsell/internal/server/dto"
	"github.com/maruel/buyandsell/internal/storage"
	"github.com/maruel/ksid"
)

// OfferHandler handles offer requests.
type OfferHandler struct {
	store *storage.Store
}

// NewOfferHandler creates a new offer handler.
func NewOfferHandler(store *storage.Store) *OfferHandler {
	return &OfferHandler{store: store}
}

func offerNotFound(id ksid.ID) func() *apierrors.APIError {
	return func() *apierrors.APIError { return apierrors.OfferNotFound(id.String()) }
}

// List returns a page of offers, newest first.
func (h *OfferHandler) List(ctx context.Context, req *dto.ListOffersRequest) (*dto.ListOffersResponse, error) {
	limit := req.Limit
	if limit == 0 {
		limit = storage.DefaultPageSize
	}
	limit = min(limit, storage.MaxPageSize)
	offers, total := h.store.Offers.List(storage.ListOptions{
		Limit:    limit,
		Offset:   req.Offset,
		Category: req.Category,
	})
	out := make([]*dto.OfferResponse, 0, len(offers))
	for _, o := range offers {
		out = append(out, offerToResponse(h.store, o))
	}
	return &dto.ListOffersResponse{Offers: out, Total: total, Limit: limit, Offset: req.Offset}, nil
}

// Get returns one offer.
func (h *OfferHandler) Get(ctx context.Context, req *dto.GetOfferRequest) (*dto.OfferResponse, error) {
	o, err := h.store.Offers.Get(req.ID)
	if err != nil {
		return nil, storageError(err, offerNotFound(req.ID))
	}
	return offerToResponse(h.store, o), nil
}

// Create publishes an offer authored by user.
func (h *OfferHandler) Create(ctx context.Context, user *models.User, req *dto.CreateOfferRequest) (*dto.OfferResponse, error) {
	o, err := h.store.Offers.Create(&models.Offer{
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Type:        req.Type,
		Price:       req.Price,
		Categories:  req.Categories,
		AuthorID:    user.ID,
	})
	if err != nil {
		return nil, storageError(err, nil)
	}
	slog.InfoContext(ctx, "Offer created", "offer", o.ID, "user", user.ID)
	return offerToResponse(h.store, o), nil
}

// Update modifies an offer owned by user.
func (h *OfferHandler) Update(ctx context.Context, user *models.User, req *dto.UpdateOfferRequest) (*dto.OfferResponse, error) {
	o, err := h.store.Offers.Update(req.ID, user.ID, &storage.OfferPatch{
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Type:        req.Type,
		Price:       req.Price,
		Categories:  req.Categories,
	})
	if err != nil {
		return nil, storageError(err, offerNotFound(req.ID))
	}
	return offerToResponse(h.store, o), nil
}

// Delete removes an offer owned by user along with its comments.
func (h *OfferHandler) Delete(ctx context.Context, user *models.User, req *dto.DeleteOfferRequest) (*dto.DeleteOfferResponse, error) {
	if err := h.store.Offers.Delete(req.ID, user.ID); err != nil {
		return nil, storageError(err, offerNotFound(req.ID))
	}
	slog.InfoContext(ctx, "Offer deleted", "offer", req.ID, "user", user.ID)
	return &dto.DeleteOfferResponse{}, nil
}
