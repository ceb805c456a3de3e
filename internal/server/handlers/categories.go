package handlers

import (
	"context"
	"log/slog"

	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/buyandsell/internal/server/dto"
	"github.com/maruel/buyandsell/internal/storage"
)

// CategoryHandler handles category requests.
type CategoryHandler struct {
	categories *storage.CategoryService
}

// NewCategoryHandler creates a new category handler.
func NewCategoryHandler(categories *storage.CategoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// List returns all categories sorted by name.
func (h *CategoryHandler) List(ctx context.Context, req *dto.ListCategoriesRequest) (*dto.ListCategoriesResponse, error) {
	cats := h.categories.List()
	out := make([]*dto.CategoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, dto.NewCategoryResponse(c))
	}
	return &dto.ListCategoriesResponse{Categories: out}, nil
}

// Create adds a category.
func (h *CategoryHandler) Create(ctx context.Context, user *models.User, req *dto.CreateCategoryRequest) (*dto.CategoryResponse, error) {
	c, err := h.categories.Create(req.Name, req.Image)
	if err != nil {
		return nil, storageError(err, nil)
	}
	slog.InfoContext(ctx, "Category created", "category", c.ID, "name", c.Name, "user", user.ID)
	return dto.NewCategoryResponse(c), nil
}
