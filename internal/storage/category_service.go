package storage

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/maruel/buyandsell/internal/jsonldb"
	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/ksid"
)

// CategoryService manages offer categories. Names are unique, case-insensitive.
type CategoryService struct {
	table  *jsonldb.Table[*models.Category]
	byName *jsonldb.UniqueIndex[string, *models.Category]
	mu     sync.Mutex
}

// NewCategoryService opens the categories table in dir.
func NewCategoryService(dir string) (*CategoryService, error) {
	table, err := jsonldb.NewTable[*models.Category](filepath.Join(dir, "categories.jsonl"))
	if err != nil {
		return nil, err
	}
	return &CategoryService{
		table:  table,
		byName: jsonldb.NewUniqueIndex(table, func(c *models.Category) string { return categoryKey(c.Name) }),
	}, nil
}

func categoryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Create adds a category.
func (s *CategoryService) Create(name, image string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(name, image)
}

func (s *CategoryService) createLocked(name, image string) (*models.Category, error) {
	c := &models.Category{ID: ksid.NewID(), Name: strings.TrimSpace(name), Image: image}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if s.byName.Has(categoryKey(name)) {
		return nil, fmt.Errorf("%w: category %q", ErrConflict, c.Name)
	}
	if err := s.table.Append(c); err != nil {
		return nil, fmt.Errorf("failed to store category: %w", err)
	}
	return c, nil
}

// FindOrCreate returns the category with the given name, creating it if needed.
func (s *CategoryService) FindOrCreate(name string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.byName.Get(categoryKey(name)); c != nil {
		return c, nil
	}
	return s.createLocked(name, "")
}

// Get retrieves a category by ID.
func (s *CategoryService) Get(id ksid.ID) (*models.Category, error) {
	c := s.table.Get(id)
	if c == nil {
		return nil, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return c, nil
}

// Exists reports whether every id names a category.
func (s *CategoryService) Exists(ids ...ksid.ID) bool {
	for _, id := range ids {
		if s.table.Get(id) == nil {
			return false
		}
	}
	return true
}

// List returns all categories sorted by name.
func (s *CategoryService) List() []*models.Category {
	out := slices.Collect(s.table.All())
	slices.SortFunc(out, func(a, b *models.Category) int { return cmp.Compare(categoryKey(a.Name), categoryKey(b.Name)) })
	return out
}
