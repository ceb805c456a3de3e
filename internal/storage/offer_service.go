package storage

import (
	"cmp"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/maruel/buyandsell/internal/jsonldb"
	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/ksid"
)

// DefaultPageSize is used by List when no limit is given.
const DefaultPageSize = 20

// MaxPageSize caps List.
const MaxPageSize = 100

// OfferService manages offers.
type OfferService struct {
	table      *jsonldb.Table[*models.Offer]
	byAuthor   *jsonldb.Index[ksid.ID, *models.Offer]
	categories *CategoryService
}

// NewOfferService opens the offers table in dir.
func NewOfferService(dir string, categories *CategoryService) (*OfferService, error) {
	table, err := jsonldb.NewTable[*models.Offer](filepath.Join(dir, "offers.jsonl"))
	if err != nil {
		return nil, err
	}
	return &OfferService{
		table:      table,
		byAuthor:   jsonldb.NewIndex(table, func(o *models.Offer) ksid.ID { return o.AuthorID }),
		categories: categories,
	}, nil
}

// Create stores a new offer. ID and timestamps are assigned when zero so
// imports can keep their original creation date.
func (s *OfferService) Create(o *models.Offer) (*models.Offer, error) {
	o = o.Clone()
	if o.ID.IsZero() {
		o.ID = ksid.NewID()
	}
	if o.Created.IsZero() {
		o.Created = time.Now().UTC()
	}
	if o.Modified.IsZero() {
		o.Modified = o.Created
	}
	o.Title = strings.TrimSpace(o.Title)
	o.Description = strings.TrimSpace(o.Description)
	o.CommentCount = 0
	o.Categories = compactIDs(o.Categories)
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if !s.categories.Exists(o.Categories...) {
		return nil, fmt.Errorf("%w: unknown category", ErrInvalid)
	}
	if err := s.table.Append(o); err != nil {
		return nil, fmt.Errorf("failed to store offer: %w", err)
	}
	return o.Clone(), nil
}

// Get retrieves an offer by ID.
func (s *OfferService) Get(id ksid.ID) (*models.Offer, error) {
	o := s.table.Get(id)
	if o == nil {
		return nil, fmt.Errorf("offer %s: %w", id, ErrNotFound)
	}
	return o, nil
}

// ListOptions filters and paginates List.
type ListOptions struct {
	Limit    int
	Offset   int
	Category ksid.ID
	Author   ksid.ID
}

// List returns offers newest first and the total number matching the filter.
func (s *OfferService) List(opts ListOptions) ([]*models.Offer, int) {
	var matched []*models.Offer
	if !opts.Author.IsZero() {
		matched = s.byAuthor.Get(opts.Author)
	} else {
		matched = slices.Collect(s.table.All())
	}
	if !opts.Category.IsZero() {
		matched = slices.DeleteFunc(matched, func(o *models.Offer) bool {
			return !slices.Contains(o.Categories, opts.Category)
		})
	}
	slices.SortFunc(matched, func(a, b *models.Offer) int {
		if c := b.Created.Compare(a.Created); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	total := len(matched)
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)
	offset := min(max(opts.Offset, 0), total)
	end := min(offset+limit, total)
	return matched[offset:end], total
}

// All returns every offer in storage order.
func (s *OfferService) All() []*models.Offer {
	return slices.Collect(s.table.All())
}

// Count returns the number of offers.
func (s *OfferService) Count() int {
	return s.table.Len()
}

// OfferPatch holds the fields an author may change. Nil fields are unchanged.
type OfferPatch struct {
	Title       *string
	Description *string
	Image       *string
	Type        *models.OfferType
	Price       *int
	Categories  []ksid.ID
}

// Update applies p to the offer when authorID owns it.
func (s *OfferService) Update(id, authorID ksid.ID, p *OfferPatch) (*models.Offer, error) {
	if p.Categories != nil && !s.categories.Exists(p.Categories...) {
		return nil, fmt.Errorf("%w: unknown category", ErrInvalid)
	}
	o, err := s.table.Update(id, func(o *models.Offer) error {
		if o.AuthorID != authorID {
			return ErrForbidden
		}
		if p.Title != nil {
			o.Title = strings.TrimSpace(*p.Title)
		}
		if p.Description != nil {
			o.Description = strings.TrimSpace(*p.Description)
		}
		if p.Image != nil {
			o.Image = *p.Image
		}
		if p.Type != nil {
			o.Type = *p.Type
		}
		if p.Price != nil {
			o.Price = *p.Price
		}
		if p.Categories != nil {
			o.Categories = compactIDs(p.Categories)
		}
		o.Modified = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, translate(err, "offer", id)
	}
	return o, nil
}

// Delete removes the offer when authorID owns it. Comments are removed by the
// CommentService observing the table.
func (s *OfferService) Delete(id, authorID ksid.ID) error {
	o := s.table.Get(id)
	if o == nil {
		return fmt.Errorf("offer %s: %w", id, ErrNotFound)
	}
	if o.AuthorID != authorID {
		return ErrForbidden
	}
	if _, err := s.table.Delete(id); err != nil {
		return translate(err, "offer", id)
	}
	return nil
}

// IncrementComments adds delta to the offer's comment count.
func (s *OfferService) IncrementComments(id ksid.ID, delta int) error {
	_, err := s.table.Update(id, func(o *models.Offer) error {
		o.CommentCount = max(o.CommentCount+delta, 0)
		return nil
	})
	return translate(err, "offer", id)
}

func compactIDs(ids []ksid.ID) []ksid.ID {
	out := make([]ksid.ID, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// translate maps table errors to storage sentinels.
func translate(err error, kind string, id ksid.ID) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jsonldb.ErrNotFound):
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	case errors.Is(err, jsonldb.ErrInvalidRow):
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	case errors.Is(err, ErrForbidden):
		return err
	default:
		return fmt.Errorf("failed to update %s %s: %w", kind, id, err)
	}
}
