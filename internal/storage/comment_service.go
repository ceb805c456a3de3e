package storage

import (
	"cmp"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/maruel/buyandsell/internal/jsonldb"
	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/ksid"
)

// CommentService manages comments on offers.
type CommentService struct {
	table   *jsonldb.Table[*models.Comment]
	byOffer *jsonldb.Index[ksid.ID, *models.Comment]
	offers  *OfferService
}

// NewCommentService opens the comments table in dir. Deleting an offer
// deletes its comments.
func NewCommentService(dir string, offers *OfferService) (*CommentService, error) {
	table, err := jsonldb.NewTable[*models.Comment](filepath.Join(dir, "comments.jsonl"))
	if err != nil {
		return nil, err
	}
	s := &CommentService{
		table:   table,
		byOffer: jsonldb.NewIndex(table, func(c *models.Comment) ksid.ID { return c.OfferID }),
		offers:  offers,
	}
	offers.table.AddObserver(offerCascade{s})
	return s, nil
}

// Create adds a comment and bumps the offer's comment count.
func (s *CommentService) Create(offerID, authorID ksid.ID, text string) (*models.Comment, error) {
	if _, err := s.offers.Get(offerID); err != nil {
		return nil, err
	}
	c := &models.Comment{
		ID:       ksid.NewID(),
		OfferID:  offerID,
		AuthorID: authorID,
		Text:     strings.TrimSpace(text),
		Created:  time.Now().UTC(),
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := s.table.Append(c); err != nil {
		return nil, fmt.Errorf("failed to store comment: %w", err)
	}
	if err := s.offers.IncrementComments(offerID, 1); err != nil {
		// The offer vanished concurrently.
		_, _ = s.table.Delete(c.ID)
		return nil, err
	}
	return c, nil
}

// ListByOffer returns up to limit comments on the offer, newest first.
// limit <= 0 returns all of them.
func (s *CommentService) ListByOffer(offerID ksid.ID, limit int) []*models.Comment {
	out := s.byOffer.Get(offerID)
	slices.SortFunc(out, func(a, b *models.Comment) int {
		if c := b.Created.Compare(a.Created); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DeleteByOffer removes every comment on the offer.
func (s *CommentService) DeleteByOffer(offerID ksid.ID) (int, error) {
	if s.byOffer.Count(offerID) == 0 {
		return 0, nil
	}
	return s.table.DeleteFunc(func(c *models.Comment) bool { return c.OfferID == offerID })
}

// Count returns the number of comments.
func (s *CommentService) Count() int {
	return s.table.Len()
}

// offerCascade removes comments when their offer is deleted.
type offerCascade struct {
	s *CommentService
}

func (offerCascade) OnAppend(*models.Offer) {}

func (offerCascade) OnUpdate(_, _ *models.Offer) {}

func (o offerCascade) OnDelete(offer *models.Offer) {
	if _, err := o.s.DeleteByOffer(offer.ID); err != nil {
		slog.Error("failed to delete comments of removed offer", "offer", offer.ID, "err", err)
	}
}
