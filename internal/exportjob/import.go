package exportjob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/buyandsell/internal/offertsv"
	"github.com/maruel/buyandsell/internal/storage"
	"github.com/maruel/ksid"
)

// ImportStats summarizes an import.
type ImportStats struct {
	Rows    int // lines parsed
	Offers  int // offers created
	Users   int // authors created
	Skipped int // rows rejected by validation
}

// Importer loads TSV files produced by Export or by the generator.
type Importer struct {
	Store *storage.Store
	// DefaultPassword is given to authors that do not exist yet.
	DefaultPassword string
}

// Import reads path and creates the offers it lists. Authors are matched by
// email and categories by name, creating them when missing. Offers failing
// validation are skipped; a malformed line aborts the import.
func (im *Importer) Import(ctx context.Context, path string) (ImportStats, error) {
	var stats ImportStats
	rows, err := offertsv.ReadFile(ctx, path, func(row *offertsv.Row) error {
		created, err := im.importRow(row)
		if created {
			stats.Users++
		}
		if errors.Is(err, storage.ErrInvalid) {
			slog.WarnContext(ctx, "Skipping offer", "title", row.Title, "err", err)
			stats.Skipped++
			return nil
		}
		if err != nil {
			return err
		}
		stats.Offers++
		return nil
	})
	stats.Rows = rows
	if err != nil {
		return stats, fmt.Errorf("failed to import %s: %w", path, err)
	}
	return stats, nil
}

// importRow creates the offer of row and reports whether its author was new.
// Nothing is created for a row that fails validation.
func (im *Importer) importRow(row *offertsv.Row) (bool, error) {
	if err := validateRow(row); err != nil {
		return false, fmt.Errorf("%w: %w", storage.ErrInvalid, err)
	}
	author, created, err := im.author(&row.Author)
	if err != nil {
		return false, err
	}
	cats := make([]ksid.ID, 0, len(row.Categories))
	for _, name := range row.Categories {
		c, err := im.Store.Categories.FindOrCreate(name)
		if err != nil {
			return created, err
		}
		cats = append(cats, c.ID)
	}
	_, err = im.Store.Offers.Create(&models.Offer{
		Title:       row.Title,
		Description: row.Description,
		Image:       row.Image,
		Type:        row.Type,
		Price:       row.Price,
		Categories:  cats,
		AuthorID:    author.ID,
		Created:     row.Created,
	})
	return created, err
}

// validateRow checks row against the models before any author or category
// is created for it. Placeholder IDs stand in for the ones assigned later.
func validateRow(row *offertsv.Row) error {
	placeholder := ksid.NewID()
	cats := make([]ksid.ID, len(row.Categories))
	for i, name := range row.Categories {
		c := models.Category{ID: placeholder, Name: strings.TrimSpace(name)}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("category %d: %w", i+1, err)
		}
		cats[i] = placeholder
	}
	typ := row.Author.Type
	if typ == "" {
		typ = models.UserTypeSimple
	}
	u := models.User{ID: placeholder, Email: storage.NormalizeEmail(row.Author.Email), Name: strings.TrimSpace(row.Author.Name), Type: typ}
	if err := u.Validate(); err != nil {
		return fmt.Errorf("author: %w", err)
	}
	o := models.Offer{
		ID:          placeholder,
		Title:       strings.TrimSpace(row.Title),
		Description: strings.TrimSpace(row.Description),
		Type:        row.Type,
		Price:       row.Price,
		Categories:  cats,
		AuthorID:    placeholder,
	}
	return o.Validate()
}

func (im *Importer) author(a *offertsv.Author) (*models.User, bool, error) {
	u, err := im.Store.Users.GetByEmail(a.Email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}
	u, err = im.Store.Users.Create(a.Email, im.DefaultPassword, a.Name, a.Type)
	if err != nil {
		return nil, false, err
	}
	if a.AvatarPath != "" && a.AvatarPath != u.AvatarPath {
		if u, err = im.Store.Users.SetAvatar(u.ID, a.AvatarPath); err != nil {
			return nil, true, err
		}
	}
	return u, true, nil
}
