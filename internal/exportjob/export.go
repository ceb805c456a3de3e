// Package exportjob moves the offer catalogue between storage and TSV files.
//
// Exports run on demand or on a cron schedule; imports recreate the authors
// and categories a file refers to.
package exportjob

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maruel/buyandsell/internal/filewriter"
	"github.com/maruel/buyandsell/internal/metrics"
	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/buyandsell/internal/offertsv"
	"github.com/maruel/buyandsell/internal/storage"
)

// Exporter dumps offers from a Store.
type Exporter struct {
	Store *storage.Store
	// Metrics is optional.
	Metrics *metrics.Metrics
	// HighWaterMark tunes the writer buffer; 0 selects the default.
	HighWaterMark int
}

// ExportOffers writes every offer in store to path and returns the number of
// rows written.
func ExportOffers(ctx context.Context, store *storage.Store, path string) (int, error) {
	e := Exporter{Store: store}
	return e.Export(ctx, path)
}

// Export writes every offer to path, replacing its content.
//
// Offers whose author no longer exists are skipped.
func (e *Exporter) Export(ctx context.Context, path string) (n int, err error) {
	start := time.Now()
	defer func() {
		if e.Metrics != nil {
			e.Metrics.RecordExport(n, time.Since(start), err)
		}
	}()
	err = filewriter.WithFile(path, func(w *filewriter.Writer) error {
		for _, o := range e.Store.Offers.All() {
			if err := ctx.Err(); err != nil {
				return err
			}
			row, err := e.row(o)
			if err != nil {
				slog.WarnContext(ctx, "Skipping offer", "offer", o.ID, "err", err)
				continue
			}
			if err := w.Write(offertsv.Format(row)); err != nil {
				return err
			}
			n++
		}
		return nil
	}, filewriter.WithHighWaterMark(e.HighWaterMark))
	if err != nil {
		return n, fmt.Errorf("failed to export offers to %s: %w", path, err)
	}
	return n, nil
}

// row joins an offer with its author and category names.
func (e *Exporter) row(o *models.Offer) (*offertsv.Row, error) {
	author, err := e.Store.Users.Get(o.AuthorID)
	if err != nil {
		return nil, err
	}
	cats := make([]string, 0, len(o.Categories))
	for _, id := range o.Categories {
		c, err := e.Store.Categories.Get(id)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c.Name)
	}
	return &offertsv.Row{
		Title:       o.Title,
		Description: o.Description,
		Created:     o.Created,
		Image:       o.Image,
		Type:        o.Type,
		Price:       o.Price,
		Categories:  cats,
		Author: offertsv.Author{
			Name:       author.Name,
			Email:      author.Email,
			AvatarPath: author.AvatarPath,
			Type:       author.Type,
		},
	}, nil
}
