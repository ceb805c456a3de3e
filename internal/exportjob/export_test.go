package exportjob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maruel/buyandsell/internal/metrics"
	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/buyandsell/internal/offertsv"
	"github.com/maruel/buyandsell/internal/storage"
	"github.com/maruel/ksid"
	"golang.org/x/crypto/bcrypt"
)

func newStore(t *testing.T, offers int) *storage.Store {
	t.Helper()
	s, err := storage.Open(storage.Options{
		DataDir:      t.TempDir(),
		DBName:       "db",
		UploadDir:    t.TempDir(),
		Salt:         "salt",
		PasswordCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatal(err)
	}
	u, err := s.Users.Create("seller@example.com", "secret1", "Seller", models.UserTypePro)
	if err != nil {
		t.Fatal(err)
	}
	cat, err := s.Categories.Create("Books", "")
	if err != nil {
		t.Fatal(err)
	}
	for i := range offers {
		if _, err := s.Offers.Create(&models.Offer{
			Title:       "Collected works volume",
			Description: strings.Repeat("Hardcover edition in very good shape. ", 2),
			Image:       "book.jpg",
			Type:        models.OfferTypeSell,
			Price:       100 + i,
			Categories:  []ksid.ID{cat.ID},
			AuthorID:    u.ID,
			Created:     time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC),
		}); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestExportOffers(t *testing.T) {
	s := newStore(t, 50)
	path := filepath.Join(t.TempDir(), "offers.tsv")
	n, err := ExportOffers(t.Context(), s, path)
	if err != nil {
		t.Fatal(err)
	}
	if n != 50 {
		t.Errorf("exported %d rows, want 50", n)
	}
	var prices []int
	read, err := offertsv.ReadFile(t.Context(), path, func(r *offertsv.Row) error {
		if r.Author.Email != "seller@example.com" || r.Categories[0] != "Books" {
			t.Errorf("unexpected row %+v", r)
		}
		prices = append(prices, r.Price)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if read != 50 {
		t.Fatalf("read back %d rows", read)
	}
	for i, p := range prices {
		if p != 100+i {
			t.Fatalf("row %d has price %d, rows out of order", i, p)
		}
	}
}

func TestExportEmpty(t *testing.T) {
	s := newStore(t, 0)
	path := filepath.Join(t.TempDir(), "offers.tsv")
	if err := os.WriteFile(path, []byte("stale\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	e := Exporter{Store: s, Metrics: metrics.New(), HighWaterMark: 16}
	n, err := e.Export(t.Context(), path)
	if err != nil || n != 0 {
		t.Fatalf("Export = %d, %v", n, err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != 0 {
		t.Errorf("stale content kept: %d bytes", fi.Size())
	}
}

func TestExportCanceled(t *testing.T) {
	s := newStore(t, 3)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := ExportOffers(ctx, s, filepath.Join(t.TempDir(), "x.tsv")); err == nil {
		t.Error("expected error on canceled context")
	}
}

func TestExportBadPath(t *testing.T) {
	s := newStore(t, 1)
	if _, err := ExportOffers(t.Context(), s, filepath.Join(t.TempDir(), "missing", "x.tsv")); err == nil {
		t.Error("expected error")
	}
}

func TestScheduler(t *testing.T) {
	s := newStore(t, 2)
	dir := filepath.Join(t.TempDir(), "exports")
	if _, err := NewScheduler("not a schedule", dir, &Exporter{Store: s}); err == nil {
		t.Error("expected error for invalid spec")
	}
	sched, err := NewScheduler("@hourly", dir, &Exporter{Store: s})
	if err != nil {
		t.Fatal(err)
	}
	sched.now = func() time.Time { return time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC) }
	path, n, err := sched.RunOnce(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "offers-20240203T040506Z.tsv" || n != 2 {
		t.Errorf("RunOnce = %s, %d", path, n)
	}
	sched.Start(t.Context())
	if err := sched.Stop(t.Context()); err != nil {
		t.Error(err)
	}
}
