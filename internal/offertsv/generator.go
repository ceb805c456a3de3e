package offertsv

import (
	"math/rand/v2"
	"time"

	"github.com/maruel/buyandsell/internal/models"
)

const (
	maxCategoriesPerOffer = 3
	maxAgeDays            = 7
)

// Generator produces random offers from MockData.
//
// A Generator is not safe for concurrent use.
type Generator struct {
	data *MockData
	rnd  *rand.Rand
	now  time.Time
}

// NewGenerator returns a Generator seeded with seed, so equal seeds give equal
// sequences for the same data and reference time.
func NewGenerator(data *MockData, seed uint64, now time.Time) (*Generator, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &Generator{
		data: data,
		rnd:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), //nolint:gosec // G404: test data
		now:  now.UTC().Truncate(time.Second),
	}, nil
}

// Next returns a new random row.
func (g *Generator) Next() *Row {
	u := pick(g.rnd, g.data.Users)
	userType := models.UserType(u.Type)
	if userType.Validate() != nil {
		userType = models.UserTypeSimple
	}
	offerType := models.OfferTypeSell
	if g.rnd.IntN(2) == 0 {
		offerType = models.OfferTypeBuy
	}
	age := time.Duration(g.rnd.Int64N(int64(maxAgeDays * 24 * time.Hour)))
	return &Row{
		Title:       pick(g.rnd, g.data.Titles),
		Description: pick(g.rnd, g.data.Descriptions),
		Created:     g.now.Add(-age).Truncate(time.Second),
		Image:       pick(g.rnd, g.data.Images),
		Type:        offerType,
		Price:       models.MinPrice + g.rnd.IntN(models.MaxPrice-models.MinPrice+1),
		Categories:  g.categories(),
		Author: Author{
			Name:       u.Name,
			Email:      u.Email,
			AvatarPath: u.AvatarPath,
			Type:       userType,
		},
	}
}

// categories returns 1 to 3 distinct category names.
func (g *Generator) categories() []string {
	n := 1 + g.rnd.IntN(min(maxCategoriesPerOffer, len(g.data.Categories)))
	idx := g.rnd.Perm(len(g.data.Categories))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = g.data.Categories[j]
	}
	return out
}

func pick[T any](r *rand.Rand, s []T) T {
	return s[r.IntN(len(s))]
}
