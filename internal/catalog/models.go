package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryEarrings  Category = "earrings"
	CategoryNecklaces Category = "necklaces"
	CategoryRings     Category = "rings"
	CategoryBangles   Category = "bangles"
	CategorySets      Category = "sets"
)

var Categories = []Category{CategoryEarrings, CategoryNecklaces, CategoryRings, CategoryBangles, CategorySets}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

var hundred = decimal.NewFromInt(100)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"` // percent, 0-100
	Category    Category        `json:"category"`
	Stock       int             `json:"stock"`
	Images      []string        `json:"images"`
	Material    *string         `json:"material"`
	Featured    bool            `json:"featured"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// EffectivePrice is the unit price after discount: price - price*discount/100. It is not rounded.
func (p Product) EffectivePrice() decimal.Decimal {
	return p.Price.Sub(p.Price.Mul(p.Discount).Div(hundred))
}

type Sort string

const (
	SortLatest    Sort = "latest"
	SortPriceAsc  Sort = "price-asc"
	SortPriceDesc Sort = "price-desc"
)

// Filter narrows List. Zero values mean "no constraint".
type Filter struct {
	Category     Category
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	FeaturedOnly bool
	Sort         Sort
}

// Summary is a compact product view used by the admin dashboard.
type Summary struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
	Images []string        `json:"images"`
}
