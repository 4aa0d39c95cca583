package catalog

import (
	"strings"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/validation"
	"github.com/shopspring/decimal"
)

const (
	MaxStock  = 100000
	MaxImages = 10
)

var maxPrice = decimal.NewFromInt(1000000)

// ProductInput is the admin create/update payload.
type ProductInput struct {
	Name        string          `json:"name" validate:"required,min=3,max=200"`
	Description string          `json:"description" validate:"required,min=10,max=5000"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	Category    string          `json:"category" validate:"required"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Images      []string        `json:"images" validate:"dive,required,http_url"`
	Material    string          `json:"material" validate:"max=100"`
	Featured    bool            `json:"featured"`
}

// Normalize sanitises text fields and checks every business rule, returning the product
// fields ready to persist. ID and timestamps are left for the caller.
func (in ProductInput) Normalize() (Product, error) {
	in.Name = validation.SanitizeText(in.Name)
	in.Description = validation.SanitizeText(in.Description)
	in.Category = strings.ToLower(validation.SanitizeText(in.Category))
	in.Material = validation.SanitizeText(in.Material)
	images := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		images = append(images, strings.TrimSpace(img))
	}
	in.Images = images

	if in.Name == "" || in.Description == "" || in.Category == "" || len(in.Images) == 0 {
		return Product{}, validation.Errorf("", "Missing required fields: name, description, price, category, stock, and at least one image")
	}
	if !in.Price.IsPositive() || in.Price.GreaterThan(maxPrice) {
		return Product{}, validation.Errorf("price", "Price must be between 0 and 1,000,000")
	}
	if in.Discount.IsNegative() || in.Discount.GreaterThan(hundred) {
		return Product{}, validation.Errorf("discount", "Discount must be between 0 and 100")
	}
	if in.Stock < 0 || in.Stock > MaxStock {
		return Product{}, validation.Errorf("stock", "Stock must be between 0 and 100,000")
	}
	if !Category(in.Category).Valid() {
		names := make([]string, len(Categories))
		for i, c := range Categories {
			names[i] = string(c)
		}
		return Product{}, validation.Errorf("category", "Category must be one of: %s", strings.Join(names, ", "))
	}
	if len(in.Images) > MaxImages {
		return Product{}, validation.Errorf("images", "Maximum 10 images allowed per product")
	}
	if err := validation.Struct(in); err != nil {
		return Product{}, err
	}

	p := Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Discount:    in.Discount,
		Category:    Category(in.Category),
		Stock:       in.Stock,
		Images:      in.Images,
		Featured:    in.Featured,
	}
	if in.Material != "" {
		m := in.Material
		p.Material = &m
	}
	return p, nil
}
