package catalog

import (
	"net/url"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/validation"
	"github.com/shopspring/decimal"
)

// ParseFilter reads category, minPrice, maxPrice, featured and sort query parameters.
// category=all and unknown sort values are treated as absent.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{Sort: SortLatest}

	if c := q.Get("category"); c != "" && c != "all" {
		f.Category = Category(c)
	}
	if v := q.Get("minPrice"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			return Filter{}, validation.Errorf("minPrice", "Invalid minPrice parameter")
		}
		f.MinPrice = &d
	}
	if v := q.Get("maxPrice"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			return Filter{}, validation.Errorf("maxPrice", "Invalid maxPrice parameter")
		}
		f.MaxPrice = &d
	}
	f.FeaturedOnly = q.Get("featured") == "true"

	switch s := Sort(q.Get("sort")); s {
	case SortPriceAsc, SortPriceDesc:
		f.Sort = s
	}
	return f, nil
}
