// Package reviews stores verified-buyer product reviews and their moderation state.
package reviews

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("review not found")
	ErrNotPurchased    = errors.New("reviewer has not purchased the product")
	ErrAlreadyReviewed = errors.New("product already reviewed by this user")
)

// Review is hidden from shoppers until an admin approves it.
type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	User    *Author     `json:"user,omitempty"`
	Product *ProductRef `json:"product,omitempty"`
}

type Author struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type ProductRef struct {
	Name string `json:"name"`
}

// Summary is the public view of a product's approved reviews.
type Summary struct {
	Reviews       []Review        `json:"reviews"`
	AverageRating decimal.Decimal `json:"averageRating"`
	ReviewCount   int             `json:"reviewCount"`
}

// Summarize averages the ratings to one decimal place, half up. No reviews average to 0.
func Summarize(list []Review) Summary {
	s := Summary{Reviews: list, ReviewCount: len(list)}
	if s.Reviews == nil {
		s.Reviews = []Review{}
	}
	if len(list) == 0 {
		return s
	}
	var sum int64
	for _, r := range list {
		sum += int64(r.Rating)
	}
	s.AverageRating = decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(list)))).Round(1)
	return s
}
