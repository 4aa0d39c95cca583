package reviews

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/validation"
)

const (
	msgRequired = "Product ID, rating, and comment are required"
	msgRating   = "Rating must be an integer between 1 and 5"
	msgComment  = "Comment must be between 10 and 1000 characters"
)

// SubmitInput is the JSON body of POST /api/reviews. rating may arrive as a number or a
// numeric string.
type SubmitInput struct {
	ProductID string      `json:"productId"`
	Rating    json.Number `json:"rating"`
	Comment   string      `json:"comment"`
}

// Submission is a sanitised, validated review ready to store.
type Submission struct {
	ProductID string `json:"productId" validate:"required"`
	Rating    int    `json:"rating" validate:"min=1,max=5"`
	Comment   string `json:"comment" validate:"min=10,max=1000"`
}

func (in SubmitInput) Normalize() (Submission, error) {
	s := Submission{
		ProductID: validation.SanitizeText(in.ProductID),
		Comment:   validation.SanitizeText(in.Comment),
	}
	raw := strings.TrimSpace(in.Rating.String())
	if s.ProductID == "" || s.Comment == "" || raw == "" {
		return Submission{}, validation.Errorf("", msgRequired)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return Submission{}, validation.Errorf("rating", msgRating)
	}
	if n == 0 {
		return Submission{}, validation.Errorf("", msgRequired)
	}
	s.Rating = n

	if err := validation.Struct(s); err != nil {
		var ve *validation.Error
		if errors.As(err, &ve) {
			switch ve.Field {
			case "rating":
				return Submission{}, validation.Errorf("rating", msgRating)
			case "comment":
				return Submission{}, validation.Errorf("comment", msgComment)
			}
		}
		return Submission{}, err
	}
	return s, nil
}
