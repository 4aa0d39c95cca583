package orders

import (
	"strings"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/validation"
)

const (
	MaxLineQuantity = 100
	// MaxCartLines keeps the largest possible total inside orders.total_price NUMERIC(12,2).
	MaxCartLines = 50
)

// CheckoutRequest is the JSON body of POST /api/orders. Client-side prices and user ids
// are deliberately absent: prices come from the database, identity from the auth layer.
type CheckoutRequest struct {
	Items         []CartLine `json:"items" validate:"max=50,dive"`
	CustomerName  string     `json:"customerName" validate:"min=2,max=100"`
	CustomerEmail string     `json:"customerEmail"`
	CustomerPhone string     `json:"customerPhone"`
	AddressLine1  string     `json:"addressLine1" validate:"min=5,max=200"`
	AddressLine2  string     `json:"addressLine2" validate:"max=200"`
	City          string     `json:"city" validate:"min=2,max=100"`
	State         string     `json:"state" validate:"min=2,max=100"`
	Pincode       string     `json:"pincode"`
}

type CartLine struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1,max=100"`
}

// Normalize sanitises and validates the request without touching any store. The same
// payload always produces the same result.
func (r CheckoutRequest) Normalize(userID, idempotencyKey string) (PlaceOrderInput, error) {
	if len(r.Items) == 0 {
		return PlaceOrderInput{}, ValidationError("Cart is empty")
	}

	s := CheckoutRequest{
		Items:         make([]CartLine, len(r.Items)),
		CustomerName:  validation.SanitizeText(r.CustomerName),
		CustomerEmail: validation.SanitizeText(r.CustomerEmail),
		CustomerPhone: validation.SanitizeText(r.CustomerPhone),
		AddressLine1:  validation.SanitizeText(r.AddressLine1),
		AddressLine2:  validation.SanitizeText(r.AddressLine2),
		City:          validation.SanitizeText(r.City),
		State:         validation.SanitizeText(r.State),
		Pincode:       validation.SanitizeText(r.Pincode),
	}
	for i, it := range r.Items {
		s.Items[i] = CartLine{ProductID: strings.TrimSpace(it.ProductID), Quantity: it.Quantity}
	}

	if s.CustomerName == "" || s.CustomerEmail == "" || s.CustomerPhone == "" ||
		s.AddressLine1 == "" || s.City == "" || s.State == "" || s.Pincode == "" {
		return PlaceOrderInput{}, ValidationError("All address fields are required")
	}
	if err := validation.Struct(s); err != nil {
		return PlaceOrderInput{}, ValidationError(err.Error())
	}

	email, err := validation.ValidateEmail(s.CustomerEmail)
	if err != nil {
		return PlaceOrderInput{}, ValidationError(err.Error())
	}
	phone, err := validation.ValidatePhone(s.CustomerPhone)
	if err != nil {
		return PlaceOrderInput{}, ValidationError(err.Error())
	}
	pincode, err := validation.ValidatePincode(s.Pincode)
	if err != nil {
		return PlaceOrderInput{}, ValidationError(err.Error())
	}

	items := make([]LineItem, len(s.Items))
	for i, it := range s.Items {
		items[i] = LineItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return PlaceOrderInput{
		UserID:         userID,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		Items:          items,
		CustomerName:   s.CustomerName,
		CustomerEmail:  email,
		CustomerPhone:  phone,
		AddressLine1:   s.AddressLine1,
		AddressLine2:   s.AddressLine2,
		City:           s.City,
		State:          s.State,
		Pincode:        pincode,
	}, nil
}
