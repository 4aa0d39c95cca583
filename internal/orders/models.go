package orders

import (
	"strings"
	"time"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/catalog"
	"github.com/shopspring/decimal"
)

const PaymentCOD = "cod"

type Order struct {
	ID             string          `json:"id"`
	UserID         *string         `json:"userId"`
	IdempotencyKey *string         `json:"-"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	CustomerName   string          `json:"customerName"`
	CustomerEmail  string          `json:"customerEmail"`
	CustomerPhone  string          `json:"customerPhone"`
	AddressLine1   string          `json:"addressLine1"`
	AddressLine2   *string         `json:"addressLine2"`
	City           string          `json:"city"`
	State          string          `json:"state"`
	Pincode        string          `json:"pincode"`
	Status         Status          `json:"status"`
	PaymentMethod  string          `json:"paymentMethod"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Items          []OrderItem     `json:"orderItems"`

	// Customer is only populated for admin listings of orders placed by a signed-in user.
	Customer *Customer `json:"user,omitempty"`
}

// PlacedBy reports whether o was created by the caller described by in. A signed-in caller
// must own the order; a guest must match a guest order's contact email and phone.
func (o *Order) PlacedBy(in PlaceOrderInput) bool {
	if in.UserID != "" {
		return o.UserID != nil && *o.UserID == in.UserID
	}
	return o.UserID == nil &&
		strings.EqualFold(o.CustomerEmail, in.CustomerEmail) &&
		o.CustomerPhone == in.CustomerPhone
}

// OrderItem.Price is the unit price charged at checkout, independent of later product edits.
type OrderItem struct {
	ID        string           `json:"id"`
	OrderID   string           `json:"orderId"`
	ProductID string           `json:"productId"`
	Quantity  int              `json:"quantity"`
	Price     decimal.Decimal  `json:"price"`
	Product   *catalog.Product `json:"product,omitempty"`
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LineItem is one validated cart line.
type LineItem struct {
	ProductID string
	Quantity  int
}

// PlaceOrderInput is the typed, sanitised checkout request. An empty UserID is a guest order.
type PlaceOrderInput struct {
	UserID         string
	IdempotencyKey string
	Items          []LineItem
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	AddressLine1   string
	AddressLine2   string
	City           string
	State          string
	Pincode        string
}

type BestSeller struct {
	catalog.Summary
	TotalSold int `json:"totalSold"`
}

type Dashboard struct {
	TotalSales          decimal.Decimal   `json:"totalSales"`
	TotalOrders         int               `json:"totalOrders"`
	TodaySales          decimal.Decimal   `json:"todaySales"`
	MonthSales          decimal.Decimal   `json:"monthSales"`
	BestSellingProducts []BestSeller      `json:"bestSellingProducts"`
	LowStockProducts    []catalog.Summary `json:"lowStockProducts"`
}
