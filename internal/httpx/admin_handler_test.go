package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/auth"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/catalog"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adminFixture struct {
	router   *chi.Mux
	products *fakeProducts
	orders   *fakeOrders
	reviews  *fakeReviews
	pub      *fakePub
	mr       *miniredis.Miniredis
	admin    string
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	mr, rdb := newRedis(t)
	f := &adminFixture{
		products: newFakeProducts(sampleProduct("p1", catalog.CategoryEarrings)),
		orders: &fakeOrders{
			byID: map[string]*orders.Order{"o1": {ID: "o1", Status: orders.StatusPlaced}},
			dashboard: &orders.Dashboard{
				TotalSales:          decimal.RequireFromString("1000.50"),
				TotalOrders:         3,
				BestSellingProducts: []orders.BestSeller{},
				LowStockProducts:    []catalog.Summary{},
			},
		},
		reviews: newFakeReviews(),
		pub:     &fakePub{},
		mr:      mr,
		admin:   token(t, "admin-1", auth.RoleAdmin),
	}
	h := &AdminHandler{
		Products: f.products,
		Orders:   f.orders,
		Reviews:  f.reviews,
		Redis:    rdb,
		Auth:     auth.NewVerifier(testSecret),
		Events:   &Events{Pub: f.pub, Service: "storefront-api", Log: zerolog.Nop()},
		Log:      zerolog.Nop(),
		Now:      func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) },
	}
	f.router = NewRouter(zerolog.Nop(), nil)
	h.Register(f.router)
	return f
}

func (f *adminFixture) do(method, path, body, tok string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

const productBody = `{
	"name": "Pearl Drop Necklace",
	"description": "Freshwater pearl pendant on a fine chain.",
	"price": 1299,
	"discount": 15,
	"category": "necklaces",
	"stock": 12,
	"images": ["https://img.example.com/pearl.jpg"],
	"material": "Sterling Silver"
}`

func TestAdminRequiresAdmin(t *testing.T) {
	f := newAdminFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/admin/products", "", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/admin/products", "", token(t, "u1", "user")).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/admin/products", "", f.admin).Code)
}

func TestAdminCreateProduct(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(http.MethodPost, "/api/admin/products", productBody, f.admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got struct {
		Success bool            `json:"success"`
		Product catalog.Product `json:"product"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Success)
	assert.Equal(t, "Pearl Drop Necklace", got.Product.Name)
	assert.Equal(t, catalog.CategoryNecklaces, got.Product.Category)

	msgs := f.pub.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, orders.TopicProductChanged, msgs[0].Topic)
	assert.Equal(t, orders.EventProductCreated, msgs[0].Env.EventType)

	var payload orders.ProductChangedPayload
	require.NoError(t, json.Unmarshal(msgs[0].Env.Payload, &payload))
	assert.Equal(t, "admin-1", payload.ActorID)
	require.NotNil(t, payload.Stock)
	assert.Equal(t, 12, *payload.Stock)
}

func TestAdminCreateProductInvalid(t *testing.T) {
	f := newAdminFixture(t)
	w := f.do(http.MethodPost, "/api/admin/products", strings.Replace(productBody, `"discount": 15`, `"discount": 150`, 1), f.admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Discount must be between 0 and 100"}`, w.Body.String())
	assert.Empty(t, f.pub.all())
}

func TestAdminUpdateProduct(t *testing.T) {
	f := newAdminFixture(t)
	require.NoError(t, f.mr.Set("product:p1", "{}"))

	w := f.do(http.MethodPut, "/api/admin/products/p1", productBody, f.admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, f.mr.Exists("product:p1"))
	assert.Equal(t, "Pearl Drop Necklace", f.products.items["p1"].Name)

	w = f.do(http.MethodPut, "/api/admin/products/nope", productBody, f.admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminDeleteProduct(t *testing.T) {
	f := newAdminFixture(t)
	f.products.inUse["p1"] = 3

	w := f.do(http.MethodDelete, "/api/admin/products/p1", "", f.admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{
		"error": "Cannot delete product. It exists in 3 order(s). Consider marking it as out of stock instead.",
		"orderCount": 3,
		"suggestion": "Set stock to 0 instead of deleting"
	}`, w.Body.String())

	f.products.inUse["p1"] = 0
	w = f.do(http.MethodDelete, "/api/admin/products/p1", "", f.admin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Product deleted successfully"}`, w.Body.String())
	require.Len(t, f.pub.all(), 1)
	assert.Equal(t, orders.EventProductDeleted, f.pub.all()[0].Env.EventType)

	w = f.do(http.MethodDelete, "/api/admin/products/p1", "", f.admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminUpdateOrderStatus(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(http.MethodPut, "/api/admin/orders/o1", `{"status":"shipped"}`, f.admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got orders.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, orders.StatusShipped, got.Status)

	msgs := f.pub.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, orders.TopicOrderStatusChanged, msgs[0].Topic)
	var payload orders.OrderStatusChangedPayload
	require.NoError(t, json.Unmarshal(msgs[0].Env.Payload, &payload))
	assert.Equal(t, orders.StatusPlaced, payload.From)
	assert.Equal(t, orders.StatusShipped, payload.To)
	assert.Equal(t, "admin-1", payload.ActorID)

	w = f.do(http.MethodPut, "/api/admin/orders/o1", `{"status":"packed"}`, f.admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Cannot change status from shipped to packed"}`, w.Body.String())

	w = f.do(http.MethodPut, "/api/admin/orders/o1", `{"status":"lost"}`, f.admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid status"}`, w.Body.String())

	w = f.do(http.MethodPut, "/api/admin/orders/zzz", `{"status":"delivered"}`, f.admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.orders.updateErr = errors.New("connection refused")
	w = f.do(http.MethodPut, "/api/admin/orders/o1", `{"status":"delivered"}`, f.admin)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
	assert.Len(t, f.pub.all(), 1)
}

func TestAdminDashboardAndOrders(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(http.MethodGet, "/api/admin/dashboard", "", f.admin)
	require.Equal(t, http.StatusOK, w.Code)
	var d orders.Dashboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, 3, d.TotalOrders)
	assert.True(t, decimal.RequireFromString("1000.5").Equal(d.TotalSales))

	w = f.do(http.MethodGet, "/api/admin/orders", "", f.admin)
	require.Equal(t, http.StatusOK, w.Code)
	var list []orders.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}
