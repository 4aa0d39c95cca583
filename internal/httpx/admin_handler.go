package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/auth"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/catalog"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/orders"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/redisx"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/reviews"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/ariefcatur/chulbuli-jewels.git/internal/httpx")

type AdminHandler struct {
	Products ProductStore
	Orders   OrderStore
	// Reviews enables the moderation routes when set.
	Reviews  ReviewStore
	Redis    redis.Cmdable
	Auth     *auth.Verifier
	Events   *Events
	Log      zerolog.Logger
	Limit    *redisx.FixedWindow
	Now      func() time.Time
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/api/admin", func(r chi.Router) {
		if h.Limit != nil {
			r.Use(RateLimit(h.Limit, h.Log, "Too many admin requests. Please slow down."))
		}
		r.Use(h.Auth.Admin, recordUser)

		r.Get("/products", h.listProducts)
		r.Post("/products", h.createProduct)
		r.Put("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deleteProduct)

		r.Get("/orders", h.listOrders)
		r.Put("/orders/{id}", h.updateOrderStatus)

		r.Get("/dashboard", h.dashboard)

		if h.Reviews != nil {
			r.Get("/reviews", h.listReviews)
			r.Put("/reviews/{id}", h.moderateReview)
			r.Delete("/reviews/{id}", h.deleteReview)
		}
	})
}

func (h *AdminHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Products.List(r.Context(), catalog.Filter{Sort: catalog.SortLatest})
	if err != nil {
		h.Log.Error().Err(err).Msg("admin list products")
		writeError(w, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *AdminHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	p, err := in.Normalize()
	if err != nil {
		writeValidation(w, err)
		return
	}
	if err := h.Products.Create(r.Context(), &p); err != nil {
		h.Log.Error().Err(err).Msg("create product")
		writeError(w, http.StatusInternalServerError, "Failed to create product")
		return
	}

	h.Events.emit(r.Context(), orders.TopicProductChanged, orders.EventProductCreated, p.ID, productPayload(r.Context(), &p))
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "product": p})
}

func (h *AdminHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	p, err := in.Normalize()
	if err != nil {
		writeValidation(w, err)
		return
	}
	p.ID = chi.URLParam(r, "id")

	err = h.Products.Update(r.Context(), &p)
	if errors.Is(err, catalog.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Str("product_id", p.ID).Msg("update product")
		writeError(w, http.StatusInternalServerError, "Failed to update product")
		return
	}

	invalidateProducts(r.Context(), h.Redis, h.Log, p.ID)
	h.Events.emit(r.Context(), orders.TopicProductChanged, orders.EventProductUpdated, p.ID, productPayload(r.Context(), &p))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "product": p})
}

func (h *AdminHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.Products.Delete(r.Context(), id)
	var inUse *catalog.InUseError
	switch {
	case errors.As(err, &inUse):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      inUse.Error(),
			"orderCount": inUse.OrderCount,
			"suggestion": "Set stock to 0 instead of deleting",
		})
		return
	case errors.Is(err, catalog.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "Product not found")
		return
	case err != nil:
		h.Log.Error().Err(err).Str("product_id", id).Msg("delete product")
		writeError(w, http.StatusInternalServerError, "Failed to delete product")
		return
	}

	invalidateProducts(r.Context(), h.Redis, h.Log, id)
	h.Events.emit(r.Context(), orders.TopicProductChanged, orders.EventProductDeleted, id,
		orders.ProductChangedPayload{ProductID: id, ActorID: auth.UserID(r.Context())})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Product deleted successfully"})
}

func (h *AdminHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Orders.ListAll(r.Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("admin list orders")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type statusUpdate struct {
	Status orders.Status `json:"status"`
}

func (h *AdminHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body statusUpdate
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(r.Context(), "admin.UpdateOrderStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id), attribute.String("order.status", string(body.Status)))

	o, from, err := h.Orders.UpdateStatus(ctx, id, body.Status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update status")
		writeOrderError(w, r, h.Log, err, "Internal server error")
		return
	}

	h.Events.emit(ctx, orders.TopicOrderStatusChanged, orders.EventOrderStatusChanged, o.ID,
		orders.OrderStatusChangedPayload{OrderID: o.ID, From: from, To: o.Status, ActorID: auth.UserID(ctx)})
	writeJSON(w, http.StatusOK, o)
}

func (h *AdminHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	d, err := h.Orders.Dashboard(r.Context(), now())
	if err != nil {
		h.Log.Error().Err(err).Msg("dashboard")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *AdminHandler) listReviews(w http.ResponseWriter, r *http.Request) {
	list, err := h.Reviews.List(r.Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("admin list reviews")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type reviewModeration struct {
	Approved *bool `json:"approved"`
}

func (h *AdminHandler) moderateReview(w http.ResponseWriter, r *http.Request) {
	var body reviewModeration
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	if body.Approved == nil {
		writeError(w, http.StatusBadRequest, "approved must be true or false")
		return
	}
	id := chi.URLParam(r, "id")

	rv, err := h.Reviews.SetApproved(r.Context(), id, *body.Approved)
	if errors.Is(err, reviews.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Review not found")
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Str("review_id", id).Msg("moderate review")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	eventType := orders.EventReviewRejected
	if rv.Approved {
		eventType = orders.EventReviewApproved
	}
	h.Events.emit(r.Context(), orders.TopicReviewChanged, eventType, rv.ID, orders.ReviewChangedPayload{
		ReviewID: rv.ID, ProductID: rv.ProductID, UserID: rv.UserID, Rating: rv.Rating, ActorID: auth.UserID(r.Context()),
	})
	writeJSON(w, http.StatusOK, rv)
}

func (h *AdminHandler) deleteReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rv, err := h.Reviews.Delete(r.Context(), id)
	if errors.Is(err, reviews.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Review not found")
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Str("review_id", id).Msg("delete review")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.Events.emit(r.Context(), orders.TopicReviewChanged, orders.EventReviewDeleted, rv.ID, orders.ReviewChangedPayload{
		ReviewID: rv.ID, ProductID: rv.ProductID, UserID: rv.UserID, ActorID: auth.UserID(r.Context()),
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Review deleted successfully"})
}

func writeValidation(w http.ResponseWriter, err error) {
	var ve *validation.Error
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Message)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func productPayload(ctx context.Context, p *catalog.Product) orders.ProductChangedPayload {
	stock := p.Stock
	return orders.ProductChangedPayload{ProductID: p.ID, Name: p.Name, Stock: &stock, ActorID: auth.UserID(ctx)}
}
