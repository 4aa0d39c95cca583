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
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ReviewsHandler serves shopper-facing review routes. Moderation lives on AdminHandler.
type ReviewsHandler struct {
	Store  ReviewStore
	Auth   *auth.Verifier
	Events *Events
	Log    zerolog.Logger
	Limit  *redisx.FixedWindow
}

func (h *ReviewsHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.Limit != nil {
			r.Use(RateLimit(h.Limit, h.Log, "Too many requests from this IP, please try again later."))
		}
		r.Get("/api/products/{id}/reviews", h.forProduct)
		r.With(h.Auth.Required, recordUser).Post("/api/reviews", h.submit)
	})
}

func (h *ReviewsHandler) submit(w http.ResponseWriter, r *http.Request) {
	var in reviews.SubmitInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	s, err := in.Normalize()
	if err != nil {
		writeValidation(w, err)
		return
	}
	ctx := r.Context()
	userID := auth.UserID(ctx)

	rv, err := h.Store.Submit(ctx, userID, s)
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "Product not found")
		return
	case errors.Is(err, reviews.ErrNotPurchased):
		writeError(w, http.StatusForbidden, "You can only review products you have purchased")
		return
	case errors.Is(err, reviews.ErrAlreadyReviewed):
		writeError(w, http.StatusBadRequest, "You have already reviewed this product")
		return
	case err != nil:
		h.Log.Error().Err(err).Str("product_id", s.ProductID).Str("user_id", userID).Msg("submit review")
		writeError(w, http.StatusInternalServerError, "Failed to submit review. Please try again.")
		return
	}

	h.Events.emit(ctx, orders.TopicReviewChanged, orders.EventReviewSubmitted, rv.ID, orders.ReviewChangedPayload{
		ReviewID: rv.ID, ProductID: rv.ProductID, UserID: userID, Rating: rv.Rating,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"review":  rv,
		"message": "Review submitted successfully. It will be visible after admin approval.",
	})
}

func (h *ReviewsHandler) forProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s, err := h.Store.ForProduct(ctx, id)
	if errors.Is(err, catalog.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Str("product_id", id).Msg("product reviews")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}
