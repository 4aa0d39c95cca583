package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/auth"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/orders"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type OrdersHandler struct {
	Placer OrderPlacer
	Repo   OrderStore
	Redis  redis.Cmdable
	Auth   *auth.Verifier
	Events *Events
	Log    zerolog.Logger
	// Limit is applied to order creation when set.
	Limit *redisx.FixedWindow
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.Limit != nil {
			r.Use(RateLimit(h.Limit, h.Log, "Too many requests from this IP, please try again later."))
		}
		r.Use(h.Auth.Optional, recordUser)
		r.Post("/api/orders", h.createOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.Required, recordUser)
		r.Get("/api/orders", h.listMine)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}

	userID := auth.UserID(r.Context())
	in, err := req.Normalize(userID, scopedKey(userID, r.Header.Get(HeaderIdempotencyKey)))
	if err != nil {
		writeOrderError(w, r, h.Log, err, "")
		return
	}
	ctx := r.Context()

	// Fast-path idempotency via Redis; the unique column stays the source of truth
	if in.IdempotencyKey != "" {
		o, err := h.replay(ctx, in)
		if err != nil {
			writeOrderError(w, r, h.Log, err, "")
			return
		}
		if o != nil {
			w.Header().Set("Idempotent-Replayed", "true")
			writeJSON(w, http.StatusOK, o)
			return
		}
	}

	o, existed, err := h.Placer.PlaceOrder(ctx, in)
	if err != nil {
		writeOrderError(w, r, h.Log, err, "")
		return
	}
	if in.IdempotencyKey != "" {
		idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, in.IdempotencyKey)
		if err := h.Redis.Set(context.WithoutCancel(ctx), idemKey, o.ID, redisx.TTLIdempotency).Err(); err != nil {
			h.Log.Warn().Err(err).Str("order_id", o.ID).Msg("store idempotency key")
		}
	}
	if existed {
		w.Header().Set("Idempotent-Replayed", "true")
		writeJSON(w, http.StatusOK, o)
		return
	}

	ids := make([]string, len(o.Items))
	for i, it := range o.Items {
		ids[i] = it.ProductID
	}
	invalidateProducts(ctx, h.Redis, h.Log, ids...)
	h.Events.emit(ctx, orders.TopicOrderPlaced, orders.EventOrderPlaced, o.ID, orders.PlacedPayload(o))

	writeJSON(w, http.StatusCreated, o)
}

// replay returns the order a previous request with the same key created, or nil when there
// is none. An order placed by a different caller is never returned.
func (h *OrdersHandler) replay(ctx context.Context, in orders.PlaceOrderInput) (*orders.Order, error) {
	id, err := h.Redis.Get(ctx, fmt.Sprintf(redisx.KeyIdemOrderCreate, in.IdempotencyKey)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			h.Log.Warn().Err(err).Msg("idempotency lookup")
		}
		return nil, nil
	}
	o, err := h.Repo.GetOrder(ctx, id)
	if err != nil {
		return nil, nil
	}
	if !o.PlacedBy(in) {
		h.Log.Warn().Str("order_id", o.ID).Str("user_id", in.UserID).Msg("idempotency key reused by another caller")
		return nil, orders.KeyReusedError()
	}
	return o, nil
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Repo.ListByUser(ctx, auth.UserID(ctx))
	if err != nil {
		h.Log.Error().Err(err).Msg("list orders")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// scopedKey namespaces a client idempotency key by caller. Signed-in keys live under the
// user id and guest keys under a shared guest prefix, so no client value can name another
// caller's key.
func scopedKey(userID, key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if userID == "" {
		return "guest:" + key
	}
	return "user:" + userID + ":" + key
}
