package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/catalog"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/redisx"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type ProductsHandler struct {
	Repo  ProductStore
	Redis redis.Cmdable
	Log   zerolog.Logger
	Limit *redisx.FixedWindow
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.Limit != nil {
			r.Use(RateLimit(h.Limit, h.Log, "Too many requests from this IP, please try again later."))
		}
		r.Get("/api/products", h.list)
		r.Get("/api/products/{id}", h.get)
	})
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	f, err := catalog.ParseFilter(r.URL.Query())
	if err != nil {
		var ve *validation.Error
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Message)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Repo.List(ctx, f)
	if err != nil {
		h.Log.Error().Err(err).Msg("list products")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) cache
	key := fmt.Sprintf(redisx.KeyProduct, id)
	var cached catalog.Product
	if found, err := redisx.GetJSON(ctx, h.Redis, key, &cached); err == nil && found {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	// 2) fallback DB
	p, err := h.Repo.Get(ctx, id)
	if errors.Is(err, catalog.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Str("product_id", id).Msg("get product")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err := redisx.SetJSON(ctx, h.Redis, key, p, redisx.TTLProductCache); err != nil {
		h.Log.Warn().Err(err).Str("product_id", id).Msg("cache product")
	}
	writeJSON(w, http.StatusOK, p)
}

// invalidateProducts drops cached product views after their stock or fields changed.
func invalidateProducts(ctx context.Context, rdb redis.Cmdable, log zerolog.Logger, ids ...string) {
	if rdb == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = fmt.Sprintf(redisx.KeyProduct, id)
	}
	if err := rdb.Del(context.WithoutCancel(ctx), keys...).Err(); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("invalidate product cache")
	}
}
