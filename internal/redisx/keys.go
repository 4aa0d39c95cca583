package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{idempotency_key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Product cache: product:{product_id} -> product JSON
	KeyProduct = "product:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Fixed-window rate limit: ratelimit:{scope}:{client}:{window}
	KeyRateLimit = "ratelimit:%s:%s:%d"
)

var (
	TTLIdempotency  = 24 * time.Hour
	TTLProductCache = 5 * time.Minute
	TTLDedup        = 48 * time.Hour
)
