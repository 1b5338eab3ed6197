package redisx

import "time"

const (
	// Idempotent creation: idem:order:create:{external_id} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Status caches: {kind}_status:{id} -> {"status": "..."}
	KeyOrderStatus  = "order_status:%s"
	KeyRentalStatus = "rental_status:%s"

	// Event processing dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
