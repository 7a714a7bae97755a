// Package cache provides an optional Redis-backed cache for raw storefront
// response bodies.
//
// The storefront sends no cache validators (no ETag, no usable Expires), so
// entries carry a fixed TTL configured by the caller instead of header-derived
// expiry. A re-run within the TTL serves pages from Redis and touches the
// storefront only for misses.
//
// Example usage:
//
//	manager := cache.NewManager(redisClient)
//	key := cache.Key{Endpoint: "/search/results/", QueryParams: params}
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch and manager.Set(ctx, key, cache.NewEntry(body, ttl))
//	}
package cache
