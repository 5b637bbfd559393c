// Package cache stores raw Sonar API response bodies in Redis.
//
// The cache is optional. A full harvest of a large server takes hours because
// of the request throttle; when a run is interrupted, re-running it against a
// warm cache replays every page already fetched without touching the server.
// Entries live for a fixed TTL chosen by the caller since the Sonar Web API
// sends no caching headers.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Server:      "sonarcloud.io",
//		Endpoint:    "/api/issues/search",
//		QueryParams: url.Values{"componentKeys": []string{"org:repo"}, "p": []string{"2"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the server, then
//		_ = manager.Set(ctx, key, cache.NewEntry(body, http.StatusOK, time.Hour))
//	}
//
// Only successful responses are cached; failures must be retried against the
// server on the next run.
//
// # Metrics
//
//   - sonar_cache_hits_total
//   - sonar_cache_misses_total
//   - sonar_cache_size_bytes
//   - sonar_cache_errors_total{operation}
package cache
