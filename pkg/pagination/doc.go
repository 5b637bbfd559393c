// Package pagination implements bounded, throttled page accumulation for the
// Sonar Web API search endpoints.
//
// Sonar pages with "p" (1-based) and a page size parameter whose name depends
// on the server version. Every response carries the total number of matching
// records, either as a top-level "total" or as "paging.total". The fetcher
// requests page 1 without a page parameter, then keeps requesting pages in
// increasing order until the records retrieved so far reach the total, the
// server's hard cap, or the caller's per-query ceiling.
//
// Example usage:
//
//	fetcher, err := pagination.NewFetcher(sonarClient, ratelimit.Config{Every: 10, Wait: 6500 * time.Millisecond})
//	fetcher.Reset()
//	items, err := fetcher.Fetch(ctx, pagination.Query{
//		Endpoint:      "/rules/search",
//		Params:        url.Values{"languages": {"java"}},
//		ItemsKey:      "rules",
//		PageSize:      500,
//		PageSizeParam: "ps",
//	}, pagination.Limits{})
//
// Pages are fetched strictly sequentially. A failed page aborts the whole
// query and the partial result is discarded; nothing is retried.
//
// A Fetcher owns its throttle and is not safe for concurrent use.
package pagination
